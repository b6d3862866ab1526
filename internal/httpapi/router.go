package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog/log"

	"github.com/ledgerkeep/ledgerkeep/internal/auth"
	"github.com/ledgerkeep/ledgerkeep/internal/record"
	"github.com/ledgerkeep/ledgerkeep/internal/store"
)

// Server holds dependencies for HTTP handlers
type Server struct {
	Store *store.Store
}

// okResp is the boolean-style acknowledgment for mutations that have no
// richer payload to return.
type okResp struct {
	OK bool `json:"ok"`
}

// errResp carries a machine-readable failure kind so callers can tell
// not-found, forbidden and storage failures apart.
type errResp struct {
	Error string `json:"error"`
}

// writeJSON writes a JSON response with the given status code
func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("failed to encode json response")
	}
}

// parseLimit parses a limit query param with default and max
func parseLimit(q string, def, max int) int {
	if q == "" {
		return def
	}
	n, err := strconv.Atoi(q)
	if err != nil || n <= 0 {
		return def
	}
	if n > max {
		return max
	}
	return n
}

// writeMutationErr maps the mutation error taxonomy onto HTTP statuses:
// not-found 404, ownership mismatch 403, duplicate business key 409,
// anything else 500. The 403/404 split lets callers tell "not yours"
// apart from "does not exist".
func writeMutationErr(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, record.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errResp{Error: "not_found"})
	case errors.Is(err, record.ErrForbidden):
		writeJSON(w, http.StatusForbidden, errResp{Error: "forbidden"})
	case isUniqueViolation(err):
		writeJSON(w, http.StatusConflict, errResp{Error: "duplicate_business_id"})
	default:
		writeJSON(w, http.StatusInternalServerError, errResp{Error: "storage_failure"})
	}
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// Routes creates the HTTP router with all record endpoints
func (s *Server) Routes(jwt auth.JWTCfg) http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// Health check (unauthenticated)
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(200)
		w.Write([]byte("ok"))
	})

	// All record endpoints require a resolved owner identity
	r.Group(func(r chi.Router) {
		r.Use(auth.Middleware(jwt))

		// Changelog
		r.Get("/v1/changelog", s.GetChangelog)
		r.Post("/v1/changelog", s.SeedChangelog)

		// Customers
		r.Get("/v1/customers", s.ListCustomers)
		r.Get("/v1/customers/recent", s.RecentCustomers)
		r.Post("/v1/customers", s.CreateCustomer)
		r.Post("/v1/customers/with-invoice", s.CreateCustomerWithInvoice)
		r.Put("/v1/customers/{businessID}", s.EditCustomer)
		r.Delete("/v1/customers/{businessID}", s.RemoveCustomer)

		// Invoices
		r.Get("/v1/invoices", s.ListInvoices)
		r.Get("/v1/invoices/recent", s.RecentInvoices)
		r.Post("/v1/invoices", s.CreateInvoice)
		r.Put("/v1/invoices/{businessID}", s.EditInvoice)
		r.Delete("/v1/invoices/{businessID}", s.RemoveInvoice)
	})

	log.Info().Msg("HTTP routes registered")
	return r
}
