package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/ledgerkeep/ledgerkeep/internal/auth"
	"github.com/ledgerkeep/ledgerkeep/internal/record"
	"github.com/ledgerkeep/ledgerkeep/internal/syncx"
)

// ListInvoices handles GET /v1/invoices
func (s *Server) ListInvoices(w http.ResponseWriter, r *http.Request) {
	ownerID := auth.OwnerID(r.Context())

	invoices, err := s.Store.ListInvoices(r.Context(), ownerID)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errResp{Error: "storage_failure"})
		return
	}
	writeJSON(w, http.StatusOK, invoices)
}

// RecentInvoices handles GET /v1/invoices/recent?orderBy=created|updated&limit=<int>
func (s *Server) RecentInvoices(w http.ResponseWriter, r *http.Request) {
	ownerID := auth.OwnerID(r.Context())

	orderBy := record.OrderBy(r.URL.Query().Get("orderBy"))
	if orderBy == "" {
		orderBy = record.OrderCreated
	}
	if !orderBy.Valid() {
		writeJSON(w, http.StatusBadRequest, errResp{Error: "orderBy must be 'created' or 'updated'"})
		return
	}
	limit := parseLimit(r.URL.Query().Get("limit"), 20, 100)

	invoices, err := s.Store.ListRecentInvoices(r.Context(), ownerID, orderBy, limit)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errResp{Error: "storage_failure"})
		return
	}
	writeJSON(w, http.StatusOK, invoices)
}

type createInvoiceReq struct {
	BusinessID string `json:"businessId"`
	CustomerID string `json:"customerId"`
	Number     int    `json:"number"`
	Year       int    `json:"year"`
}

// CreateInvoice handles POST /v1/invoices
// customerId is stored as a logical reference; it is not validated against
// the customer table.
func (s *Server) CreateInvoice(w http.ResponseWriter, r *http.Request) {
	ownerID := auth.OwnerID(r.Context())

	var req createInvoiceReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Warn().Err(err).Msg("invalid create invoice body")
		writeJSON(w, http.StatusBadRequest, errResp{Error: "invalid json"})
		return
	}
	if req.CustomerID == "" {
		writeJSON(w, http.StatusBadRequest, errResp{Error: "customerId is required"})
		return
	}
	if req.BusinessID == "" {
		req.BusinessID = uuid.NewString()
	}

	inv, err := s.Store.CreateInvoice(r.Context(), ownerID, req.BusinessID, req.CustomerID, req.Number, req.Year)
	if err != nil {
		writeMutationErr(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, inv)
}

type editInvoiceReq struct {
	Number    int   `json:"number"`
	Year      int   `json:"year"`
	IsDeleted bool  `json:"isDeleted"`
	UpdatedAt int64 `json:"updatedAt"`
}

// EditInvoice handles PUT /v1/invoices/{businessID}
func (s *Server) EditInvoice(w http.ResponseWriter, r *http.Request) {
	ownerID := auth.OwnerID(r.Context())
	businessID := chi.URLParam(r, "businessID")

	var req editInvoiceReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Warn().Err(err).Msg("invalid edit invoice body")
		writeJSON(w, http.StatusBadRequest, errResp{Error: "invalid json"})
		return
	}
	if req.UpdatedAt == 0 {
		req.UpdatedAt = syncx.NowMs()
	}

	inv, err := s.Store.EditInvoice(r.Context(), ownerID, businessID, req.Number, req.Year, req.IsDeleted, req.UpdatedAt)
	if err != nil {
		writeMutationErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, inv)
}

// RemoveInvoice handles DELETE /v1/invoices/{businessID}
// Soft delete of a single invoice; invoices have no dependents to cascade.
func (s *Server) RemoveInvoice(w http.ResponseWriter, r *http.Request) {
	ownerID := auth.OwnerID(r.Context())
	businessID := chi.URLParam(r, "businessID")

	if err := s.Store.RemoveInvoice(r.Context(), ownerID, businessID); err != nil {
		writeMutationErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, okResp{OK: true})
}
