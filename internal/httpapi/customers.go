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

// ListCustomers handles GET /v1/customers
// Full owner-scoped set, newest-created first, tombstones included.
func (s *Server) ListCustomers(w http.ResponseWriter, r *http.Request) {
	ownerID := auth.OwnerID(r.Context())

	customers, err := s.Store.ListCustomers(r.Context(), ownerID)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errResp{Error: "storage_failure"})
		return
	}
	writeJSON(w, http.StatusOK, customers)
}

// RecentCustomers handles GET /v1/customers/recent?orderBy=created|updated&limit=<int>
func (s *Server) RecentCustomers(w http.ResponseWriter, r *http.Request) {
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

	customers, err := s.Store.ListRecentCustomers(r.Context(), ownerID, orderBy, limit)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errResp{Error: "storage_failure"})
		return
	}
	writeJSON(w, http.StatusOK, customers)
}

type createCustomerReq struct {
	BusinessID string `json:"businessId"`
	FullName   string `json:"fullName"`
	Phone      string `json:"phone"`
}

// CreateCustomer handles POST /v1/customers
// Generates a business key when the caller does not supply one.
func (s *Server) CreateCustomer(w http.ResponseWriter, r *http.Request) {
	ownerID := auth.OwnerID(r.Context())

	var req createCustomerReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Warn().Err(err).Msg("invalid create customer body")
		writeJSON(w, http.StatusBadRequest, errResp{Error: "invalid json"})
		return
	}
	if req.FullName == "" {
		writeJSON(w, http.StatusBadRequest, errResp{Error: "fullName is required"})
		return
	}
	if req.BusinessID == "" {
		req.BusinessID = uuid.NewString()
	}

	c, err := s.Store.CreateCustomer(r.Context(), ownerID, req.BusinessID, req.FullName, req.Phone)
	if err != nil {
		writeMutationErr(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

type createWithInvoiceReq struct {
	BusinessID        string `json:"businessId"`
	FullName          string `json:"fullName"`
	Phone             string `json:"phone"`
	InvoiceBusinessID string `json:"invoiceBusinessId"`
	InvoiceNumber     int    `json:"invoiceNumber"`
	InvoiceYear       int    `json:"invoiceYear"`
}

type createWithInvoiceResp struct {
	Customer *record.Customer `json:"customer"`
	Invoice  *record.Invoice  `json:"invoice"`
}

// CreateCustomerWithInvoice handles POST /v1/customers/with-invoice
// One user action: customer + first invoice + a single combined changelog
// bump, all in one transaction.
func (s *Server) CreateCustomerWithInvoice(w http.ResponseWriter, r *http.Request) {
	ownerID := auth.OwnerID(r.Context())

	var req createWithInvoiceReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Warn().Err(err).Msg("invalid create customer with invoice body")
		writeJSON(w, http.StatusBadRequest, errResp{Error: "invalid json"})
		return
	}
	if req.FullName == "" {
		writeJSON(w, http.StatusBadRequest, errResp{Error: "fullName is required"})
		return
	}
	if req.BusinessID == "" {
		req.BusinessID = uuid.NewString()
	}
	if req.InvoiceBusinessID == "" {
		req.InvoiceBusinessID = uuid.NewString()
	}

	c, inv, err := s.Store.CreateCustomerWithInvoice(r.Context(), ownerID,
		req.BusinessID, req.FullName, req.Phone,
		req.InvoiceBusinessID, req.InvoiceNumber, req.InvoiceYear)
	if err != nil {
		writeMutationErr(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, createWithInvoiceResp{Customer: c, Invoice: inv})
}

type editCustomerReq struct {
	FullName  string `json:"fullName"`
	Phone     string `json:"phone"`
	IsDeleted bool   `json:"isDeleted"`
	UpdatedAt int64  `json:"updatedAt"`
}

// EditCustomer handles PUT /v1/customers/{businessID}
// Full overwrite of the mutable fields. 404 when the row is missing, 403
// when it belongs to another owner; neither touches any state.
func (s *Server) EditCustomer(w http.ResponseWriter, r *http.Request) {
	ownerID := auth.OwnerID(r.Context())
	businessID := chi.URLParam(r, "businessID")

	var req editCustomerReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Warn().Err(err).Msg("invalid edit customer body")
		writeJSON(w, http.StatusBadRequest, errResp{Error: "invalid json"})
		return
	}
	if req.UpdatedAt == 0 {
		req.UpdatedAt = syncx.NowMs()
	}

	c, err := s.Store.EditCustomer(r.Context(), ownerID, businessID, req.FullName, req.Phone, req.IsDeleted, req.UpdatedAt)
	if err != nil {
		writeMutationErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

type removeCustomerResp struct {
	OK       bool  `json:"ok"`
	Cascaded int64 `json:"cascaded"`
}

// RemoveCustomer handles DELETE /v1/customers/{businessID}
// Soft delete with cascade over the customer's invoices.
func (s *Server) RemoveCustomer(w http.ResponseWriter, r *http.Request) {
	ownerID := auth.OwnerID(r.Context())
	businessID := chi.URLParam(r, "businessID")

	cascaded, err := s.Store.RemoveCustomer(r.Context(), ownerID, businessID)
	if err != nil {
		writeMutationErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, removeCustomerResp{OK: true, Cascaded: cascaded})
}
