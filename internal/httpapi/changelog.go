package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/ledgerkeep/ledgerkeep/internal/auth"
	"github.com/ledgerkeep/ledgerkeep/internal/record"
)

// GetChangelog handles GET /v1/changelog
// Returns the owner's counter row, or 404 when no mutation has been
// recorded yet. Clients treat 404 as "nothing to sync", not as an error.
func (s *Server) GetChangelog(w http.ResponseWriter, r *http.Request) {
	ownerID := auth.OwnerID(r.Context())

	cl, err := s.Store.Changelog(r.Context(), ownerID)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errResp{Error: "storage_failure"})
		return
	}
	if cl == nil {
		writeJSON(w, http.StatusNotFound, errResp{Error: "not_found"})
		return
	}
	writeJSON(w, http.StatusOK, cl)
}

type seedChangelogReq struct {
	Customers record.Counters `json:"customers"`
	Invoices  record.Counters `json:"invoices"`
}

// SeedChangelog handles POST /v1/changelog
// Inserts a pre-filled counter row. 409 when the owner already has one.
func (s *Server) SeedChangelog(w http.ResponseWriter, r *http.Request) {
	ownerID := auth.OwnerID(r.Context())

	var req seedChangelogReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Warn().Err(err).Msg("invalid changelog seed body")
		writeJSON(w, http.StatusBadRequest, errResp{Error: "invalid json"})
		return
	}

	ok, err := s.Store.SeedChangelog(r.Context(), ownerID, req.Customers, req.Invoices)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errResp{Error: "storage_failure"})
		return
	}
	if !ok {
		writeJSON(w, http.StatusConflict, okResp{OK: false})
		return
	}
	writeJSON(w, http.StatusCreated, okResp{OK: true})
}
