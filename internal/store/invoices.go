package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog/log"

	"github.com/ledgerkeep/ledgerkeep/internal/record"
	"github.com/ledgerkeep/ledgerkeep/internal/syncx"
)

const invoiceColumns = `business_id, number, year, customer_id, is_deleted, owner_id, created_seq, updated_at_ms`

func scanInvoices(rows pgx.Rows) ([]record.Invoice, error) {
	defer rows.Close()
	out := make([]record.Invoice, 0)
	for rows.Next() {
		var inv record.Invoice
		if err := rows.Scan(&inv.BusinessID, &inv.Number, &inv.Year, &inv.CustomerID, &inv.IsDeleted, &inv.OwnerID, &inv.CreatedSeq, &inv.UpdatedAtMs); err != nil {
			return nil, err
		}
		out = append(out, inv)
	}
	return out, rows.Err()
}

// ListInvoices returns every invoice row for the owner, newest-created first.
func (s *Store) ListInvoices(ctx context.Context, ownerID string) ([]record.Invoice, error) {
	rows, err := s.DB.Query(ctx, `
		SELECT `+invoiceColumns+`
		FROM invoice
		WHERE owner_id = $1
		ORDER BY created_seq DESC
	`, ownerID)
	if err != nil {
		log.Error().Err(err).Str("owner_id", ownerID).Msg("failed to list invoices")
		return nil, err
	}
	return scanInvoices(rows)
}

// ListRecentInvoices returns the top-limit rows by creation sequence or by
// updated_at_ms, descending.
func (s *Store) ListRecentInvoices(ctx context.Context, ownerID string, orderBy record.OrderBy, limit int) ([]record.Invoice, error) {
	if !orderBy.Valid() {
		return nil, fmt.Errorf("invalid orderBy %q", orderBy)
	}
	order := `created_seq DESC`
	if orderBy == record.OrderUpdated {
		order = `updated_at_ms DESC, created_seq DESC`
	}
	rows, err := s.DB.Query(ctx, `
		SELECT `+invoiceColumns+`
		FROM invoice
		WHERE owner_id = $1
		ORDER BY `+order+`
		LIMIT $2
	`, ownerID, limit)
	if err != nil {
		log.Error().Err(err).Str("owner_id", ownerID).Msg("failed to list recent invoices")
		return nil, err
	}
	return scanInvoices(rows)
}

// CreateInvoice inserts a new invoice and bumps invoices.adds in the same
// transaction. customerID is stored as given; it is not checked against the
// customer table.
func (s *Store) CreateInvoice(ctx context.Context, ownerID, businessID, customerID string, number, year int) (*record.Invoice, error) {
	if customerID == "" {
		return nil, fmt.Errorf("customerId is required")
	}

	tx, err := s.DB.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	inv := record.Invoice{
		BusinessID:  businessID,
		Number:      number,
		Year:        year,
		CustomerID:  customerID,
		OwnerID:     ownerID,
		UpdatedAtMs: syncx.NowMs(),
	}
	err = tx.QueryRow(ctx, `
		INSERT INTO invoice (business_id, owner_id, number, year, customer_id, is_deleted, updated_at_ms)
		VALUES ($1, $2, $3, $4, $5, false, $6)
		RETURNING created_seq
	`, inv.BusinessID, ownerID, number, year, customerID, inv.UpdatedAtMs).Scan(&inv.CreatedSeq)
	if err != nil {
		log.Warn().Err(err).Str("owner_id", ownerID).Str("business_id", businessID).Msg("invoice insert refused")
		return nil, err
	}

	if err := bumpChangelog(ctx, tx, ownerID, bump{invoiceAdds: 1}); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return &inv, nil
}

// EditInvoice overwrites number/year/is_deleted/updated_at_ms after the
// ownership check and bumps invoices.edits. As with customers, the
// timestamp never moves backwards.
func (s *Store) EditInvoice(ctx context.Context, ownerID, businessID string, number, year int, isDeleted bool, updatedAtMs int64) (*record.Invoice, error) {
	tx, err := s.DB.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	prev, err := ownedRow(ctx, tx, "invoice", ownerID, businessID)
	if err != nil {
		return nil, err
	}
	if updatedAtMs <= prev {
		updatedAtMs = syncx.EnsureMonotonicTimestamp(prev)
	}

	inv := record.Invoice{
		BusinessID:  businessID,
		Number:      number,
		Year:        year,
		IsDeleted:   isDeleted,
		OwnerID:     ownerID,
		UpdatedAtMs: updatedAtMs,
	}
	err = tx.QueryRow(ctx, `
		UPDATE invoice
		SET number = $1, year = $2, is_deleted = $3, updated_at_ms = $4
		WHERE business_id = $5
		RETURNING customer_id, created_seq
	`, number, year, isDeleted, updatedAtMs, businessID).Scan(&inv.CustomerID, &inv.CreatedSeq)
	if err != nil {
		log.Error().Err(err).Str("business_id", businessID).Msg("failed to edit invoice")
		return nil, err
	}

	if err := bumpChangelog(ctx, tx, ownerID, bump{invoiceEdits: 1}); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return &inv, nil
}

// RemoveInvoice tombstones a single invoice and bumps invoices.edits. No
// cascade: invoices have no dependents.
func (s *Store) RemoveInvoice(ctx context.Context, ownerID, businessID string) error {
	tx, err := s.DB.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	prev, err := ownedRow(ctx, tx, "invoice", ownerID, businessID)
	if err != nil {
		return err
	}

	_, err = tx.Exec(ctx, `
		UPDATE invoice
		SET is_deleted = true, updated_at_ms = $1
		WHERE business_id = $2
	`, syncx.EnsureMonotonicTimestamp(prev), businessID)
	if err != nil {
		log.Error().Err(err).Str("business_id", businessID).Msg("failed to tombstone invoice")
		return err
	}

	if err := bumpChangelog(ctx, tx, ownerID, bump{invoiceEdits: 1}); err != nil {
		return err
	}
	return tx.Commit(ctx)
}
