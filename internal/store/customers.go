package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog/log"

	"github.com/ledgerkeep/ledgerkeep/internal/record"
	"github.com/ledgerkeep/ledgerkeep/internal/syncx"
)

const customerColumns = `business_id, full_name, phone, is_deleted, owner_id, created_seq, updated_at_ms`

func scanCustomers(rows pgx.Rows) ([]record.Customer, error) {
	defer rows.Close()
	out := make([]record.Customer, 0)
	for rows.Next() {
		var c record.Customer
		if err := rows.Scan(&c.BusinessID, &c.FullName, &c.Phone, &c.IsDeleted, &c.OwnerID, &c.CreatedSeq, &c.UpdatedAtMs); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// ListCustomers returns every customer row for the owner, newest-created
// first. Tombstoned rows are included; the caller decides how to render them.
func (s *Store) ListCustomers(ctx context.Context, ownerID string) ([]record.Customer, error) {
	rows, err := s.DB.Query(ctx, `
		SELECT `+customerColumns+`
		FROM customer
		WHERE owner_id = $1
		ORDER BY created_seq DESC
	`, ownerID)
	if err != nil {
		log.Error().Err(err).Str("owner_id", ownerID).Msg("failed to list customers")
		return nil, err
	}
	return scanCustomers(rows)
}

// ListRecentCustomers returns the top-limit rows ordered by creation
// sequence or by updated_at_ms, descending. Both orderings ride their own
// index; neither scans the owner's full row set.
func (s *Store) ListRecentCustomers(ctx context.Context, ownerID string, orderBy record.OrderBy, limit int) ([]record.Customer, error) {
	if !orderBy.Valid() {
		return nil, fmt.Errorf("invalid orderBy %q", orderBy)
	}
	order := `created_seq DESC`
	if orderBy == record.OrderUpdated {
		order = `updated_at_ms DESC, created_seq DESC`
	}
	rows, err := s.DB.Query(ctx, `
		SELECT `+customerColumns+`
		FROM customer
		WHERE owner_id = $1
		ORDER BY `+order+`
		LIMIT $2
	`, ownerID, limit)
	if err != nil {
		log.Error().Err(err).Str("owner_id", ownerID).Msg("failed to list recent customers")
		return nil, err
	}
	return scanCustomers(rows)
}

// CreateCustomer inserts a new customer and bumps customers.adds in the same
// transaction.
func (s *Store) CreateCustomer(ctx context.Context, ownerID, businessID, fullName, phone string) (*record.Customer, error) {
	tx, err := s.DB.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	c := record.Customer{
		BusinessID:  businessID,
		FullName:    fullName,
		Phone:       phone,
		OwnerID:     ownerID,
		UpdatedAtMs: syncx.NowMs(),
	}
	err = tx.QueryRow(ctx, `
		INSERT INTO customer (business_id, owner_id, full_name, phone, is_deleted, updated_at_ms)
		VALUES ($1, $2, $3, $4, false, $5)
		RETURNING created_seq
	`, c.BusinessID, ownerID, fullName, phone, c.UpdatedAtMs).Scan(&c.CreatedSeq)
	if err != nil {
		log.Warn().Err(err).Str("owner_id", ownerID).Str("business_id", businessID).Msg("customer insert refused")
		return nil, err
	}

	if err := bumpChangelog(ctx, tx, ownerID, bump{customerAdds: 1}); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return &c, nil
}

// CreateCustomerWithInvoice creates a customer and its first invoice as one
// user action. Both inserts and a single combined changelog bump
// (customers.adds+1, invoices.adds+1) commit together; a concurrent reader
// never observes the counters half-applied.
func (s *Store) CreateCustomerWithInvoice(ctx context.Context, ownerID, businessID, fullName, phone, invoiceBusinessID string, invoiceNumber, invoiceYear int) (*record.Customer, *record.Invoice, error) {
	tx, err := s.DB.Begin(ctx)
	if err != nil {
		return nil, nil, err
	}
	defer tx.Rollback(ctx)

	now := syncx.NowMs()
	c := record.Customer{
		BusinessID:  businessID,
		FullName:    fullName,
		Phone:       phone,
		OwnerID:     ownerID,
		UpdatedAtMs: now,
	}
	err = tx.QueryRow(ctx, `
		INSERT INTO customer (business_id, owner_id, full_name, phone, is_deleted, updated_at_ms)
		VALUES ($1, $2, $3, $4, false, $5)
		RETURNING created_seq
	`, c.BusinessID, ownerID, fullName, phone, now).Scan(&c.CreatedSeq)
	if err != nil {
		log.Warn().Err(err).Str("owner_id", ownerID).Str("business_id", businessID).Msg("customer insert refused")
		return nil, nil, err
	}

	inv := record.Invoice{
		BusinessID:  invoiceBusinessID,
		Number:      invoiceNumber,
		Year:        invoiceYear,
		CustomerID:  businessID,
		OwnerID:     ownerID,
		UpdatedAtMs: now,
	}
	err = tx.QueryRow(ctx, `
		INSERT INTO invoice (business_id, owner_id, number, year, customer_id, is_deleted, updated_at_ms)
		VALUES ($1, $2, $3, $4, $5, false, $6)
		RETURNING created_seq
	`, inv.BusinessID, ownerID, invoiceNumber, invoiceYear, businessID, now).Scan(&inv.CreatedSeq)
	if err != nil {
		log.Warn().Err(err).Str("owner_id", ownerID).Str("business_id", invoiceBusinessID).Msg("invoice insert refused")
		return nil, nil, err
	}

	if err := bumpChangelog(ctx, tx, ownerID, bump{customerAdds: 1, invoiceAdds: 1}); err != nil {
		return nil, nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, nil, err
	}
	return &c, &inv, nil
}

// EditCustomer overwrites the mutable fields of the customer identified by
// businessID after the ownership check, and bumps customers.edits. Returns
// record.ErrNotFound / record.ErrForbidden without touching any row or
// counter. updated_at_ms only ever advances: a caller timestamp at or below
// the row's current value is clamped past it.
func (s *Store) EditCustomer(ctx context.Context, ownerID, businessID, fullName, phone string, isDeleted bool, updatedAtMs int64) (*record.Customer, error) {
	tx, err := s.DB.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	prev, err := ownedRow(ctx, tx, "customer", ownerID, businessID)
	if err != nil {
		return nil, err
	}
	if updatedAtMs <= prev {
		updatedAtMs = syncx.EnsureMonotonicTimestamp(prev)
	}

	c := record.Customer{
		BusinessID:  businessID,
		FullName:    fullName,
		Phone:       phone,
		IsDeleted:   isDeleted,
		OwnerID:     ownerID,
		UpdatedAtMs: updatedAtMs,
	}
	err = tx.QueryRow(ctx, `
		UPDATE customer
		SET full_name = $1, phone = $2, is_deleted = $3, updated_at_ms = $4
		WHERE business_id = $5
		RETURNING created_seq
	`, fullName, phone, isDeleted, updatedAtMs, businessID).Scan(&c.CreatedSeq)
	if err != nil {
		log.Error().Err(err).Str("business_id", businessID).Msg("failed to edit customer")
		return nil, err
	}

	if err := bumpChangelog(ctx, tx, ownerID, bump{customerEdits: 1}); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return &c, nil
}

// RemoveCustomer tombstones the customer and cascades over every invoice
// referencing it for the same owner, all in one transaction. The changelog
// receives a single combined bump: customers.edits+1, invoices.edits+K for
// K cascaded invoices. The cascade matches rows regardless of their current
// is_deleted state, so re-removing re-counts; see RemoveCustomer tests.
// Every touched row's updated_at_ms strictly advances, even when the wall
// clock has not moved since the previous write.
func (s *Store) RemoveCustomer(ctx context.Context, ownerID, businessID string) (int64, error) {
	tx, err := s.DB.Begin(ctx)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback(ctx)

	prev, err := ownedRow(ctx, tx, "customer", ownerID, businessID)
	if err != nil {
		return 0, err
	}

	now := syncx.EnsureMonotonicTimestamp(prev)
	tag, err := tx.Exec(ctx, `
		UPDATE invoice
		SET is_deleted = true, updated_at_ms = GREATEST(updated_at_ms + 1, $1)
		WHERE owner_id = $2 AND customer_id = $3
	`, now, ownerID, businessID)
	if err != nil {
		log.Error().Err(err).Str("business_id", businessID).Msg("failed to cascade invoices")
		return 0, err
	}
	cascaded := tag.RowsAffected()

	_, err = tx.Exec(ctx, `
		UPDATE customer
		SET is_deleted = true, updated_at_ms = $1
		WHERE business_id = $2
	`, now, businessID)
	if err != nil {
		log.Error().Err(err).Str("business_id", businessID).Msg("failed to tombstone customer")
		return 0, err
	}

	if err := bumpChangelog(ctx, tx, ownerID, bump{customerEdits: 1, invoiceEdits: cascaded}); err != nil {
		return 0, err
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}

	log.Info().
		Str("owner_id", ownerID).
		Str("business_id", businessID).
		Int64("cascaded_invoices", cascaded).
		Msg("customer removed")
	return cascaded, nil
}
