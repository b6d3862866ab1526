package mirror

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/ledgerkeep/ledgerkeep/internal/record"
)

// UpsertCustomer applies a single customer row, typically echoing a
// successful authoritative mutation after the round-trip completes.
func (m *Mirror) UpsertCustomer(ctx context.Context, c record.Customer) error {
	_, err := m.db.ExecContext(ctx, `
		INSERT INTO customers (business_id, full_name, phone, is_deleted, owner_id, created_seq, updated_at_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(business_id) DO UPDATE SET
			full_name     = excluded.full_name,
			phone         = excluded.phone,
			is_deleted    = excluded.is_deleted,
			updated_at_ms = excluded.updated_at_ms
	`, c.BusinessID, c.FullName, c.Phone, c.IsDeleted, c.OwnerID, c.CreatedSeq, c.UpdatedAtMs)
	if err != nil {
		return fmt.Errorf("upsert customer: %w", err)
	}
	return nil
}

// UpsertInvoice applies a single invoice row.
func (m *Mirror) UpsertInvoice(ctx context.Context, inv record.Invoice) error {
	_, err := m.db.ExecContext(ctx, `
		INSERT INTO invoices (business_id, number, year, customer_id, is_deleted, owner_id, created_seq, updated_at_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(business_id) DO UPDATE SET
			number        = excluded.number,
			year          = excluded.year,
			customer_id   = excluded.customer_id,
			is_deleted    = excluded.is_deleted,
			updated_at_ms = excluded.updated_at_ms
	`, inv.BusinessID, inv.Number, inv.Year, inv.CustomerID, inv.IsDeleted, inv.OwnerID, inv.CreatedSeq, inv.UpdatedAtMs)
	if err != nil {
		return fmt.Errorf("upsert invoice: %w", err)
	}
	return nil
}

// RemoveCustomerLocal mirrors the authoritative cascade: tombstones the
// customer and every invoice referencing it for the owner, in one local
// transaction.
func (m *Mirror) RemoveCustomerLocal(ctx context.Context, ownerID, businessID string, updatedAtMs int64) error {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("remove customer local: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		UPDATE invoices SET is_deleted = 1, updated_at_ms = ?
		WHERE owner_id = ? AND customer_id = ?
	`, updatedAtMs, ownerID, businessID); err != nil {
		return fmt.Errorf("remove customer local: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE customers SET is_deleted = 1, updated_at_ms = ?
		WHERE owner_id = ? AND business_id = ?
	`, updatedAtMs, ownerID, businessID); err != nil {
		return fmt.Errorf("remove customer local: %w", err)
	}

	return tx.Commit()
}

// RemoveInvoiceLocal tombstones a single invoice.
func (m *Mirror) RemoveInvoiceLocal(ctx context.Context, ownerID, businessID string, updatedAtMs int64) error {
	_, err := m.db.ExecContext(ctx, `
		UPDATE invoices SET is_deleted = 1, updated_at_ms = ?
		WHERE owner_id = ? AND business_id = ?
	`, updatedAtMs, ownerID, businessID)
	if err != nil {
		return fmt.Errorf("remove invoice local: %w", err)
	}
	return nil
}

// ReplaceAll swaps in a full authoritative snapshot for the owner and
// records the changelog counters it corresponds to, in one transaction.
// Either the whole snapshot plus the new sync_state lands, or nothing does
// and the previous tables survive untouched.
func (m *Mirror) ReplaceAll(ctx context.Context, ownerID string, customers []record.Customer, invoices []record.Invoice, counters record.Changelog, state string) error {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("replace all: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM customers WHERE owner_id = ?`, ownerID); err != nil {
		return fmt.Errorf("replace all: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM invoices WHERE owner_id = ?`, ownerID); err != nil {
		return fmt.Errorf("replace all: %w", err)
	}

	for _, c := range customers {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO customers (business_id, full_name, phone, is_deleted, owner_id, created_seq, updated_at_ms)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`, c.BusinessID, c.FullName, c.Phone, c.IsDeleted, c.OwnerID, c.CreatedSeq, c.UpdatedAtMs); err != nil {
			return fmt.Errorf("replace all: %w", err)
		}
	}
	for _, inv := range invoices {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO invoices (business_id, number, year, customer_id, is_deleted, owner_id, created_seq, updated_at_ms)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`, inv.BusinessID, inv.Number, inv.Year, inv.CustomerID, inv.IsDeleted, inv.OwnerID, inv.CreatedSeq, inv.UpdatedAtMs); err != nil {
			return fmt.Errorf("replace all: %w", err)
		}
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO sync_state (owner_id, customer_adds, customer_edits, invoice_adds, invoice_edits, state)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(owner_id) DO UPDATE SET
			customer_adds  = excluded.customer_adds,
			customer_edits = excluded.customer_edits,
			invoice_adds   = excluded.invoice_adds,
			invoice_edits  = excluded.invoice_edits,
			state          = excluded.state
	`, ownerID, counters.Customers.Adds, counters.Customers.Edits, counters.Invoices.Adds, counters.Invoices.Edits, state); err != nil {
		return fmt.Errorf("replace all: %w", err)
	}

	return tx.Commit()
}

// Customers serves offline reads: owner-scoped rows ordered by creation
// sequence or updated_at_ms, newest first. limit <= 0 returns the full set.
func (m *Mirror) Customers(ctx context.Context, ownerID string, orderBy record.OrderBy, limit int) ([]record.Customer, error) {
	if !orderBy.Valid() {
		return nil, fmt.Errorf("invalid orderBy %q", orderBy)
	}
	order := `created_seq DESC`
	if orderBy == record.OrderUpdated {
		order = `updated_at_ms DESC, created_seq DESC`
	}
	query := `
		SELECT business_id, full_name, phone, is_deleted, owner_id, created_seq, updated_at_ms
		FROM customers
		WHERE owner_id = ?
		ORDER BY ` + order
	var rows *sql.Rows
	var err error
	if limit > 0 {
		rows, err = m.db.QueryContext(ctx, query+` LIMIT ?`, ownerID, limit)
	} else {
		rows, err = m.db.QueryContext(ctx, query, ownerID)
	}
	if err != nil {
		return nil, fmt.Errorf("query customers: %w", err)
	}
	defer rows.Close()

	out := make([]record.Customer, 0)
	for rows.Next() {
		var c record.Customer
		if err := rows.Scan(&c.BusinessID, &c.FullName, &c.Phone, &c.IsDeleted, &c.OwnerID, &c.CreatedSeq, &c.UpdatedAtMs); err != nil {
			return nil, fmt.Errorf("scan customer: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// Invoices serves offline invoice reads with the same ordering contract as
// Customers.
func (m *Mirror) Invoices(ctx context.Context, ownerID string, orderBy record.OrderBy, limit int) ([]record.Invoice, error) {
	if !orderBy.Valid() {
		return nil, fmt.Errorf("invalid orderBy %q", orderBy)
	}
	order := `created_seq DESC`
	if orderBy == record.OrderUpdated {
		order = `updated_at_ms DESC, created_seq DESC`
	}
	query := `
		SELECT business_id, number, year, customer_id, is_deleted, owner_id, created_seq, updated_at_ms
		FROM invoices
		WHERE owner_id = ?
		ORDER BY ` + order
	var rows *sql.Rows
	var err error
	if limit > 0 {
		rows, err = m.db.QueryContext(ctx, query+` LIMIT ?`, ownerID, limit)
	} else {
		rows, err = m.db.QueryContext(ctx, query, ownerID)
	}
	if err != nil {
		return nil, fmt.Errorf("query invoices: %w", err)
	}
	defer rows.Close()

	out := make([]record.Invoice, 0)
	for rows.Next() {
		var inv record.Invoice
		if err := rows.Scan(&inv.BusinessID, &inv.Number, &inv.Year, &inv.CustomerID, &inv.IsDeleted, &inv.OwnerID, &inv.CreatedSeq, &inv.UpdatedAtMs); err != nil {
			return nil, fmt.Errorf("scan invoice: %w", err)
		}
		out = append(out, inv)
	}
	return out, rows.Err()
}
