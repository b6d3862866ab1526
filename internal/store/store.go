// Package store implements the authoritative record store: owner-scoped
// customer and invoice tables plus the per-owner changelog counters. Every
// mutation and its changelog bump commit in one transaction.
package store

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"

	"github.com/ledgerkeep/ledgerkeep/internal/record"
)

// Store holds the connection pool shared by all operations.
type Store struct {
	DB *pgxpool.Pool
}

// New creates a Store backed by pool.
func New(pool *pgxpool.Pool) *Store {
	return &Store{DB: pool}
}

// bump is one changelog update: any subset of the four counters, applied
// together. Combined operations (addWithInvoice, cascade removal) use a
// single bump so no torn intermediate counter state is ever readable.
type bump struct {
	customerAdds  int64
	customerEdits int64
	invoiceAdds   int64
	invoiceEdits  int64
}

// bumpChangelog applies b to the owner's changelog row inside tx. The row is
// seeded on first use. The increment happens in SQL on the conflicting row,
// so concurrent mutations for the same owner cannot lose updates: the
// database serializes the read-modify-write per row.
func bumpChangelog(ctx context.Context, tx pgx.Tx, ownerID string, b bump) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO changelog (owner_id, customer_adds, customer_edits, invoice_adds, invoice_edits)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (owner_id) DO UPDATE SET
			customer_adds  = changelog.customer_adds  + EXCLUDED.customer_adds,
			customer_edits = changelog.customer_edits + EXCLUDED.customer_edits,
			invoice_adds   = changelog.invoice_adds   + EXCLUDED.invoice_adds,
			invoice_edits  = changelog.invoice_edits  + EXCLUDED.invoice_edits
	`, ownerID, b.customerAdds, b.customerEdits, b.invoiceAdds, b.invoiceEdits)
	return err
}

// Changelog returns the owner's counter row, or nil when no mutation has
// ever been recorded for the owner. Absence is a valid state and distinct
// from all-zero counters.
func (s *Store) Changelog(ctx context.Context, ownerID string) (*record.Changelog, error) {
	cl := record.Changelog{OwnerID: ownerID}
	err := s.DB.QueryRow(ctx, `
		SELECT customer_adds, customer_edits, invoice_adds, invoice_edits
		FROM changelog
		WHERE owner_id = $1
	`, ownerID).Scan(&cl.Customers.Adds, &cl.Customers.Edits, &cl.Invoices.Adds, &cl.Invoices.Edits)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		log.Error().Err(err).Str("owner_id", ownerID).Msg("failed to read changelog")
		return nil, err
	}
	return &cl, nil
}

// SeedChangelog inserts a pre-filled counter row for the owner. Returns
// false when a row already exists: the 0-or-1-row-per-owner invariant is
// never violated by a duplicate seed.
func (s *Store) SeedChangelog(ctx context.Context, ownerID string, customers, invoices record.Counters) (bool, error) {
	tag, err := s.DB.Exec(ctx, `
		INSERT INTO changelog (owner_id, customer_adds, customer_edits, invoice_adds, invoice_edits)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (owner_id) DO NOTHING
	`, ownerID, customers.Adds, customers.Edits, invoices.Adds, invoices.Edits)
	if err != nil {
		log.Error().Err(err).Str("owner_id", ownerID).Msg("failed to seed changelog")
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// ownedRow resolves a business key to its owning tenant inside tx, locking
// the row for the rest of the transaction, and returns the row's current
// updated_at_ms so writers can keep the timestamp monotonic. table is
// "customer" or "invoice". Lookup is by business key alone so a cross-tenant
// attempt is reported as ErrForbidden rather than collapsing into not-found.
func ownedRow(ctx context.Context, tx pgx.Tx, table, ownerID, businessID string) (int64, error) {
	var rowOwner string
	var updatedAtMs int64
	query := `SELECT owner_id, updated_at_ms FROM customer WHERE business_id = $1 FOR UPDATE`
	if table == "invoice" {
		query = `SELECT owner_id, updated_at_ms FROM invoice WHERE business_id = $1 FOR UPDATE`
	}
	if err := tx.QueryRow(ctx, query, businessID).Scan(&rowOwner, &updatedAtMs); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, record.ErrNotFound
		}
		return 0, err
	}
	if rowOwner != ownerID {
		return 0, record.ErrForbidden
	}
	return updatedAtMs, nil
}
