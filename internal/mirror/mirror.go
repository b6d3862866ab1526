// Package mirror implements the local offline cache: the same three logical
// tables as the authoritative store, kept in SQLite, plus a per-owner
// sync_state row recording the last-synced changelog counters and the
// reconciliation state.
//
// The mirror is single-consumer (the local client) and always subordinate
// to the authoritative store; it is never a source of truth.
package mirror

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"github.com/ledgerkeep/ledgerkeep/internal/record"
)

//go:embed schema.sql
var schemaSQL string

// Mirror provides durable local storage for offline reads and optimistic
// writes. Uses SQLite with WAL mode for concurrent read access.
type Mirror struct {
	db *sql.DB
}

// Open creates or opens a SQLite database at the given path.
// Applies required pragmas and the schema automatically.
//
// The database is configured with:
//   - WAL mode for concurrent reads during writes
//   - NORMAL synchronous mode (balance durability/performance)
//   - 5-second busy timeout for lock contention
//
// This function is idempotent - safe to call multiple times.
func Open(path string) (*Mirror, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// SQLite only supports one writer at a time, so limit connections
	db.SetMaxOpenConns(1) // Single writer to avoid SQLITE_BUSY errors
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply pragmas: %w", err)
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	return &Mirror{db: db}, nil
}

// Close closes the database connection.
func (m *Mirror) Close() error {
	if m.db == nil {
		return nil
	}
	return m.db.Close()
}

func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}

	return nil
}

// SyncState is the per-owner reconciliation bookkeeping: the changelog
// counters observed at the last successful sync and the current protocol
// state ("synced", "stale" or "syncing").
type SyncState struct {
	OwnerID   string
	Customers record.Counters
	Invoices  record.Counters
	State     string
}

// GetSyncState returns the owner's sync bookkeeping, or nil when the owner
// has never synced. Absence means everything on the server is news.
func (m *Mirror) GetSyncState(ctx context.Context, ownerID string) (*SyncState, error) {
	st := SyncState{OwnerID: ownerID}
	err := m.db.QueryRowContext(ctx, `
		SELECT customer_adds, customer_edits, invoice_adds, invoice_edits, state
		FROM sync_state
		WHERE owner_id = ?
	`, ownerID).Scan(&st.Customers.Adds, &st.Customers.Edits, &st.Invoices.Adds, &st.Invoices.Edits, &st.State)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("get sync state: %w", err)
	}
	return &st, nil
}

// SetState updates only the protocol state for the owner, seeding the row
// with zero counters when it does not exist yet.
func (m *Mirror) SetState(ctx context.Context, ownerID, state string) error {
	_, err := m.db.ExecContext(ctx, `
		INSERT INTO sync_state (owner_id, customer_adds, customer_edits, invoice_adds, invoice_edits, state)
		VALUES (?, 0, 0, 0, 0, ?)
		ON CONFLICT(owner_id) DO UPDATE SET state = excluded.state
	`, ownerID, state)
	if err != nil {
		return fmt.Errorf("set sync state: %w", err)
	}
	return nil
}
