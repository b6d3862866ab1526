package reconcile

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/ledgerkeep/ledgerkeep/internal/mirror"
	"github.com/ledgerkeep/ledgerkeep/internal/record"
)

// Reconciler keeps one owner's mirror consistent with the authoritative
// store. The changelog counters are the cheap "did anything change" signal:
// full record sets are pulled only when the server counters have moved past
// the counters recorded at the last successful sync.
type Reconciler struct {
	Client  Client
	Mirror  *mirror.Mirror
	OwnerID string
}

// New creates a Reconciler for ownerID.
func New(client Client, m *mirror.Mirror, ownerID string) *Reconciler {
	return &Reconciler{Client: client, Mirror: m, OwnerID: ownerID}
}

// localState reads the owner's sync bookkeeping, defaulting to Synced with
// zero counters when the owner has never synced.
func (r *Reconciler) localState(ctx context.Context) (record.Changelog, State, error) {
	st, err := r.Mirror.GetSyncState(ctx, r.OwnerID)
	if err != nil {
		return record.Changelog{}, Synced, err
	}
	if st == nil {
		return record.Changelog{OwnerID: r.OwnerID}, Synced, nil
	}
	state := State(st.State)
	if !state.Valid() {
		return record.Changelog{}, Synced, fmt.Errorf("corrupt sync state %q", st.State)
	}
	return record.Changelog{OwnerID: r.OwnerID, Customers: st.Customers, Invoices: st.Invoices}, state, nil
}

// Check compares the server changelog against the last-synced counters and
// returns the resulting state. When the server is ahead the owner is marked
// Stale; a server with no changelog row means nothing has ever changed and
// the mirror is trivially in sync.
func (r *Reconciler) Check(ctx context.Context) (State, error) {
	local, state, err := r.localState(ctx)
	if err != nil {
		return state, err
	}

	server, err := r.Client.Changelog(ctx)
	if err != nil {
		return state, fmt.Errorf("fetch changelog: %w", err)
	}
	if server == nil || !local.Behind(*server) {
		return state, nil
	}

	if state == Synced {
		if state, err = state.Transition(Stale); err != nil {
			return state, err
		}
	}
	if err := r.Mirror.SetState(ctx, r.OwnerID, string(Stale)); err != nil {
		return state, err
	}
	log.Info().
		Str("owner_id", r.OwnerID).
		Int64("server_customer_adds", server.Customers.Adds).
		Int64("local_customer_adds", local.Customers.Adds).
		Msg("mirror is stale")
	return Stale, nil
}

// Sync performs one pull: Stale -> Syncing, fetch the changelog and both
// full record sets, then swap them into the mirror together with the new
// counters in a single local transaction. Any failure transitions back to
// Stale with the mirror tables untouched - there is no partial credit.
//
// The changelog is fetched before the record sets: if mutations land
// between the two fetches, the recorded counters undershoot the pulled data
// and the next Check simply syncs again. The opposite order could record
// counters for data the pull never saw.
func (r *Reconciler) Sync(ctx context.Context) error {
	_, state, err := r.localState(ctx)
	if err != nil {
		return err
	}
	if state == Synced {
		// Nothing flagged; Check first.
		return nil
	}
	if state == Syncing {
		// A previous attempt died mid-pull and its failure path never ran.
		// ReplaceAll is all-or-nothing, so the tables are intact; resume
		// from Stale.
		state = Stale
	}
	if _, err := state.Transition(Syncing); err != nil {
		return err
	}
	if err := r.Mirror.SetState(ctx, r.OwnerID, string(Syncing)); err != nil {
		return err
	}

	if err := r.pull(ctx); err != nil {
		if stErr := r.Mirror.SetState(ctx, r.OwnerID, string(Stale)); stErr != nil {
			log.Error().Err(stErr).Str("owner_id", r.OwnerID).Msg("failed to mark mirror stale after sync failure")
		}
		return fmt.Errorf("sync: %w", err)
	}
	return nil
}

func (r *Reconciler) pull(ctx context.Context) error {
	server, err := r.Client.Changelog(ctx)
	if err != nil {
		return err
	}
	counters := record.Changelog{OwnerID: r.OwnerID}
	if server != nil {
		counters = *server
		counters.OwnerID = r.OwnerID
	}

	customers, err := r.Client.Customers(ctx)
	if err != nil {
		return err
	}
	invoices, err := r.Client.Invoices(ctx)
	if err != nil {
		return err
	}

	if err := r.Mirror.ReplaceAll(ctx, r.OwnerID, customers, invoices, counters, string(Synced)); err != nil {
		return err
	}

	log.Info().
		Str("owner_id", r.OwnerID).
		Int("customers", len(customers)).
		Int("invoices", len(invoices)).
		Msg("mirror synced")
	return nil
}

// Mutation passthroughs: each one performs the authoritative mutation and,
// only after the round-trip succeeds, applies the same change to the mirror
// so the local cache reflects it immediately.

// CreateCustomer creates the customer on the server and mirrors it.
func (r *Reconciler) CreateCustomer(ctx context.Context, businessID, fullName, phone string) (*record.Customer, error) {
	c, err := r.Client.CreateCustomer(ctx, businessID, fullName, phone)
	if err != nil {
		return nil, err
	}
	if err := r.Mirror.UpsertCustomer(ctx, *c); err != nil {
		return c, err
	}
	return c, nil
}

// CreateCustomerWithInvoice creates both records on the server and mirrors
// them.
func (r *Reconciler) CreateCustomerWithInvoice(ctx context.Context, businessID, fullName, phone, invoiceBusinessID string, invoiceNumber, invoiceYear int) (*record.Customer, *record.Invoice, error) {
	c, inv, err := r.Client.CreateCustomerWithInvoice(ctx, businessID, fullName, phone, invoiceBusinessID, invoiceNumber, invoiceYear)
	if err != nil {
		return nil, nil, err
	}
	if err := r.Mirror.UpsertCustomer(ctx, *c); err != nil {
		return c, inv, err
	}
	if err := r.Mirror.UpsertInvoice(ctx, *inv); err != nil {
		return c, inv, err
	}
	return c, inv, nil
}

// EditCustomer edits the customer on the server and mirrors the result.
func (r *Reconciler) EditCustomer(ctx context.Context, businessID, fullName, phone string, isDeleted bool, updatedAtMs int64) (*record.Customer, error) {
	c, err := r.Client.EditCustomer(ctx, businessID, fullName, phone, isDeleted, updatedAtMs)
	if err != nil {
		return nil, err
	}
	if err := r.Mirror.UpsertCustomer(ctx, *c); err != nil {
		return c, err
	}
	return c, nil
}

// RemoveCustomer removes the customer on the server, then mirrors the
// cascade locally.
func (r *Reconciler) RemoveCustomer(ctx context.Context, businessID string, updatedAtMs int64) (int64, error) {
	cascaded, err := r.Client.RemoveCustomer(ctx, businessID)
	if err != nil {
		return 0, err
	}
	if err := r.Mirror.RemoveCustomerLocal(ctx, r.OwnerID, businessID, updatedAtMs); err != nil {
		return cascaded, err
	}
	return cascaded, nil
}

// CreateInvoice creates the invoice on the server and mirrors it.
func (r *Reconciler) CreateInvoice(ctx context.Context, businessID, customerID string, number, year int) (*record.Invoice, error) {
	inv, err := r.Client.CreateInvoice(ctx, businessID, customerID, number, year)
	if err != nil {
		return nil, err
	}
	if err := r.Mirror.UpsertInvoice(ctx, *inv); err != nil {
		return inv, err
	}
	return inv, nil
}

// EditInvoice edits the invoice on the server and mirrors the result.
func (r *Reconciler) EditInvoice(ctx context.Context, businessID string, number, year int, isDeleted bool, updatedAtMs int64) (*record.Invoice, error) {
	inv, err := r.Client.EditInvoice(ctx, businessID, number, year, isDeleted, updatedAtMs)
	if err != nil {
		return nil, err
	}
	if err := r.Mirror.UpsertInvoice(ctx, *inv); err != nil {
		return inv, err
	}
	return inv, nil
}

// RemoveInvoice removes the invoice on the server and tombstones it locally.
func (r *Reconciler) RemoveInvoice(ctx context.Context, businessID string, updatedAtMs int64) error {
	if err := r.Client.RemoveInvoice(ctx, businessID); err != nil {
		return err
	}
	return r.Mirror.RemoveInvoiceLocal(ctx, r.OwnerID, businessID, updatedAtMs)
}
