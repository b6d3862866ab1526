package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ledgerkeep/ledgerkeep/internal/reconcile"
	"github.com/ledgerkeep/ledgerkeep/internal/record"
	"github.com/ledgerkeep/ledgerkeep/internal/syncx"
)

// NewStatusCommand creates the status command.
func NewStatusCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show mirror state versus the server changelog",
		RunE: func(cmd *cobra.Command, args []string) error {
			r, _, cleanup, err := openReconciler(rootOpts)
			if err != nil {
				return err
			}
			defer cleanup()

			ctx := cmd.Context()
			state, err := r.Check(ctx)
			if err != nil {
				return err
			}

			server, err := r.Client.Changelog(ctx)
			if err != nil {
				return err
			}
			local, err := r.Mirror.GetSyncState(ctx, r.OwnerID)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "state: %s\n", state)
			if server == nil {
				fmt.Fprintln(out, "server: no changelog yet")
			} else {
				fmt.Fprintf(out, "server: customers %d/%d invoices %d/%d (adds/edits)\n",
					server.Customers.Adds, server.Customers.Edits,
					server.Invoices.Adds, server.Invoices.Edits)
			}
			if local == nil {
				fmt.Fprintln(out, "mirror: never synced")
				return nil
			}
			fmt.Fprintf(out, "mirror: customers %d/%d invoices %d/%d (adds/edits)\n",
				local.Customers.Adds, local.Customers.Edits,
				local.Invoices.Adds, local.Invoices.Edits)

			if last, err := lastLocalChange(ctx, r); err != nil {
				return err
			} else if last > 0 {
				fmt.Fprintf(out, "last local change: %s\n", syncx.RFC3339(last))
			}
			return nil
		},
	}
}

// lastLocalChange returns the newest updated_at_ms across the owner's
// mirrored customers and invoices, or 0 when the mirror is empty.
func lastLocalChange(ctx context.Context, r *reconcile.Reconciler) (int64, error) {
	var last int64
	customers, err := r.Mirror.Customers(ctx, r.OwnerID, record.OrderUpdated, 1)
	if err != nil {
		return 0, err
	}
	if len(customers) > 0 {
		last = customers[0].UpdatedAtMs
	}
	invoices, err := r.Mirror.Invoices(ctx, r.OwnerID, record.OrderUpdated, 1)
	if err != nil {
		return 0, err
	}
	if len(invoices) > 0 && invoices[0].UpdatedAtMs > last {
		last = invoices[0].UpdatedAtMs
	}
	return last, nil
}
