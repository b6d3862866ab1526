package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ledgerkeep/ledgerkeep/internal/reconcile"
)

// NewSyncCommand creates the sync command.
func NewSyncCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Run one reconciliation pass",
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
			if state == reconcile.Synced {
				fmt.Fprintln(cmd.OutOrStdout(), "mirror is up to date")
				return nil
			}
			if err := r.Sync(ctx); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "mirror synced")
			return nil
		},
	}
}
