package cli

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/ledgerkeep/ledgerkeep/internal/reconcile"
)

// NewWatchCommand creates the watch command.
func NewWatchCommand(rootOpts *RootOptions) *cobra.Command {
	var interval time.Duration

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Reconcile on an interval until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			r, cfg, cleanup, err := openReconciler(rootOpts)
			if err != nil {
				return err
			}
			defer cleanup()

			if interval <= 0 {
				interval = cfg.Interval
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			log.Info().Dur("interval", interval).Str("owner_id", r.OwnerID).Msg("watching for changes")

			ticker := time.NewTicker(interval)
			defer ticker.Stop()

			for {
				if err := pass(ctx, r); err != nil && ctx.Err() == nil {
					// Transient failures leave the mirror Stale; the next
					// tick retries.
					log.Warn().Err(err).Msg("reconciliation pass failed")
				}
				select {
				case <-ctx.Done():
					log.Info().Msg("stopping")
					return nil
				case <-ticker.C:
				}
			}
		},
	}

	cmd.Flags().DurationVar(&interval, "interval", 0, "poll interval (defaults to config value)")
	return cmd
}

func pass(ctx context.Context, r *reconcile.Reconciler) error {
	state, err := r.Check(ctx)
	if err != nil {
		return err
	}
	if state == reconcile.Synced {
		return nil
	}
	return r.Sync(ctx)
}
