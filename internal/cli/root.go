// Package cli implements the mirrorctl command set: the local agent that
// owns the sqlite mirror and reconciles it against the server.
package cli

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/ledgerkeep/ledgerkeep/internal/mirror"
	"github.com/ledgerkeep/ledgerkeep/internal/reconcile"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	ConfigPath string
	Verbose    bool
}

// NewRootCommand creates the root command for mirrorctl.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "mirrorctl",
		Short: "Local mirror agent for the ledgerkeep backend",
		Long: `mirrorctl keeps a local sqlite mirror of your customers and invoices in
sync with the ledgerkeep server, using the per-owner changelog counters to
detect when a refresh pull is needed.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			zerolog.SetGlobalLevel(zerolog.InfoLevel)
			if opts.Verbose {
				zerolog.SetGlobalLevel(zerolog.DebugLevel)
			}
			log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"})
		},
	}

	cmd.PersistentFlags().StringVar(&opts.ConfigPath, "config", "mirrorctl.yaml", "path to config file")
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")

	cmd.AddCommand(NewStatusCommand(opts))
	cmd.AddCommand(NewSyncCommand(opts))
	cmd.AddCommand(NewWatchCommand(opts))

	return cmd
}

// openReconciler wires the config into a client, a mirror and a reconciler.
// The returned cleanup closes the mirror.
func openReconciler(opts *RootOptions) (*reconcile.Reconciler, *Config, func(), error) {
	cfg, err := LoadConfig(opts.ConfigPath)
	if err != nil {
		return nil, nil, nil, err
	}

	m, err := mirror.Open(cfg.MirrorPath)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("open mirror: %w", err)
	}

	client := reconcile.NewHTTPClient(cfg.ServerURL, cfg.Token, nil)
	if cfg.Token == "" && cfg.DebugOwner != "" {
		client.UseDebugOwner(cfg.DebugOwner)
	}

	r := reconcile.New(client, m, cfg.OwnerID)
	return r, cfg, func() { m.Close() }, nil
}
