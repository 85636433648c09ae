package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/achievements/internal/publish"
)

// RelayOptions holds flags for the relay command.
type RelayOptions struct {
	*RootOptions
	Once     bool
	Batch    int
	Interval time.Duration
}

// NewRelayCommand creates the relay command.
func NewRelayCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RelayOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "relay",
		Short: "Publish pending outbox events",
		Long: `Publishes committed events that were never successfully published.

With --once the outbox is drained a single time; otherwise the relay
keeps flushing every interval until interrupted.`,
		Example: `  # Drain the outbox once
  achievements relay --once

  # Flush every 10 seconds
  achievements relay --interval 10s`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRelay(cmd, opts)
		},
	}

	cmd.Flags().BoolVar(&opts.Once, "once", false, "drain the outbox once and exit")
	cmd.Flags().IntVar(&opts.Batch, "batch", 100, "events per publish batch")
	cmd.Flags().DurationVar(&opts.Interval, "interval", 0, "flush interval, overrides RELAY_INTERVAL")

	return cmd
}

func runRelay(cmd *cobra.Command, opts *RelayOptions) error {
	formatter := &OutputFormatter{
		Format:  opts.Format,
		Writer:  cmd.OutOrStdout(),
		Verbose: opts.Verbose,
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, opts.RootOptions)
	if err != nil {
		return err
	}
	defer a.Close()

	relay := publish.NewRelay(a.store, a.publisher, opts.Batch, a.logger)

	if opts.Once {
		n, err := relay.Flush(ctx)
		if err != nil {
			_ = formatter.Error("RELAY_FAILED", err.Error(), map[string]int{"published": n})
			return WrapExitError(ExitFailure, "relay failed", err)
		}
		return formatter.Success(map[string]int{"published": n}, fmt.Sprintf("Published %d events", n))
	}

	interval := a.cfg.RelayInterval
	if opts.Interval > 0 {
		interval = opts.Interval
	}
	if err := relay.Run(ctx, interval); err != nil && !errors.Is(err, context.Canceled) {
		return WrapExitError(ExitFailure, "relay failed", err)
	}
	return nil
}
