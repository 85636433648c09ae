package cli

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/roach88/achievements/internal/publish"
	"github.com/roach88/achievements/internal/telemetry"
	"github.com/roach88/achievements/internal/transport"
)

// ServeOptions holds flags for the serve command.
type ServeOptions struct {
	*RootOptions
	Addr      string
	NoRelay   bool
	RelaySize int
}

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ServeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP event endpoint",
		Long: `Serves POST /events, GET /healthz and GET /metrics until interrupted.

Events are processed as they arrive. A background relay republishes
committed events whose first publish failed.`,
		Example: `  # Serve on the configured address
  achievements serve

  # Serve on a custom port against Postgres
  achievements serve --addr :9090 --db-driver postgres --database-url postgres://localhost/achievements`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.Addr, "addr", "", "listen address, overrides HTTP_ADDR")
	cmd.Flags().BoolVar(&opts.NoRelay, "no-relay", false, "do not run the outbox relay")
	cmd.Flags().IntVar(&opts.RelaySize, "relay-batch", 100, "events per relay batch")

	return cmd
}

func runServe(cmd *cobra.Command, opts *ServeOptions) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, opts.RootOptions)
	if err != nil {
		return err
	}
	defer a.Close()

	shutdown, err := telemetry.Setup(ctx, "achievements", a.cfg.OTelEndpoint, a.cfg.OTelEnabled)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to set up tracing", err)
	}
	defer func() {
		if err := shutdown(context.WithoutCancel(ctx)); err != nil {
			a.logger.Warn("tracer shutdown failed", "error", err)
		}
	}()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	proc := a.processor(reg)

	if !opts.NoRelay {
		relay := publish.NewRelay(a.store, a.publisher, opts.RelaySize, a.logger)
		go func() {
			if err := relay.Run(ctx, a.cfg.RelayInterval); err != nil && !errors.Is(err, context.Canceled) {
				a.logger.Error("relay stopped", "error", err)
			}
		}()
	}

	addr := a.cfg.HTTPAddr
	if opts.Addr != "" {
		addr = opts.Addr
	}

	srv := transport.NewServer(proc, a.store,
		transport.WithGatherer(reg),
		transport.WithAccessLog(cmd.ErrOrStderr()),
		transport.WithLogger(a.logger),
	)
	if err := srv.Run(ctx, addr); err != nil {
		return WrapExitError(ExitFailure, "server failed", err)
	}
	return nil
}
