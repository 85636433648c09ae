package cli

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/roach88/achievements/internal/config"
	"github.com/roach88/achievements/internal/evaluator"
	"github.com/roach88/achievements/internal/lock"
	"github.com/roach88/achievements/internal/metrics"
	"github.com/roach88/achievements/internal/processor"
	"github.com/roach88/achievements/internal/publish"
	"github.com/roach88/achievements/internal/store"
)

// redisLockPrefix namespaces lock keys in a shared Redis.
const redisLockPrefix = "achievements:lock:"

// app bundles the long-lived dependencies one command needs.
type app struct {
	cfg       config.Config
	store     *store.Store
	guard     *lock.Guard
	publisher publish.Publisher
	logger    *slog.Logger

	closers []func() error
}

// openStore opens the configured database and applies the schema.
func openStore(cfg config.Config) (*store.Store, error) {
	st, err := store.Open(cfg.DBDriver, cfg.DatabaseURL)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open store", err)
	}
	return st, nil
}

// newApp loads configuration, opens the store and builds the lock guard
// and publisher. Close releases everything it opened.
func newApp(ctx context.Context, opts *RootOptions) (*app, error) {
	cfg, err := loadConfig(opts)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "invalid configuration", err)
	}

	st, err := openStore(cfg)
	if err != nil {
		return nil, err
	}

	a := &app{
		cfg:    cfg,
		store:  st,
		logger: opts.logger(),
	}
	a.closers = append(a.closers, st.Close)

	backend, closeBackend, err := newLockBackend(ctx, cfg, st)
	if err != nil {
		a.Close()
		return nil, WrapExitError(ExitCommandError, "failed to initialize lock backend", err)
	}
	if closeBackend != nil {
		a.closers = append(a.closers, closeBackend)
	}

	a.guard = lock.NewGuard(backend,
		lock.WithTTL(cfg.LockTTL),
		lock.WithBackoff(lock.Backoff{
			Min:    cfg.LockDelayMin,
			Step:   cfg.LockDelayStep,
			Cap:    cfg.LockDelayCap,
			Jitter: cfg.LockJitter,
		}),
		lock.WithLogger(a.logger),
	)
	a.publisher = newPublisher(cfg, a.logger)

	a.logger.Debug("app initialized",
		"driver", cfg.DBDriver,
		"lock_backend", cfg.LockBackend,
		"batch_queries", cfg.BatchQueries,
		"webhook", cfg.WebhookURL != "",
	)
	return a, nil
}

// newLockBackend picks the lease store named by LOCK_BACKEND. The returned
// close func may be nil.
func newLockBackend(ctx context.Context, cfg config.Config, st *store.Store) (lock.Backend, func() error, error) {
	switch cfg.LockBackend {
	case config.LockSQL:
		return lock.NewSQLBackend(st, nil), nil, nil
	case config.LockMemory:
		return lock.NewMemoryBackend(nil), nil, nil
	case config.LockRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisCredentials.Addr(),
			Password: cfg.RedisCredentials.Password,
		})
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := client.Ping(pingCtx).Err(); err != nil {
			client.Close()
			return nil, nil, fmt.Errorf("ping redis %s: %w", cfg.RedisCredentials.Addr(), err)
		}
		return lock.NewRedisBackend(client, redisLockPrefix), client.Close, nil
	case config.LockFirestore:
		client, err := lock.NewFirestoreClient(ctx, cfg.FirestoreProject, cfg.FirestoreCredsFile)
		if err != nil {
			return nil, nil, err
		}
		return lock.NewFirestoreBackend(client, cfg.FirestoreCollection, nil), client.Close, nil
	}
	return nil, nil, fmt.Errorf("unknown lock backend %q", cfg.LockBackend)
}

// newPublisher always logs events and also posts them when a webhook is
// configured.
func newPublisher(cfg config.Config, logger *slog.Logger) publish.Publisher {
	logPub := publish.NewLog(logger)
	if cfg.WebhookURL == "" {
		return logPub
	}
	return publish.Multi{logPub, publish.NewWebhook(cfg.WebhookURL, nil)}
}

// processor builds a Processor over the app's store. reg may be nil to run
// without metrics.
func (a *app) processor(reg prometheus.Registerer) *processor.Processor {
	eval := evaluator.New(a.store, a.store.Dialect(),
		evaluator.WithBatching(a.cfg.BatchQueries),
		evaluator.WithMaxBatch(a.cfg.MaxBatch),
		evaluator.WithLogger(a.logger),
	)

	opts := []processor.Option{
		processor.WithPublisher(a.publisher),
		processor.WithLogger(a.logger),
	}
	if reg != nil {
		opts = append(opts, processor.WithMetrics(metrics.New(reg)))
	}
	return processor.New(a.store, a.guard, eval, opts...)
}

// Close releases resources in reverse order of acquisition.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.logger.Warn("close failed", "error", err)
		}
	}
}
