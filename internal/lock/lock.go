package lock

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// Outcome classifies an acquisition attempt.
type Outcome int

const (
	// Proceeded means the lease is held and the caller may run.
	Proceeded Outcome = iota
	// Conflict means another holder has the key; the caller must defer.
	Conflict
	// Error means the backend failed; Result.Err says why.
	Error
)

func (o Outcome) String() string {
	switch o {
	case Proceeded:
		return "proceeded"
	case Conflict:
		return "conflict"
	case Error:
		return "error"
	}
	return fmt.Sprintf("outcome(%d)", int(o))
}

// Result is what Acquire returns. Owner identifies the lease for Release.
type Result struct {
	Outcome Outcome
	Key     string
	Owner   string
	Delay   time.Duration
	Err     error
}

// Backend stores leases.
type Backend interface {
	// TryAcquire sets key to owner for ttl if the key is free or expired.
	// It reports false, without error, when another owner holds the key.
	TryAcquire(ctx context.Context, key, owner string, ttl time.Duration) (bool, error)

	// Release deletes key if owner still holds it.
	Release(ctx context.Context, key, owner string) error
}

// DefaultTTL bounds how long a crashed holder blocks the user.
const DefaultTTL = 20 * time.Second

// Backoff shapes the pre-acquisition delay:
//
//	Min + Step*(attempt mod Cap) + Jitter*r, r in [0, 1)
type Backoff struct {
	Min    time.Duration
	Step   time.Duration
	Cap    int
	Jitter time.Duration
}

// DefaultBackoff spreads attempts over roughly 1ms..106ms.
var DefaultBackoff = Backoff{
	Min:    time.Millisecond,
	Step:   5 * time.Millisecond,
	Cap:    20,
	Jitter: 10 * time.Millisecond,
}

// Delay computes the wait before attempt given r in [0, 1).
func (b Backoff) Delay(attempt int64, r float64) time.Duration {
	d := b.Min
	if b.Cap > 0 && b.Step > 0 {
		d += b.Step * time.Duration(attempt%int64(b.Cap))
	}
	if b.Jitter > 0 {
		d += time.Duration(r * float64(b.Jitter))
	}
	return d
}

// Guard serializes evaluations per key.
//
// Thread-safety: a Guard is safe for concurrent use. The attempt counter is
// shared by every caller in the process.
type Guard struct {
	backend  Backend
	ttl      time.Duration
	backoff  Backoff
	attempts atomic.Int64
	sleep    func(ctx context.Context, d time.Duration) error
	random   func() float64
	newOwner func() string
	logger   *slog.Logger
}

// Option configures a Guard.
type Option func(*Guard)

// WithTTL sets the lease lifetime. Default: DefaultTTL.
func WithTTL(ttl time.Duration) Option {
	return func(g *Guard) {
		if ttl > 0 {
			g.ttl = ttl
		}
	}
}

// WithBackoff replaces DefaultBackoff.
func WithBackoff(b Backoff) Option {
	return func(g *Guard) {
		g.backoff = b
	}
}

// WithSleep replaces the context-aware timer wait. Tests use it to observe
// delays without waiting.
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(g *Guard) {
		g.sleep = sleep
	}
}

// WithRandom replaces the jitter source.
func WithRandom(random func() float64) Option {
	return func(g *Guard) {
		g.random = random
	}
}

// WithOwnerFunc replaces the UUIDv7 owner token generator.
func WithOwnerFunc(newOwner func() string) Option {
	return func(g *Guard) {
		g.newOwner = newOwner
	}
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(g *Guard) {
		if l != nil {
			g.logger = l
		}
	}
}

// NewGuard creates a Guard over backend.
func NewGuard(backend Backend, opts ...Option) *Guard {
	g := &Guard{
		backend: backend,
		ttl:     DefaultTTL,
		backoff: DefaultBackoff,
		sleep:   sleepContext,
		random:  rand.Float64,
		newOwner: func() string {
			return uuid.Must(uuid.NewV7()).String()
		},
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// TTL reports the lease lifetime.
func (g *Guard) TTL() time.Duration {
	return g.ttl
}

// Acquire waits the backoff delay and makes one attempt on key.
func (g *Guard) Acquire(ctx context.Context, key string) Result {
	attempt := g.attempts.Add(1) - 1
	delay := g.backoff.Delay(attempt, g.random())
	res := Result{Key: key, Delay: delay}

	if err := g.sleep(ctx, delay); err != nil {
		res.Outcome = Error
		res.Err = fmt.Errorf("lock %s: %w", key, err)
		return res
	}

	owner := g.newOwner()
	ok, err := g.backend.TryAcquire(ctx, key, owner, g.ttl)
	switch {
	case err != nil:
		res.Outcome = Error
		res.Err = fmt.Errorf("lock %s: %w", key, err)
		g.logger.Error("lock acquire failed", "key", key, "error", err)
	case !ok:
		res.Outcome = Conflict
		g.logger.Info("lock already held", "key", key, "delay", delay)
	default:
		res.Outcome = Proceeded
		res.Owner = owner
		g.logger.Debug("lock acquired", "key", key, "delay", delay)
	}
	return res
}

// Release drops a lease returned by Acquire. Results other than Proceeded
// are ignored. Failures are logged and returned; callers treat them as
// best-effort since the TTL frees the key anyway.
func (g *Guard) Release(ctx context.Context, res Result) error {
	if res.Outcome != Proceeded {
		return nil
	}
	if err := g.backend.Release(ctx, res.Key, res.Owner); err != nil {
		g.logger.Warn("lock release failed", "key", res.Key, "error", err)
		return fmt.Errorf("release %s: %w", res.Key, err)
	}
	g.logger.Debug("lock released", "key", res.Key)
	return nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
