package lock

import (
	"context"
	"time"

	"github.com/roach88/achievements/internal/store"
)

// SQLBackend keeps leases in the store's processor_locks table.
type SQLBackend struct {
	store *store.Store
	now   func() time.Time
}

// NewSQLBackend creates a backend on s. now defaults to time.Now.
func NewSQLBackend(s *store.Store, now func() time.Time) *SQLBackend {
	if now == nil {
		now = time.Now
	}
	return &SQLBackend{store: s, now: now}
}

func (b *SQLBackend) TryAcquire(ctx context.Context, key, owner string, ttl time.Duration) (bool, error) {
	return b.store.TryAcquireLock(ctx, key, owner, ttl, b.now())
}

func (b *SQLBackend) Release(ctx context.Context, key, owner string) error {
	return b.store.ReleaseLock(ctx, key, owner)
}
