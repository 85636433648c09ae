package store

import (
	"context"
	"fmt"
	"time"
)

// TryAcquireLock takes the named lease for owner until now+ttl.
// It succeeds when the key is free or its previous lease has expired.
// It never waits.
func (s *Store) TryAcquireLock(ctx context.Context, key, owner string, ttl time.Duration, now time.Time) (bool, error) {
	query := s.rebind(`
		INSERT INTO processor_locks (key, owner, expires_at)
		VALUES (?, ?, ?)
		ON CONFLICT (key) DO UPDATE
		SET owner = excluded.owner, expires_at = excluded.expires_at
		WHERE processor_locks.expires_at <= ?
	`)
	res, err := s.db.ExecContext(ctx, query, key, owner, s.timeParam(now.Add(ttl)), s.timeParam(now))
	if err != nil {
		return false, fmt.Errorf("acquire lock %s: %w", key, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("acquire lock %s: %w", key, err)
	}
	return n == 1, nil
}

// ReleaseLock drops the lease if owner still holds it.
func (s *Store) ReleaseLock(ctx context.Context, key, owner string) error {
	query := s.rebind(`DELETE FROM processor_locks WHERE key = ? AND owner = ?`)
	if _, err := s.db.ExecContext(ctx, query, key, owner); err != nil {
		return fmt.Errorf("release lock %s: %w", key, err)
	}
	return nil
}
