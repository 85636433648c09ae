package lock

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/achievements/internal/store"
)

// exerciseBackend checks the Backend contract shared by every implementation.
// advance moves the backend's notion of time forward.
func exerciseBackend(t *testing.T, b Backend, advance func(time.Duration)) {
	t.Helper()
	ctx := context.Background()
	ttl := 15 * time.Second

	ok, err := b.TryAcquire(ctx, "user:1", "a", ttl)
	require.NoError(t, err)
	assert.True(t, ok, "free key")

	ok, err = b.TryAcquire(ctx, "user:1", "b", ttl)
	require.NoError(t, err)
	assert.False(t, ok, "held key")

	ok, err = b.TryAcquire(ctx, "user:2", "b", ttl)
	require.NoError(t, err)
	assert.True(t, ok, "independent key")

	require.NoError(t, b.Release(ctx, "user:1", "b"), "non-owner release is a no-op")
	ok, err = b.TryAcquire(ctx, "user:1", "c", ttl)
	require.NoError(t, err)
	assert.False(t, ok, "lease survives non-owner release")

	require.NoError(t, b.Release(ctx, "user:1", "a"))
	ok, err = b.TryAcquire(ctx, "user:1", "c", ttl)
	require.NoError(t, err)
	assert.True(t, ok, "released key")

	advance(ttl + time.Second)
	ok, err = b.TryAcquire(ctx, "user:1", "d", ttl)
	require.NoError(t, err)
	assert.True(t, ok, "expired lease")

	require.NoError(t, b.Release(ctx, "missing", "x"))
}

func TestMemoryBackend(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	b := NewMemoryBackend(func() time.Time { return now })
	exerciseBackend(t, b, func(d time.Duration) { now = now.Add(d) })
}

func TestSQLBackend(t *testing.T) {
	s, err := store.OpenSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	b := NewSQLBackend(s, func() time.Time { return now })
	exerciseBackend(t, b, func(d time.Duration) { now = now.Add(d) })
}

func TestRedisBackend(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	b := NewRedisBackend(client, "lock:")
	exerciseBackend(t, b, mr.FastForward)

	assert.True(t, mr.Exists("lock:user:1"))
	assert.Equal(t, "d", must(mr.Get("lock:user:1")))
	assert.Equal(t, 15*time.Second, mr.TTL("lock:user:1"))
}

func TestFirestoreBackend(t *testing.T) {
	if os.Getenv("FIRESTORE_EMULATOR_HOST") == "" {
		t.Skip("FIRESTORE_EMULATOR_HOST not set")
	}
	ctx := context.Background()
	client, err := NewFirestoreClient(ctx, "achievements-test", "")
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	now := time.Now()
	collection := "lock-test-" + now.Format("20060102150405.000000000")
	b := NewFirestoreBackend(client, collection, func() time.Time { return now })
	exerciseBackend(t, b, func(d time.Duration) { now = now.Add(d) })
}

func must(v string, err error) string {
	if err != nil {
		panic(err)
	}
	return v
}
