package lock

import (
	"context"
	"sync"
	"time"
)

// MemoryBackend keeps leases in process memory.
type MemoryBackend struct {
	mu     sync.Mutex
	leases map[string]memoryLease
	now    func() time.Time
}

type memoryLease struct {
	owner   string
	expires time.Time
}

// NewMemoryBackend creates an empty backend. now defaults to time.Now.
func NewMemoryBackend(now func() time.Time) *MemoryBackend {
	if now == nil {
		now = time.Now
	}
	return &MemoryBackend{leases: make(map[string]memoryLease), now: now}
}

func (m *MemoryBackend) TryAcquire(_ context.Context, key, owner string, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	if lease, ok := m.leases[key]; ok && now.Before(lease.expires) {
		return false, nil
	}
	m.leases[key] = memoryLease{owner: owner, expires: now.Add(ttl)}
	return true, nil
}

func (m *MemoryBackend) Release(_ context.Context, key, owner string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if lease, ok := m.leases[key]; ok && lease.owner == owner {
		delete(m.leases, key)
	}
	return nil
}

// Held reports whether key currently has an unexpired lease.
func (m *MemoryBackend) Held(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	lease, ok := m.leases[key]
	return ok && m.now().Before(lease.expires)
}
