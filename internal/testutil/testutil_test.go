package testutil

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClock_StandsStill(t *testing.T) {
	start := time.Date(2024, 1, 6, 12, 0, 0, 0, time.FixedZone("CET", 3600))
	clock := NewClock(start)

	assert.Equal(t, start.UTC(), clock.Now())
	assert.Equal(t, clock.Now(), clock.Now())
	assert.Equal(t, time.UTC, clock.Now().Location())
}

func TestClock_AdvanceAndSet(t *testing.T) {
	clock := NewClock(time.Date(2024, 1, 6, 12, 0, 0, 0, time.UTC))

	got := clock.Advance(90 * time.Second)
	assert.Equal(t, time.Date(2024, 1, 6, 12, 1, 30, 0, time.UTC), got)
	assert.Equal(t, got, clock.Now())

	clock.Set(time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC))
	assert.Equal(t, time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC), clock.Now())
}

func TestSequenceGenerator(t *testing.T) {
	gen := NewSequenceGenerator("")
	assert.Equal(t, "run-1", gen.Generate())
	assert.Equal(t, "run-2", gen.Generate())

	gen.Reset()
	assert.Equal(t, "run-1", gen.Generate())

	custom := NewSequenceGenerator("replay")
	assert.Equal(t, "replay-1", custom.Generate())
}

func TestSequenceGenerator_ThreadSafe(t *testing.T) {
	gen := NewSequenceGenerator("run")
	const workers = 50
	const perWorker = 20

	var mu sync.Mutex
	seen := make(map[string]bool)
	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			for j := 0; j < perWorker; j++ {
				id := gen.Generate()
				mu.Lock()
				seen[id] = true
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	require.Len(t, seen, workers*perWorker)
	assert.True(t, seen["run-1"])
	assert.True(t, seen["run-1000"])
}
