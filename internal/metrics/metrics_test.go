package metrics

import (
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Record(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.ObserveRun("processed", 20*time.Millisecond)
	m.ObserveRun("processed", 30*time.Millisecond)
	m.ObserveRun("conflict", time.Millisecond)
	m.LockConflict()
	m.Event("AchievementCreated")
	m.Evaluated(3)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.processed.WithLabelValues("processed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.lockConflicts))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.evaluated))

	expected := `
# HELP achievements_events_total Committed events by type
# TYPE achievements_events_total counter
achievements_events_total{type="AchievementCreated"} 1
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "achievements_events_total"))
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	m.ObserveRun("processed", time.Second)
	m.LockConflict()
	m.Event("x")
	m.Evaluated(1)
}
