package transport

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/achievements/internal/achievement"
	"github.com/roach88/achievements/internal/metrics"
	"github.com/roach88/achievements/internal/processor"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

const eventJSON = `{"achievementIds":[1,2],"workoutDate":"2024-01-02T09:00:00Z","userId":7,"periodId":1,"workoutId":11}`

type fakeProcessor struct {
	mu     sync.Mutex
	inputs []achievement.Input
	result processor.Result
	err    error
	panic  bool
}

func (f *fakeProcessor) Process(_ context.Context, in achievement.Input) (processor.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.panic {
		panic("boom")
	}
	f.inputs = append(f.inputs, in)
	return f.result, f.err
}

type fakePinger struct{ err error }

func (p fakePinger) Ping(context.Context) error { return p.err }

func post(t *testing.T, h http.Handler, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/events", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHandleEvent_StatusMapping(t *testing.T) {
	tests := []struct {
		name   string
		result processor.Result
		err    error
		want   int
	}{
		{"processed", processor.Result{Status: processor.StatusProcessed}, nil, http.StatusNoContent},
		{"noop", processor.Result{Status: processor.StatusNoOp}, nil, http.StatusNoContent},
		{"already processed", processor.Result{Status: processor.StatusAlreadyProcessed}, nil, http.StatusNoContent},
		{"conflict", processor.Result{Status: processor.StatusConflict}, nil, http.StatusConflict},
		{"transient", processor.Result{}, errors.New("database is locked"), http.StatusInternalServerError},
		{"permanent", processor.Result{}, &processor.Error{Code: processor.ErrCodePlatinumNotFound}, http.StatusOK},
		{"invalid", processor.Result{}, &processor.Error{Code: processor.ErrCodeInvalidInput}, http.StatusBadRequest},
		{"period missing", processor.Result{}, fmt.Errorf("run: %w", &processor.Error{Code: processor.ErrCodePeriodNotFound}), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &fakeProcessor{result: tt.result, err: tt.err}
			s := NewServer(p, fakePinger{}, WithLogger(discard), WithRetryAfter(1500*time.Millisecond))

			rec := post(t, s.Handler(), eventJSON)
			assert.Equal(t, tt.want, rec.Code, rec.Body.String())
			if tt.want == http.StatusConflict {
				assert.Equal(t, "2", rec.Header().Get("Retry-After"))
			}
			require.Len(t, p.inputs, 1)
			assert.Equal(t, []int64{1, 2}, p.inputs[0].AchievementIDs)
		})
	}
}

func TestHandleEvent_PushEnvelope(t *testing.T) {
	p := &fakeProcessor{result: processor.Result{Status: processor.StatusProcessed}}
	s := NewServer(p, fakePinger{}, WithLogger(discard))

	data := base64.StdEncoding.EncodeToString([]byte(eventJSON))
	body := fmt.Sprintf(`{"message":{"data":%q,"messageId":"m-1"},"subscription":"projects/p/subscriptions/s"}`, data)

	rec := post(t, s.Handler(), body)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	require.Len(t, p.inputs, 1)
	assert.Equal(t, achievement.Input{
		AchievementIDs: []int64{1, 2},
		WorkoutDate:    time.Date(2024, 1, 2, 9, 0, 0, 0, time.UTC),
		UserID:         7,
		PeriodID:       1,
		WorkoutID:      11,
	}, p.inputs[0])
}

func TestHandleEvent_BadBodies(t *testing.T) {
	bodies := map[string]string{
		"not json":      `{`,
		"unknown field": `{"userId":7,"periodId":1,"workoutId":1,"workoutDate":"2024-01-02T09:00:00Z","extra":1}`,
		"missing user":  `{"periodId":1,"workoutId":1,"workoutDate":"2024-01-02T09:00:00Z"}`,
		"empty message": `{"message":{"messageId":"m-1"}}`,
	}
	for name, body := range bodies {
		t.Run(name, func(t *testing.T) {
			p := &fakeProcessor{}
			s := NewServer(p, fakePinger{}, WithLogger(discard))

			rec := post(t, s.Handler(), body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Contains(t, rec.Body.String(), `"error"`)
			assert.Empty(t, p.inputs)
		})
	}
}

func TestHandleEvent_MethodNotAllowed(t *testing.T) {
	s := NewServer(&fakeProcessor{}, fakePinger{}, WithLogger(discard))
	req := httptest.NewRequest(http.MethodGet, "/events", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestHandleEvent_PanicRecovered(t *testing.T) {
	s := NewServer(&fakeProcessor{panic: true}, fakePinger{}, WithLogger(discard))
	rec := post(t, s.Handler(), eventJSON)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestHealthz(t *testing.T) {
	for _, tt := range []struct {
		name string
		err  error
		want int
	}{
		{"ok", nil, http.StatusOK},
		{"down", errors.New("closed"), http.StatusServiceUnavailable},
	} {
		t.Run(tt.name, func(t *testing.T) {
			s := NewServer(&fakeProcessor{}, fakePinger{err: tt.err}, WithLogger(discard))
			req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
			rec := httptest.NewRecorder()
			s.Handler().ServeHTTP(rec, req)
			assert.Equal(t, tt.want, rec.Code)
		})
	}
}

func TestMetricsEndpoint(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	m.LockConflict()

	var access bytes.Buffer
	s := NewServer(&fakeProcessor{}, fakePinger{}, WithLogger(discard), WithGatherer(reg), WithAccessLog(&access))
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "achievements_lock_conflicts_total 1")
	assert.Contains(t, access.String(), `"GET /metrics HTTP/1.1" 200`)
}

func TestRun_ShutsDownOnCancel(t *testing.T) {
	s := NewServer(&fakeProcessor{}, fakePinger{}, WithLogger(discard))
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- s.Run(ctx, "127.0.0.1:0") }()
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
