package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/roach88/achievements/internal/achievement"
	"github.com/roach88/achievements/internal/processor"
)

// MaxBodyBytes bounds a pushed event.
const MaxBodyBytes = 1 << 20

// DefaultRetryAfter is sent with 409 responses.
const DefaultRetryAfter = time.Second

// Processor handles one decoded event. Implemented by *processor.Processor.
type Processor interface {
	Process(ctx context.Context, in achievement.Input) (processor.Result, error)
}

// Pinger reports store health. Implemented by *store.Store.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Server exposes the processor over HTTP push delivery.
//
// Status codes tell the delivering queue what to do:
//
//	204  processed, nothing to do, or already processed: acknowledge
//	409  user lock held: redeliver after Retry-After
//	400  malformed or invalid event: acknowledge, never retried
//	200  permanent configuration error: acknowledge, logged at error
//	500  anything else: redeliver
type Server struct {
	processor  Processor
	pinger     Pinger
	gatherer   prometheus.Gatherer
	retryAfter time.Duration
	accessLog  io.Writer
	logger     *slog.Logger
}

// Option configures a Server.
type Option func(*Server)

// WithGatherer sets the registry served on /metrics. Default: prometheus.DefaultGatherer.
func WithGatherer(g prometheus.Gatherer) Option {
	return func(s *Server) {
		if g != nil {
			s.gatherer = g
		}
	}
}

// WithRetryAfter sets the delay suggested on lock conflicts.
func WithRetryAfter(d time.Duration) Option {
	return func(s *Server) {
		if d > 0 {
			s.retryAfter = d
		}
	}
}

// WithAccessLog writes combined-format access logs to w. Default: none.
func WithAccessLog(w io.Writer) Option {
	return func(s *Server) {
		s.accessLog = w
	}
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewServer creates a Server.
func NewServer(p Processor, pinger Pinger, opts ...Option) *Server {
	s := &Server{
		processor:  p,
		pinger:     pinger,
		gatherer:   prometheus.DefaultGatherer,
		retryAfter: DefaultRetryAfter,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler returns the routed handler with panic recovery and, when
// configured, access logging.
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/events", s.handleEvent).Methods(http.MethodPost)
	r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})).Methods(http.MethodGet)

	var h http.Handler = r
	h = handlers.RecoveryHandler(
		handlers.RecoveryLogger(recoveryLogger{s.logger}),
		handlers.PrintRecoveryStack(false),
	)(h)
	if s.accessLog != nil {
		h = handlers.CombinedLoggingHandler(s.accessLog, h)
	}
	return h
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	server := &http.Server{
		Addr:         addr,
		Handler:      s.Handler(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening", "addr", addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("serve %s: %w", addr, err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	s.logger.Info("server stopped")
	return nil
}

func (s *Server) handleEvent(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, MaxBodyBytes))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, fmt.Sprintf("read body: %v", err))
		return
	}
	in, err := DecodeEvent(body)
	if err != nil {
		s.logger.Warn("rejected event", "error", err)
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	res, err := s.processor.Process(r.Context(), in)
	switch {
	case processor.IsInvalidInput(err):
		respondWithError(w, http.StatusBadRequest, err.Error())
	case processor.IsPermanent(err):
		s.logger.Error("event acknowledged without processing", "user_id", in.UserID, "workout_id", in.WorkoutID, "error", err)
		respondWithJSON(w, http.StatusOK, map[string]string{"status": "rejected", "error": err.Error()})
	case err != nil:
		s.logger.Error("event failed; awaiting redelivery", "user_id", in.UserID, "workout_id", in.WorkoutID, "error", err)
		respondWithError(w, http.StatusInternalServerError, err.Error())
	case res.Status == processor.StatusConflict:
		w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(s.retryAfter.Seconds()))))
		respondWithError(w, http.StatusConflict, "user is being processed")
	default:
		w.WriteHeader(http.StatusNoContent)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.pinger.Ping(r.Context()); err != nil {
		respondWithError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func respondWithJSON(w http.ResponseWriter, code int, payload any) {
	response, err := json.Marshal(payload)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error": "Internal server error"}`))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}

func respondWithError(w http.ResponseWriter, code int, message string) {
	respondWithJSON(w, code, map[string]string{"error": message})
}

type recoveryLogger struct {
	logger *slog.Logger
}

func (l recoveryLogger) Println(v ...any) {
	l.logger.Error("handler panic", "panic", fmt.Sprint(v...))
}
