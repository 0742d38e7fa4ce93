// Package daemon serves the local HTTP API the browser extension and the
// CLI talk to.
package daemon

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jonboulle/clockwork"

	"github.com/runnerr0/dwell/internal/browser"
	"github.com/runnerr0/dwell/internal/ledger"
	"github.com/runnerr0/dwell/internal/tracker"
)

// DefaultMaxRequestSize caps request bodies when Options leaves it unset.
const DefaultMaxRequestSize = 1 << 20

// SessionSource exposes the tracker's read-only state.
type SessionSource interface {
	Session() tracker.Session
	Pending() int
}

// Settings are the tracking parameters the extension needs to configure its
// own idle detection and alarm.
type Settings struct {
	IdleThresholdSeconds int    `json:"idle_threshold_seconds"`
	FlushIntervalSeconds int    `json:"flush_interval_seconds"`
	AlarmName            string `json:"alarm_name"`
}

// Options configures a Server.
type Options struct {
	Addr           string
	AuthToken      string
	MaxRequestSize int64
	Version        string

	// Location decides the default day for ledger queries. Defaults to time.Local.
	Location *time.Location
	Clock    clockwork.Clock

	// Metrics serves /metrics when set.
	Metrics http.Handler
	Logger  *slog.Logger
}

// Server is the daemon's HTTP API.
type Server struct {
	Addr string

	router *chi.Mux
	server *http.Server

	browser    *browser.State
	dispatcher tracker.Dispatcher
	sessions   SessionSource
	store      ledger.Store

	settings atomic.Pointer[Settings]
	opts     Options
	logger   *slog.Logger
	started  time.Time
}

// NewServer wires the API routes. Events are applied to state and then
// handed to dispatcher in request order.
func NewServer(state *browser.State, dispatcher tracker.Dispatcher, sessions SessionSource, store ledger.Store, settings Settings, opts Options) *Server {
	if opts.MaxRequestSize <= 0 {
		opts.MaxRequestSize = DefaultMaxRequestSize
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	s := &Server{
		Addr:       opts.Addr,
		router:     chi.NewRouter(),
		browser:    state,
		dispatcher: dispatcher,
		sessions:   sessions,
		store:      store,
		opts:       opts,
		logger:     opts.Logger,
		started:    opts.Clock.Now(),
	}
	s.settings.Store(&settings)

	s.setupRoutes()

	s.server = &http.Server{
		Addr:         opts.Addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

func (s *Server) setupRoutes() {
	s.router.Use(middleware.RequestID)
	s.router.Use(s.requestLogger)
	s.router.Use(middleware.Recoverer)

	s.router.Get("/status", s.handleStatus)
	if s.opts.Metrics != nil {
		s.router.Method(http.MethodGet, "/metrics", s.opts.Metrics)
	}

	s.router.Route("/v1", func(r chi.Router) {
		r.Use(s.requireToken)
		r.Post("/events", s.handleEvents)
		r.Get("/session", s.handleSession)
		r.Get("/ledger", s.handleLedger)
		r.Get("/settings", s.handleSettings)
	})
}

// Handler returns the router, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

// SetSettings replaces the settings reported to the extension.
func (s *Server) SetSettings(settings Settings) {
	s.settings.Store(&settings)
}

// Start serves until Shutdown is called. It returns nil after a clean shutdown.
func (s *Server) Start() error {
	s.logger.Info("Daemon listening", "addr", s.Addr)
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// Response is the envelope of every JSON reply.
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// Error writes an error response.
func (s *Server) Error(w http.ResponseWriter, code int, message string) {
	writeJSON(w, code, Response{Success: false, Error: message})
}

// Success writes a success response.
func (s *Server) Success(w http.ResponseWriter, code int, data interface{}) {
	writeJSON(w, code, Response{Success: true, Data: data})
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) requireToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.opts.AuthToken == "" {
			next.ServeHTTP(w, r)
			return
		}
		token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok || subtle.ConstantTimeCompare([]byte(token), []byte(s.opts.AuthToken)) != 1 {
			s.Error(w, http.StatusUnauthorized, "missing or invalid bearer token")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debug("HTTP request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()))
	})
}
