// Package server exposes the health analysis pipeline over HTTP. The
// boundary is deliberately thin: decode, solve, encode. All degradation
// happens inside the orchestrator, so handlers return 200 with a degraded
// report rather than 5xx for analysis failures.
package server

import (
	"context"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/sentienthealth/roma/internal/orchestrator"
)

// Config holds the HTTP boundary settings.
type Config struct {
	// Addr is the listen address, e.g. ":8080".
	Addr string
	// ShutdownTimeout bounds connection draining. Zero selects 30s.
	ShutdownTimeout time.Duration
	// ReadTimeout and WriteTimeout bound each request. Zero selects 30s;
	// a full solve makes several collaborator round trips.
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	// IdleTimeout bounds keep-alive waits. Zero selects 60s.
	IdleTimeout time.Duration
	// Version is reported by /info.
	Version string
}

// Server wraps an http.Server around the orchestrator.
type Server struct {
	orch            *orchestrator.Orchestrator
	httpServer      *http.Server
	shutdownTimeout time.Duration
	inShutdown      atomic.Bool
	version         string
	log             *slog.Logger
}

// New builds the server and registers all routes.
func New(orch *orchestrator.Orchestrator, cfg Config, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 30 * time.Second
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = 30 * time.Second
	}
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = 30 * time.Second
	}
	if cfg.IdleTimeout == 0 {
		cfg.IdleTimeout = 60 * time.Second
	}

	s := &Server{
		orch:            orch,
		shutdownTimeout: cfg.ShutdownTimeout,
		version:         cfg.Version,
		log:             log.With("component", "server"),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /weekly-report", s.handleWeeklyReport)
	mux.HandleFunc("POST /analyze", s.handleAnalyze)
	mux.HandleFunc("POST /chat", s.handleChat)
	mux.HandleFunc("POST /normalize", s.handleNormalize)
	mux.HandleFunc("GET /healthz", s.handleHealthz)
	mux.HandleFunc("GET /info", s.handleInfo)
	mux.HandleFunc("GET /example", s.handleExample)

	s.httpServer = &http.Server{
		Addr:         cfg.Addr,
		Handler:      mux,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}
	return s
}

// Handler returns the route handler, for tests.
func (s *Server) Handler() http.Handler { return s.httpServer.Handler }

// Start blocks serving requests until Shutdown or a listener error.
// Returns http.ErrServerClosed after a graceful shutdown.
func (s *Server) Start() error {
	s.log.Info("listening", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown drains in-flight requests, refusing new ones, for at most the
// configured timeout.
func (s *Server) Shutdown(ctx context.Context) error {
	s.inShutdown.Store(true)
	s.httpServer.SetKeepAlivesEnabled(false)

	drainCtx, cancel := context.WithTimeout(ctx, s.shutdownTimeout)
	defer cancel()
	return s.httpServer.Shutdown(drainCtx)
}
