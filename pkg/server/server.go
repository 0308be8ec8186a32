// Package server exposes the extraction service over HTTP, SSE and
// WebSocket.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/MemoFlux/MemoFluxServer/pkg/aigen"
	"github.com/MemoFlux/MemoFluxServer/pkg/auth"
	"github.com/MemoFlux/MemoFluxServer/pkg/extract"
	"github.com/MemoFlux/MemoFluxServer/pkg/jobs"
	"github.com/MemoFlux/MemoFluxServer/pkg/objects"
)

const (
	DefaultListen       = ":8000"
	defaultMaxBodyBytes = 16 << 20
	defaultShutdown     = 10 * time.Second
)

type Config struct {
	Listen string `json:"listen" yaml:"listen"`

	// AuthRequired protects the /aigen routes with a bearer token.
	AuthRequired bool `json:"auth_required" yaml:"auth_required"`

	MaxBodyBytes    int64         `json:"max_body_bytes" yaml:"max_body_bytes"`
	ShutdownTimeout time.Duration `json:"shutdown_timeout" yaml:"shutdown_timeout"`
}

// Enricher adds retrieved tags to a request. *enrich.Enricher implements it.
type Enricher interface {
	Augment(ctx context.Context, c extract.Content, tags []string) []string
}

// Deps are the collaborators of a Server. Only Service is required.
type Deps struct {
	Service  *aigen.Service
	Auth     *auth.Service
	Enricher Enricher
	Objects  *objects.Store
	Jobs     *jobs.Manager

	// Gatherer backs GET /metrics. It defaults to prometheus.DefaultGatherer.
	Gatherer prometheus.Gatherer

	Logger *slog.Logger
}

type Server struct {
	cfg     Config
	deps    Deps
	logger  *slog.Logger
	handler http.Handler
}

func New(cfg Config, deps Deps) (*Server, error) {
	if deps.Service == nil {
		return nil, errors.New("server: nil aigen service")
	}
	if cfg.AuthRequired && deps.Auth == nil {
		return nil, errors.New("server: auth required but no auth service")
	}
	if cfg.Listen == "" {
		cfg.Listen = DefaultListen
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = defaultMaxBodyBytes
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = defaultShutdown
	}
	if deps.Gatherer == nil {
		deps.Gatherer = prometheus.DefaultGatherer
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{cfg: cfg, deps: deps, logger: logger}
	s.handler = s.logRequests(s.routes())
	return s, nil
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()

	protect := func(h http.HandlerFunc) http.Handler {
		if s.cfg.AuthRequired {
			return s.deps.Auth.RequireUser(h)
		}
		return h
	}
	mux.Handle("POST /aigen", protect(s.handleAigen))
	mux.Handle("POST /aigen_streaming", protect(s.handleStreaming))
	mux.Handle("GET /aigen_ws", protect(s.handleWS))

	if s.deps.Jobs != nil {
		mux.Handle("POST /aigen/jobs", protect(s.handleSubmitJob))
		mux.Handle("GET /aigen/jobs/{voucher}", protect(s.handleJobResult))
		mux.Handle("DELETE /aigen/jobs/{voucher}", protect(s.handleReleaseJob))
	}

	if s.deps.Auth != nil {
		mux.HandleFunc("POST /auth/register", s.handleRegister)
		mux.HandleFunc("POST /auth/login", s.handleLogin)
		mux.Handle("GET /auth/me", s.deps.Auth.RequireUser(http.HandlerFunc(s.handleMe)))
	}

	mux.Handle("GET /metrics", promhttp.HandlerFor(s.deps.Gatherer, promhttp.HandlerOpts{}))
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	return mux
}

// Handler returns the root handler, for embedding or tests.
func (s *Server) Handler() http.Handler { return s.handler }

// Run listens on the configured address until ctx is done.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Listen)
	if err != nil {
		return fmt.Errorf("server: listen %s: %w", s.cfg.Listen, err)
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln and shuts down gracefully when ctx is
// done.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}
	errc := make(chan error, 1)
	go func() {
		s.logger.Info("server listening", "addr", ln.Addr().String())
		errc <- srv.Serve(ln)
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	if err := <-errc; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	s.logger.Info("server stopped")
	return nil
}
