package server

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"mercator-hq/fieldguard/pkg/config"
	"mercator-hq/fieldguard/pkg/reports"
	"mercator-hq/fieldguard/pkg/reports/query"
	"mercator-hq/fieldguard/pkg/server/auth"
	"mercator-hq/fieldguard/pkg/server/ratelimit"
	"mercator-hq/fieldguard/pkg/telemetry/health"
	"mercator-hq/fieldguard/pkg/telemetry/metrics"
	"mercator-hq/fieldguard/pkg/telemetry/tracing"
	"mercator-hq/fieldguard/pkg/validation/engine"
	"mercator-hq/fieldguard/pkg/validation/ruleset"
)

var (
	// ErrAlreadyRunning is returned by Start on a running server.
	ErrAlreadyRunning = errors.New("server is already running")

	// ErrReportsDisabled is returned by report endpoints when no archive is configured.
	ErrReportsDisabled = errors.New("report archive is disabled")
)

// Validator is the engine surface served over HTTP.
type Validator interface {
	engine.Validator

	ValidateLoaded(ctx context.Context, fields any) (*engine.Report, error)
	ValidateFieldLoaded(ctx context.Context, fields any, fieldID string, value any) (*engine.Report, error)
	Rules() []engine.Rule
	ReloadRules(ctx context.Context) error
	Registry() *engine.Registry
}

// Server is the HTTP API of a long-lived validation engine.
type Server struct {
	config    *config.ServerConfig
	validator Validator
	logger    *slog.Logger

	parser      *ruleset.Parser
	compiler    engine.ExpressionCompiler
	reports     reports.Storage
	limits      query.Limits
	health      *health.Checker
	metrics     *metrics.Collector
	metricsPath string
	tracer      *tracing.Tracer
	auth        *auth.Middleware
	rateLimit   *ratelimit.Limiter
	tlsConfig   *tls.Config

	version   string
	commit    string
	buildTime string

	httpServer   *http.Server
	listener     net.Listener
	shutdownChan chan struct{}
	shutdownOnce sync.Once
	mu           sync.RWMutex
	isRunning    bool
}

// Option configures a Server.
type Option func(*Server)

// WithReports serves the report archive with the given page limits.
func WithReports(storage reports.Storage, limits query.Limits) Option {
	return func(s *Server) {
		s.reports = storage
		s.limits = limits
	}
}

// WithHealth serves /health and /ready from checker.
func WithHealth(checker *health.Checker) Option {
	return func(s *Server) { s.health = checker }
}

// WithMetrics records request metrics and serves the Prometheus registry at path.
func WithMetrics(collector *metrics.Collector, path string) Option {
	return func(s *Server) {
		s.metrics = collector
		s.metricsPath = path
	}
}

// WithTracer opens a server span per request.
func WithTracer(tracer *tracing.Tracer) Option {
	return func(s *Server) { s.tracer = tracer }
}

// WithAuth requires an API key on every /api/v1 route.
func WithAuth(mw *auth.Middleware) Option {
	return func(s *Server) { s.auth = mw }
}

// WithRateLimit throttles /api/v1 requests per client. Behind WithAuth,
// clients are identified by key.
func WithRateLimit(l *ratelimit.Limiter) Option {
	return func(s *Server) { s.rateLimit = l }
}

// WithTLS serves HTTPS with cfg.
func WithTLS(cfg *tls.Config) Option {
	return func(s *Server) { s.tlsConfig = cfg }
}

// WithParser sets the parser for inline rule documents.
func WithParser(parser *ruleset.Parser) Option {
	return func(s *Server) { s.parser = parser }
}

// WithCompiler enables compile checks of CUSTOM expressions in the lint endpoint.
func WithCompiler(compiler engine.ExpressionCompiler) Option {
	return func(s *Server) { s.compiler = compiler }
}

// WithVersion sets the build information served at /version.
func WithVersion(version, commit, buildTime string) Option {
	return func(s *Server) {
		s.version = version
		s.commit = commit
		s.buildTime = buildTime
	}
}

// NewServer creates an API server for validator.
func NewServer(cfg *config.ServerConfig, validator Validator, logger *slog.Logger, opts ...Option) *Server {
	if cfg == nil {
		cfg = &config.DefaultConfig().Server
	}
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		config:       cfg,
		validator:    validator,
		logger:       logger.With("component", "server"),
		limits:       query.DefaultLimits(),
		version:      "dev",
		shutdownChan: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.parser == nil {
		s.parser = ruleset.NewParser()
	}
	return s
}

// Start serves until ctx is cancelled, a shutdown signal arrives, Stop is
// called or the listener fails. It shuts the server down before returning.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return ErrAlreadyRunning
	}
	s.isRunning = true
	s.mu.Unlock()

	listener, err := net.Listen("tcp", s.config.ListenAddress)
	if err != nil {
		s.mu.Lock()
		s.isRunning = false
		s.mu.Unlock()
		return fmt.Errorf("failed to listen on %s: %w", s.config.ListenAddress, err)
	}
	if s.tlsConfig != nil {
		listener = tls.NewListener(listener, s.tlsConfig)
	}

	s.mu.Lock()
	s.listener = listener
	s.httpServer = &http.Server{
		Handler:      s.Handler(),
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
		IdleTimeout:  s.config.IdleTimeout,
		ErrorLog:     slog.NewLogLogger(s.logger.Handler(), slog.LevelError),
	}
	httpServer := s.httpServer
	s.mu.Unlock()

	errChan := make(chan error, 1)
	go func() {
		s.logger.Info("starting api server", "address", listener.Addr().String(), "tls", s.tlsConfig != nil)
		if err := httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("server error: %w", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	select {
	case <-ctx.Done():
		s.logger.Info("context cancelled, initiating shutdown")
		return s.Shutdown(context.Background())
	case sig := <-sigChan:
		s.logger.Info("received shutdown signal", "signal", sig.String())
		return s.Shutdown(context.Background())
	case err := <-errChan:
		return errors.Join(err, s.Shutdown(context.Background()))
	case <-s.shutdownChan:
		s.logger.Info("shutdown requested")
		return s.Shutdown(context.Background())
	}
}

// Stop asks a running Start to shut down.
func (s *Server) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	select {
	case <-s.shutdownChan:
	default:
		close(s.shutdownChan)
	}
}

// Shutdown drains in-flight requests within the configured shutdown timeout.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error

	s.shutdownOnce.Do(func() {
		s.mu.RLock()
		running, httpServer := s.isRunning, s.httpServer
		s.mu.RUnlock()
		if !running {
			return
		}

		s.logger.Info("initiating graceful shutdown", "timeout", s.config.ShutdownTimeout.String())

		shutdownCtx, cancel := context.WithTimeout(ctx, s.config.ShutdownTimeout)
		defer cancel()

		if httpServer != nil {
			if err := httpServer.Shutdown(shutdownCtx); err != nil {
				s.logger.Error("error during server shutdown", "error", err)
				shutdownErr = fmt.Errorf("server shutdown error: %w", err)
			}
		}

		s.mu.Lock()
		s.isRunning = false
		s.mu.Unlock()

		s.logger.Info("api server stopped")
	})

	return shutdownErr
}

// IsRunning reports whether Start is serving.
func (s *Server) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// Addr returns the bound listen address, or the configured one before Start.
func (s *Server) Addr() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.config.ListenAddress
}
