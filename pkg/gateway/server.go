package gateway

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"vinalytics-hq/mekong/pkg/auth"
	"vinalytics-hq/mekong/pkg/config"
	"vinalytics-hq/mekong/pkg/dispatch"
	"vinalytics-hq/mekong/pkg/gateway/middleware"
	"vinalytics-hq/mekong/pkg/market"
	"vinalytics-hq/mekong/pkg/store"
	"vinalytics-hq/mekong/pkg/symbols"
)

// Options collects the dependencies a Server needs.
type Options struct {
	// Config holds the HTTP listener and middleware settings.
	Config config.GatewayConfig

	// Version is reported by the root and health endpoints.
	Version string

	// Users is the credential store backing the auth endpoints.
	Users store.UserStore

	// Tokens issues and validates access tokens.
	Tokens *auth.TokenService

	// Dispatcher routes data queries to provider adapters.
	Dispatcher *dispatch.Dispatcher

	// Catalog is the known-symbol list.
	Catalog *symbols.Catalog

	// HTTPRecorder receives per-request telemetry. Optional.
	HTTPRecorder middleware.HTTPRecorder

	// MetricsHandler, when set, is mounted at MetricsPath.
	MetricsHandler http.Handler
	MetricsPath    string
}

// Server is the gateway's HTTP server.
type Server struct {
	config  config.GatewayConfig
	version string

	users      store.UserStore
	tokens     *auth.TokenService
	authmw     *auth.Middleware
	dispatcher *dispatch.Dispatcher
	catalog    *symbols.Catalog

	recorder       middleware.HTTPRecorder
	metricsHandler http.Handler
	metricsPath    string

	logger    *slog.Logger
	startTime time.Time

	httpServer   *http.Server
	shutdownOnce sync.Once
	mu           sync.RWMutex
	isRunning    bool
}

// NewServer wires the gateway's handlers and middleware.
func NewServer(opts Options) (*Server, error) {
	if opts.Users == nil {
		return nil, fmt.Errorf("user store is required")
	}
	if opts.Tokens == nil {
		return nil, fmt.Errorf("token service is required")
	}
	if opts.Dispatcher == nil {
		return nil, fmt.Errorf("dispatcher is required")
	}
	if opts.Catalog == nil {
		opts.Catalog = symbols.NewCatalog()
	}
	if opts.MetricsPath == "" {
		opts.MetricsPath = "/metrics"
	}

	return &Server{
		config:         opts.Config,
		version:        opts.Version,
		users:          opts.Users,
		tokens:         opts.Tokens,
		authmw:         auth.NewMiddleware(opts.Tokens),
		dispatcher:     opts.Dispatcher,
		catalog:        opts.Catalog,
		recorder:       opts.HTTPRecorder,
		metricsHandler: opts.MetricsHandler,
		metricsPath:    opts.MetricsPath,
		logger:         slog.Default().With("component", "gateway"),
		startTime:      time.Now(),
	}, nil
}

// Start starts the HTTP server and blocks until shutdown.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return fmt.Errorf("server is already running")
	}
	s.isRunning = true
	s.mu.Unlock()

	s.httpServer = &http.Server{
		Addr:           s.config.ListenAddress,
		Handler:        s.Handler(),
		ReadTimeout:    s.config.ReadTimeout,
		WriteTimeout:   s.config.WriteTimeout,
		IdleTimeout:    s.config.IdleTimeout,
		MaxHeaderBytes: s.config.MaxHeaderBytes,
	}

	errChan := make(chan error, 1)
	go func() {
		s.logger.Info("starting gateway server", "address", s.config.ListenAddress)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
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
		return err
	}
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error

	s.shutdownOnce.Do(func() {
		s.mu.Lock()
		if !s.isRunning {
			s.mu.Unlock()
			return
		}
		s.mu.Unlock()

		s.logger.Info("initiating graceful shutdown", "timeout", s.config.ShutdownTimeout.String())

		shutdownCtx, cancel := context.WithTimeout(ctx, s.config.ShutdownTimeout)
		defer cancel()

		if s.httpServer != nil {
			if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
				s.logger.Error("error during server shutdown", "error", err)
				shutdownErr = fmt.Errorf("server shutdown error: %w", err)
			}
		}

		s.mu.Lock()
		s.isRunning = false
		s.mu.Unlock()

		s.logger.Info("gateway server stopped")
	})

	return shutdownErr
}

// IsRunning reports whether the server is serving.
func (s *Server) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// Handler returns the fully wired HTTP handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	// Public surface.
	mux.HandleFunc("GET /", s.handleRoot)
	mux.HandleFunc("POST /auth/register", s.handleRegister)
	mux.HandleFunc("POST /auth/login", s.handleLogin)
	mux.HandleFunc("GET /api/v1/health", s.handleHealth)
	mux.HandleFunc("GET /ready", s.handleReady)
	if s.metricsHandler != nil {
		mux.Handle("GET "+s.metricsPath, s.metricsHandler)
	}

	// Protected surface. Auth rejects before any dispatch work begins.
	protected := http.NewServeMux()
	protected.HandleFunc("GET /auth/me", s.handleMe)
	protected.HandleFunc("GET /api/v1/symbols", s.handleSymbols)
	protected.HandleFunc("GET /api/v1/providers", s.handleProviders)
	protected.HandleFunc("POST /api/v1/download/csv", s.handleDownloadCSV)
	protected.HandleFunc("POST /api/v1/download/csv-text", s.handleDownloadCSVText)
	protected.HandleFunc("POST /api/v1/download/multiple", s.handleDownloadMultiple)
	protected.HandleFunc("POST /api/v1/company/{report}", s.handleFamily(companyReports))
	protected.HandleFunc("POST /api/v1/financial/{report}", s.handleFamily(financialReports))
	protected.HandleFunc("POST /api/v1/trading/{report}", s.handleFamily(tradingReports))
	mux.Handle("/auth/me", s.authmw.Handle(protected))
	mux.Handle("/api/v1/symbols", s.authmw.Handle(protected))
	mux.Handle("/api/v1/providers", s.authmw.Handle(protected))
	mux.Handle("/api/v1/download/", s.authmw.Handle(protected))
	mux.Handle("/api/v1/company/", s.authmw.Handle(protected))
	mux.Handle("/api/v1/financial/", s.authmw.Handle(protected))
	mux.Handle("/api/v1/trading/", s.authmw.Handle(protected))

	var handler http.Handler = mux
	if s.config.RequestTimeout > 0 {
		handler = middleware.Timeout(s.config.RequestTimeout)(handler)
	}
	handler = middleware.CORS(middleware.CORSConfig{
		Enabled:        s.config.CORS.Enabled,
		AllowedOrigins: s.config.CORS.AllowedOrigins,
		AllowedMethods: s.config.CORS.AllowedMethods,
		AllowedHeaders: s.config.CORS.AllowedHeaders,
		MaxAge:         s.config.CORS.MaxAge,
	})(handler)
	handler = middleware.RequestID(handler)
	handler = middleware.Logging(s.recorder)(handler)
	handler = middleware.Recovery(handler)

	return handler
}

// handleFamily resolves the {report} path value against a family's report
// map and serves the matching typed endpoint.
func (s *Server) handleFamily(reports map[string]market.ReportKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		report, ok := reports[r.PathValue("report")]
		if !ok {
			writeDetail(w, http.StatusNotFound, fmt.Sprintf("unknown report %q", r.PathValue("report")))
			return
		}
		s.handleReport(report)(w, r)
	}
}
