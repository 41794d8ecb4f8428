package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/adaptive/internal/infrastructure/config"
	"github.com/GriffinCanCode/adaptive/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/adaptive/internal/infrastructure/tracing"
)

// ServiceName labels HTTP spans
const ServiceName = "adaptive"

// Options carries the collaborators of a Server. Every field is optional.
type Options struct {
	Logger  *zap.Logger
	Metrics *monitoring.Metrics
	// Gatherer backs /metrics; defaults to the global Prometheus registry
	Gatherer       prometheus.Gatherer
	TracerProvider trace.TracerProvider
}

// Server exposes executor stats, learning mode control and metrics over HTTP
type Server struct {
	router   *gin.Engine
	http     *http.Server
	registry *Registry
	logger   *zap.Logger
	config   *config.Config
}

// New creates a server for the executors in registry
func New(cfg *config.Config, registry *Registry, opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("server")
	gatherer := opts.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}

	if !cfg.Logging.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()

	// Add middleware
	router.Use(gin.Recovery())
	router.Use(tracing.HTTPMiddleware(ServiceName, opts.TracerProvider), tracing.EchoTraceID())
	if opts.Metrics != nil {
		router.Use(monitoring.Middleware(opts.Metrics))
	}
	router.Use(CORS(DefaultCORSConfig(cfg.Server.CORSOrigins)))
	if cfg.RateLimit.Enabled {
		logger.Info("Rate limiting enabled",
			zap.Float64("rps", cfg.RateLimit.RequestsPerSecond),
			zap.Int("burst", cfg.RateLimit.Burst),
		)
		limit := DefaultRateLimitConfig()
		limit.RequestsPerSecond = cfg.RateLimit.RequestsPerSecond
		limit.Burst = cfg.RateLimit.Burst
		router.Use(RateLimit(limit))
	}

	handlers := NewHandlers(registry, logger)

	// Register routes
	router.GET("/", handlers.Root)
	router.GET("/health", handlers.Health)
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))

	// Executor inspection
	executors := router.Group("/executors")
	executors.GET("", handlers.ListExecutors)
	executors.GET("/:name", handlers.GetExecutor)
	executors.PUT("/:name/mode", handlers.SetMode)
	executors.POST("/:name/persist", handlers.Persist)

	return &Server{
		router:   router,
		registry: registry,
		logger:   logger,
		config:   cfg,
		http: &http.Server{
			Addr:              cfg.Server.Addr(),
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
		},
	}
}

// Handler returns the router, for tests and embedding
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves until ctx is canceled, then shuts down gracefully within the
// configured shutdown timeout
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Starting HTTP server", zap.String("addr", s.http.Addr))
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("serve %s: %w", s.http.Addr, err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.config.Server.ShutdownTimeout.Std())
	defer cancel()
	if err := s.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-errCh
}

// Shutdown stops accepting requests and persists every executor's learned
// strategies
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down server...")

	var errs []error
	if err := s.http.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("shutdown http: %w", err))
	}
	if err := s.registry.PersistAll(ctx); err != nil {
		s.logger.Error("Failed to persist strategies", zap.Error(err))
		errs = append(errs, fmt.Errorf("persist strategies: %w", err))
	}
	return errors.Join(errs...)
}
