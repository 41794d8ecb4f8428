package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/GriffinCanCode/adaptive/internal/adaptive"
	"github.com/GriffinCanCode/adaptive/internal/domain/events"
	"github.com/GriffinCanCode/adaptive/internal/domain/strategy"
	"github.com/GriffinCanCode/adaptive/internal/infrastructure/config"
	"github.com/GriffinCanCode/adaptive/internal/infrastructure/logging"
	"github.com/GriffinCanCode/adaptive/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/adaptive/internal/infrastructure/persistence"
	"github.com/GriffinCanCode/adaptive/internal/infrastructure/server"
	"github.com/GriffinCanCode/adaptive/internal/infrastructure/tracing"
)

func main() {
	// Parse flags
	configPath := flag.String("config", "", "YAML or TOML config file (overrides "+config.FileEnv+")")
	dev := flag.Bool("dev", false, "Development logging")
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if *dev {
		cfg.Logging.Development = true
	}

	logger, err := logging.New(logging.Config{
		Level:       cfg.Logging.Level,
		Development: cfg.Logging.Development,
	})
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	// Handle graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("Server error", zap.Error(err))
		os.Exit(1)
	}
}

func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFile(path)
	}
	return config.Load()
}

func run(ctx context.Context, cfg *config.Config, logger *logging.Logger) error {
	logger.Info("Initializing adaptive execution server",
		zap.String("addr", cfg.Server.Addr()),
		zap.Stringer("mode", cfg.Executor.Mode),
		zap.String("persistence", cfg.Persistence.Backend),
	)

	shutdownTracing, err := tracing.NewProvider(tracing.ProviderConfig{
		Service:     server.ServiceName,
		Version:     server.Version,
		Exporter:    cfg.Tracing.Exporter,
		SampleRatio: cfg.Tracing.SampleRatio,
	})
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer func() {
		if err := shutdownTracing(context.Background()); err != nil {
			logger.Warn("Failed to flush traces", zap.Error(err))
		}
	}()

	metrics := monitoring.NewMetrics(prometheus.DefaultRegisterer)
	bus := events.NewBus(logging.NewEventSink(logger.Logger), metrics)

	store, closeStore, err := openPersistence(ctx, cfg.Persistence, logger.Logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := closeStore(); err != nil {
			logger.Error("Failed to close strategy store", zap.Error(err))
		}
	}()
	if cfg.Persistence.Backend != config.BackendNone {
		store = monitoring.InstrumentPersistence(store, metrics, cfg.Persistence.Backend)
	}

	tracer := tracing.New(server.ServiceName, logger.Logger)
	options := func(name string) adaptive.Options {
		opts := cfg.Executor.Options(name)
		opts.Sink = bus
		opts.Persistence = store
		opts.Logger = logger.Executor(name)
		opts.Tracer = tracer
		return opts
	}

	workload, err := newDemo(options, probeURL(cfg.Server), logger.Logger)
	if err != nil {
		return err
	}
	registry := server.NewRegistry()
	if err := workload.register(registry); err != nil {
		return err
	}

	srv := server.New(cfg, registry, server.Options{
		Logger:   logger.Logger,
		Metrics:  metrics,
		Gatherer: prometheus.DefaultGatherer,
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return srv.Run(gctx) })
	if cfg.Demo.Enabled {
		g.Go(func() error { return workload.Run(gctx, cfg.Demo.Interval.Std()) })
	}
	return g.Wait()
}

// probeURL is the loopback URL of the server for the demo health probe
func probeURL(s config.ServerConfig) string {
	host := s.Host
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "127.0.0.1"
	}
	return "http://" + net.JoinHostPort(host, s.Port)
}

// openPersistence opens the configured strategy store. The returned close
// function is never nil.
func openPersistence(ctx context.Context, cfg config.PersistenceConfig, logger *zap.Logger) (strategy.Persistence, func() error, error) {
	switch cfg.Backend {
	case config.BackendBadger:
		store, err := persistence.OpenBadger(persistence.DefaultBadgerConfig(cfg.Path), logger)
		if err != nil {
			return nil, nil, fmt.Errorf("open badger store: %w", err)
		}
		return store, store.Close, nil
	case config.BackendSQLite:
		store, err := persistence.OpenSQLite(ctx, cfg.Path, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("open sqlite store: %w", err)
		}
		return store, store.Close, nil
	default:
		return strategy.NopPersistence{}, func() error { return nil }, nil
	}
}
