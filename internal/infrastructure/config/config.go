package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-yaml"
	"github.com/kelseyhightower/envconfig"
	"github.com/pelletier/go-toml/v2"

	"github.com/GriffinCanCode/adaptive/internal/adaptive"
)

// FileEnv names the environment variable pointing at an optional config file
const FileEnv = "ADAPTIVE_CONFIG_FILE"

var validate = validator.New()

// Config holds all application configuration.
type Config struct {
	Server      ServerConfig      `yaml:"server" toml:"server"`
	Logging     LogConfig         `yaml:"logging" toml:"logging"`
	Tracing     TracingConfig     `yaml:"tracing" toml:"tracing"`
	RateLimit   RateLimitConfig   `yaml:"rate_limit" toml:"rate_limit"`
	Persistence PersistenceConfig `yaml:"persistence" toml:"persistence"`
	Executor    ExecutorConfig    `yaml:"executor" toml:"executor"`
	Demo        DemoConfig        `yaml:"demo" toml:"demo"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port            string   `envconfig:"SERVER_PORT" yaml:"port" toml:"port" validate:"required,numeric"`
	Host            string   `envconfig:"SERVER_HOST" yaml:"host" toml:"host"`
	CORSOrigins     []string `envconfig:"SERVER_CORS_ORIGINS" yaml:"cors_origins" toml:"cors_origins"`
	ShutdownTimeout Duration `envconfig:"SERVER_SHUTDOWN_TIMEOUT" yaml:"shutdown_timeout" toml:"shutdown_timeout" validate:"gt=0"`
}

// Addr returns host:port
func (s ServerConfig) Addr() string {
	return s.Host + ":" + s.Port
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `envconfig:"LOG_LEVEL" yaml:"level" toml:"level" validate:"oneof=debug info warn error"`
	Development bool   `envconfig:"LOG_DEV" yaml:"development" toml:"development"`
}

// TracingConfig selects the span exporter.
type TracingConfig struct {
	Exporter    string  `envconfig:"TRACING_EXPORTER" yaml:"exporter" toml:"exporter" validate:"oneof=none stdout"`
	SampleRatio float64 `envconfig:"TRACING_SAMPLE_RATIO" yaml:"sample_ratio" toml:"sample_ratio" validate:"gte=0,lte=1"`
}

// RateLimitConfig holds per-client rate limiting of the inspection server.
type RateLimitConfig struct {
	RequestsPerSecond float64 `envconfig:"SERVER_RATE_LIMIT_RPS" yaml:"requests_per_second" toml:"requests_per_second" validate:"gt=0"`
	Burst             int     `envconfig:"SERVER_RATE_LIMIT_BURST" yaml:"burst" toml:"burst" validate:"gte=1"`
	Enabled           bool    `envconfig:"SERVER_RATE_LIMIT_ENABLED" yaml:"enabled" toml:"enabled"`
}

// Persistence backends
const (
	BackendNone   = "none"
	BackendBadger = "badger"
	BackendSQLite = "sqlite"
)

// PersistenceConfig selects where learned strategies are kept.
type PersistenceConfig struct {
	Backend string `envconfig:"PERSISTENCE_BACKEND" yaml:"backend" toml:"backend" validate:"oneof=none badger sqlite"`
	// Path is the Badger directory or the SQLite file
	Path string `envconfig:"PERSISTENCE_PATH" yaml:"path" toml:"path" validate:"required_unless=Backend none"`
}

// ExecutorConfig holds the tunables shared by every adaptive executor.
type ExecutorConfig struct {
	Mode                    adaptive.LearningMode `envconfig:"ADAPTIVE_MODE" yaml:"mode" toml:"mode"`
	MaxStrategies           int                   `envconfig:"ADAPTIVE_MAX_STRATEGIES" yaml:"max_strategies" toml:"max_strategies"`
	MinObservations         int                   `envconfig:"ADAPTIVE_MIN_OBSERVATIONS" yaml:"min_observations" toml:"min_observations"`
	ValidationWindow        int                   `envconfig:"ADAPTIVE_VALIDATION_WINDOW" yaml:"validation_window" toml:"validation_window"`
	ImprovementMargin       float64               `envconfig:"ADAPTIVE_IMPROVEMENT_MARGIN" yaml:"improvement_margin" toml:"improvement_margin"`
	CircuitBreakerThreshold float64               `envconfig:"ADAPTIVE_BREAKER_THRESHOLD" yaml:"breaker_threshold" toml:"breaker_threshold"`
	BreakerWindow           int                   `envconfig:"ADAPTIVE_BREAKER_WINDOW" yaml:"breaker_window" toml:"breaker_window"`
	BreakerMinRequests      int                   `envconfig:"ADAPTIVE_BREAKER_MIN_REQUESTS" yaml:"breaker_min_requests" toml:"breaker_min_requests"`
	BreakerCooldown         Duration              `envconfig:"ADAPTIVE_BREAKER_COOLDOWN" yaml:"breaker_cooldown" toml:"breaker_cooldown"`
	LearnInterval           Duration              `envconfig:"ADAPTIVE_LEARN_INTERVAL" yaml:"learn_interval" toml:"learn_interval"`
	PersistTimeout          Duration              `envconfig:"ADAPTIVE_PERSIST_TIMEOUT" yaml:"persist_timeout" toml:"persist_timeout"`
}

// Options converts the section into executor options for an executor called
// name. The result is validated by the executor's constructor.
func (e ExecutorConfig) Options(name string) adaptive.Options {
	opts := adaptive.DefaultOptions(name)
	opts.Mode = e.Mode
	opts.MaxStrategies = e.MaxStrategies
	opts.MinObservations = e.MinObservations
	opts.ValidationWindow = e.ValidationWindow
	opts.ImprovementMargin = e.ImprovementMargin
	opts.CircuitBreakerThreshold = e.CircuitBreakerThreshold
	opts.BreakerWindow = e.BreakerWindow
	opts.BreakerMinRequests = e.BreakerMinRequests
	opts.BreakerCooldown = e.BreakerCooldown.Std()
	opts.LearnInterval = e.LearnInterval.Std()
	opts.PersistTimeout = e.PersistTimeout.Std()
	return opts
}

// DemoConfig drives the synthetic workload of cmd/server.
type DemoConfig struct {
	Enabled  bool     `envconfig:"DEMO_ENABLED" yaml:"enabled" toml:"enabled"`
	Interval Duration `envconfig:"DEMO_INTERVAL" yaml:"interval" toml:"interval" validate:"gt=0"`
}

// Default returns default configuration.
func Default() *Config {
	opts := adaptive.DefaultOptions("default")
	return &Config{
		Server: ServerConfig{
			Port:            "8000",
			Host:            "0.0.0.0",
			CORSOrigins:     []string{"*"},
			ShutdownTimeout: Duration(10 * time.Second),
		},
		Logging: LogConfig{
			Level:       "info",
			Development: false,
		},
		Tracing: TracingConfig{
			Exporter:    "none",
			SampleRatio: 1,
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 100,
			Burst:             200,
			Enabled:           true,
		},
		Persistence: PersistenceConfig{
			Backend: BackendNone,
		},
		Executor: ExecutorConfig{
			Mode:                    opts.Mode,
			MaxStrategies:           opts.MaxStrategies,
			MinObservations:         opts.MinObservations,
			ValidationWindow:        opts.ValidationWindow,
			ImprovementMargin:       opts.ImprovementMargin,
			CircuitBreakerThreshold: opts.CircuitBreakerThreshold,
			BreakerWindow:           opts.BreakerWindow,
			BreakerMinRequests:      opts.BreakerMinRequests,
			BreakerCooldown:         Duration(opts.BreakerCooldown),
			LearnInterval:           Duration(opts.LearnInterval),
			PersistTimeout:          Duration(opts.PersistTimeout),
		},
		Demo: DemoConfig{
			Enabled:  false,
			Interval: Duration(100 * time.Millisecond),
		},
	}
}

// Load builds the configuration from defaults, the file named by
// ADAPTIVE_CONFIG_FILE when set, then environment variables.
func Load() (*Config, error) {
	cfg := Default()
	if path := os.Getenv(FileEnv); path != "" {
		if err := cfg.overlayFile(path); err != nil {
			return nil, err
		}
	}
	return cfg.finish()
}

// LoadFile is Load with an explicit config file.
func LoadFile(path string) (*Config, error) {
	cfg := Default()
	if err := cfg.overlayFile(path); err != nil {
		return nil, err
	}
	return cfg.finish()
}

// LoadOrDefault loads configuration from environment or returns default.
func LoadOrDefault() *Config {
	cfg, err := Load()
	if err != nil {
		return Default()
	}
	return cfg
}

func (c *Config) finish() (*Config, error) {
	if err := envconfig.Process("", c); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// overlayFile decodes a YAML or TOML file, chosen by extension, over c
func (c *Config) overlayFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, c)
	case ".toml":
		err = toml.Unmarshal(data, c)
	default:
		return fmt.Errorf("config file %s: unsupported format %q", path, ext)
	}
	if err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

// Validate checks every section. Executor tunables are checked as the
// options they convert to.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) {
			reasons := make([]string, 0, len(fieldErrs))
			for _, fe := range fieldErrs {
				reasons = append(reasons, fmt.Sprintf("%s: must satisfy %s", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("invalid config: %s", strings.Join(reasons, "; "))
		}
		return fmt.Errorf("invalid config: %w", err)
	}
	return c.Executor.Options("config").Validate()
}
