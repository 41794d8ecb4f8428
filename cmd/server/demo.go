package main

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/adaptive/internal/adaptive"
	"github.com/GriffinCanCode/adaptive/internal/domain/execution"
	"github.com/GriffinCanCode/adaptive/internal/executors/cache"
	"github.com/GriffinCanCode/adaptive/internal/executors/fallback"
	"github.com/GriffinCanCode/adaptive/internal/executors/retry"
	"github.com/GriffinCanCode/adaptive/internal/executors/timeout"
	"github.com/GriffinCanCode/adaptive/internal/infrastructure/httpclient"
	"github.com/GriffinCanCode/adaptive/internal/infrastructure/server"
)

// environments the synthetic callers come from
var environments = []string{"production", "staging"}

// backend simulates a dependency whose behavior depends on the environment
type backend struct {
	failureRate map[string]float64
	latency     map[string]time.Duration
}

func (b backend) call(ctx context.Context, ec execution.Context) error {
	env, _ := ec.Get(execution.KeyEnvironment)

	// up to 50% jitter on top of the base latency
	base := b.latency[env]
	d := base + time.Duration(rand.Int64N(int64(base)/2+1))
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
	}

	if rand.Float64() < b.failureRate[env] {
		return fmt.Errorf("%s backend unavailable", env)
	}
	return nil
}

// demo drives one executor of each kind with synthetic traffic
type demo struct {
	inventory *retry.Executor[string, int]
	quotes    *timeout.Executor[string, float64]
	pricing   *fallback.Executor[string, float64]
	catalog   *cache.Executor[string, string]
	// probe calls the server's own health endpoint; nil without a probe URL
	probe  *retry.Executor[httpclient.Request, httpclient.Response]
	logger *zap.Logger
}

func newDemo(options func(name string) adaptive.Options, probeBase string, logger *zap.Logger) (*demo, error) {
	d := &demo{logger: logger.Named("demo")}

	stock := backend{
		failureRate: map[string]float64{"production": 0.4, "staging": 0.05},
		latency:     map[string]time.Duration{"production": 2 * time.Millisecond, "staging": time.Millisecond},
	}
	retryCfg := retry.DefaultConfig("inventory")
	retryCfg.Options = options("inventory")
	retryCfg.Baseline.InitialDelay = 5 * time.Millisecond
	retryCfg.Baseline.MaxDelay = 100 * time.Millisecond
	inventory, err := retry.New[string, int](func(ctx context.Context, sku string, ec execution.Context) (int, error) {
		if err := stock.call(ctx, ec); err != nil {
			return 0, err
		}
		return len(sku) * 7, nil
	}, retryCfg)
	if err != nil {
		return nil, fmt.Errorf("create inventory executor: %w", err)
	}
	d.inventory = inventory

	quoting := backend{
		failureRate: map[string]float64{"production": 0.01, "staging": 0.01},
		latency:     map[string]time.Duration{"production": 30 * time.Millisecond, "staging": 3 * time.Millisecond},
	}
	timeoutCfg := timeout.DefaultConfig("quotes")
	timeoutCfg.Options = options("quotes")
	timeoutCfg.Baseline.Timeout = 2 * time.Second
	quotes, err := timeout.New[string, float64](func(ctx context.Context, sku string, ec execution.Context) (float64, error) {
		if err := quoting.call(ctx, ec); err != nil {
			return 0, err
		}
		return float64(len(sku)) * 1.25, nil
	}, timeoutCfg)
	if err != nil {
		return nil, fmt.Errorf("create quotes executor: %w", err)
	}
	d.quotes = quotes

	primary := backend{
		failureRate: map[string]float64{"production": 0.7, "staging": 0.02},
		latency:     map[string]time.Duration{"production": 2 * time.Millisecond, "staging": 2 * time.Millisecond},
	}
	replica := backend{
		failureRate: map[string]float64{"production": 0.02, "staging": 0.02},
		latency:     map[string]time.Duration{"production": 5 * time.Millisecond, "staging": 5 * time.Millisecond},
	}
	price := func(b backend) execution.Operation[string, float64] {
		return func(ctx context.Context, sku string, ec execution.Context) (float64, error) {
			if err := b.call(ctx, ec); err != nil {
				return 0, err
			}
			return 9.99, nil
		}
	}
	fallbackCfg := fallback.DefaultConfig("pricing")
	fallbackCfg.Options = options("pricing")
	pricing, err := fallback.New([]fallback.Service[string, float64]{
		{Name: "primary", Op: price(primary)},
		{Name: "replica", Op: price(replica)},
		{Name: "static", Op: func(context.Context, string, execution.Context) (float64, error) { return 10, nil }},
	}, fallbackCfg)
	if err != nil {
		return nil, fmt.Errorf("create pricing executor: %w", err)
	}
	d.pricing = pricing

	render := backend{
		failureRate: map[string]float64{"production": 0, "staging": 0},
		latency:     map[string]time.Duration{"production": 4 * time.Millisecond, "staging": 4 * time.Millisecond},
	}
	cacheCfg := cache.DefaultConfig("catalog")
	cacheCfg.Options = options("catalog")
	cacheCfg.Baseline = cache.Parameters{TTL: 500 * time.Millisecond, MaxSize: 16}
	catalog, err := cache.New[string, string](func(ctx context.Context, sku string, ec execution.Context) (string, error) {
		if err := render.call(ctx, ec); err != nil {
			return "", err
		}
		return "product " + sku, nil
	}, nil, cacheCfg)
	if err != nil {
		return nil, fmt.Errorf("create catalog executor: %w", err)
	}
	d.catalog = catalog

	if probeBase != "" {
		client := httpclient.DefaultConfig(probeBase)
		client.Timeout = 2 * time.Second
		probeCfg := retry.DefaultConfig("health-probe")
		probeCfg.Options = options("health-probe")
		probeCfg.Baseline.InitialDelay = 50 * time.Millisecond
		probeCfg.Baseline.MaxDelay = time.Second
		probe, err := retry.New[httpclient.Request, httpclient.Response](httpclient.New(client).Do, probeCfg)
		if err != nil {
			return nil, fmt.Errorf("create health probe: %w", err)
		}
		d.probe = probe
	}

	return d, nil
}

// register exposes every demo executor on the server
func (d *demo) register(r *server.Registry) error {
	errs := []error{
		r.Register(d.inventory),
		r.Register(d.quotes),
		r.Register(d.pricing),
		r.Register(d.catalog),
	}
	if d.probe != nil {
		errs = append(errs, r.Register(d.probe))
	}
	return errors.Join(errs...)
}

// tick sends one call through every executor
func (d *demo) tick(ctx context.Context) {
	env := environments[rand.IntN(len(environments))]
	ec := execution.NewContext(map[string]string{execution.KeyEnvironment: env})
	sku := fmt.Sprintf("sku-%02d", rand.IntN(40))

	if res := d.inventory.Execute(ctx, sku, ec); !res.Success {
		d.logger.Debug("inventory call failed", zap.String("environment", env), zap.Error(res.Err))
	}
	if res := d.quotes.Execute(ctx, sku, ec); !res.Success {
		d.logger.Debug("quote call failed", zap.String("environment", env), zap.Error(res.Err))
	}
	if res := d.pricing.Execute(ctx, sku, ec); !res.Success {
		d.logger.Debug("pricing call failed", zap.String("environment", env), zap.Error(res.Err))
	}
	d.catalog.Execute(ctx, sku, ec)

	if d.probe != nil {
		if res := d.probe.Execute(ctx, httpclient.Request{Path: "/health"}, ec); !res.Success {
			d.logger.Warn("health probe failed", zap.Int("attempts", res.Attempts), zap.Error(res.Err))
		}
	}
}

// Run ticks every interval until ctx is canceled
func (d *demo) Run(ctx context.Context, interval time.Duration) error {
	d.logger.Info("Demo workload started", zap.Duration("interval", interval))
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			d.logger.Info("Demo workload stopped")
			return nil
		case <-ticker.C:
			d.tick(ctx)
		}
	}
}
