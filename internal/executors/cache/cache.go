package cache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/adaptive/internal/adaptive"
	"github.com/GriffinCanCode/adaptive/internal/domain/execution"
	"github.com/GriffinCanCode/adaptive/internal/domain/strategy"
)

// Parameter names
const (
	ParamTTL     = "ttl"
	ParamMaxSize = "max_size"
)

// Parameters is the typed form of a cache strategy
type Parameters struct {
	TTL     time.Duration
	MaxSize int
}

// DefaultParameters returns the stock baseline
func DefaultParameters() Parameters {
	return Parameters{TTL: 5 * time.Minute, MaxSize: 1000}
}

// ParseParameters reads a strategy's parameters
func ParseParameters(sp strategy.Parameters) (Parameters, error) {
	ttl, err := sp.Duration(ParamTTL)
	if err != nil {
		return Parameters{}, err
	}
	size, err := sp.Int(ParamMaxSize)
	if err != nil {
		return Parameters{}, err
	}
	return Parameters{TTL: ttl, MaxSize: size}, nil
}

// Map converts p to strategy parameters
func (p Parameters) Map() strategy.Parameters {
	return strategy.Parameters{ParamTTL: p.TTL, ParamMaxSize: p.MaxSize}
}

// KeyFunc derives the cache key of a call
type KeyFunc[In any] func(in In, ec execution.Context) string

// Config configures an adaptive cache
type Config struct {
	adaptive.Options

	// Baseline is the never-evicted default strategy
	Baseline Parameters

	// MaxTTL and MaxSize bound what the learner may propose
	MaxTTL  time.Duration `validate:"gt=0"`
	MaxSize int           `validate:"gte=1"`
}

// DefaultConfig returns the configuration of a cache called name
func DefaultConfig(name string) Config {
	return Config{
		Options:  adaptive.DefaultOptions(name),
		Baseline: DefaultParameters(),
		MaxTTL:   time.Hour,
		MaxSize:  100_000,
	}
}

// Executor caches the results of a wrapped operation and learns, per
// context, the TTL and size that keep the hit rate up
type Executor[In, Out any] struct {
	*adaptive.Executor[In, Out]
}

// New creates an adaptive cache around op. A nil key uses fmt.Sprint(in).
func New[In, Out any](op execution.Operation[In, Out], key KeyFunc[In], cfg Config) (*Executor[In, Out], error) {
	if op == nil {
		return nil, execution.NewConfigurationError("operation", execution.ErrNoOperation.Error())
	}
	if err := adaptive.ValidateConfig(cfg); err != nil {
		return nil, err
	}
	if key == nil {
		key = func(in In, _ execution.Context) string { return fmt.Sprint(in) }
	}

	d := &domain[In, Out]{
		op:      op,
		key:     key,
		cfg:     cfg,
		now:     cfg.Clock,
		caches:  make(map[string]ownedCache),
		learner: newLearner(),
		logger:  cfg.Logger,
	}
	if d.now == nil {
		d.now = time.Now
	}
	if d.logger == nil {
		d.logger = zap.NewNop()
	}
	d.logger = d.logger.Named("cache")

	core, err := adaptive.New[In, Out](d, cfg.Options)
	if err != nil {
		return nil, err
	}
	return &Executor[In, Out]{Executor: core}, nil
}

// ownedCache ties a cache to the strategy instance it serves, so a strategy
// promoted again under an old name starts empty
type ownedCache struct {
	owner *strategy.Strategy
	cache *ttlCache
}

// domain implements adaptive.Domain for caching
type domain[In, Out any] struct {
	op      execution.Operation[In, Out]
	key     KeyFunc[In]
	cfg     Config
	now     func() time.Time
	mu      sync.RWMutex
	caches  map[string]ownedCache // by strategy name
	learner *learner
	logger  *zap.Logger
}

func (d *domain[In, Out]) Name() string { return "cache" }

func (d *domain[In, Out]) Baseline() strategy.Parameters {
	return d.cfg.Baseline.Map()
}

func (d *domain[In, Out]) ValidateParameters(sp strategy.Parameters) error {
	p, err := ParseParameters(sp)
	if err != nil {
		return execution.NewConfigurationError("parameters", err.Error())
	}
	switch {
	case p.TTL <= 0 || p.TTL > d.cfg.MaxTTL:
		return execution.NewConfigurationError(ParamTTL, fmt.Sprintf("must be in (0, %s], got %s", d.cfg.MaxTTL, p.TTL))
	case p.MaxSize < 1 || p.MaxSize > d.cfg.MaxSize:
		return execution.NewConfigurationError(ParamMaxSize, fmt.Sprintf("must be in [1, %d], got %d", d.cfg.MaxSize, p.MaxSize))
	}
	return nil
}

// cacheFor returns the cache owned by s, creating it on first use. A
// strategy already removed from the store gets a cache for this call only.
func (d *domain[In, Out]) cacheFor(s *strategy.Strategy) (*ttlCache, error) {
	if c, ok := d.lookup(s); ok {
		return c, nil
	}
	p, err := ParseParameters(s.Parameters)
	if err != nil {
		return nil, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if oc, ok := d.caches[s.Name]; ok && oc.owner == s {
		return oc.cache, nil
	}
	c := newTTLCache(p.MaxSize, p.TTL, d.now)
	if !s.Removed() {
		d.caches[s.Name] = ownedCache{owner: s, cache: c}
	}
	return c, nil
}

// lookup returns the cache of s without creating one
func (d *domain[In, Out]) lookup(s *strategy.Strategy) (*ttlCache, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	oc, ok := d.caches[s.Name]
	if !ok || oc.owner != s {
		return nil, false
	}
	return oc.cache, true
}

// prune drops the caches and lookup counters of strategies that left the
// store
func (d *domain[In, Out]) prune() {
	d.mu.Lock()
	var gone []string
	for name, oc := range d.caches {
		if oc.owner.Removed() {
			delete(d.caches, name)
			gone = append(gone, name)
		}
	}
	d.mu.Unlock()

	if len(gone) > 0 {
		d.learner.forget(gone...)
		d.logger.Debug("dropped caches of removed strategies", zap.Strings("strategies", gone))
	}
}

// Run serves the call from the strategy's cache, computing and storing the
// value on a miss. Concurrent misses for one key share a single computation,
// which runs with the context of the first caller.
func (d *domain[In, Out]) Run(ctx context.Context, inv *adaptive.Invocation[In]) adaptive.Outcome[Out] {
	c, err := d.cacheFor(inv.Strategy)
	if err != nil {
		return adaptive.Outcome[Out]{Err: execution.Permanent(err), Attempts: 1}
	}

	key := d.key(inv.Input, inv.Context)
	v, kind := c.get(key)
	if inv.Learning {
		d.learner.observe(inv.ContextKey, inv.Strategy.Name, kind)
	}
	if kind == MissNone {
		out, _ := v.(Out)
		return adaptive.Outcome[Out]{
			Value:       out,
			Attempts:    1,
			Annotations: map[string]any{"cache_hit": true},
		}
	}

	v, err, shared := c.flight.Do(key, func() (any, error) {
		out, err := d.op(ctx, inv.Input, inv.Context)
		if err != nil {
			return nil, err
		}
		c.put(key, out)
		return out, nil
	})
	annotations := map[string]any{
		"cache_hit": false,
		"miss":      string(kind),
		"shared":    shared,
	}
	if err != nil {
		return adaptive.Outcome[Out]{Err: err, Attempts: 1, Annotations: annotations}
	}
	out, _ := v.(Out)
	return adaptive.Outcome[Out]{Value: out, Attempts: 1, Annotations: annotations}
}

// Score is 0.7*successRate + 0.3*hitRate
func (d *domain[In, Out]) Score(s *strategy.Strategy, snap strategy.MetricsSnapshot) float64 {
	hitRate := 0.0
	if c, ok := d.lookup(s); ok {
		hitRate = c.hitRate()
	}
	return 0.7*snap.SuccessRate() + 0.3*hitRate
}

// ConsiderNewStrategy doubles the TTL when stale misses dominate, or the size
// when capacity misses do. Doubling is assumed to recover half of those misses.
func (d *domain[In, Out]) ConsiderNewStrategy(view adaptive.LearningView) []adaptive.Proposal {
	d.prune()

	cur, ok := d.learner.stats(view.ContextKey, view.Current.Name)
	if !ok || cur.Lookups() < uint64(view.MinObservations) {
		return nil
	}
	params, err := ParseParameters(view.Current.Parameters)
	if err != nil {
		return nil
	}

	stale, capacity := cur.fraction(cur.Stale), cur.fraction(cur.Capacity)
	next := params
	var (
		gain   float64
		reason string
	)
	switch {
	case stale > 0 && stale >= capacity && params.TTL < d.cfg.MaxTTL:
		next.TTL = min(params.TTL*2, d.cfg.MaxTTL)
		gain, reason = stale/2, "stale"
	case capacity > 0 && params.MaxSize < d.cfg.MaxSize:
		next.MaxSize = min(params.MaxSize*2, d.cfg.MaxSize)
		gain, reason = capacity/2, "capacity"
	default:
		return nil
	}
	if gain <= view.ImprovementMargin {
		return nil
	}

	success := 1.0
	if snap := view.Current.Metrics.ForContext(view.ContextKey); snap.Executions > 0 {
		success = snap.SuccessRate()
	}
	baselineHits := cur.HitRate()
	if base, ok := d.learner.stats(view.ContextKey, view.Baseline.Name); ok && base.Lookups() > 0 {
		baselineHits = base.HitRate()
	}

	return []adaptive.Proposal{{
		Description:   fmt.Sprintf("ttl %s, max_size %d for %s (%s misses)", next.TTL, next.MaxSize, view.ContextKey, reason),
		Parameters:    next.Map(),
		Score:         0.7*success + 0.3*min(1, cur.HitRate()+gain),
		BaselineScore: 0.7*success + 0.3*baselineHits,
	}}
}

// DomainStats exports lookup counters per context and the state of every cache
func (d *domain[In, Out]) DomainStats() map[string]any {
	d.prune()

	d.mu.RLock()
	caches := make(map[string]any, len(d.caches))
	for name, oc := range d.caches {
		c := oc.cache
		caches[name] = map[string]any{
			"size":      c.len(),
			"lookups":   c.lookups.Load(),
			"hit_rate":  c.hitRate(),
			"evictions": c.evictions.Load(),
			"ttl":       c.ttl.String(),
		}
	}
	d.mu.RUnlock()
	return map[string]any{
		"contexts": d.learner.export(),
		"caches":   caches,
	}
}
