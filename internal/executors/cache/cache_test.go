package cache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/adaptive/internal/adaptive"
	"github.com/GriffinCanCode/adaptive/internal/domain/events"
	"github.com/GriffinCanCode/adaptive/internal/domain/execution"
	"github.com/GriffinCanCode/adaptive/internal/domain/strategy"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newClock() *fakeClock {
	return &fakeClock{now: time.Unix(1_700_000_000, 0)}
}

func prod() execution.Context {
	return execution.NewContext(map[string]string{"environment": "production"})
}

// echo counts its calls and returns "v:<in>"
func echo(calls *atomic.Int64) execution.Operation[string, string] {
	return func(_ context.Context, in string, _ execution.Context) (string, error) {
		calls.Add(1)
		return "v:" + in, nil
	}
}

func testConfig(mode adaptive.LearningMode, clock *fakeClock) Config {
	cfg := DefaultConfig("cache-test")
	cfg.Mode = mode
	cfg.Clock = clock.Now
	return cfg
}

func TestCacheServesHits(t *testing.T) {
	var calls atomic.Int64
	exec, err := New[string, string](echo(&calls), nil, testConfig(adaptive.ModeDisabled, newClock()))
	require.NoError(t, err)

	first := exec.Execute(context.Background(), "a", prod())
	require.True(t, first.Success)
	assert.Equal(t, "v:a", first.Value)
	assert.Equal(t, 1, first.Attempts)
	hit, _ := first.Annotation("cache_hit")
	assert.Equal(t, false, hit)
	miss, _ := first.Annotation("miss")
	assert.Equal(t, string(MissCold), miss)

	second := exec.Execute(context.Background(), "a", prod())
	require.True(t, second.Success)
	assert.Equal(t, "v:a", second.Value)
	hit, _ = second.Annotation("cache_hit")
	assert.Equal(t, true, hit)

	assert.Equal(t, int64(1), calls.Load())
}

func TestCacheKeyFunction(t *testing.T) {
	var calls atomic.Int64
	byTenant := func(_ string, ec execution.Context) string {
		tenant, _ := ec.Get("tenant")
		return tenant
	}
	exec, err := New[string, string](echo(&calls), byTenant, testConfig(adaptive.ModeDisabled, newClock()))
	require.NoError(t, err)

	ec := execution.NewContext(map[string]string{"tenant": "acme"})
	assert.Equal(t, "v:first", exec.Execute(context.Background(), "first", ec).Value)
	assert.Equal(t, "v:first", exec.Execute(context.Background(), "second", ec).Value)
	assert.Equal(t, int64(1), calls.Load())
}

func TestCacheDoesNotStoreFailures(t *testing.T) {
	var calls atomic.Int64
	op := func(_ context.Context, in string, _ execution.Context) (string, error) {
		if calls.Add(1) == 1 {
			return "", errors.New("backend down")
		}
		return "v:" + in, nil
	}
	exec, err := New[string, string](op, nil, testConfig(adaptive.ModeDisabled, newClock()))
	require.NoError(t, err)

	failed := exec.Execute(context.Background(), "a", prod())
	assert.False(t, failed.Success)
	assert.Error(t, failed.Err)

	recovered := exec.Execute(context.Background(), "a", prod())
	require.True(t, recovered.Success)
	assert.Equal(t, "v:a", recovered.Value)
	assert.Equal(t, int64(2), calls.Load())
}

func TestCacheSharesConcurrentMisses(t *testing.T) {
	var calls atomic.Int64
	release := make(chan struct{})
	op := func(_ context.Context, in string, _ execution.Context) (string, error) {
		calls.Add(1)
		<-release
		return "v:" + in, nil
	}
	exec, err := New[string, string](op, nil, testConfig(adaptive.ModeDisabled, newClock()))
	require.NoError(t, err)

	const callers = 8
	results := make([]execution.Result[string], callers)
	var wg sync.WaitGroup
	for i := range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i] = exec.Execute(context.Background(), "k", prod())
		}()
	}

	require.Eventually(t, func() bool { return calls.Load() == 1 }, time.Second, time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int64(1), calls.Load())
	for _, res := range results {
		assert.True(t, res.Success)
		assert.Equal(t, "v:k", res.Value)
	}
}

func TestTTLCacheClassifiesMisses(t *testing.T) {
	clock := newClock()
	c := newTTLCache(2, time.Second, clock.Now)

	_, kind := c.get("a")
	assert.Equal(t, MissCold, kind)

	c.put("a", 1)
	v, kind := c.get("a")
	assert.Equal(t, MissNone, kind)
	assert.Equal(t, 1, v)

	clock.Advance(2 * time.Second)
	_, kind = c.get("a")
	assert.Equal(t, MissStale, kind)

	c.put("a", 1)
	c.put("b", 2)
	c.put("c", 3) // evicts a
	_, kind = c.get("a")
	assert.Equal(t, MissCapacity, kind)
	assert.Equal(t, uint64(1), c.evictions.Load())
	assert.Equal(t, 2, c.len())

	c.put("a", 1)
	_, kind = c.get("a")
	assert.Equal(t, MissNone, kind)
	assert.InDelta(t, 2.0/6.0, c.hitRate(), 1e-9)
}

func TestValidateParameters(t *testing.T) {
	exec, err := New[string, string](echo(new(atomic.Int64)), nil, testConfig(adaptive.ModeDisabled, newClock()))
	require.NoError(t, err)
	d := &domain[string, string]{cfg: DefaultConfig("x")}

	assert.NoError(t, d.ValidateParameters(DefaultParameters().Map()))
	assert.Error(t, d.ValidateParameters(Parameters{TTL: 0, MaxSize: 10}.Map()))
	assert.Error(t, d.ValidateParameters(Parameters{TTL: 2 * time.Hour, MaxSize: 10}.Map()))
	assert.Error(t, d.ValidateParameters(Parameters{TTL: time.Minute, MaxSize: 0}.Map()))
	assert.Error(t, d.ValidateParameters(strategy.Parameters{ParamTTL: "soon"}))

	baseline, ok := exec.GetStats().Strategy(strategy.BaselineName)
	require.True(t, ok)
	assert.Equal(t, 5*time.Minute, baseline.Parameters[ParamTTL])
}

func TestNewRejectsInvalidConfiguration(t *testing.T) {
	var calls atomic.Int64

	_, err := New[string, string](nil, nil, DefaultConfig("c"))
	assert.Error(t, err)

	cfg := DefaultConfig("c")
	cfg.MaxTTL = 0
	_, err = New[string, string](echo(&calls), nil, cfg)
	assert.Error(t, err)

	cfg = DefaultConfig("c")
	cfg.Baseline.TTL = 2 * time.Hour
	_, err = New[string, string](echo(&calls), nil, cfg)
	assert.Error(t, err)
}

func TestAlwaysSucceedingOperationUsesOneAttempt(t *testing.T) {
	for _, mode := range []adaptive.LearningMode{adaptive.ModeDisabled, adaptive.ModeObserve, adaptive.ModeValidate, adaptive.ModeActive} {
		t.Run(mode.String(), func(t *testing.T) {
			var calls atomic.Int64
			exec, err := New[string, string](echo(&calls), nil, testConfig(mode, newClock()))
			require.NoError(t, err)

			for i := range 30 {
				res := exec.Execute(context.Background(), fmt.Sprint(i%3), prod())
				require.True(t, res.Success)
				assert.Equal(t, 1, res.Attempts)
			}
		})
	}
}

func TestLearnsLongerTTLForStaleMisses(t *testing.T) {
	clock := newClock()
	rec := &events.Recorder{}
	var calls atomic.Int64

	cfg := testConfig(adaptive.ModeActive, clock)
	cfg.Sink = rec
	cfg.Baseline.TTL = time.Second
	exec, err := New[string, string](echo(&calls), nil, cfg)
	require.NoError(t, err)

	keys := []string{"a", "b", "c", "d", "e"}
	round := func() []execution.Result[string] {
		out := make([]execution.Result[string], 0, len(keys))
		for _, k := range keys {
			out = append(out, exec.Execute(context.Background(), k, prod()))
		}
		clock.Advance(1500 * time.Millisecond)
		return out
	}

	round() // cold
	round() // stale: the learner now sees half its lookups expired

	promoted := rec.OfType(events.TypeStrategyPromoted)
	require.Len(t, promoted, 1)
	assert.Equal(t, 2*time.Second, promoted[0].Parameters[ParamTTL])
	assert.Equal(t, 1000, promoted[0].Parameters[ParamMaxSize])
	assert.Equal(t, "env:production", promoted[0].ContextKey)

	round() // the learned strategy warms its own cache
	for _, res := range round() {
		require.True(t, res.Success)
		assert.Equal(t, promoted[0].StrategyName, res.StrategyUsed)
		hit, _ := res.Annotation("cache_hit")
		assert.Equal(t, true, hit)
	}

	stats := exec.GetStats()
	contexts, ok := stats.Domain["contexts"].(map[string]map[string]LookupStats)
	require.True(t, ok)
	learned := contexts["env:production"][promoted[0].StrategyName]
	assert.Equal(t, uint64(5), learned.Hits)
	assert.Equal(t, uint64(5), learned.Cold)
}

func TestLearnsLargerSizeForCapacityMisses(t *testing.T) {
	rec := &events.Recorder{}
	var calls atomic.Int64

	cfg := testConfig(adaptive.ModeActive, newClock())
	cfg.Sink = rec
	cfg.Baseline = Parameters{TTL: time.Hour, MaxSize: 2}
	exec, err := New[string, string](echo(&calls), nil, cfg)
	require.NoError(t, err)

	for i := range 10 {
		res := exec.Execute(context.Background(), fmt.Sprint(i%5), prod())
		require.True(t, res.Success)
	}

	promoted := rec.OfType(events.TypeStrategyPromoted)
	require.Len(t, promoted, 1)
	assert.Equal(t, 4, promoted[0].Parameters[ParamMaxSize])
	assert.Equal(t, time.Hour, promoted[0].Parameters[ParamTTL])
}

func TestDisabledModeDoesNotFeedLearner(t *testing.T) {
	var calls atomic.Int64
	exec, err := New[string, string](echo(&calls), nil, testConfig(adaptive.ModeDisabled, newClock()))
	require.NoError(t, err)

	for i := range 20 {
		exec.Execute(context.Background(), fmt.Sprint(i), prod())
	}
	contexts, ok := exec.GetStats().Domain["contexts"].(map[string]map[string]LookupStats)
	require.True(t, ok)
	assert.Empty(t, contexts)
}

func TestRemovedStrategiesReleaseTheirCaches(t *testing.T) {
	clock := newClock()
	d := &domain[string, string]{
		cfg:     DefaultConfig("cache-test"),
		now:     clock.Now,
		caches:  make(map[string]ownedCache),
		learner: newLearner(),
		logger:  zap.NewNop(),
	}
	store, err := strategy.NewStore(strategy.NewBaseline("default", DefaultParameters().Map()), 4, nil)
	require.NoError(t, err)

	learned := strategy.New("learned", "", Parameters{TTL: time.Minute, MaxSize: 8}.Map(), strategy.ExactKey("env", "production"))
	_, _, err = store.InsertIfAbsent(learned)
	require.NoError(t, err)

	c, err := d.cacheFor(learned)
	require.NoError(t, err)
	c.put("a", "v:a")
	d.learner.observe("env:production", learned.Name, MissCold)

	d.prune()
	kept, err := d.cacheFor(learned)
	require.NoError(t, err)
	assert.Same(t, c, kept, "live strategies keep their cache")

	require.NoError(t, store.Remove(learned.Name))
	caches, ok := d.DomainStats()["caches"].(map[string]any)
	require.True(t, ok)
	assert.Empty(t, caches)
	_, ok = d.learner.stats("env:production", learned.Name)
	assert.False(t, ok)

	// a late call on the removed strategy is served but not retained
	late, err := d.cacheFor(learned)
	require.NoError(t, err)
	assert.NotSame(t, c, late)
	assert.Empty(t, d.caches)

	again := strategy.New("learned", "", Parameters{TTL: time.Minute, MaxSize: 8}.Map(), strategy.ExactKey("env", "production"))
	_, _, err = store.InsertIfAbsent(again)
	require.NoError(t, err)
	fresh, err := d.cacheFor(again)
	require.NoError(t, err)
	_, kind := fresh.get("a")
	assert.Equal(t, MissCold, kind)
}
