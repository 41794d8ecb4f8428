package adaptive

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
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/GriffinCanCode/adaptive/internal/domain/events"
	"github.com/GriffinCanCode/adaptive/internal/domain/execution"
	"github.com/GriffinCanCode/adaptive/internal/domain/strategy"
)

// stubDomain scores strategies by their "level" parameter
type stubDomain struct {
	baseline int
	scores   map[int]float64
	run      func(ctx context.Context, inv *Invocation[string]) Outcome[string]
	propose  func(view LearningView) []Proposal

	proposals atomic.Int64
}

func newStubDomain() *stubDomain {
	return &stubDomain{
		baseline: 1,
		scores:   map[int]float64{0: 0.5, 1: 0.8, 2: 0.9, 3: 0.95},
	}
}

func (d *stubDomain) Name() string { return "stub" }

func (d *stubDomain) Baseline() strategy.Parameters {
	return strategy.Parameters{"level": d.baseline}
}

func (d *stubDomain) ValidateParameters(p strategy.Parameters) error {
	level, err := p.Int("level")
	if err != nil {
		return err
	}
	if level < 0 {
		return execution.NewConfigurationError("level", "must not be negative")
	}
	return nil
}

func (d *stubDomain) Run(ctx context.Context, inv *Invocation[string]) Outcome[string] {
	if d.run != nil {
		return d.run(ctx, inv)
	}
	return Outcome[string]{Value: "ok:" + inv.Input, Attempts: 1}
}

func (d *stubDomain) Score(s *strategy.Strategy, _ strategy.MetricsSnapshot) float64 {
	level, _ := s.Parameters.Int("level")
	return d.scores[level]
}

func (d *stubDomain) ConsiderNewStrategy(view LearningView) []Proposal {
	if d.propose == nil {
		return nil
	}
	out := d.propose(view)
	d.proposals.Add(int64(len(out)))
	return out
}

func (d *stubDomain) DomainStats() map[string]any {
	return map[string]any{"proposals": d.proposals.Load()}
}

// proposeLevel proposes level whenever the baseline serves the context
func proposeLevel(d *stubDomain, level int) func(LearningView) []Proposal {
	return func(view LearningView) []Proposal {
		if !view.Current.IsBaseline() {
			return nil
		}
		return []Proposal{{
			Description:   fmt.Sprintf("level %d", level),
			Parameters:    strategy.Parameters{"level": level},
			Score:         d.scores[level],
			BaselineScore: d.scores[d.baseline],
		}}
	}
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

type memoryPersistence struct {
	mu      sync.Mutex
	records map[string][]strategy.Record
	loadErr error
	saveErr error
	saves   int
}

func (p *memoryPersistence) Load(_ context.Context, owner string) ([]strategy.Record, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.loadErr != nil {
		return nil, p.loadErr
	}
	return p.records[owner], nil
}

func (p *memoryPersistence) Save(_ context.Context, owner string, rec strategy.Record) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.saves++
	if p.saveErr != nil {
		return p.saveErr
	}
	if p.records == nil {
		p.records = make(map[string][]strategy.Record)
	}
	p.records[owner] = append(p.records[owner], rec)
	return nil
}

func testOptions(mode LearningMode, sink events.Sink) Options {
	opts := DefaultOptions("stub-executor")
	opts.Mode = mode
	opts.Sink = sink
	return opts
}

func prod() execution.Context {
	return execution.NewContext(map[string]string{"environment": "production"})
}

func staging() execution.Context {
	return execution.NewContext(map[string]string{"environment": "staging"})
}

func TestNewRejectsInvalidConfiguration(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Options)
	}{
		{"empty name", func(o *Options) { o.Name = "" }},
		{"zero max strategies", func(o *Options) { o.MaxStrategies = 0 }},
		{"zero min observations", func(o *Options) { o.MinObservations = 0 }},
		{"zero validation window", func(o *Options) { o.ValidationWindow = 0 }},
		{"threshold zero", func(o *Options) { o.CircuitBreakerThreshold = 0 }},
		{"threshold above one", func(o *Options) { o.CircuitBreakerThreshold = 1.5 }},
		{"margin of one", func(o *Options) { o.ImprovementMargin = 1 }},
		{"min requests above window", func(o *Options) { o.BreakerMinRequests = o.BreakerWindow + 1 }},
		{"zero cooldown", func(o *Options) { o.BreakerCooldown = 0 }},
		{"unknown mode", func(o *Options) { o.Mode = LearningMode(7) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := DefaultOptions("stub")
			tt.mutate(&opts)

			exec, err := New[string, string](newStubDomain(), opts)
			require.Error(t, err)
			assert.Nil(t, exec)
			assert.ErrorIs(t, err, execution.ErrInvalidConfiguration)

			var cfgErr *execution.ConfigurationError
			assert.ErrorAs(t, err, &cfgErr)
		})
	}
}

func TestNewRejectsNilDomain(t *testing.T) {
	_, err := New[string, string](nil, DefaultOptions("stub"))
	assert.ErrorIs(t, err, execution.ErrInvalidConfiguration)
}

func TestNewRejectsMalformedBaseline(t *testing.T) {
	d := newStubDomain()
	d.baseline = -1

	_, err := New[string, string](d, DefaultOptions("stub"))
	require.Error(t, err)

	var cfgErr *execution.ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "level", cfgErr.Field)
}

func TestBaselinePresentAfterConstruction(t *testing.T) {
	exec, err := New[string, string](newStubDomain(), DefaultOptions("stub"))
	require.NoError(t, err)

	assert.Equal(t, 1, exec.Store().Len())
	baseline := exec.Store().Baseline()
	assert.True(t, baseline.IsBaseline())
	assert.True(t, baseline.Validated())
	assert.Equal(t, "", baseline.Pattern.String())
}

func TestExecuteAlwaysSucceedsInEveryMode(t *testing.T) {
	for _, mode := range []LearningMode{ModeDisabled, ModeObserve, ModeValidate, ModeActive} {
		t.Run(mode.String(), func(t *testing.T) {
			d := newStubDomain()
			d.propose = proposeLevel(d, 2)
			exec, err := New[string, string](d, testOptions(mode, nil))
			require.NoError(t, err)

			for i := 0; i < 30; i++ {
				res := exec.Execute(context.Background(), "in", prod())
				require.True(t, res.Success)
				assert.Equal(t, 1, res.Attempts)
				assert.Equal(t, "ok:in", res.Value)
				assert.NoError(t, res.Err)
				assert.Equal(t, "env:production", res.ContextKey)
				assert.NotEmpty(t, res.CorrelationID)
			}
		})
	}
}

func TestExecuteClampsAttempts(t *testing.T) {
	d := newStubDomain()
	d.run = func(context.Context, *Invocation[string]) Outcome[string] {
		return Outcome[string]{Value: "v"}
	}
	exec, err := New[string, string](d, DefaultOptions("stub"))
	require.NoError(t, err)

	res := exec.Execute(context.Background(), "in", prod())
	assert.Equal(t, 1, res.Attempts)
	assert.Equal(t, uint64(1), exec.Store().Baseline().Metrics.Snapshot().Attempts)
}

func TestExecuteRecoversPanics(t *testing.T) {
	d := newStubDomain()
	d.run = func(context.Context, *Invocation[string]) Outcome[string] {
		panic("boom")
	}
	exec, err := New[string, string](d, DefaultOptions("stub"))
	require.NoError(t, err)

	res := exec.Execute(context.Background(), "in", prod())
	assert.False(t, res.Success)
	assert.Equal(t, execution.ErrorTypePermanent, res.ErrorType)
	assert.ErrorIs(t, res.Err, execution.ErrOperationPanicked)
	assert.Equal(t, strategy.BaselineName, res.StrategyUsed)

	snap := exec.Store().Baseline().Metrics.Snapshot()
	assert.Equal(t, uint64(1), snap.Failures)
}

func TestExecuteClassifiesFailures(t *testing.T) {
	d := newStubDomain()
	d.run = func(context.Context, *Invocation[string]) Outcome[string] {
		return Outcome[string]{Err: &execution.TimeoutError{Timeout: time.Second}, Attempts: 1}
	}
	rec := &events.Recorder{}
	exec, err := New[string, string](d, testOptions(ModeDisabled, rec))
	require.NoError(t, err)

	res := exec.Execute(context.Background(), "in", prod())
	assert.False(t, res.Success)
	assert.Equal(t, execution.ErrorTypeTimeout, res.ErrorType)

	evs := rec.OfType(events.TypeExecution)
	require.Len(t, evs, 1)
	assert.False(t, evs[0].Success)
	assert.Equal(t, execution.ErrorTypeTimeout, evs[0].ErrorType)
	assert.Equal(t, "stub-executor", evs[0].Executor)
	assert.Equal(t, res.CorrelationID, evs[0].CorrelationID)
}

func TestDisabledModeDoesNotLearn(t *testing.T) {
	d := newStubDomain()
	d.propose = proposeLevel(d, 2)

	var sawLearning atomic.Bool
	d.run = func(_ context.Context, inv *Invocation[string]) Outcome[string] {
		if inv.Learning {
			sawLearning.Store(true)
		}
		return Outcome[string]{Value: "v", Attempts: 1}
	}

	exec, err := New[string, string](d, testOptions(ModeDisabled, nil))
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		exec.Execute(context.Background(), "in", prod())
	}
	assert.False(t, sawLearning.Load())
	assert.Equal(t, int64(0), d.proposals.Load())
	assert.Equal(t, 1, exec.Store().Len())
}

func TestObserveReportsCandidatesOnce(t *testing.T) {
	d := newStubDomain()
	d.propose = proposeLevel(d, 2)
	rec := &events.Recorder{}

	exec, err := New[string, string](d, testOptions(ModeObserve, rec))
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		res := exec.Execute(context.Background(), "in", prod())
		assert.Equal(t, strategy.BaselineName, res.StrategyUsed)
	}

	candidates := rec.OfType(events.TypeStrategyCandidate)
	require.Len(t, candidates, 1)
	assert.Equal(t, "env:production", candidates[0].ContextKey)
	assert.InDelta(t, 0.1, candidates[0].ScoreDelta, 1e-9)
	assert.Equal(t, 1, exec.Store().Len())
	assert.Empty(t, rec.OfType(events.TypeStrategyPromoted))
}

func TestActivePromotesProposal(t *testing.T) {
	d := newStubDomain()
	d.propose = proposeLevel(d, 2)
	rec := &events.Recorder{}
	store := &memoryPersistence{}

	opts := testOptions(ModeActive, rec)
	opts.Persistence = store
	exec, err := New[string, string](d, opts)
	require.NoError(t, err)

	first := exec.Execute(context.Background(), "in", prod())
	assert.Equal(t, strategy.BaselineName, first.StrategyUsed)

	promoted := rec.OfType(events.TypeStrategyPromoted)
	require.Len(t, promoted, 1)
	name := promoted[0].StrategyName
	assert.Contains(t, name, "stub-executor@env:production#")
	assert.InDelta(t, 0.1, promoted[0].ScoreDelta, 1e-9)
	assert.EqualValues(t, 2, promoted[0].Parameters["level"])

	learned, ok := exec.Store().Get(name)
	require.True(t, ok)
	assert.True(t, learned.Validated())
	assert.Equal(t, "env:production", learned.Pattern.String())

	second := exec.Execute(context.Background(), "in", prod())
	assert.Equal(t, name, second.StrategyUsed)
	assert.Equal(t, name, exec.SelectStrategy(prod()).Name)

	store.mu.Lock()
	require.Len(t, store.records["stub-executor"], 1)
	assert.Equal(t, name, store.records["stub-executor"][0].Name)
	store.mu.Unlock()

	// Strategies learned for production never serve other contexts
	other := exec.Execute(context.Background(), "in", staging())
	assert.Equal(t, strategy.BaselineName, other.StrategyUsed)
}

func TestActivePromotionIsIdempotentUnderConcurrency(t *testing.T) {
	d := newStubDomain()
	d.propose = func(view LearningView) []Proposal {
		return []Proposal{{
			Parameters:    strategy.Parameters{"level": 2},
			Score:         0.9,
			BaselineScore: 0.8,
		}}
	}
	rec := &events.Recorder{}
	exec, err := New[string, string](d, testOptions(ModeActive, rec))
	require.NoError(t, err)

	const calls = 200
	var wg sync.WaitGroup
	for i := 0; i < calls; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res := exec.Execute(context.Background(), "in", prod())
			assert.True(t, res.Success)
		}()
	}
	wg.Wait()

	assert.Len(t, rec.OfType(events.TypeStrategyPromoted), 1)
	assert.Equal(t, 2, exec.Store().Len())

	var executions uint64
	for _, s := range exec.Store().All() {
		snap := s.Metrics.Snapshot()
		assert.Equal(t, snap.Executions, snap.Successes+snap.Failures)
		assert.GreaterOrEqual(t, snap.SuccessRate(), 0.0)
		assert.LessOrEqual(t, snap.SuccessRate(), 1.0)
		executions += snap.Executions
	}
	assert.Equal(t, uint64(calls), executions)
}

func TestNeverPromotesBelowBaseline(t *testing.T) {
	d := newStubDomain()
	d.run = func(context.Context, *Invocation[string]) Outcome[string] {
		return Outcome[string]{Err: errors.New("down"), Attempts: 1}
	}
	d.propose = func(LearningView) []Proposal {
		return []Proposal{{
			Parameters:    strategy.Parameters{"level": 0},
			Score:         0.5,
			BaselineScore: 0.8,
		}}
	}
	rec := &events.Recorder{}
	exec, err := New[string, string](d, testOptions(ModeActive, rec))
	require.NoError(t, err)

	for i := 0; i < 20; i++ {
		res := exec.Execute(context.Background(), "in", prod())
		assert.False(t, res.Success)
		assert.Equal(t, strategy.BaselineName, res.StrategyUsed)
	}

	assert.Equal(t, 1, exec.Store().Len())
	assert.Empty(t, rec.OfType(events.TypeStrategyPromoted))
	assert.Len(t, rec.OfType(events.TypeStrategyDiscarded), 1)
}

func TestValidateKeepsStrategyThatBeatsBaseline(t *testing.T) {
	d := newStubDomain()
	d.propose = proposeLevel(d, 2)
	rec := &events.Recorder{}

	opts := testOptions(ModeValidate, rec)
	opts.ValidationWindow = 3
	exec, err := New[string, string](d, opts)
	require.NoError(t, err)

	res := exec.Execute(context.Background(), "in", prod())
	assert.Equal(t, strategy.BaselineName, res.StrategyUsed)

	candidates := rec.OfType(events.TypeStrategyCandidate)
	require.Len(t, candidates, 1)
	name := candidates[0].StrategyName
	assert.Equal(t, "validating", candidates[0].Reason)

	for i := 0; i < 3; i++ {
		res := exec.Execute(context.Background(), "in", prod())
		assert.Equal(t, name, res.StrategyUsed)
	}

	promoted := rec.OfType(events.TypeStrategyPromoted)
	require.Len(t, promoted, 1)
	assert.Equal(t, name, promoted[0].StrategyName)

	learned, ok := exec.Store().Get(name)
	require.True(t, ok)
	assert.True(t, learned.Validated())

	res = exec.Execute(context.Background(), "in", prod())
	assert.Equal(t, name, res.StrategyUsed)
}

func TestValidateDiscardsStrategyThatLosesToBaseline(t *testing.T) {
	d := newStubDomain()
	// The proposal overestimates itself; its observed score is 0.5
	d.propose = func(view LearningView) []Proposal {
		if !view.Current.IsBaseline() {
			return nil
		}
		return []Proposal{{
			Parameters:    strategy.Parameters{"level": 0},
			Score:         0.9,
			BaselineScore: 0.8,
		}}
	}
	rec := &events.Recorder{}

	opts := testOptions(ModeValidate, rec)
	opts.ValidationWindow = 3
	exec, err := New[string, string](d, opts)
	require.NoError(t, err)

	for i := 0; i < 10; i++ {
		exec.Execute(context.Background(), "in", prod())
	}

	discarded := rec.OfType(events.TypeStrategyDiscarded)
	require.Len(t, discarded, 1)
	assert.Equal(t, "did not beat baseline", discarded[0].Reason)
	assert.Less(t, discarded[0].ScoreDelta, 0.0)

	// Rejected proposals are not retried
	assert.Len(t, rec.OfType(events.TypeStrategyCandidate), 1)
	assert.Equal(t, 1, exec.Store().Len())
	assert.Empty(t, rec.OfType(events.TypeStrategyPromoted))

	res := exec.Execute(context.Background(), "in", prod())
	assert.Equal(t, strategy.BaselineName, res.StrategyUsed)
}

func TestBreakerBypassesFailingStrategy(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	d := newStubDomain()
	d.propose = proposeLevel(d, 2)
	d.run = func(_ context.Context, inv *Invocation[string]) Outcome[string] {
		if inv.Strategy.IsBaseline() {
			return Outcome[string]{Value: "baseline", Attempts: 1}
		}
		return Outcome[string]{Err: errors.New("learned strategy broken"), Attempts: 1}
	}
	rec := &events.Recorder{}

	opts := testOptions(ModeActive, rec)
	opts.BreakerWindow = 4
	opts.BreakerMinRequests = 2
	opts.BreakerCooldown = time.Minute
	opts.Clock = clock.Now
	exec, err := New[string, string](d, opts)
	require.NoError(t, err)

	exec.Execute(context.Background(), "in", prod())
	promoted := rec.OfType(events.TypeStrategyPromoted)
	require.Len(t, promoted, 1)
	name := promoted[0].StrategyName

	for i := 0; i < 2; i++ {
		res := exec.Execute(context.Background(), "in", prod())
		assert.Equal(t, name, res.StrategyUsed)
		assert.False(t, res.Success)
	}

	// Breaker is open: calls silently use the baseline
	for i := 0; i < 3; i++ {
		res := exec.Execute(context.Background(), "in", prod())
		assert.Equal(t, strategy.BaselineName, res.StrategyUsed)
		assert.True(t, res.Success)
		assert.NoError(t, res.Err)
	}
	assert.Equal(t, strategy.BaselineName, exec.SelectStrategy(prod()).Name)

	stats := exec.GetStats()
	st, ok := stats.Strategy(name)
	require.True(t, ok)
	assert.Equal(t, "open", st.Breaker)

	// After the cooldown one trial goes to the learned strategy
	clock.Advance(time.Minute + time.Second)
	res := exec.Execute(context.Background(), "in", prod())
	assert.Equal(t, name, res.StrategyUsed)

	res = exec.Execute(context.Background(), "in", prod())
	assert.Equal(t, strategy.BaselineName, res.StrategyUsed)

	var transitions []string
	for _, ev := range rec.OfType(events.TypeCircuitStateChanged) {
		if ev.StrategyName == name {
			transitions = append(transitions, ev.From+"->"+ev.To)
		}
	}
	assert.Equal(t, []string{"closed->open", "open->half-open", "half-open->open"}, transitions)
}

func TestEvictionThroughLearning(t *testing.T) {
	d := newStubDomain()
	scores := map[string]float64{"env:a": 0.85, "env:b": 0.9, "env:c": 0.95}
	d.propose = func(view LearningView) []Proposal {
		if !view.Current.IsBaseline() {
			return nil
		}
		return []Proposal{{
			Parameters:    strategy.Parameters{"level": 2},
			Score:         scores[view.ContextKey],
			BaselineScore: 0.8,
		}}
	}
	rec := &events.Recorder{}

	opts := testOptions(ModeActive, rec)
	opts.MaxStrategies = 2
	exec, err := New[string, string](d, opts)
	require.NoError(t, err)

	for _, env := range []string{"a", "b", "c"} {
		exec.Execute(context.Background(), "in", execution.NewContext(map[string]string{"environment": env}))
	}

	evicted := rec.OfType(events.TypeStrategyEvicted)
	require.Len(t, evicted, 1)
	assert.Contains(t, evicted[0].StrategyName, "@env:a#")
	assert.Equal(t, 3, exec.Store().Len())
	assert.Equal(t, strategy.BaselineName, exec.Store().Baseline().Name)
}

func TestRestoresPersistedStrategies(t *testing.T) {
	learned := strategy.New("stub-executor@env:production#restored", "restored", strategy.Parameters{"level": 2}, strategy.ExactKey("env", "production"))
	learned.MarkValidated()
	learned.PriorScore = 0.9

	invalid := strategy.New("invalid", "", strategy.Parameters{"level": -3}, strategy.ExactKey("env", "production"))
	malformed := learned.Record()
	malformed.Name = "malformed"
	malformed.Pattern = "no-colon"

	store := &memoryPersistence{records: map[string][]strategy.Record{
		"stub-executor": {learned.Record(), invalid.Record(), malformed},
	}}

	core, logs := observer.New(zap.WarnLevel)
	opts := testOptions(ModeActive, nil)
	opts.Persistence = store
	opts.Logger = zap.New(core)

	exec, err := New[string, string](newStubDomain(), opts)
	require.NoError(t, err)

	assert.Equal(t, 2, exec.Store().Len())
	assert.Equal(t, 1, logs.FilterMessage("skipping strategy with invalid parameters").Len())
	assert.Equal(t, 1, logs.FilterMessage("skipping malformed strategy record").Len())

	res := exec.Execute(context.Background(), "in", prod())
	assert.Equal(t, learned.Name, res.StrategyUsed)
}

func TestPersistenceFailuresAreNotFatal(t *testing.T) {
	d := newStubDomain()
	d.propose = proposeLevel(d, 2)
	store := &memoryPersistence{
		loadErr: errors.New("disk gone"),
		saveErr: errors.New("disk gone"),
	}

	core, logs := observer.New(zap.WarnLevel)
	opts := testOptions(ModeActive, nil)
	opts.Persistence = store
	opts.Logger = zap.New(core)

	exec, err := New[string, string](d, opts)
	require.NoError(t, err)
	assert.Equal(t, 1, logs.FilterMessage("failed to load persisted strategies").Len())

	res := exec.Execute(context.Background(), "in", prod())
	assert.True(t, res.Success)
	assert.Equal(t, 2, exec.Store().Len())
	assert.Equal(t, 1, logs.FilterMessage("failed to persist strategy").Len())

	err = exec.Persist(context.Background())
	assert.ErrorContains(t, err, "disk gone")
}

func TestPersistSavesValidatedStrategies(t *testing.T) {
	d := newStubDomain()
	d.propose = proposeLevel(d, 2)
	store := &memoryPersistence{}

	opts := testOptions(ModeActive, nil)
	opts.Persistence = store
	opts.OwnerID = "owner-1"
	exec, err := New[string, string](d, opts)
	require.NoError(t, err)

	exec.Execute(context.Background(), "in", prod())
	require.NoError(t, exec.Persist(context.Background()))

	store.mu.Lock()
	defer store.mu.Unlock()
	assert.Len(t, store.records["owner-1"], 2)
	assert.Equal(t, 2, store.saves)
}

func TestGetStats(t *testing.T) {
	d := newStubDomain()
	d.propose = proposeLevel(d, 2)
	exec, err := New[string, string](d, testOptions(ModeActive, nil))
	require.NoError(t, err)

	exec.Execute(context.Background(), "in", prod())
	exec.Execute(context.Background(), "in", prod())

	stats := exec.GetStats()
	assert.Equal(t, "stub-executor", stats.Executor)
	assert.Equal(t, "ACTIVE", stats.Mode)
	assert.Equal(t, strategy.BaselineName, stats.Baseline)
	require.Len(t, stats.Strategies, 2)
	assert.Equal(t, int64(1), stats.Domain["proposals"])

	baseline, ok := stats.Strategy(strategy.BaselineName)
	require.True(t, ok)
	assert.True(t, baseline.Baseline)
	assert.Equal(t, uint64(1), baseline.Metrics.Executions)
	assert.Equal(t, "closed", baseline.Breaker)
	assert.InDelta(t, 0.8, baseline.Score, 1e-9)

	learned := stats.Learned()
	require.Len(t, learned, 1)
	assert.True(t, learned[0].Validated)
	assert.Equal(t, "env:production", learned[0].Pattern)
	assert.Equal(t, uint64(1), learned[0].PerContext["env:production"].Executions)
	assert.InDelta(t, 0.9, learned[0].Score, 1e-9)
	assert.Equal(t, 1, learned[0].Version)
}

func TestSetModeKeepsLearnedStrategies(t *testing.T) {
	d := newStubDomain()
	d.propose = proposeLevel(d, 2)
	exec, err := New[string, string](d, testOptions(ModeActive, nil))
	require.NoError(t, err)

	exec.Execute(context.Background(), "in", prod())
	learnedName := exec.SelectStrategy(prod()).Name
	require.NotEqual(t, strategy.BaselineName, learnedName)

	prev, err := exec.SetMode(ModeDisabled)
	require.NoError(t, err)
	assert.Equal(t, ModeActive, prev)
	assert.Equal(t, ModeDisabled, exec.Mode())
	assert.Equal(t, strategy.BaselineName, exec.SelectStrategy(prod()).Name)
	assert.Equal(t, 2, exec.Store().Len())

	prev, err = exec.SetMode(ModeActive)
	require.NoError(t, err)
	assert.Equal(t, ModeDisabled, prev)
	assert.Equal(t, learnedName, exec.SelectStrategy(prod()).Name)
}

func TestSetModeRejectsUnknownModes(t *testing.T) {
	exec, err := New[string, string](newStubDomain(), testOptions(ModeObserve, nil))
	require.NoError(t, err)

	prev, err := exec.SetMode(LearningMode(7))
	var cfgErr *execution.ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, ModeObserve, prev)
	assert.Equal(t, ModeObserve, exec.Mode())
}

func TestLearnIntervalRateLimitsPasses(t *testing.T) {
	d := newStubDomain()
	var passes atomic.Int64
	d.propose = func(LearningView) []Proposal {
		passes.Add(1)
		return nil
	}

	opts := testOptions(ModeObserve, nil)
	opts.LearnInterval = time.Hour
	exec, err := New[string, string](d, opts)
	require.NoError(t, err)

	for i := 0; i < 10; i++ {
		exec.Execute(context.Background(), "in", prod())
	}
	assert.Equal(t, int64(1), passes.Load())
}
