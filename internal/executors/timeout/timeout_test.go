package timeout

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/GriffinCanCode/adaptive/internal/adaptive"
	"github.com/GriffinCanCode/adaptive/internal/domain/events"
	"github.com/GriffinCanCode/adaptive/internal/domain/execution"
	"github.com/GriffinCanCode/adaptive/internal/domain/strategy"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func prod() execution.Context {
	return execution.NewContext(map[string]string{"environment": "production"})
}

// sleeper returns after d, or earlier with ctx.Err() when ctx is done
func sleeper(d time.Duration) execution.Operation[string, string] {
	return func(ctx context.Context, in string, _ execution.Context) (string, error) {
		timer := time.NewTimer(d)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-timer.C:
			return "done:" + in, nil
		}
	}
}

func testConfig(mode adaptive.LearningMode, timeout time.Duration) Config {
	cfg := DefaultConfig("timeout-test")
	cfg.Mode = mode
	cfg.Baseline.Timeout = timeout
	return cfg
}

func TestFinishesWithinTimeout(t *testing.T) {
	exec, err := New[string, string](sleeper(time.Millisecond), testConfig(adaptive.ModeDisabled, time.Second))
	require.NoError(t, err)

	res := exec.Execute(context.Background(), "a", prod())
	require.True(t, res.Success)
	assert.Equal(t, "done:a", res.Value)
	assert.Equal(t, 1, res.Attempts)

	ms, ok := res.Annotation(ParamTimeoutMs)
	require.True(t, ok)
	assert.Equal(t, 1000, ms)
}

func TestTimeoutIsDistinctFromFailure(t *testing.T) {
	exec, err := New[string, string](sleeper(time.Hour), testConfig(adaptive.ModeDisabled, 20*time.Millisecond))
	require.NoError(t, err)

	res := exec.Execute(context.Background(), "a", prod())
	require.False(t, res.Success)
	assert.Equal(t, execution.ErrorTypeTimeout, res.ErrorType)

	var timeoutErr *execution.TimeoutError
	require.ErrorAs(t, res.Err, &timeoutErr)
	assert.Equal(t, 20*time.Millisecond, timeoutErr.Timeout)
	assert.ErrorIs(t, res.Err, execution.ErrTimeout)

	failing := func(context.Context, string, execution.Context) (string, error) {
		return "", execution.Permanent(errors.New("bad request"))
	}
	exec, err = New[string, string](failing, testConfig(adaptive.ModeDisabled, 20*time.Millisecond))
	require.NoError(t, err)

	res = exec.Execute(context.Background(), "a", prod())
	require.False(t, res.Success)
	assert.Equal(t, execution.ErrorTypePermanent, res.ErrorType)
}

func TestCallerCancellation(t *testing.T) {
	exec, err := New[string, string](sleeper(time.Hour), testConfig(adaptive.ModeDisabled, time.Minute))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(10*time.Millisecond, cancel)

	res := exec.Execute(ctx, "a", prod())
	require.False(t, res.Success)
	assert.Equal(t, execution.ErrorTypeCanceled, res.ErrorType)
	assert.ErrorIs(t, res.Err, context.Canceled)

	canceled, _ := res.Annotation("canceled")
	assert.Equal(t, true, canceled)
}

func TestRecoversPanicsInOperation(t *testing.T) {
	op := func(context.Context, string, execution.Context) (string, error) {
		panic("boom")
	}
	exec, err := New[string, string](op, testConfig(adaptive.ModeDisabled, time.Second))
	require.NoError(t, err)

	res := exec.Execute(context.Background(), "a", prod())
	require.False(t, res.Success)
	assert.Equal(t, execution.ErrorTypePermanent, res.ErrorType)
	assert.ErrorIs(t, res.Err, execution.ErrOperationPanicked)
}

func TestNewRejectsInvalidConfiguration(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"timeout below minimum", func(c *Config) { c.Baseline.Timeout = time.Millisecond }},
		{"timeout above maximum", func(c *Config) { c.Baseline.Timeout = time.Hour }},
		{"buffer below one", func(c *Config) { c.Baseline.BufferFactor = 0.5 }},
		{"percentile above one", func(c *Config) { c.Baseline.PercentileTarget = 1.5 }},
		{"max below min", func(c *Config) { c.MaxTimeout = time.Millisecond }},
		{"empty window", func(c *Config) { c.SampleWindow = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig("timeout-test")
			tt.mutate(&cfg)
			_, err := New[string, string](sleeper(0), cfg)
			require.Error(t, err)

			var cfgErr *execution.ConfigurationError
			assert.ErrorAs(t, err, &cfgErr)
		})
	}

	_, err := New[string, string](nil, DefaultConfig("timeout-test"))
	assert.Error(t, err)
}

func TestParametersRoundTrip(t *testing.T) {
	p := Parameters{Timeout: 250 * time.Millisecond, BufferFactor: 2, PercentileTarget: 0.99}

	// persisted parameters come back as float64 numbers
	sp := strategy.Parameters{
		ParamTimeoutMs:        float64(250),
		ParamBufferFactor:     float64(2),
		ParamPercentileTarget: 0.99,
	}
	parsed, err := ParseParameters(sp)
	require.NoError(t, err)
	assert.Equal(t, p, parsed)

	parsed, err = ParseParameters(p.Map())
	require.NoError(t, err)
	assert.Equal(t, p, parsed)
}

func TestLatencyQuantiles(t *testing.T) {
	l := newLearner(100)
	for i := 1; i <= 10; i++ {
		l.observe("env:production", time.Duration(i)*time.Millisecond, false)
	}
	l.observe("env:production", 50*time.Millisecond, true)

	v := l.latencies("env:production")
	assert.Equal(t, 11, v.total)
	assert.Equal(t, 1, v.timeouts)
	assert.Equal(t, 6*time.Millisecond, v.quantile(0.5))
	// the timed out call counts at the timeout that cut it off
	assert.Equal(t, 50*time.Millisecond, v.quantile(1))

	assert.InDelta(t, 5.0/11.0, v.predictedSuccess(5*time.Millisecond), 1e-9)
	assert.InDelta(t, 10.0/11.0, v.predictedSuccess(50*time.Millisecond), 1e-9)
	assert.InDelta(t, 1.0, v.predictedSuccess(time.Hour), 1e-9)
	assert.Zero(t, l.latencies("env:staging").predictedSuccess(time.Second))
}

func TestTimedOutCallsOnlyFinishBeyondEveryBound(t *testing.T) {
	l := newLearner(100)
	l.observe("default", 30*time.Millisecond, true)
	l.observe("default", 45*time.Millisecond, true)
	l.observe("default", 20*time.Millisecond, false)

	v := l.latencies("default")
	assert.Equal(t, []float64{20, 30, 45}, v.observed)
	assert.Equal(t, 45.0, v.bound)
	assert.InDelta(t, 1.0/3.0, v.predictedSuccess(40*time.Millisecond), 1e-9)
	assert.InDelta(t, 1.0/3.0, v.predictedSuccess(45*time.Millisecond), 1e-9)
	assert.InDelta(t, 1.0, v.predictedSuccess(46*time.Millisecond), 1e-9)
}

func TestLatencyWindowIsBounded(t *testing.T) {
	l := newLearner(5)
	for i := range 12 {
		l.observe("default", time.Duration(i)*time.Millisecond, false)
	}
	v := l.latencies("default")
	assert.Equal(t, 5, v.total)
	assert.Equal(t, []float64{7, 8, 9, 10, 11}, v.completed)
}

func TestAlwaysSucceedingOperationUsesOneAttempt(t *testing.T) {
	for _, mode := range []adaptive.LearningMode{adaptive.ModeDisabled, adaptive.ModeObserve, adaptive.ModeValidate, adaptive.ModeActive} {
		t.Run(mode.String(), func(t *testing.T) {
			exec, err := New[string, string](sleeper(0), testConfig(mode, time.Second))
			require.NoError(t, err)

			for range 20 {
				res := exec.Execute(context.Background(), "a", prod())
				require.True(t, res.Success)
				assert.Equal(t, 1, res.Attempts)
			}
		})
	}
}

func TestLearnsTighterTimeout(t *testing.T) {
	rec := &events.Recorder{}
	cfg := testConfig(adaptive.ModeActive, 30*time.Second)
	cfg.Sink = rec
	cfg.Baseline.BufferFactor = 3
	cfg.MinTimeout = 50 * time.Millisecond

	exec, err := New[string, string](sleeper(5*time.Millisecond), cfg)
	require.NoError(t, err)

	for range 10 {
		require.True(t, exec.Execute(context.Background(), "a", prod()).Success)
	}

	promoted := rec.OfType(events.TypeStrategyPromoted)
	require.Len(t, promoted, 1)
	ms, ok := promoted[0].Parameters[ParamTimeoutMs].(int)
	require.True(t, ok)
	assert.GreaterOrEqual(t, ms, 50)
	assert.Less(t, ms, 30_000)
	assert.Equal(t, 3.0, promoted[0].Parameters[ParamBufferFactor])

	res := exec.Execute(context.Background(), "a", prod())
	assert.Equal(t, promoted[0].StrategyName, res.StrategyUsed)

	contexts, ok := exec.GetStats().Domain["contexts"].(map[string]any)
	require.True(t, ok)
	assert.Contains(t, contexts, "env:production")
}

func TestDisabledModeDoesNotFeedLearner(t *testing.T) {
	exec, err := New[string, string](sleeper(0), testConfig(adaptive.ModeDisabled, time.Second))
	require.NoError(t, err)

	for range 20 {
		exec.Execute(context.Background(), "a", prod())
	}
	contexts, ok := exec.GetStats().Domain["contexts"].(map[string]any)
	require.True(t, ok)
	assert.Empty(t, contexts)
}

func TestLearnsLooserTimeoutWhenEveryCallTimesOut(t *testing.T) {
	rec := &events.Recorder{}
	cfg := testConfig(adaptive.ModeActive, 30*time.Millisecond)
	cfg.Sink = rec
	cfg.Baseline.BufferFactor = 3

	exec, err := New[string, string](sleeper(60*time.Millisecond), cfg)
	require.NoError(t, err)

	for range 10 {
		res := exec.Execute(context.Background(), "a", prod())
		require.False(t, res.Success)
		require.Equal(t, execution.ErrorTypeTimeout, res.ErrorType)
	}

	promoted := rec.OfType(events.TypeStrategyPromoted)
	require.Len(t, promoted, 1)
	ms, ok := promoted[0].Parameters[ParamTimeoutMs].(int)
	require.True(t, ok)
	assert.Greater(t, ms, 60)

	res := exec.Execute(context.Background(), "a", prod())
	require.True(t, res.Success)
	assert.Equal(t, "done:a", res.Value)
	assert.Equal(t, promoted[0].StrategyName, res.StrategyUsed)
}
