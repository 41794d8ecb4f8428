package logging

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/GriffinCanCode/adaptive/internal/domain/events"
)

func TestNewLogger(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"default", DefaultConfig(), false},
		{"development", DevelopmentConfig(), false},
		{"empty level", Config{OutputPaths: []string{"stderr"}}, false},
		{"bad level", Config{Level: "loud"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, err := New(tt.cfg)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, logger.Executor("retry"))
		})
	}
}

func TestParseLevel(t *testing.T) {
	level, err := ParseLevel("warn")
	require.NoError(t, err)
	assert.Equal(t, zapcore.WarnLevel, level)

	level, err = ParseLevel("")
	require.NoError(t, err)
	assert.Equal(t, zapcore.InfoLevel, level)
}

func TestIsProduction(t *testing.T) {
	t.Setenv("ADAPTIVE_ENV", "")
	t.Setenv("ENV", "prod")
	assert.True(t, IsProduction())

	t.Setenv("ADAPTIVE_ENV", "staging")
	assert.False(t, IsProduction())
}

func TestEventSinkLevels(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	sink := NewEventSink(zap.New(core))

	sink.Emit(events.Event{
		Type:         events.TypeExecution,
		Executor:     "retry",
		StrategyName: "baseline",
		ContextKey:   "env:production",
		Success:      false,
		Latency:      2 * time.Millisecond,
		Attempts:     4,
		ErrorType:    "transient",
	})
	sink.Emit(events.Event{
		Type:         events.TypeStrategyPromoted,
		Executor:     "retry",
		StrategyName: "retry@env:production#abcd1234",
		Parameters:   map[string]any{"max_retries": 2},
		ScoreDelta:   0.06,
	})
	sink.Emit(events.Event{
		Type:         events.TypeCircuitStateChanged,
		Executor:     "retry",
		StrategyName: "retry@env:production#abcd1234",
		From:         "closed",
		To:           "open",
	})

	entries := logs.AllUntimed()
	require.Len(t, entries, 3)

	assert.Equal(t, zapcore.DebugLevel, entries[0].Level)
	assert.Equal(t, "execution", entries[0].Message)
	assert.Equal(t, "transient", entries[0].ContextMap()["error_type"])
	assert.Equal(t, 2.0, entries[0].ContextMap()["latency_ms"])

	assert.Equal(t, zapcore.InfoLevel, entries[1].Level)
	assert.Equal(t, 0.06, entries[1].ContextMap()["score_delta"])

	assert.Equal(t, zapcore.WarnLevel, entries[2].Level)
	assert.Equal(t, "open", entries[2].ContextMap()["to"])
}

func TestEventSinkSkipsDisabledLevels(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	sink := NewEventSink(zap.New(core))

	sink.Emit(events.Event{Type: events.TypeExecution, Executor: "cache"})
	assert.Zero(t, logs.Len())
}
