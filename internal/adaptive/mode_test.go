package adaptive

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMode(t *testing.T) {
	tests := []struct {
		input   string
		want    LearningMode
		wantErr bool
	}{
		{"DISABLED", ModeDisabled, false},
		{"observe", ModeObserve, false},
		{" Validate ", ModeValidate, false},
		{"active", ModeActive, false},
		{"sometimes", ModeDisabled, true},
		{"", ModeDisabled, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseMode(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestModeText(t *testing.T) {
	text, err := ModeActive.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "ACTIVE", string(text))

	var m LearningMode
	require.NoError(t, m.UnmarshalText([]byte("observe")))
	assert.Equal(t, ModeObserve, m)
	assert.Error(t, m.UnmarshalText([]byte("loud")))
	assert.Equal(t, ModeObserve, m, "a failed parse leaves the mode untouched")

	assert.Equal(t, "LearningMode(9)", LearningMode(9).String())
}

func TestModeCapabilities(t *testing.T) {
	assert.True(t, ModeActive.Valid())
	assert.False(t, LearningMode(-1).Valid())
	assert.False(t, LearningMode(4).Valid())
	assert.False(t, ModeDisabled.learns())
	assert.True(t, ModeObserve.learns())
	assert.False(t, ModeObserve.deviates())
	assert.True(t, ModeValidate.deviates())
	assert.True(t, ModeActive.deviates())
}
