package adaptive

import (
	"fmt"
	"strings"
)

// LearningMode controls how far an executor may deviate from its baseline
type LearningMode int

const (
	// ModeDisabled always runs the baseline and feeds no learner
	ModeDisabled LearningMode = iota
	// ModeObserve runs the baseline and reports candidate strategies only
	ModeObserve
	// ModeValidate gives new strategies a bounded trial before keeping them
	ModeValidate
	// ModeActive selects strategies purely by score
	ModeActive
)

var modeNames = map[LearningMode]string{
	ModeDisabled: "DISABLED",
	ModeObserve:  "OBSERVE",
	ModeValidate: "VALIDATE",
	ModeActive:   "ACTIVE",
}

// String returns the upper-case mode name
func (m LearningMode) String() string {
	if name, ok := modeNames[m]; ok {
		return name
	}
	return fmt.Sprintf("LearningMode(%d)", int(m))
}

// ParseMode parses a mode name, case-insensitively
func ParseMode(s string) (LearningMode, error) {
	for mode, name := range modeNames {
		if strings.EqualFold(strings.TrimSpace(s), name) {
			return mode, nil
		}
	}
	return ModeDisabled, fmt.Errorf("unknown learning mode %q", s)
}

// MarshalText implements encoding.TextMarshaler
func (m LearningMode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler, so modes can be read
// from environment variables and config files
func (m *LearningMode) UnmarshalText(text []byte) error {
	mode, err := ParseMode(string(text))
	if err != nil {
		return err
	}
	*m = mode
	return nil
}

// Valid reports whether m is one of the four defined modes
func (m LearningMode) Valid() bool {
	_, ok := modeNames[m]
	return ok
}

// learns reports whether domain learners are fed
func (m LearningMode) learns() bool {
	return m != ModeDisabled
}

// deviates reports whether non-baseline strategies may serve traffic
func (m LearningMode) deviates() bool {
	return m == ModeValidate || m == ModeActive
}
