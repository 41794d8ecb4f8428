package strategy

import (
	"fmt"
	"strings"

	"github.com/GriffinCanCode/adaptive/internal/domain/execution"
)

// PatternKind tags a context pattern
type PatternKind int

const (
	PatternAlways PatternKind = iota
	PatternExactKey
	PatternContains
)

// String returns the string representation of the kind
func (k PatternKind) String() string {
	switch k {
	case PatternAlways:
		return "always"
	case PatternExactKey:
		return "exact"
	case PatternContains:
		return "contains"
	default:
		return "unknown"
	}
}

// Pattern decides which context keys a strategy applies to.
//
//   - Always matches every key; only the baseline uses it.
//   - ExactKey(k, v) matches keys having the whole segment "k:v".
//   - Contains(s) matches keys whose full text contains s.
type Pattern struct {
	kind  PatternKind
	field string
	value string
}

// Always returns the match-everything pattern
func Always() Pattern {
	return Pattern{kind: PatternAlways}
}

// ExactKey returns a pattern matching the segment "field:value"
func ExactKey(field, value string) Pattern {
	return Pattern{
		kind:  PatternExactKey,
		field: strings.ToLower(strings.TrimSpace(field)),
		value: strings.ToLower(strings.TrimSpace(value)),
	}
}

// Contains returns a substring pattern
func Contains(substr string) Pattern {
	return Pattern{kind: PatternContains, value: strings.ToLower(substr)}
}

// ForContextKey returns an ExactKey pattern for a single-segment key such as
// "env:production". Multi-segment keys fall back to Contains on the whole key.
func ForContextKey(key string) Pattern {
	segments := execution.Segments(key)
	if len(segments) == 1 {
		if field, value, ok := strings.Cut(segments[0], ":"); ok {
			return ExactKey(field, value)
		}
	}
	return Contains(key)
}

// Kind returns the pattern kind
func (p Pattern) Kind() PatternKind { return p.kind }

// IsAlways reports whether the pattern matches everything
func (p Pattern) IsAlways() bool { return p.kind == PatternAlways }

// Matches evaluates the pattern against a normalized context key
func (p Pattern) Matches(key string) bool {
	switch p.kind {
	case PatternAlways:
		return true
	case PatternExactKey:
		want := p.field + ":" + p.value
		for _, seg := range execution.Segments(key) {
			if seg == want {
				return true
			}
		}
		return false
	case PatternContains:
		return p.value != "" && strings.Contains(key, p.value)
	default:
		return false
	}
}

// Specificity orders patterns for tie-breaking: exact > contains > always
func (p Pattern) Specificity() int {
	switch p.kind {
	case PatternExactKey:
		return 2
	case PatternContains:
		return 1
	default:
		return 0
	}
}

// String returns the canonical form: "" (always), "k:v" (exact), "~s" (contains)
func (p Pattern) String() string {
	switch p.kind {
	case PatternExactKey:
		return p.field + ":" + p.value
	case PatternContains:
		return "~" + p.value
	default:
		return ""
	}
}

// ParsePattern inverts Pattern.String
func ParsePattern(s string) (Pattern, error) {
	switch {
	case s == "":
		return Always(), nil
	case strings.HasPrefix(s, "~"):
		if len(s) == 1 {
			return Pattern{}, fmt.Errorf("empty contains pattern")
		}
		return Contains(s[1:]), nil
	default:
		field, value, ok := strings.Cut(s, ":")
		if !ok || field == "" || value == "" {
			return Pattern{}, fmt.Errorf("pattern %q: expected \"field:value\" or \"~substring\"", s)
		}
		return ExactKey(field, value), nil
	}
}
