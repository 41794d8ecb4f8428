package strategy

import (
	"fmt"
	"sort"
	"strconv"
	"time"
)

// Parameters holds the domain-specific knobs of a strategy.
//
// Getters accept the representations produced by a JSON round trip (numbers
// as float64, durations as strings or nanosecond numbers) so that persisted
// strategies reload without a schema.
type Parameters map[string]any

// Clone returns a shallow copy; slice values are copied too
func (p Parameters) Clone() Parameters {
	out := make(Parameters, len(p))
	for k, v := range p {
		switch vv := v.(type) {
		case []string:
			out[k] = append([]string(nil), vv...)
		case []any:
			out[k] = append([]any(nil), vv...)
		default:
			out[k] = v
		}
	}
	return out
}

// Keys returns the parameter names in sorted order
func (p Parameters) Keys() []string {
	keys := make([]string, 0, len(p))
	for k := range p {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Int returns an integer parameter
func (p Parameters) Int(key string) (int, error) {
	v, ok := p[key]
	if !ok {
		return 0, fmt.Errorf("parameter %q missing", key)
	}
	switch n := v.(type) {
	case int:
		return n, nil
	case int32:
		return int(n), nil
	case int64:
		return int(n), nil
	case uint:
		return int(n), nil
	case uint64:
		return int(n), nil
	case float64:
		if n != float64(int(n)) {
			return 0, fmt.Errorf("parameter %q: %v is not an integer", key, n)
		}
		return int(n), nil
	case string:
		i, err := strconv.Atoi(n)
		if err != nil {
			return 0, fmt.Errorf("parameter %q: %w", key, err)
		}
		return i, nil
	default:
		return 0, fmt.Errorf("parameter %q: unsupported type %T", key, v)
	}
}

// Float returns a floating point parameter
func (p Parameters) Float(key string) (float64, error) {
	v, ok := p[key]
	if !ok {
		return 0, fmt.Errorf("parameter %q missing", key)
	}
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case string:
		f, err := strconv.ParseFloat(n, 64)
		if err != nil {
			return 0, fmt.Errorf("parameter %q: %w", key, err)
		}
		return f, nil
	default:
		return 0, fmt.Errorf("parameter %q: unsupported type %T", key, v)
	}
}

// Bool returns a boolean parameter
func (p Parameters) Bool(key string) (bool, error) {
	v, ok := p[key]
	if !ok {
		return false, fmt.Errorf("parameter %q missing", key)
	}
	switch b := v.(type) {
	case bool:
		return b, nil
	case string:
		parsed, err := strconv.ParseBool(b)
		if err != nil {
			return false, fmt.Errorf("parameter %q: %w", key, err)
		}
		return parsed, nil
	default:
		return false, fmt.Errorf("parameter %q: unsupported type %T", key, v)
	}
}

// Duration returns a duration parameter
func (p Parameters) Duration(key string) (time.Duration, error) {
	v, ok := p[key]
	if !ok {
		return 0, fmt.Errorf("parameter %q missing", key)
	}
	switch d := v.(type) {
	case time.Duration:
		return d, nil
	case string:
		parsed, err := time.ParseDuration(d)
		if err != nil {
			return 0, fmt.Errorf("parameter %q: %w", key, err)
		}
		return parsed, nil
	case float64:
		return time.Duration(d), nil
	case int64:
		return time.Duration(d), nil
	case int:
		return time.Duration(d), nil
	default:
		return 0, fmt.Errorf("parameter %q: unsupported type %T", key, v)
	}
}

// Strings returns a string list parameter
func (p Parameters) Strings(key string) ([]string, error) {
	v, ok := p[key]
	if !ok {
		return nil, fmt.Errorf("parameter %q missing", key)
	}
	switch s := v.(type) {
	case []string:
		return append([]string(nil), s...), nil
	case []any:
		out := make([]string, 0, len(s))
		for i, item := range s {
			str, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("parameter %q[%d]: unsupported type %T", key, i, item)
			}
			out = append(out, str)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("parameter %q: unsupported type %T", key, v)
	}
}

// Canonical renders the parameters deterministically, used for fingerprints
func (p Parameters) Canonical() []string {
	fields := make([]string, 0, len(p))
	for _, k := range p.Keys() {
		fields = append(fields, fmt.Sprintf("%s=%v", k, p[k]))
	}
	return fields
}
