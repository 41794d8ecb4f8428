package execution

import (
	"sort"
	"strings"

	"github.com/GriffinCanCode/adaptive/internal/shared/id"
)

// Well-known metadata keys
const (
	KeyEnvironment = "environment"
	KeyPriority    = "priority"
)

// DefaultContextKey is used when a context carries no environment
const DefaultContextKey = "default"

// Context describes the calling environment of one execution.
// It is immutable; Derive returns an extended copy.
type Context struct {
	correlationID string
	metadata      map[string]string
}

// NewContext creates a context with a fresh correlation ID
func NewContext(metadata map[string]string) Context {
	return NewContextWithID(id.NewCorrelationID().String(), metadata)
}

// NewContextWithID creates a context with the given correlation ID.
// An empty ID is replaced by a generated one.
func NewContextWithID(correlationID string, metadata map[string]string) Context {
	if correlationID == "" {
		correlationID = id.NewCorrelationID().String()
	}
	md := make(map[string]string, len(metadata))
	for k, v := range metadata {
		md[k] = v
	}
	return Context{correlationID: correlationID, metadata: md}
}

// CorrelationID returns the correlation identifier
func (c Context) CorrelationID() string {
	return c.correlationID
}

// Get returns a metadata value
func (c Context) Get(key string) (string, bool) {
	v, ok := c.metadata[key]
	return v, ok
}

// Metadata returns a copy of the metadata map
func (c Context) Metadata() map[string]string {
	md := make(map[string]string, len(c.metadata))
	for k, v := range c.metadata {
		md[k] = v
	}
	return md
}

// Derive returns a copy extended with extra metadata. The correlation ID is kept.
func (c Context) Derive(extra map[string]string) Context {
	md := c.Metadata()
	for k, v := range extra {
		md[k] = v
	}
	return Context{correlationID: c.correlationID, metadata: md}
}

// KeyExtractor projects a context onto a normalized context key
type KeyExtractor func(Context) string

// EnvironmentKey is the default extractor: "env:<environment>" or "default".
func EnvironmentKey(c Context) string {
	if env, ok := c.Get(KeyEnvironment); ok && env != "" {
		return "env:" + normalize(env)
	}
	return DefaultContextKey
}

// FieldsKey builds an extractor over the given metadata keys. Segments are
// "<key>:<value>" sorted by key and joined by "|". Missing keys are skipped.
func FieldsKey(keys ...string) KeyExtractor {
	sorted := append([]string(nil), keys...)
	sort.Strings(sorted)

	return func(c Context) string {
		segments := make([]string, 0, len(sorted))
		for _, k := range sorted {
			if v, ok := c.Get(k); ok && v != "" {
				segments = append(segments, normalize(k)+":"+normalize(v))
			}
		}
		if len(segments) == 0 {
			return DefaultContextKey
		}
		return strings.Join(segments, "|")
	}
}

// Segments splits a normalized context key into its "k:v" segments
func Segments(key string) []string {
	if key == "" {
		return nil
	}
	return strings.Split(key, "|")
}

func normalize(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.NewReplacer("|", "_", ":", "_").Replace(s)
}
