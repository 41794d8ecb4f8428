package strategy

import (
	"context"
	"fmt"
	"time"
)

// Persistence is the optional long-term home of learned strategies. Executors
// load on startup and save on promotion; failures are logged, never fatal.
type Persistence interface {
	Load(ctx context.Context, ownerID string) ([]Record, error)
	Save(ctx context.Context, ownerID string, rec Record) error
}

// NopPersistence keeps everything in memory
type NopPersistence struct{}

func (NopPersistence) Load(context.Context, string) ([]Record, error) { return nil, nil }
func (NopPersistence) Save(context.Context, string, Record) error { return nil }

// Record is the serializable form of a Strategy
type Record struct {
	Name        string                     `json:"name"`
	Description string                     `json:"description"`
	Version     int                        `json:"version"`
	Parameters  map[string]any             `json:"parameters"`
	Pattern     string                     `json:"pattern"`
	Metrics     MetricsSnapshot            `json:"metrics"`
	PerContext  map[string]MetricsSnapshot `json:"per_context,omitempty"`
	CreatedAt   time.Time                  `json:"created_at"`
	Validated   bool                       `json:"validated"`
	PriorScore  float64                    `json:"prior_score"`
}

// Record converts the strategy to its serializable form
func (s *Strategy) Record() Record {
	params := make(map[string]any, len(s.Parameters))
	for k, v := range s.Parameters {
		if d, ok := v.(time.Duration); ok {
			params[k] = d.String()
			continue
		}
		params[k] = v
	}
	return Record{
		Name:        s.Name,
		Description: s.Description,
		Version:     s.Version,
		Parameters:  params,
		Pattern:     s.Pattern.String(),
		Metrics:     s.Metrics.Snapshot(),
		PerContext:  s.Metrics.Contexts(),
		CreatedAt:   s.CreatedAt,
		Validated:   s.Validated(),
		PriorScore:  s.PriorScore,
	}
}

// FromRecord rebuilds a strategy, including its metrics
func FromRecord(rec Record) (*Strategy, error) {
	pattern, err := ParsePattern(rec.Pattern)
	if err != nil {
		return nil, fmt.Errorf("record %q: %w", rec.Name, err)
	}
	if rec.Name == "" {
		return nil, fmt.Errorf("record has no name")
	}

	s := New(rec.Name, rec.Description, Parameters(rec.Parameters), pattern)
	if rec.Version > 0 {
		s.Version = rec.Version
	}
	if !rec.CreatedAt.IsZero() {
		s.CreatedAt = rec.CreatedAt
	}
	s.PriorScore = rec.PriorScore
	s.Metrics.Restore(rec.Metrics, rec.PerContext)
	if rec.Validated {
		s.MarkValidated()
		s.decided.Store(true)
	}
	return s, nil
}
