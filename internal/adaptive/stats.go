package adaptive

import (
	"time"

	"github.com/GriffinCanCode/adaptive/internal/domain/strategy"
	"github.com/GriffinCanCode/adaptive/internal/infrastructure/resilience"
)

// Stats is a read-only export of an executor's state
type Stats struct {
	Executor   string          `json:"executor"`
	Mode       string          `json:"mode"`
	Baseline   string          `json:"baseline"`
	Strategies []StrategyStats `json:"strategies"`
	Domain     map[string]any  `json:"domain,omitempty"`
}

// StrategyStats describes one strategy
type StrategyStats struct {
	Name        string                              `json:"name"`
	Description string                              `json:"description,omitempty"`
	Version     int                                 `json:"version"`
	Pattern     string                              `json:"pattern"`
	Parameters  map[string]any                      `json:"parameters"`
	Metrics     strategy.MetricsSnapshot            `json:"metrics"`
	PerContext  map[string]strategy.MetricsSnapshot `json:"per_context,omitempty"`
	Score       float64                             `json:"score"`
	Validated   bool                                `json:"validated"`
	Baseline    bool                                `json:"baseline"`
	Breaker     string                              `json:"breaker"`
	CreatedAt   time.Time                           `json:"created_at"`
}

// Strategy returns the stats of the named strategy
func (s Stats) Strategy(name string) (StrategyStats, bool) {
	for _, st := range s.Strategies {
		if st.Name == name {
			return st, true
		}
	}
	return StrategyStats{}, false
}

// Learned returns the stats of every non-baseline strategy
func (s Stats) Learned() []StrategyStats {
	var out []StrategyStats
	for _, st := range s.Strategies {
		if !st.Baseline {
			out = append(out, st)
		}
	}
	return out
}

// GetStats exports the current strategies, metrics and breaker states
func (e *Executor[In, Out]) GetStats() Stats {
	all := e.store.All()
	out := make([]StrategyStats, 0, len(all))
	for _, s := range all {
		rec := s.Record()
		st := StrategyStats{
			Name:        rec.Name,
			Description: rec.Description,
			Version:     rec.Version,
			Pattern:     rec.Pattern,
			Parameters:  rec.Parameters,
			Metrics:     rec.Metrics,
			PerContext:  rec.PerContext,
			Score:       e.effectiveScore(s, ""),
			Validated:   rec.Validated,
			Baseline:    s.IsBaseline(),
			Breaker:     "closed",
			CreatedAt:   rec.CreatedAt,
		}
		if b, ok := e.breakers.Load(s.Name); ok {
			st.Breaker = b.(*resilience.Breaker).State().String()
		}
		out = append(out, st)
	}

	return Stats{
		Executor:   e.opts.Name,
		Mode:       e.Mode().String(),
		Baseline:   strategy.BaselineName,
		Strategies: out,
		Domain:     e.domain.DomainStats(),
	}
}
