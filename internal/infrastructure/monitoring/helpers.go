package monitoring

import (
	"context"

	"github.com/GriffinCanCode/adaptive/internal/domain/strategy"
)

// Snapshot returns the current values for the JSON API
func (m *Metrics) Snapshot() MetricsSnapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.snapshot
}

// AvgLatency returns the mean execution latency in seconds
func (s MetricsSnapshot) AvgLatency() float64 {
	if s.TotalExecutions == 0 {
		return 0
	}
	return s.TotalLatency / float64(s.TotalExecutions)
}

// instrumentedPersistence times every call of the wrapped persistence
type instrumentedPersistence struct {
	next    strategy.Persistence
	metrics *Metrics
	backend string
}

// InstrumentPersistence wraps p so that Load and Save are counted and timed
func InstrumentPersistence(p strategy.Persistence, metrics *Metrics, backend string) strategy.Persistence {
	return &instrumentedPersistence{next: p, metrics: metrics, backend: backend}
}

func (p *instrumentedPersistence) Load(ctx context.Context, ownerID string) ([]strategy.Record, error) {
	timer := NewTimer(p.metrics, p.backend, "load")
	records, err := p.next.Load(ctx, ownerID)
	timer.Stop(status(err))
	return records, err
}

func (p *instrumentedPersistence) Save(ctx context.Context, ownerID string, rec strategy.Record) error {
	timer := NewTimer(p.metrics, p.backend, "save")
	err := p.next.Save(ctx, ownerID, rec)
	timer.Stop(status(err))
	return err
}

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
