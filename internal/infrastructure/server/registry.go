package server

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/GriffinCanCode/adaptive/internal/adaptive"
	"github.com/GriffinCanCode/adaptive/internal/shared/utils"
)

// Inspectable is the type-erased view of an adaptive executor. Every
// executor in this module satisfies it through the embedded
// *adaptive.Executor.
type Inspectable interface {
	Name() string
	Mode() adaptive.LearningMode
	SetMode(adaptive.LearningMode) (adaptive.LearningMode, error)
	GetStats() adaptive.Stats
	Persist(ctx context.Context) error
}

// Registry holds the executors exposed by the server
type Registry struct {
	mu        sync.RWMutex
	executors map[string]Inspectable
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{executors: make(map[string]Inspectable)}
}

// Register adds an executor. Names must be unique and usable as a path
// segment.
func (r *Registry) Register(e Inspectable) error {
	name := e.Name()
	if err := utils.ValidateExecutorName(name); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.executors[name]; exists {
		return fmt.Errorf("executor %q already registered", name)
	}
	r.executors[name] = e
	return nil
}

// Get returns the named executor
func (r *Registry) Get(name string) (Inspectable, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.executors[name]
	return e, ok
}

// List returns every executor ordered by name
func (r *Registry) List() []Inspectable {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Inspectable, 0, len(r.executors))
	for _, e := range r.executors {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name() < out[j].Name() })
	return out
}

// Len returns the number of registered executors
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.executors)
}

// PersistAll saves the learned strategies of every executor
func (r *Registry) PersistAll(ctx context.Context) error {
	var errs []error
	for _, e := range r.List() {
		if err := e.Persist(ctx); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", e.Name(), err))
		}
	}
	return errors.Join(errs...)
}
