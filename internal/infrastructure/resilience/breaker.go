package resilience

import (
	"errors"
	"sync"
	"time"
)

var (
	ErrCircuitOpen     = errors.New("circuit breaker is open")
	ErrTooManyRequests = errors.New("too many requests")
)

// State represents the circuit breaker state
type State int

const (
	StateClosed State = iota
	StateHalfOpen
	StateOpen
)

// String returns the string representation of the state
func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateHalfOpen:
		return "half-open"
	case StateOpen:
		return "open"
	default:
		return "unknown"
	}
}

// Settings configures the circuit breaker behavior
type Settings struct {
	// MaxRequests is the number of trial requests admitted while half-open
	MaxRequests uint32
	// Window is the number of trailing outcomes the success rate is computed over
	Window int
	// MinRequests is the number of outcomes the window needs before it can trip
	MinRequests int
	// Threshold is the success rate below which the breaker opens
	Threshold float64
	// Cooldown is the period of the open state until transitioning to half-open
	Cooldown time.Duration
	// ReadyToTrip overrides the window rule; it is called after every closed-state outcome
	ReadyToTrip func(counts Counts) bool
	// OnStateChange is called whenever the state changes
	OnStateChange func(name string, from State, to State)
	// Now is the clock; defaults to time.Now
	Now func() time.Time
}

// Counts holds the statistics for the circuit breaker
type Counts struct {
	Requests             uint32
	TotalSuccesses       uint32
	TotalFailures        uint32
	ConsecutiveSuccesses uint32
	ConsecutiveFailures  uint32
	WindowRequests       uint32
	WindowSuccesses      uint32
}

// WindowSuccessRate is the success rate over the trailing window
func (c Counts) WindowSuccessRate() float64 {
	if c.WindowRequests == 0 {
		return 1
	}
	return float64(c.WindowSuccesses) / float64(c.WindowRequests)
}

// Breaker implements the circuit breaker pattern over a trailing window of outcomes
type Breaker struct {
	name     string
	settings Settings

	mu         sync.Mutex
	state      State
	generation uint64
	counts     Counts
	window     []bool
	next       int
	expiry     time.Time
}

// New creates a new circuit breaker with the given settings
func New(name string, settings Settings) *Breaker {
	if settings.MaxRequests == 0 {
		settings.MaxRequests = 1
	}
	if settings.Window <= 0 {
		settings.Window = 20
	}
	if settings.MinRequests <= 0 {
		settings.MinRequests = 5
	}
	if settings.MinRequests > settings.Window {
		settings.MinRequests = settings.Window
	}
	if settings.Threshold == 0 {
		settings.Threshold = 0.5
	}
	if settings.Cooldown == 0 {
		settings.Cooldown = 60 * time.Second
	}
	if settings.Now == nil {
		settings.Now = time.Now
	}
	if settings.ReadyToTrip == nil {
		minRequests, threshold := uint32(settings.MinRequests), settings.Threshold
		settings.ReadyToTrip = func(counts Counts) bool {
			return counts.WindowRequests >= minRequests && counts.WindowSuccessRate() < threshold
		}
	}

	return &Breaker{
		name:     name,
		settings: settings,
		state:    StateClosed,
		window:   make([]bool, 0, settings.Window),
	}
}

// Name returns the name of the circuit breaker
func (b *Breaker) Name() string {
	return b.name
}

// State returns the current state of the circuit breaker
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()

	state, _ := b.currentState(b.settings.Now())
	return state
}

// Counts returns a copy of the internal counts
func (b *Breaker) Counts() Counts {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.counts
}

// Allow reserves a request. On success the caller must report the outcome
// through done exactly once; outcomes from a previous generation are ignored.
func (b *Breaker) Allow() (done func(success bool), err error) {
	generation, err := b.beforeRequest()
	if err != nil {
		return nil, err
	}

	var once sync.Once
	return func(success bool) {
		once.Do(func() { b.afterRequest(generation, success) })
	}, nil
}

// Execute runs the given request if the circuit breaker accepts it
func (b *Breaker) Execute(req func() (any, error)) (any, error) {
	done, err := b.Allow()
	if err != nil {
		return nil, err
	}

	defer func() {
		if e := recover(); e != nil {
			done(false)
			panic(e)
		}
	}()

	result, err := req()
	done(err == nil)
	return result, err
}

// beforeRequest is called before a request is executed
func (b *Breaker) beforeRequest() (uint64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	state, generation := b.currentState(b.settings.Now())

	if state == StateOpen {
		return generation, ErrCircuitOpen
	}

	if state == StateHalfOpen && b.counts.Requests >= b.settings.MaxRequests {
		return generation, ErrTooManyRequests
	}

	b.counts.Requests++
	return generation, nil
}

// afterRequest is called after a request is executed
func (b *Breaker) afterRequest(before uint64, success bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.settings.Now()
	state, generation := b.currentState(now)

	if generation != before {
		return
	}

	if success {
		b.onSuccess(state, now)
	} else {
		b.onFailure(state, now)
	}
}

// onSuccess handles successful requests
func (b *Breaker) onSuccess(state State, now time.Time) {
	b.counts.TotalSuccesses++
	b.counts.ConsecutiveSuccesses++
	b.counts.ConsecutiveFailures = 0

	switch state {
	case StateClosed:
		b.observe(true)
	case StateHalfOpen:
		if b.counts.ConsecutiveSuccesses >= b.settings.MaxRequests {
			b.setState(StateClosed, now)
		}
	}
}

// onFailure handles failed requests
func (b *Breaker) onFailure(state State, now time.Time) {
	switch state {
	case StateClosed:
		b.counts.TotalFailures++
		b.counts.ConsecutiveFailures++
		b.counts.ConsecutiveSuccesses = 0
		b.observe(false)
		if b.settings.ReadyToTrip(b.counts) {
			b.setState(StateOpen, now)
		}
	case StateHalfOpen:
		b.setState(StateOpen, now)
	}
}

// observe pushes an outcome into the trailing window
func (b *Breaker) observe(success bool) {
	if len(b.window) < b.settings.Window {
		b.window = append(b.window, success)
	} else {
		if b.window[b.next] {
			b.counts.WindowSuccesses--
		}
		b.window[b.next] = success
		b.next = (b.next + 1) % b.settings.Window
		b.counts.WindowRequests--
	}

	b.counts.WindowRequests++
	if success {
		b.counts.WindowSuccesses++
	}
}

// currentState returns the current state and generation
func (b *Breaker) currentState(now time.Time) (State, uint64) {
	if b.state == StateOpen && !b.expiry.After(now) {
		b.setState(StateHalfOpen, now)
	}
	return b.state, b.generation
}

// setState changes the state of the circuit breaker
func (b *Breaker) setState(state State, now time.Time) {
	if b.state == state {
		return
	}

	prev := b.state
	b.state = state
	b.generation++

	b.resetCounts()

	switch state {
	case StateOpen:
		b.expiry = now.Add(b.settings.Cooldown)
	default:
		b.expiry = time.Time{}
	}

	if b.settings.OnStateChange != nil {
		b.settings.OnStateChange(b.name, prev, state)
	}
}

// resetCounts resets the internal counts and the trailing window
func (b *Breaker) resetCounts() {
	b.counts = Counts{}
	b.window = b.window[:0]
	b.next = 0
}
