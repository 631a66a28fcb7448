package circuitbreaker

import (
	"errors"
	"sync"
	"time"
)

// ErrOpen is returned by Allow while the breaker is rejecting calls.
var ErrOpen = errors.New("circuit breaker is open")

// State of the breaker.
type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

// Breaker guards a flaky upstream: consecutive failures open the circuit,
// and after a cooling-off period a limited number of probe calls decide
// whether it closes again.
type Breaker struct {
	mu            sync.Mutex
	state         State
	failures      int
	probeSuccess  int
	failLimit     int
	probeLimit    int
	openFor       time.Duration
	lastFailure   time.Time
	onStateChange func(from, to State)
	clock         func() time.Time
}

// Config tunes a Breaker. Zero values fall back to defaults.
type Config struct {
	FailLimit     int           // consecutive failures before opening (default 5)
	ProbeLimit    int           // half-open successes required to close (default 2)
	OpenFor       time.Duration // time spent open before probing (default 30s)
	OnStateChange func(from, to State)
}

func New(cfg Config) *Breaker {
	if cfg.FailLimit <= 0 {
		cfg.FailLimit = 5
	}
	if cfg.ProbeLimit <= 0 {
		cfg.ProbeLimit = 2
	}
	if cfg.OpenFor <= 0 {
		cfg.OpenFor = 30 * time.Second
	}
	return &Breaker{
		state:         StateClosed,
		failLimit:     cfg.FailLimit,
		probeLimit:    cfg.ProbeLimit,
		openFor:       cfg.OpenFor,
		onStateChange: cfg.OnStateChange,
		clock:         time.Now,
	}
}

// Allow reports whether a call may proceed, transitioning open -> half-open
// once the cooling-off period has elapsed.
func (b *Breaker) Allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == StateOpen {
		if b.clock().Sub(b.lastFailure) > b.openFor {
			b.transition(StateHalfOpen)
			return nil
		}
		return ErrOpen
	}
	return nil
}

// RecordSuccess feeds a successful call back into the breaker.
func (b *Breaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures = 0
	if b.state == StateHalfOpen {
		b.probeSuccess++
		if b.probeSuccess >= b.probeLimit {
			b.transition(StateClosed)
		}
	}
}

// RecordFailure feeds a failed call back into the breaker.
func (b *Breaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures++
	b.probeSuccess = 0
	b.lastFailure = b.clock()
	switch {
	case b.state == StateHalfOpen:
		b.transition(StateOpen)
	case b.state == StateClosed && b.failures >= b.failLimit:
		b.transition(StateOpen)
	}
}

// CurrentState returns the breaker state, applying the open -> half-open
// timeout transition if due.
func (b *Breaker) CurrentState() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == StateOpen && b.clock().Sub(b.lastFailure) > b.openFor {
		b.transition(StateHalfOpen)
	}
	return b.state
}

func (b *Breaker) transition(to State) {
	from := b.state
	if from == to {
		return
	}
	b.state = to
	b.probeSuccess = 0
	if to == StateClosed {
		b.failures = 0
	}
	if b.onStateChange != nil {
		b.onStateChange(from, to)
	}
}

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	}
	return "unknown"
}
