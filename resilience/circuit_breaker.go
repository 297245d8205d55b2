// Package resilience holds worker-health protection that sits in front of
// the pipeline's per-kind worker invocations, independent of a single
// Point's retry policy.
package resilience

import (
	"sync"
	"time"

	"k8s.io/utils/clock"

	"github.com/waypointcast/tourguide/observability"
)

// State is the circuit breaker's three-way state.
type State int

const (
	Closed State = iota
	HalfOpen
	Open
)

func (s State) String() string {
	switch s {
	case Closed:
		return "closed"
	case HalfOpen:
		return "half_open"
	case Open:
		return "open"
	default:
		return "unknown"
	}
}

// CircuitBreaker trips on a run of consecutive failures from a single
// WorkerKind rather than on queue depth or pool saturation: this one
// protects a Point's Smart Queue from spending its whole hard deadline
// waiting on a worker kind whose upstream is already down.
type CircuitBreaker struct {
	mu sync.Mutex

	clk  clock.Clock
	name string // metric label, typically the worker kind

	failureThreshold int
	cooldown         time.Duration
	testLimit        int

	state            State
	consecutiveFails int
	openedAt         time.Time
	testCount        int
}

// NewCircuitBreaker creates a breaker that opens after failureThreshold
// consecutive failures and stays open for cooldown before admitting test
// traffic again. name labels the tourguide_worker_circuit_state metric.
func NewCircuitBreaker(clk clock.Clock, name string, failureThreshold int, cooldown time.Duration) *CircuitBreaker {
	cb := &CircuitBreaker{
		clk:              clk,
		name:             name,
		failureThreshold: failureThreshold,
		cooldown:         cooldown,
		testLimit:        3,
		state:            Closed,
	}
	observability.CircuitState.WithLabelValues(name).Set(float64(Closed))
	return cb
}

func (cb *CircuitBreaker) setState(s State) {
	cb.state = s
	observability.CircuitState.WithLabelValues(cb.name).Set(float64(s))
}

// Allow reports whether a new invocation should be admitted, transitioning
// Open -> HalfOpen once cooldown has elapsed.
func (cb *CircuitBreaker) Allow() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state == Open && cb.clk.Since(cb.openedAt) > cb.cooldown {
		cb.setState(HalfOpen)
		cb.testCount = 0
	}

	switch cb.state {
	case Open:
		return false
	case HalfOpen:
		if cb.testCount < cb.testLimit {
			cb.testCount++
			return true
		}
		return false
	default:
		return true
	}
}

// RecordSuccess clears the consecutive-failure count and, if enough test
// requests have passed in half-open state, closes the circuit.
func (cb *CircuitBreaker) RecordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.consecutiveFails = 0
	if cb.state == HalfOpen && cb.testCount >= cb.testLimit {
		cb.setState(Closed)
	}
}

// RecordFailure increments the consecutive-failure count, opening the
// circuit once failureThreshold is reached (or immediately re-opening it
// if a failure lands while half-open).
func (cb *CircuitBreaker) RecordFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state == HalfOpen {
		cb.setState(Open)
		cb.openedAt = cb.clk.Now()
		cb.testCount = 0
		return
	}

	cb.consecutiveFails++
	if cb.consecutiveFails >= cb.failureThreshold {
		cb.setState(Open)
		cb.openedAt = cb.clk.Now()
	}
}

// State returns the current state.
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}
