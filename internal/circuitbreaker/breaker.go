// Package circuitbreaker provides failure isolation for the advisory
// collaborator: after repeated failures the engine stops calling out
// and serves the conservative fallback until a cooldown elapses.
package circuitbreaker

import (
	"errors"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// ErrOpen is returned by Allow while the circuit is open.
var ErrOpen = errors.New("advisory circuit open")

// State represents the current state of the circuit breaker
type State int

// Circuit breaker states
const (
	StateClosed   State = iota // Normal operation
	StateOpen                  // Tripped, calls short-circuit to the fallback
	StateHalfOpen              // Cooldown elapsed, probing with single requests
)

// String returns a human-readable state name.
func (s State) String() string {
	switch s {
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "closed"
	}
}

// CircuitBreaker tracks consecutive advisory failures. It never retries
// anything itself: each decision still makes at most one advisory
// attempt, the breaker only decides whether that attempt happens at all.
type CircuitBreaker struct {
	// Consecutive failures required to trip the circuit
	failureThreshold int

	// Duration before a tripped circuit allows a probe
	cooldown time.Duration

	// Successful probes required to close the circuit again
	successThreshold int

	// Event callback for monitoring/alerting
	onTrip func(reason string)

	mu          sync.Mutex
	state       State
	failures    int
	successes   int
	lastTrip    time.Time
	lastFailure string
}

// Options configures a CircuitBreaker
type Options struct {
	// FailureThreshold is the number of consecutive failures that trip
	// the circuit (default 3)
	FailureThreshold int

	// Cooldown is how long the circuit stays open before probing
	// (default 5m)
	Cooldown time.Duration

	// SuccessThreshold is the number of successful probes needed to
	// close the circuit (default 1)
	SuccessThreshold int

	// OnTrip is invoked with the failure reason whenever the circuit trips
	OnTrip func(reason string)
}

// New creates a CircuitBreaker with the provided options.
func New(opts Options) *CircuitBreaker {
	if opts.FailureThreshold <= 0 {
		opts.FailureThreshold = 3
	}
	if opts.Cooldown <= 0 {
		opts.Cooldown = 5 * time.Minute
	}
	if opts.SuccessThreshold <= 0 {
		opts.SuccessThreshold = 1
	}
	return &CircuitBreaker{
		failureThreshold: opts.FailureThreshold,
		cooldown:         opts.Cooldown,
		successThreshold: opts.SuccessThreshold,
		onTrip:           opts.OnTrip,
	}
}

// Allow reports whether an advisory attempt may proceed. While open it
// returns ErrOpen until the cooldown elapses, at which point the
// circuit moves to half-open and admits a probe.
func (cb *CircuitBreaker) Allow() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateOpen:
		if time.Since(cb.lastTrip) < cb.cooldown {
			return ErrOpen
		}
		cb.state = StateHalfOpen
		cb.successes = 0
		logrus.Info("Advisory circuit half-open, probing")
		return nil
	default:
		return nil
	}
}

// RecordSuccess notes a successful advisory call.
func (cb *CircuitBreaker) RecordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.failures = 0

	if cb.state == StateHalfOpen {
		cb.successes++
		if cb.successes >= cb.successThreshold {
			cb.state = StateClosed
			logrus.Info("Advisory circuit closed")
		}
	}
}

// RecordFailure notes a failed advisory call and trips the circuit when
// the consecutive-failure threshold is reached. A failure during a
// half-open probe re-opens immediately.
func (cb *CircuitBreaker) RecordFailure(reason string) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.failures++
	cb.lastFailure = reason

	if cb.state == StateHalfOpen || (cb.state == StateClosed && cb.failures >= cb.failureThreshold) {
		cb.trip(reason)
	}
}

// trip opens the circuit. Caller must hold the lock.
func (cb *CircuitBreaker) trip(reason string) {
	cb.state = StateOpen
	cb.lastTrip = time.Now()
	cb.successes = 0
	logrus.Warnf("Advisory circuit tripped: %s", reason)
	if cb.onTrip != nil {
		cb.onTrip(reason)
	}
}

// GetState returns the current state.
func (cb *CircuitBreaker) GetState() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// LastFailure returns the most recent failure reason.
func (cb *CircuitBreaker) LastFailure() string {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.lastFailure
}

// Reset forces the circuit closed and clears failure history.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.state = StateClosed
	cb.failures = 0
	cb.successes = 0
	cb.lastFailure = ""
	logrus.Info("Advisory circuit reset")
}
