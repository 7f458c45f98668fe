// Package clients provides the HTTP client stack used for upstream
// calls: a tuned transport, bearer-token auth, a token-bucket rate
// limiter, and a circuit breaker.
package clients

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/ajitpratap0/comet/pkg/errors"
	"github.com/ajitpratap0/comet/pkg/metrics"
)

// CircuitState is the state of a circuit breaker.
type CircuitState int32

const (
	// StateClosed allows all requests to pass through.
	StateClosed CircuitState = iota
	// StateOpen blocks all requests until the recovery timeout elapses.
	StateOpen
	// StateHalfOpen allows exactly one trial request.
	StateHalfOpen
)

// String returns the lowercase state name used in logs and metrics.
func (s CircuitState) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

// CircuitBreakerConfig configures failure tolerance.
type CircuitBreakerConfig struct {
	// FailureThreshold is the number of consecutive failures that opens
	// the circuit.
	FailureThreshold int
	// RecoveryTimeout is how long the circuit stays open before one
	// half-open trial is allowed.
	RecoveryTimeout time.Duration
}

// CircuitBreaker fails fast while an upstream dependency is down. It
// opens after FailureThreshold consecutive failures, waits out
// RecoveryTimeout, then admits a single trial call: success closes the
// circuit and resets the counter, failure re-opens it and restarts the
// timer.
type CircuitBreaker struct {
	config CircuitBreakerConfig
	logger *zap.Logger
	entity string

	mu                  sync.Mutex
	state               CircuitState
	consecutiveFailures int
	openedAt            time.Time
	trialInFlight       bool

	// now is swapped in tests to step through the recovery timeout.
	now func() time.Time
}

// NewCircuitBreaker creates a closed circuit breaker. The entity label
// scopes the state gauge so independent streams do not share a circuit.
func NewCircuitBreaker(config CircuitBreakerConfig, entity string, logger *zap.Logger) *CircuitBreaker {
	cb := &CircuitBreaker{
		config: config,
		logger: logger.With(zap.String("component", "circuit_breaker"), zap.String("entity", entity)),
		entity: entity,
		state:  StateClosed,
		now:    time.Now,
	}
	metrics.CircuitState.WithLabelValues(entity).Set(float64(StateClosed))
	return cb
}

// Execute runs fn under circuit breaker protection. When the circuit is
// open the call is short-circuited with a connection error and fn is
// never invoked.
func (cb *CircuitBreaker) Execute(fn func() error) error {
	if !cb.Allow() {
		return errors.New(errors.ErrorTypeConnection, "circuit breaker is open").
			WithEntity(cb.entity).
			WithHint("upstream is failing; wait for the recovery timeout before retrying")
	}

	if err := fn(); err != nil {
		cb.RecordFailure()
		return err
	}

	cb.RecordSuccess()
	return nil
}

// Allow reports whether a request may proceed, transitioning from open
// to half-open once the recovery timeout has elapsed. At most one trial
// request is admitted per half-open period.
func (cb *CircuitBreaker) Allow() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateClosed:
		return true

	case StateOpen:
		if cb.now().Sub(cb.openedAt) < cb.config.RecoveryTimeout {
			return false
		}
		cb.setState(StateHalfOpen)
		cb.trialInFlight = true
		return true

	case StateHalfOpen:
		if cb.trialInFlight {
			return false
		}
		cb.trialInFlight = true
		return true

	default:
		return false
	}
}

// RecordSuccess resets the failure counter. A successful half-open
// trial closes the circuit.
func (cb *CircuitBreaker) RecordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.consecutiveFailures = 0
	cb.trialInFlight = false

	if cb.state == StateHalfOpen {
		cb.setState(StateClosed)
		cb.logger.Info("circuit breaker closed")
	}
}

// RecordFailure counts a failure. Reaching the threshold while closed
// opens the circuit; any half-open trial failure re-opens it and
// restarts the recovery timer.
func (cb *CircuitBreaker) RecordFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateClosed:
		cb.consecutiveFailures++
		if cb.consecutiveFailures >= cb.config.FailureThreshold {
			cb.open()
		}

	case StateHalfOpen:
		cb.trialInFlight = false
		cb.open()
	}
}

// State returns the current circuit state.
func (cb *CircuitBreaker) State() CircuitState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// ConsecutiveFailures returns the current failure streak.
func (cb *CircuitBreaker) ConsecutiveFailures() int {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.consecutiveFailures
}

// open must be called with cb.mu held.
func (cb *CircuitBreaker) open() {
	cb.openedAt = cb.now()
	cb.setState(StateOpen)
	cb.logger.Warn("circuit breaker opened",
		zap.Int("consecutive_failures", cb.consecutiveFailures),
		zap.Duration("recovery_timeout", cb.config.RecoveryTimeout))
}

// setState must be called with cb.mu held.
func (cb *CircuitBreaker) setState(state CircuitState) {
	cb.state = state
	metrics.CircuitState.WithLabelValues(cb.entity).Set(float64(state))
}
