package clients

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ajitpratap0/comet/pkg/errors"
)

func newTestBreaker(threshold int, timeout time.Duration) (*CircuitBreaker, *time.Time) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		FailureThreshold: threshold,
		RecoveryTimeout:  timeout,
	}, "orders", zap.NewNop())

	clock := time.Now()
	cb.now = func() time.Time { return clock }
	return cb, &clock
}

func TestBreakerOpensAtThreshold(t *testing.T) {
	cb, _ := newTestBreaker(3, 30*time.Second)

	// Failures below the threshold keep the circuit closed.
	cb.RecordFailure()
	cb.RecordFailure()
	assert.Equal(t, StateClosed, cb.State())
	assert.True(t, cb.Allow())

	// The threshold failure opens it; the next call short-circuits.
	cb.RecordFailure()
	assert.Equal(t, StateOpen, cb.State())
	assert.False(t, cb.Allow())
}

func TestBreakerSuccessResetsStreak(t *testing.T) {
	cb, _ := newTestBreaker(3, 30*time.Second)

	cb.RecordFailure()
	cb.RecordFailure()
	cb.RecordSuccess()
	assert.Equal(t, 0, cb.ConsecutiveFailures())

	// The streak restarts, so two more failures do not open it.
	cb.RecordFailure()
	cb.RecordFailure()
	assert.Equal(t, StateClosed, cb.State())
}

func TestBreakerHalfOpenSingleTrial(t *testing.T) {
	cb, clock := newTestBreaker(2, 30*time.Second)

	cb.RecordFailure()
	cb.RecordFailure()
	require.Equal(t, StateOpen, cb.State())

	// Still open just before the recovery timeout.
	*clock = clock.Add(29 * time.Second)
	assert.False(t, cb.Allow())

	// After the timeout exactly one trial is admitted.
	*clock = clock.Add(2 * time.Second)
	assert.True(t, cb.Allow())
	assert.Equal(t, StateHalfOpen, cb.State())
	assert.False(t, cb.Allow())
}

func TestBreakerTrialSuccessCloses(t *testing.T) {
	cb, clock := newTestBreaker(2, 30*time.Second)

	cb.RecordFailure()
	cb.RecordFailure()
	*clock = clock.Add(31 * time.Second)
	require.True(t, cb.Allow())

	cb.RecordSuccess()
	assert.Equal(t, StateClosed, cb.State())
	assert.Equal(t, 0, cb.ConsecutiveFailures())
	assert.True(t, cb.Allow())
}

func TestBreakerTrialFailureReopens(t *testing.T) {
	cb, clock := newTestBreaker(2, 30*time.Second)

	cb.RecordFailure()
	cb.RecordFailure()
	*clock = clock.Add(31 * time.Second)
	require.True(t, cb.Allow())

	cb.RecordFailure()
	assert.Equal(t, StateOpen, cb.State())

	// The recovery timer restarted from the trial failure.
	*clock = clock.Add(29 * time.Second)
	assert.False(t, cb.Allow())
	*clock = clock.Add(2 * time.Second)
	assert.True(t, cb.Allow())
}

func TestExecuteShortCircuits(t *testing.T) {
	cb, _ := newTestBreaker(1, time.Minute)

	boom := errors.New(errors.ErrorTypeServer, "boom")
	err := cb.Execute(func() error { return boom })
	require.Error(t, err)

	calls := 0
	err = cb.Execute(func() error {
		calls++
		return nil
	})
	require.Error(t, err)
	assert.Equal(t, 0, calls)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConnection))
	assert.Equal(t, "orders", errors.Entity(err))
}
