package stream

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/ajitpratap0/comet/pkg/config"
)

func testPolicy() *RetryPolicy {
	return &RetryPolicy{
		MaxAttempts:  5,
		InitialDelay: 100 * time.Millisecond,
		Multiplier:   2.0,
		MaxDelay:     time.Second,
	}
}

func TestDelayGrowsExponentially(t *testing.T) {
	p := testPolicy()

	// Each attempt's delay falls in [base, base*1.25) from jitter.
	assert.GreaterOrEqual(t, p.Delay(1), 100*time.Millisecond)
	assert.Less(t, p.Delay(1), 125*time.Millisecond)
	assert.GreaterOrEqual(t, p.Delay(2), 200*time.Millisecond)
	assert.Less(t, p.Delay(2), 250*time.Millisecond)
	assert.GreaterOrEqual(t, p.Delay(3), 400*time.Millisecond)
	assert.Less(t, p.Delay(3), 500*time.Millisecond)
}

func TestDelayCapped(t *testing.T) {
	p := testPolicy()

	for attempt := 4; attempt <= 10; attempt++ {
		assert.LessOrEqual(t, p.Delay(attempt), time.Second)
	}
}

func TestExhausted(t *testing.T) {
	p := testPolicy()

	assert.False(t, p.Exhausted(4))
	assert.True(t, p.Exhausted(5))
	assert.True(t, p.Exhausted(6))
}

func TestNewRetryPolicyFromConfig(t *testing.T) {
	cfg := config.NewConfig()
	p := NewRetryPolicy(&cfg.Reliability)

	assert.Equal(t, cfg.Reliability.RetryAttempts, p.MaxAttempts)
	assert.Equal(t, cfg.Reliability.RetryDelay, p.InitialDelay)
}
