package stream

import (
	"math/rand"
	"time"

	"github.com/ajitpratap0/comet/pkg/config"
)

// RetryPolicy computes bounded exponential backoff with jitter for
// transient page-fetch failures.
type RetryPolicy struct {
	MaxAttempts  int
	InitialDelay time.Duration
	Multiplier   float64
	MaxDelay     time.Duration
}

// NewRetryPolicy builds a policy from the reliability config section.
func NewRetryPolicy(cfg *config.ReliabilityConfig) *RetryPolicy {
	return &RetryPolicy{
		MaxAttempts:  cfg.RetryAttempts,
		InitialDelay: cfg.RetryDelay,
		Multiplier:   cfg.RetryMultiplier,
		MaxDelay:     cfg.MaxRetryDelay,
	}
}

// Delay returns the backoff before retry number attempt (1-based),
// capped at MaxDelay, with up to 25% jitter to avoid synchronized
// retries.
func (p *RetryPolicy) Delay(attempt int) time.Duration {
	delay := float64(p.InitialDelay)
	for i := 1; i < attempt; i++ {
		delay *= p.Multiplier
		if delay >= float64(p.MaxDelay) {
			delay = float64(p.MaxDelay)
			break
		}
	}

	jitter := delay * 0.25 * rand.Float64()
	d := time.Duration(delay + jitter)
	if d > p.MaxDelay {
		d = p.MaxDelay
	}
	return d
}

// Exhausted reports whether the retry budget is spent after the given
// number of attempts.
func (p *RetryPolicy) Exhausted(attempt int) bool {
	return attempt >= p.MaxAttempts
}
