package usecase

import "time"

// RetryDecision tells the classify loop whether to try again
type RetryDecision struct {
	ShouldRetry bool
	Delay       time.Duration
}

// RetryPolicy decides retries after a failed classifier attempt.
// attempt is 1-based and counts the attempt that just failed.
type RetryPolicy interface {
	Decide(attempt int, err error) RetryDecision
}

// FixedRetryPolicy allows MaxAttempts attempts with a constant delay between them
type FixedRetryPolicy struct {
	MaxAttempts int
	Delay       time.Duration
}

// DefaultRetryPolicy returns default retry configuration
func DefaultRetryPolicy() FixedRetryPolicy {
	return FixedRetryPolicy{
		MaxAttempts: 2,
		Delay:       1 * time.Second,
	}
}

// Decide implements RetryPolicy
func (p FixedRetryPolicy) Decide(attempt int, err error) RetryDecision {
	if err == nil || attempt >= p.MaxAttempts {
		return RetryDecision{}
	}
	return RetryDecision{ShouldRetry: true, Delay: p.Delay}
}
