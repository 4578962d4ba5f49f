package parser

import (
	"context"
	"errors"
	"time"
)

// Fallback is the message-level inference stage, consulted only when the
// pattern stage yields nothing for the whole message. Implementations may be
// wrong, slow or empty; callers bound each attempt with a timeout and retry
// transient failures per a RetryPolicy.
type Fallback interface {
	Infer(ctx context.Context, text string) ([]Candidate, error)
}

var (
	// ErrRateLimited signals a transient quota condition worth retrying.
	ErrRateLimited = errors.New("fallback rate limited")
	// ErrUnavailable signals the fallback cannot be reached.
	ErrUnavailable = errors.New("fallback unavailable")
	// ErrMalformedResponse signals an unusable reply; retrying will not help.
	ErrMalformedResponse = errors.New("fallback returned malformed response")
)

// RetryPolicy bounds fallback retries with exponential backoff.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// Delay returns the backoff to wait before retry number attempt (1-based,
// counted after the first failed call).
func (p RetryPolicy) Delay(attempt int) time.Duration {
	d := p.BaseDelay
	if d <= 0 {
		d = time.Second
	}
	for i := 1; i < attempt; i++ {
		d *= 2
		if p.MaxDelay > 0 && d >= p.MaxDelay {
			return p.MaxDelay
		}
	}
	if p.MaxDelay > 0 && d > p.MaxDelay {
		return p.MaxDelay
	}
	return d
}
