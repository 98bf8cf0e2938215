// Package retry runs operations again after transient failures, with
// exponential backoff between attempts.
package retry

import (
	"context"
	"errors"
	"fmt"
	"time"
)

const (
	defaultAttempts   = 5
	defaultDelay      = time.Second
	defaultMaxDelay   = 30 * time.Second
	defaultMultiplier = 2.0
)

// Option adjusts retry behavior.
type Option func(*settings)

type settings struct {
	attempts   int
	delay      time.Duration
	maxDelay   time.Duration
	multiplier float64
}

// Attempts sets the total number of attempts (including the first).
func Attempts(n int) Option {
	return func(s *settings) { s.attempts = n }
}

// Delay sets the initial backoff delay.
func Delay(d time.Duration) Option {
	return func(s *settings) { s.delay = d }
}

// MaxDelay caps the backoff delay.
func MaxDelay(d time.Duration) Option {
	return func(s *settings) { s.maxDelay = d }
}

// Do runs op until it succeeds, returns a permanent error, the attempts are
// exhausted, or the context ends. The wait between attempts respects ctx.
func Do(ctx context.Context, op func() error, opts ...Option) error {
	s := settings{
		attempts:   defaultAttempts,
		delay:      defaultDelay,
		maxDelay:   defaultMaxDelay,
		multiplier: defaultMultiplier,
	}
	for _, opt := range opts {
		opt(&s)
	}

	delay := s.delay
	var lastErr error

	for attempt := 1; attempt <= s.attempts; attempt++ {
		err := op()
		if err == nil {
			return nil
		}
		lastErr = err

		var perm *permanentError
		if errors.As(err, &perm) {
			return perm.err
		}

		if attempt == s.attempts {
			break
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("giving up after %d attempt(s): %w", attempt, ctx.Err())
		case <-time.After(delay):
		}
		delay = time.Duration(float64(delay) * s.multiplier)
		if delay > s.maxDelay {
			delay = s.maxDelay
		}
	}

	return fmt.Errorf("giving up after %d attempt(s): %w", s.attempts, lastErr)
}

type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }

func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks err as non-retryable; Do returns it immediately.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}
