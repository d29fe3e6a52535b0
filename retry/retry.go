// Package retry runs an operation with bounded exponential backoff.
//
// Every outbound call that can fail transiently goes through Do: scraper
// page fetches, text generation and webhook delivery. Delay for attempt i
// (0-based) is BaseDelay·2^i, capped at MaxDelay, plus up to 10% jitter.
package retry

import (
	"context"
	"errors"
	"math/rand/v2"
	"time"
)

// Policy configures Do.
type Policy struct {
	// MaxAttempts is the total number of calls, including the first one.
	MaxAttempts int // default: 3

	// BaseDelay is the wait after the first failure.
	BaseDelay time.Duration // default: 1s

	// MaxDelay caps a single wait. Zero means no cap.
	MaxDelay time.Duration

	// Retryable decides whether an error is worth another attempt.
	// Nil retries everything except Permanent errors and context errors.
	Retryable func(error) bool

	// OnRetry is called before each wait with the attempt that just failed.
	OnRetry func(attempt int, delay time.Duration, err error)

	// Sleep overrides the wait, mainly for tests. Nil uses Sleep.
	Sleep func(ctx context.Context, d time.Duration) error
}

type permanentError struct{ err error }

func (p *permanentError) Error() string { return p.err.Error() }
func (p *permanentError) Unwrap() error { return p.err }

// Permanent marks err as not retryable. Do returns the unwrapped error.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsPermanent reports whether err was wrapped with Permanent.
func IsPermanent(err error) bool {
	var p *permanentError
	return errors.As(err, &p)
}

// afterHint is implemented by errors that carry a server-requested wait,
// such as a 429 with Retry-After. The hint replaces a shorter backoff.
type afterHint interface {
	RetryAfter() time.Duration
}

// ExhaustedError is returned when every attempt failed with a retryable error.
type ExhaustedError struct {
	Attempts int
	Last     error
}

func (e *ExhaustedError) Error() string {
	return "retry: attempts exhausted: " + e.Last.Error()
}

func (e *ExhaustedError) Unwrap() error { return e.Last }

// Do calls fn until it succeeds, returns a non-retryable error, the context
// ends, or the attempt budget runs out.
func Do(ctx context.Context, p Policy, fn func(ctx context.Context) error) error {
	attempts := p.MaxAttempts
	if attempts <= 0 {
		attempts = 3
	}
	base := p.BaseDelay
	if base <= 0 {
		base = time.Second
	}
	sleep := p.Sleep
	if sleep == nil {
		sleep = Sleep
	}

	var err error
	for i := 0; i < attempts; i++ {
		err = fn(ctx)
		if err == nil {
			return nil
		}
		var perm *permanentError
		if errors.As(err, &perm) {
			return perm.err
		}
		if ctx.Err() != nil {
			return err
		}
		if p.Retryable != nil && !p.Retryable(err) {
			return err
		}
		if i == attempts-1 {
			break
		}

		delay := Backoff(base, p.MaxDelay, i)
		var hint afterHint
		if errors.As(err, &hint) && hint.RetryAfter() > delay {
			delay = hint.RetryAfter()
		}
		if p.OnRetry != nil {
			p.OnRetry(i+1, delay, err)
		}
		if serr := sleep(ctx, delay); serr != nil {
			return err
		}
	}
	return &ExhaustedError{Attempts: attempts, Last: err}
}

// Backoff returns the wait before retry number attempt+1.
func Backoff(base, max time.Duration, attempt int) time.Duration {
	d := base << uint(attempt)
	if d <= 0 || (max > 0 && d > max) {
		d = max
	}
	if d <= 0 {
		d = base
	}
	if tenth := int64(d) / 10; tenth > 0 {
		d += time.Duration(rand.Int64N(tenth))
	}
	return d
}

// Sleep waits for d or until ctx is done.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
