package scraper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/use-agent/jobscout/engine"
	"github.com/use-agent/jobscout/models"
	"github.com/use-agent/jobscout/retry"
)

// Deps are the collaborators every source needs.
type Deps struct {
	Fetcher Fetcher
	Limiter Limiter
	Retry   retry.Policy

	// Timeout bounds a single page fetch. Default: 20s.
	Timeout time.Duration

	// Now is injectable for tests. Default: time.Now.
	Now func() time.Time
}

func (d Deps) now() time.Time {
	if d.Now != nil {
		return d.Now()
	}
	return time.Now()
}

// throttledError carries the server's Retry-After so retry.Do waits at
// least that long before the next attempt.
type throttledError struct {
	err   *models.ScrapeError
	after time.Duration
}

func (e *throttledError) Error() string             { return e.err.Error() }
func (e *throttledError) Unwrap() error             { return e.err }
func (e *throttledError) RetryAfter() time.Duration { return e.after }

// errPageGone is a 404/410 on a search page. Past page one it means the
// board has no more results.
var errPageGone = errors.New("search page not found")

// pageClient fetches one source's pages with limiter, retry and response
// classification.
type pageClient struct {
	deps Deps
	key  string
	m    *counters
}

// get fetches url. Errors are classified:
//   - *models.ScrapeError with ErrCodeCaptcha: a challenge page (Message is the vendor)
//   - ErrCodeSoftBlocked: HTTP 403
//   - *retry.ExhaustedError wrapping ErrCodeRateLimited: 429 after every attempt
//   - *retry.ExhaustedError otherwise: timeouts or 5xx after every attempt
//   - errPageGone: 404/410
//   - ctx.Err() when the context ended
func (c *pageClient) get(ctx context.Context, url string) (*engine.FetchResult, error) {
	policy := c.deps.Retry
	policy.Retryable = isTransient
	userHook := policy.OnRetry
	policy.OnRetry = func(attempt int, delay time.Duration, err error) {
		slog.Info("retrying page fetch",
			"source", c.key, "url", url, "attempt", attempt, "delay", delay, "error", err)
		if userHook != nil {
			userHook(attempt, delay, err)
		}
	}

	var page *engine.FetchResult
	err := retry.Do(ctx, policy, func(ctx context.Context) error {
		if err := c.deps.Limiter.Acquire(ctx, c.key); err != nil {
			return retry.Permanent(err)
		}
		c.m.attempted.Add(1)

		timeout := c.deps.Timeout
		if timeout <= 0 {
			timeout = 20 * time.Second
		}
		res, err := c.deps.Fetcher.Fetch(ctx, &engine.FetchRequest{URL: url, Timeout: timeout})
		if err != nil {
			c.m.failed.Add(1)
			if ctx.Err() != nil {
				return retry.Permanent(ctx.Err())
			}
			if errors.Is(err, context.DeadlineExceeded) {
				return models.NewScrapeError(models.ErrCodeTimeout, "page fetch timed out", err)
			}
			return models.NewScrapeError(models.ErrCodeNavigation, "page fetch failed", err)
		}
		return c.classify(res, &page)
	})
	if err != nil {
		return nil, err
	}
	return page, nil
}

func (c *pageClient) classify(res *engine.FetchResult, out **engine.FetchResult) error {
	if vendor := engine.DetectChallenge(res.HTML, res.Title); vendor != "" {
		c.m.blocked.Add(1)
		c.m.captchas.Add(1)
		return retry.Permanent(models.NewScrapeError(models.ErrCodeCaptcha, vendor, nil))
	}

	switch code := res.StatusCode; {
	case code == http.StatusForbidden:
		c.m.blocked.Add(1)
		return retry.Permanent(models.NewScrapeError(models.ErrCodeSoftBlocked, "HTTP 403", nil))
	case code == http.StatusTooManyRequests:
		c.m.blocked.Add(1)
		return &throttledError{
			err:   models.NewScrapeError(models.ErrCodeRateLimited, "HTTP 429", nil),
			after: res.RetryAfter,
		}
	case code == http.StatusNotFound || code == http.StatusGone:
		c.m.failed.Add(1)
		return retry.Permanent(errPageGone)
	case code >= 500:
		c.m.failed.Add(1)
		return models.NewScrapeError(models.ErrCodeNavigation, fmt.Sprintf("HTTP %d", code), nil)
	case code >= 400:
		c.m.failed.Add(1)
		return retry.Permanent(models.NewScrapeError(models.ErrCodeNavigation, fmt.Sprintf("HTTP %d", code), nil))
	}

	c.m.succeeded.Add(1)
	*out = res
	return nil
}

// isTransient retries timeouts, transport failures, 5xx and 429.
func isTransient(err error) bool {
	var se *models.ScrapeError
	if !errors.As(err, &se) {
		return false
	}
	switch se.Code {
	case models.ErrCodeTimeout, models.ErrCodeNavigation, models.ErrCodeRateLimited:
		return true
	}
	return false
}

// stopFor maps a fetch error to how the run ends. A nil returned error
// means the stop is expected and the partial result is the answer.
func stopFor(err error, page int) (StopReason, string, error) {
	var se *models.ScrapeError
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		if !errors.As(err, &se) {
			return StopFailed, "", err
		}
	case errors.Is(err, errPageGone):
		if page > 1 {
			return StopExhausted, "", nil
		}
		return StopFailed, "", models.NewScrapeError(models.ErrCodeNavigation, "search page not found", err)
	}

	if errors.As(err, &se) {
		switch se.Code {
		case models.ErrCodeCaptcha:
			return StopCaptcha, se.Message, nil
		case models.ErrCodeSoftBlocked:
			return StopBlocked, "", nil
		case models.ErrCodeRateLimited:
			return StopRateLimited, "", nil
		}
	}

	var ex *retry.ExhaustedError
	if errors.As(err, &ex) {
		return StopFailed, "", models.NewScrapeError(models.ErrCodeRetriesExhausted,
			fmt.Sprintf("gave up after %d attempts", ex.Attempts), err)
	}
	return StopFailed, "", models.NewScrapeError(models.ErrCodeNavigation, "page fetch failed", err)
}
