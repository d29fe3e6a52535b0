// Package scraper fetches job listings from UK job boards and employer
// career pages.
//
// Every source implements Scraper. Paginated boards share the Board runner,
// which owns rate limiting, retries, block and CAPTCHA handling and the
// per-run state machine; a board only supplies search URLs and a parser.
package scraper

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/use-agent/jobscout/engine"
	"github.com/use-agent/jobscout/models"
)

// Scraper is one job source.
type Scraper interface {
	// Key is the configuration key, e.g. "reed".
	Key() string
	Platform() models.Platform

	// Scrape runs one search. It always returns a Result holding whatever
	// was collected; the error is non-nil only when retries ran out on
	// transient failures or ctx ended. Blocks, rate limiting and CAPTCHAs
	// end the run without an error and are reported in Result.Stop.
	Scrape(ctx context.Context, keyword, location string, opts Options) (*Result, error)

	Metrics() Metrics
	ResetMetrics()
}

// Fetcher retrieves a page. *engine.Dispatcher satisfies it.
type Fetcher interface {
	Fetch(ctx context.Context, req *engine.FetchRequest) (*engine.FetchResult, error)
}

// Limiter gates outbound requests per source. *ratelimit.SlidingWindow
// satisfies it.
type Limiter interface {
	Acquire(ctx context.Context, key string) error
}

// Options tune one run.
type Options struct {
	// MaxPages bounds pagination. Default: 5.
	MaxPages int

	// MaxAge drops listings posted longer ago than this. Zero keeps all.
	MaxAge time.Duration
}

// StopReason says why a run ended.
type StopReason string

const (
	StopExhausted   StopReason = "exhausted"
	StopEmptyPage   StopReason = "empty-page"
	StopMaxPages    StopReason = "max-pages"
	StopBlocked     StopReason = "blocked"
	StopCaptcha     StopReason = "captcha"
	StopRateLimited StopReason = "rate-limited"
	StopFailed      StopReason = "failed"
)

// Result is the outcome of one run.
type Result struct {
	Listings []models.JobListing
	Stop     StopReason
	Pages    int

	// Challenge names the anti-bot vendor when Stop is StopCaptcha.
	Challenge string
}

// Captcha reports whether the run was aborted by an anti-bot challenge.
func (r *Result) Captcha() bool { return r.Stop == StopCaptcha }

// State is the run state of a scraper.
type State int32

const (
	StateIdle State = iota
	StateFetching
	StateParsing
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateFetching:
		return "fetching"
	case StateParsing:
		return "parsing"
	case StateStopped:
		return "stopped"
	default:
		return "idle"
	}
}

// Metrics are request and listing counters since the last reset.
type Metrics struct {
	RequestsAttempted int64 `json:"requests_attempted"`
	RequestsSucceeded int64 `json:"requests_succeeded"`
	RequestsFailed    int64 `json:"requests_failed"`
	RequestsBlocked   int64 `json:"requests_blocked"`
	CaptchasDetected  int64 `json:"captchas_detected"`
	ListingsFound     int64 `json:"listings_found"`
}

type counters struct {
	attempted atomic.Int64
	succeeded atomic.Int64
	failed    atomic.Int64
	blocked   atomic.Int64
	captchas  atomic.Int64
	listings  atomic.Int64
}

func (c *counters) snapshot() Metrics {
	return Metrics{
		RequestsAttempted: c.attempted.Load(),
		RequestsSucceeded: c.succeeded.Load(),
		RequestsFailed:    c.failed.Load(),
		RequestsBlocked:   c.blocked.Load(),
		CaptchasDetected:  c.captchas.Load(),
		ListingsFound:     c.listings.Load(),
	}
}

func (c *counters) reset() {
	c.attempted.Store(0)
	c.succeeded.Store(0)
	c.failed.Store(0)
	c.blocked.Store(0)
	c.captchas.Store(0)
	c.listings.Store(0)
}
