package engine

import (
	"context"
	"net/http"
	"time"
)

// Engine is the interface that all fetch engines must implement.
type Engine interface {
	// Name returns the engine identifier (e.g. "http", "rod", "rod-stealth").
	Name() string

	// Fetch retrieves the page for the given request. Any HTTP response,
	// including 403/429/5xx, is returned as a FetchResult; only transport
	// failures are reported as errors.
	Fetch(ctx context.Context, req *FetchRequest) (*FetchResult, error)
}

// FetchRequest contains everything an engine needs to fetch a page.
type FetchRequest struct {
	URL     string
	Headers map[string]string
	Cookies []http.Cookie
	Timeout time.Duration
	Stealth bool
}

// FetchResult is the output of an engine fetch.
type FetchResult struct {
	HTML       string
	Title      string
	StatusCode int
	FinalURL   string
	EngineName string

	// RetryAfter is the server's Retry-After hint, zero when absent.
	RetryAfter time.Duration
}

// Refused reports whether the response is the site turning the client away
// (forbidden, or an anti-bot challenge page) rather than serving content.
func (r *FetchResult) Refused() bool {
	return r.StatusCode == http.StatusForbidden || DetectChallenge(r.HTML, r.Title) != ""
}
