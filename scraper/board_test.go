package scraper

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/use-agent/jobscout/cleaner"
	"github.com/use-agent/jobscout/engine"
	"github.com/use-agent/jobscout/models"
	"github.com/use-agent/jobscout/retry"
)

// testSite is a minimal board at board.test with one query parameter per page.
type testSite struct{}

var testFields = cardFields{
	Cards:       cleaner.MustChain(`.job`),
	Title:       cleaner.MustChain(`h2 a`),
	Link:        cleaner.MustChain(`h2 a`),
	Company:     cleaner.MustChain(`.company`),
	Location:    cleaner.MustChain(`.location`),
	Description: cleaner.MustChain(`.desc`),
	Posted:      cleaner.MustChain(`.posted`),
}

func (testSite) Key() string               { return "test" }
func (testSite) Platform() models.Platform { return models.PlatformReed }

func (testSite) SearchURL(keyword, location string, page int) string {
	return fmt.Sprintf("https://board.test/jobs?q=%s&page=%d", url.QueryEscape(keyword), page)
}

func (testSite) Parse(doc *goquery.Document, pageURL string, now time.Time) []models.JobListing {
	return readCards(doc, pageURL, now, testFields, func(_ *goquery.Selection, link string) string {
		return idFromURL("test", link)
	})
}

// card renders one listing card for id.
func card(id int, posted string) string {
	return fmt.Sprintf(`<div class="job"><h2><a href="/job/%d">SOC Analyst %d</a></h2>`+
		`<span class="company">Acme</span><span class="location">London</span>`+
		`<span class="posted">%s</span><p class="desc">Monitor the SIEM and triage alerts.</p></div>`,
		1000+id, id, posted)
}

func page(cards ...string) string {
	return "<html><head><title>Cyber security jobs</title></head><body>" +
		strings.Join(cards, "") + "</body></html>"
}

// listingsPage renders a result page holding one card per id.
func listingsPage(posted string, ids ...int) string {
	cards := make([]string, len(ids))
	for i, id := range ids {
		cards[i] = card(id, posted)
	}
	return page(cards...)
}

const emptyPage = `<html><head><title>Cyber security jobs</title></head><body><p>No jobs match your search.</p></body></html>`

const challengePage = `<html><head><title>Just a moment...</title></head><body>` +
	`<div class="cf-turnstile" data-sitekey="x"></div></body></html>`

type response struct {
	status int
	html   string
	after  time.Duration
	err    error
}

func ok(html string) response { return response{status: 200, html: html} }

// fakeBoard serves scripted responses per page number. A page's script is
// consumed one response per call; the last response repeats.
type fakeBoard struct {
	pages map[int][]response
	calls map[int]int
}

func (f *fakeBoard) Fetch(_ context.Context, req *engine.FetchRequest) (*engine.FetchResult, error) {
	u, _ := url.Parse(req.URL)
	page, _ := strconv.Atoi(u.Query().Get("page"))
	if f.calls == nil {
		f.calls = make(map[int]int)
	}
	n := f.calls[page]
	f.calls[page]++

	script, found := f.pages[page]
	if !found {
		return &engine.FetchResult{StatusCode: 404, HTML: "<html><body>gone</body></html>", FinalURL: req.URL}, nil
	}
	r := script[min(n, len(script)-1)]
	if r.err != nil {
		return nil, r.err
	}
	return &engine.FetchResult{StatusCode: r.status, HTML: r.html, RetryAfter: r.after, FinalURL: req.URL}, nil
}

type countingLimiter struct{ n int }

func (l *countingLimiter) Acquire(ctx context.Context, _ string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	l.n++
	return nil
}

type harness struct {
	board   *Board
	fetcher *fakeBoard
	limiter *countingLimiter
	waits   []time.Duration
}

func newHarness(pages map[int][]response) *harness {
	h := &harness{fetcher: &fakeBoard{pages: pages}, limiter: &countingLimiter{}}
	h.board = NewBoard(testSite{}, Deps{
		Fetcher: h.fetcher,
		Limiter: h.limiter,
		Retry: retry.Policy{
			MaxAttempts: 3,
			BaseDelay:   time.Second,
			Sleep: func(_ context.Context, d time.Duration) error {
				h.waits = append(h.waits, d)
				return nil
			},
		},
		Now: func() time.Time { return testNow },
	})
	return h
}

func TestBoard_StopsAtMaxPages(t *testing.T) {
	h := newHarness(map[int][]response{
		1: {ok(listingsPage("today", 1, 2))},
		2: {ok(listingsPage("today", 3, 4))},
		3: {ok(listingsPage("today", 5, 6))},
	})

	res, err := h.board.Scrape(context.Background(), "SOC Analyst", "London", Options{MaxPages: 2})
	if err != nil {
		t.Fatalf("Scrape: %v", err)
	}
	if res.Stop != StopMaxPages || res.Pages != 2 || len(res.Listings) != 4 {
		t.Fatalf("got stop=%s pages=%d listings=%d", res.Stop, res.Pages, len(res.Listings))
	}
	if h.limiter.n != 2 {
		t.Errorf("limiter acquired %d times, want 2", h.limiter.n)
	}
	if h.fetcher.calls[3] != 0 {
		t.Error("page beyond MaxPages was fetched")
	}

	l := res.Listings[0]
	if l.JobID != "test_1001" || l.URL != "https://board.test/job/1001" || l.Company != "Acme" {
		t.Errorf("listing = %+v", l)
	}
	if l.Platform != models.PlatformReed || !l.DescriptionSynthesized {
		t.Errorf("listing not finalized: %+v", l)
	}

	m := h.board.Metrics()
	if m.RequestsAttempted != 2 || m.RequestsSucceeded != 2 || m.ListingsFound != 4 {
		t.Errorf("metrics = %+v", m)
	}
	if h.board.State() != StateStopped {
		t.Errorf("state = %v", h.board.State())
	}
	h.board.ResetMetrics()
	if m := h.board.Metrics(); m != (Metrics{}) {
		t.Errorf("metrics after reset = %+v", m)
	}
}

func TestBoard_StopConditions(t *testing.T) {
	page1 := listingsPage("today", 1, 2)

	tests := []struct {
		name      string
		pages     map[int][]response
		wantStop  StopReason
		wantCount int
		wantErr   string // ScrapeError code, "" for nil
	}{
		{
			name:      "empty page",
			pages:     map[int][]response{1: {ok(page1)}, 2: {ok(emptyPage)}},
			wantStop:  StopEmptyPage,
			wantCount: 2,
		},
		{
			name:      "soft block keeps partial results",
			pages:     map[int][]response{1: {ok(page1)}, 2: {{status: 403, html: page1}}},
			wantStop:  StopBlocked,
			wantCount: 2,
		},
		{
			name:      "rate limited after retries keeps partial results",
			pages:     map[int][]response{1: {ok(page1)}, 2: {{status: 429, html: "slow down"}}},
			wantStop:  StopRateLimited,
			wantCount: 2,
		},
		{
			name:      "captcha aborts",
			pages:     map[int][]response{1: {ok(page1)}, 2: {ok(challengePage)}},
			wantStop:  StopCaptcha,
			wantCount: 2,
		},
		{
			name:      "repeated page means exhausted",
			pages:     map[int][]response{1: {ok(page1)}, 2: {ok(page1)}},
			wantStop:  StopExhausted,
			wantCount: 2,
		},
		{
			name:      "not found past first page means exhausted",
			pages:     map[int][]response{1: {ok(page1)}},
			wantStop:  StopExhausted,
			wantCount: 2,
		},
		{
			name:      "server errors exhaust retries",
			pages:     map[int][]response{1: {ok(page1)}, 2: {{status: 503}}},
			wantStop:  StopFailed,
			wantCount: 2,
			wantErr:   models.ErrCodeRetriesExhausted,
		},
		{
			name:      "not found on first page fails",
			pages:     map[int][]response{},
			wantStop:  StopFailed,
			wantCount: 0,
			wantErr:   models.ErrCodeNavigation,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(tt.pages)
			res, err := h.board.Scrape(context.Background(), "SOC Analyst", "London", Options{MaxPages: 5})

			if res == nil {
				t.Fatal("Scrape returned nil result")
			}
			if res.Stop != tt.wantStop {
				t.Errorf("Stop = %s, want %s", res.Stop, tt.wantStop)
			}
			if len(res.Listings) != tt.wantCount {
				t.Errorf("listings = %d, want %d", len(res.Listings), tt.wantCount)
			}
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("err = %v, want nil", err)
				}
				return
			}
			var se *models.ScrapeError
			if !errors.As(err, &se) || se.Code != tt.wantErr {
				t.Errorf("err = %v, want code %s", err, tt.wantErr)
			}
		})
	}
}

func TestBoard_CaptchaSignal(t *testing.T) {
	h := newHarness(map[int][]response{1: {ok(challengePage)}})

	res, err := h.board.Scrape(context.Background(), "SOC Analyst", "London", Options{})
	if err != nil {
		t.Fatalf("Scrape: %v", err)
	}
	if !res.Captcha() || res.Challenge != "cloudflare" {
		t.Errorf("captcha not signalled: stop=%s challenge=%q", res.Stop, res.Challenge)
	}
	if h.fetcher.calls[1] != 1 {
		t.Errorf("challenge page fetched %d times, want 1", h.fetcher.calls[1])
	}
	if m := h.board.Metrics(); m.CaptchasDetected != 1 || m.RequestsBlocked != 1 {
		t.Errorf("metrics = %+v", m)
	}
}

func TestBoard_RateLimitHonoursRetryAfter(t *testing.T) {
	h := newHarness(map[int][]response{1: {{status: 429, after: 30 * time.Second}}})

	res, err := h.board.Scrape(context.Background(), "SOC Analyst", "London", Options{})
	if err != nil {
		t.Fatalf("Scrape: %v", err)
	}
	if res.Stop != StopRateLimited {
		t.Fatalf("Stop = %s", res.Stop)
	}
	if h.fetcher.calls[1] != 3 || h.limiter.n != 3 {
		t.Errorf("fetches = %d, acquires = %d, want 3 each", h.fetcher.calls[1], h.limiter.n)
	}
	if len(h.waits) != 2 || h.waits[0] != 30*time.Second || h.waits[1] != 30*time.Second {
		t.Errorf("waits = %v, want two 30s waits", h.waits)
	}
}

func TestBoard_RecoversFromTransientFailures(t *testing.T) {
	h := newHarness(map[int][]response{
		1: {{err: errors.New("connection reset")}, {status: 502}, ok(listingsPage("today", 1))},
		2: {ok(emptyPage)},
	})

	res, err := h.board.Scrape(context.Background(), "SOC Analyst", "London", Options{})
	if err != nil {
		t.Fatalf("Scrape: %v", err)
	}
	if len(res.Listings) != 1 || res.Stop != StopEmptyPage {
		t.Fatalf("got %d listings, stop %s", len(res.Listings), res.Stop)
	}
	if m := h.board.Metrics(); m.RequestsAttempted != 4 || m.RequestsFailed != 2 || m.RequestsSucceeded != 2 {
		t.Errorf("metrics = %+v", m)
	}
}

func TestBoard_DropsStaleListings(t *testing.T) {
	h := newHarness(map[int][]response{
		1: {ok(page(card(1, "today"), card(2, "30+ days ago")))},
		2: {ok(listingsPage("30+ days ago", 3, 4))},
	})

	res, err := h.board.Scrape(context.Background(), "SOC Analyst", "London", Options{MaxAge: 7 * 24 * time.Hour})
	if err != nil {
		t.Fatalf("Scrape: %v", err)
	}
	if len(res.Listings) != 1 || res.Listings[0].JobID != "test_1001" {
		t.Fatalf("listings = %+v", res.Listings)
	}
	if res.Stop != StopExhausted || res.Pages != 2 {
		t.Errorf("stop = %s pages = %d", res.Stop, res.Pages)
	}
}

func TestBoard_ContextCancelled(t *testing.T) {
	h := newHarness(map[int][]response{1: {ok(listingsPage("today", 1))}})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := h.board.Scrape(ctx, "SOC Analyst", "London", Options{})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if res == nil || res.Stop != StopFailed {
		t.Errorf("result = %+v", res)
	}
}
