package engine

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

type stubEngine struct {
	name   string
	status int
	html   string
	err    error
	calls  int
}

func (s *stubEngine) Name() string { return s.name }

func (s *stubEngine) Fetch(_ context.Context, req *FetchRequest) (*FetchResult, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return &FetchResult{HTML: s.html, StatusCode: s.status, FinalURL: req.URL, EngineName: s.name}, nil
}

const listingPage = `<html><head><title>Jobs</title></head><body><ul><li>SOC Analyst</li></ul></body></html>`

func TestDispatcher_EscalatesOnForbidden(t *testing.T) {
	cheap := &stubEngine{name: "cheap", status: 403, html: "<html><body>Forbidden</body></html>"}
	heavy := &stubEngine{name: "heavy", status: 200, html: listingPage}
	mem := NewHostMemory(time.Hour)
	d := NewDispatcher([]Engine{cheap, heavy}, mem)

	res, err := d.Fetch(context.Background(), &FetchRequest{URL: "https://www.reed.co.uk/jobs"})
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if res.EngineName != "heavy" || res.StatusCode != 200 {
		t.Errorf("got %s/%d, want heavy/200", res.EngineName, res.StatusCode)
	}
	if got := mem.Get("www.reed.co.uk"); got != "heavy" {
		t.Errorf("memory = %q, want heavy", got)
	}

	// Second fetch on the same host starts at the remembered engine.
	if _, err := d.Fetch(context.Background(), &FetchRequest{URL: "https://www.reed.co.uk/jobs?pageno=2"}); err != nil {
		t.Fatalf("second Fetch: %v", err)
	}
	if cheap.calls != 1 || heavy.calls != 2 {
		t.Errorf("calls cheap=%d heavy=%d, want 1 and 2", cheap.calls, heavy.calls)
	}
}

func TestDispatcher_AllRefusedReturnsLastResult(t *testing.T) {
	captcha := `<html><body><div class="g-recaptcha"></div></body></html>`
	a := &stubEngine{name: "a", status: 200, html: captcha}
	b := &stubEngine{name: "b", status: 200, html: captcha}
	d := NewDispatcher([]Engine{a, b}, NewHostMemory(time.Hour))

	res, err := d.Fetch(context.Background(), &FetchRequest{URL: "https://uk.indeed.com/jobs"})
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if res.EngineName != "b" {
		t.Errorf("EngineName = %q, want b", res.EngineName)
	}
	if !res.Refused() {
		t.Error("expected the returned result to be refused")
	}
}

func TestDispatcher_RateLimitIsNotEscalated(t *testing.T) {
	a := &stubEngine{name: "a", status: 429}
	b := &stubEngine{name: "b", status: 200, html: listingPage}
	d := NewDispatcher([]Engine{a, b}, nil)

	res, err := d.Fetch(context.Background(), &FetchRequest{URL: "https://www.totaljobs.com/jobs"})
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if res.StatusCode != 429 || b.calls != 0 {
		t.Errorf("status=%d heavy calls=%d, want 429 and 0", res.StatusCode, b.calls)
	}
}

func TestDispatcher_TransportErrors(t *testing.T) {
	boom := errors.New("connection reset")
	a := &stubEngine{name: "a", err: boom}
	b := &stubEngine{name: "b", err: boom}
	d := NewDispatcher([]Engine{a, b}, nil)

	_, err := d.Fetch(context.Background(), &FetchRequest{URL: "https://www.cwjobs.co.uk/jobs"})
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want %v", err, boom)
	}
}

func TestDispatcher_TransportErrorFallsThrough(t *testing.T) {
	a := &stubEngine{name: "a", err: errors.New("tls handshake timeout")}
	b := &stubEngine{name: "b", status: 200, html: listingPage}
	d := NewDispatcher([]Engine{a, b}, nil)

	res, err := d.Fetch(context.Background(), &FetchRequest{URL: "https://example.com"})
	if err != nil || res.EngineName != "b" {
		t.Fatalf("got %v, %v; want result from b", res, err)
	}
}

func TestDispatcher_CancelledContext(t *testing.T) {
	a := &stubEngine{name: "a", status: 200, html: listingPage}
	d := NewDispatcher([]Engine{a}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := d.Fetch(ctx, &FetchRequest{URL: "https://example.com"}); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if a.calls != 0 {
		t.Errorf("engine called %d times after cancel", a.calls)
	}
}

func TestHostMemory_Expiry(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	m := NewHostMemory(time.Minute)
	m.now = func() time.Time { return now }

	m.Set("uk.indeed.com", "rod-stealth")
	if got := m.Get("uk.indeed.com"); got != "rod-stealth" {
		t.Fatalf("Get = %q", got)
	}
	now = now.Add(2 * time.Minute)
	if n := m.Prune(); n != 1 {
		t.Errorf("Prune = %d, want 1", n)
	}
	if got := m.Get("uk.indeed.com"); got != "" {
		t.Errorf("Get after expiry = %q, want empty", got)
	}
}

func TestHTTPEngine_ReturnsErrorStatusesAsResults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasPrefix(r.Header.Get("Accept-Language"), "en-GB") {
			t.Errorf("Accept-Language = %q", r.Header.Get("Accept-Language"))
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Header().Set("Retry-After", "30")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte("<html><head><title>Slow down</title></head><body></body></html>"))
	}))
	defer srv.Close()

	e := NewHTTPEngineWithClient(srv.Client(), 5*time.Second)
	res, err := e.Fetch(context.Background(), &FetchRequest{URL: srv.URL})
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if res.StatusCode != http.StatusTooManyRequests {
		t.Errorf("StatusCode = %d", res.StatusCode)
	}
	if res.RetryAfter != 30*time.Second {
		t.Errorf("RetryAfter = %v, want 30s", res.RetryAfter)
	}
	if res.Title != "Slow down" {
		t.Errorf("Title = %q", res.Title)
	}
}
