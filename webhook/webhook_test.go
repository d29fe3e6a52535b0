package webhook

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sort"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/use-agent/jobscout/scheduler"
)

func noSleep(ctx context.Context, _ time.Duration) error { return ctx.Err() }

func TestDeliver_SignsBody(t *testing.T) {
	var gotSig string
	var gotBody []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotSig = r.Header.Get(SignatureHeader)
		gotBody, _ = io.ReadAll(r.Body)
	}))
	defer srv.Close()

	n := New(srv.URL, "s3cret")
	if err := n.Deliver(context.Background(), &Event{Type: EventCycleCompleted, CycleID: "c1"}); err != nil {
		t.Fatalf("Deliver: %v", err)
	}
	if want := Sign("s3cret", gotBody); gotSig != want {
		t.Errorf("signature = %q, want %q", gotSig, want)
	}
}

func TestNotify_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
		}
	}))
	defer srv.Close()

	n := New(srv.URL, "")
	n.policy.Sleep = noSleep
	n.Notify(&Event{Type: EventCycleCompleted})
	n.Wait()

	if got := calls.Load(); got != 3 {
		t.Errorf("calls = %d, want 3", got)
	}
}

func TestNotify_ClientErrorIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusGone)
	}))
	defer srv.Close()

	n := New(srv.URL, "")
	n.policy.Sleep = noSleep
	n.Notify(&Event{Type: EventCycleCompleted})
	n.Wait()

	if got := calls.Load(); got != 1 {
		t.Errorf("calls = %d, want 1", got)
	}
}

func TestCycleHook(t *testing.T) {
	var mu sync.Mutex
	var types []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var ev Event
		json.NewDecoder(r.Body).Decode(&ev)
		mu.Lock()
		types = append(types, ev.Type+":"+ev.CycleID)
		mu.Unlock()
	}))
	defer srv.Close()

	n := New(srv.URL, "")
	n.CycleHook(context.Background(), &scheduler.CycleReport{ID: "c9", Captchas: []string{"indeed"}})
	n.Wait()

	sort.Strings(types)
	want := []string{"cycle.completed:c9", "source.captcha:c9"}
	if len(types) != 2 || types[0] != want[0] || types[1] != want[1] {
		t.Errorf("events = %v, want %v", types, want)
	}
}
