// Package ratelimit throttles outbound requests per source with a sliding
// log of request timestamps.
package ratelimit

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/use-agent/jobscout/retry"
)

// Config controls a SlidingWindow.
type Config struct {
	// Limit is the number of requests allowed per Window for one key.
	Limit int // default: 10

	// Window is the rolling window length.
	Window time.Duration // default: 60s

	// Margin is added to the computed wait so the oldest request has
	// definitely left the window when the waiter wakes.
	Margin time.Duration // default: 1s

	// JitterMin and JitterMax bound a random extra delay applied after a
	// slot is reserved. Both zero disables it.
	JitterMin time.Duration
	JitterMax time.Duration
}

// SlidingWindow is a per-key sliding-log limiter. Acquisitions for the same
// key are serialised: callers queue on a per-key gate, so two callers are
// never both admitted into the last free slot.
type SlidingWindow struct {
	cfg Config

	mu     sync.Mutex
	logs   map[string][]time.Time
	gates  map[string]chan struct{}
	limits map[string]int

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// New creates a SlidingWindow with the given defaults.
func New(cfg Config) *SlidingWindow {
	if cfg.Limit <= 0 {
		cfg.Limit = 10
	}
	if cfg.Window <= 0 {
		cfg.Window = time.Minute
	}
	if cfg.Margin < 0 {
		cfg.Margin = 0
	}
	return &SlidingWindow{
		cfg:    cfg,
		logs:   make(map[string][]time.Time),
		gates:  make(map[string]chan struct{}),
		limits: make(map[string]int),
		now:    time.Now,
		sleep:  retry.Sleep,
	}
}

// SetLimit overrides the per-window limit for one key.
func (l *SlidingWindow) SetLimit(key string, limit int) {
	if limit <= 0 {
		return
	}
	l.mu.Lock()
	l.limits[key] = limit
	l.mu.Unlock()
}

// Acquire blocks until a request slot for key is free, then reserves it.
// It returns ctx.Err() if the context ends first; no slot is consumed then.
func (l *SlidingWindow) Acquire(ctx context.Context, key string) error {
	gate := l.gate(key)
	select {
	case gate <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}

	err := l.reserve(ctx, key)
	<-gate
	if err != nil {
		return err
	}

	if jitter := l.jitter(); jitter > 0 {
		return l.sleep(ctx, jitter)
	}
	return nil
}

// reserve runs with the key's gate held.
func (l *SlidingWindow) reserve(ctx context.Context, key string) error {
	for {
		l.mu.Lock()
		now := l.now()
		log := prune(l.logs[key], now.Add(-l.cfg.Window))
		limit := l.limitFor(key)
		if len(log) < limit {
			l.logs[key] = append(log, now)
			l.mu.Unlock()
			return nil
		}
		l.logs[key] = log
		wait := log[0].Add(l.cfg.Window + l.cfg.Margin).Sub(now)
		l.mu.Unlock()

		slog.Debug("rate limit reached, waiting for slot",
			"source", key, "limit", limit, "wait", wait)
		if err := l.sleep(ctx, wait); err != nil {
			return err
		}
	}
}

// InWindow returns the number of requests recorded for key in the current window.
func (l *SlidingWindow) InWindow(key string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	log := prune(l.logs[key], l.now().Add(-l.cfg.Window))
	l.logs[key] = log
	return len(log)
}

// Reset forgets every recorded request.
func (l *SlidingWindow) Reset() {
	l.mu.Lock()
	l.logs = make(map[string][]time.Time)
	l.mu.Unlock()
}

func (l *SlidingWindow) gate(key string) chan struct{} {
	l.mu.Lock()
	defer l.mu.Unlock()
	g, ok := l.gates[key]
	if !ok {
		g = make(chan struct{}, 1)
		l.gates[key] = g
	}
	return g
}

func (l *SlidingWindow) limitFor(key string) int {
	if n, ok := l.limits[key]; ok {
		return n
	}
	return l.cfg.Limit
}

func (l *SlidingWindow) jitter() time.Duration {
	lo, hi := l.cfg.JitterMin, l.cfg.JitterMax
	if hi <= 0 || hi < lo {
		return 0
	}
	if hi == lo {
		return lo
	}
	return lo + time.Duration(rand.Int64N(int64(hi-lo)))
}

// prune drops timestamps at or before cutoff. Logs are append-only in time
// order, so the survivors are a suffix.
func prune(log []time.Time, cutoff time.Time) []time.Time {
	i := 0
	for i < len(log) && !log[i].After(cutoff) {
		i++
	}
	if i == 0 {
		return log
	}
	return append(log[:0], log[i:]...)
}
