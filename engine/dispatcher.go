package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
)

// Dispatcher tries engines one at a time, cheapest first, escalating only
// when the site refuses the current engine or serves a JS shell. Engines
// never run concurrently against the same URL: job boards count every
// request against the rate limit.
type Dispatcher struct {
	engines []Engine
	memory  *HostMemory
}

// NewDispatcher creates a Dispatcher. engines must be ordered from
// cheapest to heaviest. memory may be nil.
func NewDispatcher(engines []Engine, memory *HostMemory) *Dispatcher {
	return &Dispatcher{engines: engines, memory: memory}
}

// Engines returns the configured engine names in escalation order.
func (d *Dispatcher) Engines() []string {
	names := make([]string, len(d.engines))
	for i, e := range d.engines {
		names[i] = e.Name()
	}
	return names
}

// Fetch returns the first acceptable result. When every engine is refused
// the last refused result is returned with a nil error, so the caller can
// classify the block itself. An error is returned only when no engine
// produced any response at all.
func (d *Dispatcher) Fetch(ctx context.Context, req *FetchRequest) (*FetchResult, error) {
	if len(d.engines) == 0 {
		return nil, errors.New("dispatcher: no engines configured")
	}
	host := hostOf(req.URL)

	var (
		lastResult *FetchResult
		lastErr    error
	)
	engines := d.order(host)
	for i, eng := range engines {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		result, err := eng.Fetch(ctx, req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			slog.Debug("engine failed", "engine", eng.Name(), "url", req.URL, "error", err)
			lastErr = err
			d.forget(host, eng.Name())
			continue
		}
		lastResult = result

		if i < len(engines)-1 && shouldEscalate(result) {
			slog.Debug("escalating engine",
				"engine", eng.Name(), "url", req.URL, "status", result.StatusCode)
			d.forget(host, eng.Name())
			continue
		}

		if d.memory != nil && result.StatusCode < 400 && !result.Refused() {
			d.memory.Set(host, eng.Name())
		}
		return result, nil
	}

	if lastResult != nil {
		return lastResult, nil
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("dispatcher: all engines failed for %s", req.URL)
	}
	return nil, lastErr
}

// shouldEscalate decides whether the next engine deserves a try. Rate
// limiting and server errors are not escalated: a heavier engine would
// only spend another request against the same limit.
func shouldEscalate(r *FetchResult) bool {
	if r.Refused() {
		return true
	}
	return r.StatusCode == 200 && r.EngineName == "http" && NeedsBrowser([]byte(r.HTML))
}

// order starts escalation at the remembered engine for host.
func (d *Dispatcher) order(host string) []Engine {
	if d.memory == nil {
		return d.engines
	}
	remembered := d.memory.Get(host)
	if remembered == "" || remembered == d.engines[0].Name() {
		return d.engines
	}
	start := -1
	for i, e := range d.engines {
		if e.Name() == remembered {
			start = i
			break
		}
	}
	if start < 0 {
		return d.engines
	}
	// Engines cheaper than the remembered one were already refused for
	// this host; skip straight to it.
	return d.engines[start:]
}

func (d *Dispatcher) forget(host, engine string) {
	if d.memory != nil && d.memory.Get(host) == engine {
		d.memory.Forget(host)
	}
}

func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	return u.Hostname()
}
