package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/use-agent/jobscout/browser"
	"github.com/use-agent/jobscout/cache"
	"github.com/use-agent/jobscout/config"
	"github.com/use-agent/jobscout/engine"
	"github.com/use-agent/jobscout/models"
	"github.com/use-agent/jobscout/ratelimit"
	"github.com/use-agent/jobscout/retry"
	"github.com/use-agent/jobscout/scraper"
)

// buildEngines returns the escalation chain: plain HTTP first, then the
// browser with and without stealth when one can be launched. pool is nil
// without a browser. closeFn releases the browser.
func buildEngines(ctx context.Context, cfg *config.Config) (d *engine.Dispatcher, pool func() models.PoolStats, closeFn func()) {
	engines := []engine.Engine{engine.NewHTTPEngine(cfg.Scraper.FetchTimeout, cfg.Browser.Proxy)}
	closeFn = func() {}
	if cfg.Browser.Enabled {
		b, err := browser.Launch(cfg.Browser)
		if err != nil {
			// Static boards still work without a browser.
			slog.Warn("browser unavailable, continuing with the HTTP engine only", "error", err)
		} else {
			engines = append(engines,
				engine.NewRodEngine(b.Render, false),
				engine.NewRodEngine(b.Render, true),
			)
			pool = b.Stats
			closeFn = b.Close
		}
	}

	hosts := engine.NewHostMemory(cfg.Engine.HostMemoryTTL)
	go hosts.RunPruner(ctx, time.Hour)
	d = engine.NewDispatcher(engines, hosts)
	slog.Info("fetch engines ready", "engines", d.Engines())
	return d, pool, closeFn
}

// buildSources wires the shared limiter and retry policy into every source.
func buildSources(cfg *config.Config, fetcher scraper.Fetcher) (*scraper.Registry, error) {
	limiter := ratelimit.New(ratelimit.Config{
		Limit:     10,
		Window:    time.Minute,
		Margin:    time.Second,
		JitterMin: cfg.Scraper.JitterMin,
		JitterMax: cfg.Scraper.JitterMax,
	})
	deps := scraper.Deps{
		Fetcher: fetcher,
		Limiter: limiter,
		Retry: retry.Policy{
			MaxAttempts: cfg.Scraper.RetryAttempts,
			BaseDelay:   cfg.Scraper.RetryBaseDelay,
			MaxDelay:    cfg.Scraper.RetryMaxDelay,
		},
		Timeout: cfg.Scraper.FetchTimeout,
	}
	return buildRegistry(cfg, deps, limiter)
}

// buildRegistry registers every known source in configured priority order
// and sets each source's request budget on the limiter.
func buildRegistry(cfg *config.Config, deps scraper.Deps, limits interface{ SetLimit(string, int) }) (*scraper.Registry, error) {
	companies, err := scraper.LoadCompanies(cfg.Sources.CompaniesFile)
	if err != nil {
		return nil, err
	}

	known := map[string]scraper.Scraper{
		"reed":          scraper.NewBoard(scraper.NewReed(), deps),
		"indeed":        scraper.NewBoard(scraper.NewIndeed(), deps),
		"totaljobs":     scraper.NewBoard(scraper.NewTotalJobs(), deps),
		"cwjobs":        scraper.NewBoard(scraper.NewCWJobs(), deps),
		"studentcircus": scraper.NewBoard(scraper.NewStudentCircus(), deps),
		"companies":     scraper.NewCompanyPages(companies, deps, cache.New[string](30*time.Minute, 64)),
	}

	reg := scraper.NewRegistry()
	for i, key := range config.SourceOrder() {
		s, ok := known[key]
		if !ok {
			slog.Warn("unknown source in JOBSCOUT_SOURCE_ORDER, ignoring", "source", key)
			continue
		}
		sc := cfg.Sources.Get(key)
		if err := reg.Register(s, i+1, sc.Enabled); err != nil {
			return nil, fmt.Errorf("register %s: %w", key, err)
		}
		limits.SetLimit(key, sc.RequestsPerMinute)
		slog.Info("source registered", "source", key, "enabled", sc.Enabled,
			"rpm", sc.RequestsPerMinute, "max_pages", sc.MaxPages)
	}
	return reg, nil
}

func maxPagesBySource(cfg *config.Config) map[string]int {
	out := make(map[string]int, len(cfg.Sources.Sources))
	for key, sc := range cfg.Sources.Sources {
		out[key] = sc.MaxPages
	}
	return out
}
