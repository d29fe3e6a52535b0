// Package scheduler drives scraping cycles.
//
// A cycle walks keywords × enabled sources in priority order, feeds every
// source's listings to the ingestion engine and finishes with a staleness
// sweep. At most one cycle runs at a time per process, and across
// processes when a distributed Lock is configured.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/use-agent/jobscout/ingest"
	"github.com/use-agent/jobscout/models"
	"github.com/use-agent/jobscout/retry"
	"github.com/use-agent/jobscout/scraper"
)

// ErrCycleRunning is returned when a trigger arrives while a cycle is in
// flight. The trigger is dropped, never queued.
var ErrCycleRunning = errors.New("scraping cycle already running")

// Sources lists the scrapers to run. *scraper.Registry satisfies it.
type Sources interface {
	Enabled() []scraper.Scraper
}

// Ingester stores listings. *ingest.Engine satisfies it.
type Ingester interface {
	Ingest(ctx context.Context, listings []models.JobListing) (ingest.Counts, error)
}

// Sweeper expires stale records. *sweeper.Sweeper satisfies it.
type Sweeper interface {
	Sweep(ctx context.Context, maxAgeDays int) (int64, error)
}

// Lock serialises cycles across processes. Acquire reports ok=false when
// another holder has it.
type Lock interface {
	Acquire(ctx context.Context) (release func(), ok bool, err error)
}

// Cooldowns benches sources that served a CAPTCHA.
type Cooldowns interface {
	Bench(ctx context.Context, key string, d time.Duration) error
	Benched(ctx context.Context, key string) (bool, error)
}

// Hook runs after every completed cycle.
type Hook func(ctx context.Context, report *CycleReport)

// Config tunes an Orchestrator.
type Config struct {
	Keywords []string
	Location string

	// MaxPages per source key. Missing keys use the scraper default.
	MaxPages map[string]int

	// MaxAgeDays drops listings older than this at scrape time and is the
	// sweep cutoff after the cycle.
	MaxAgeDays int

	SourceDelay  time.Duration
	KeywordDelay time.Duration

	// CaptchaCooldown benches a source after a CAPTCHA. Zero disables it.
	CaptchaCooldown time.Duration
}

// Entry is the outcome of one source for one keyword.
type Entry struct {
	Source  string          `json:"source"`
	Keyword string          `json:"keyword"`
	Found   int             `json:"found"`
	Counts  ingest.Counts   `json:"counts"`
	Stop    string          `json:"stop,omitempty"`
	Pages   int             `json:"pages"`
	Metrics scraper.Metrics `json:"metrics"`
	Skipped string          `json:"skipped,omitempty"`
	Error   string          `json:"error,omitempty"`
	Elapsed time.Duration   `json:"elapsed_ns"`
}

// Failed reports whether the source run ended with an error.
func (e Entry) Failed() bool { return e.Error != "" }

// CycleReport aggregates one cycle.
type CycleReport struct {
	ID         string        `json:"id"`
	Trigger    string        `json:"trigger"`
	StartedAt  time.Time     `json:"started_at"`
	FinishedAt time.Time     `json:"finished_at"`
	Duration   time.Duration `json:"duration_ns"`

	Entries []Entry       `json:"entries"`
	Found   int           `json:"found"`
	Totals  ingest.Counts `json:"totals"`

	// Failures counts entries that ended with an error.
	Failures int `json:"failures"`

	// Captchas lists sources that served a challenge this cycle.
	Captchas []string `json:"captchas,omitempty"`

	Swept      int64  `json:"swept"`
	SweepError string `json:"sweep_error,omitempty"`

	// Interrupted is set when ctx ended before the cycle finished.
	Interrupted bool `json:"interrupted,omitempty"`
}

// Orchestrator runs scraping cycles. Build it with New.
type Orchestrator struct {
	cfg       Config
	sources   Sources
	ingester  Ingester
	sweeper   Sweeper
	lock      Lock
	cooldowns Cooldowns
	hooks     []Hook

	running atomic.Bool

	mu   sync.RWMutex
	last *CycleReport

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// Option customises an Orchestrator.
type Option func(*Orchestrator)

// WithLock serialises cycles across processes.
func WithLock(l Lock) Option { return func(o *Orchestrator) { o.lock = l } }

// WithCooldowns replaces the in-process cooldown table.
func WithCooldowns(c Cooldowns) Option { return func(o *Orchestrator) { o.cooldowns = c } }

// WithHook adds a post-cycle hook. Hooks run in registration order.
func WithHook(h Hook) Option { return func(o *Orchestrator) { o.hooks = append(o.hooks, h) } }

// WithClock overrides time and sleeping, for tests.
func WithClock(now func() time.Time, sleep func(context.Context, time.Duration) error) Option {
	return func(o *Orchestrator) {
		o.now = now
		o.sleep = sleep
	}
}

// New creates an Orchestrator.
func New(cfg Config, sources Sources, ingester Ingester, sweeper Sweeper, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		cfg:      cfg,
		sources:  sources,
		ingester: ingester,
		sweeper:  sweeper,
		now:      time.Now,
		sleep:    retry.Sleep,
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.cooldowns == nil {
		o.cooldowns = NewMemoryCooldowns(o.now)
	}
	return o
}

// Running reports whether a cycle is in flight.
func (o *Orchestrator) Running() bool { return o.running.Load() }

// LastReport returns the most recent completed cycle, or nil.
func (o *Orchestrator) LastReport() *CycleReport {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.last
}

// RunScrapingJob runs one cycle and blocks until it ends. A call while a
// cycle is running logs a warning and returns ErrCycleRunning at once.
func (o *Orchestrator) RunScrapingJob(ctx context.Context, trigger string) (*CycleReport, error) {
	if !o.running.CompareAndSwap(false, true) {
		slog.Warn("scraping cycle already running, dropping trigger", "trigger", trigger)
		return nil, ErrCycleRunning
	}
	defer o.running.Store(false)
	return o.run(ctx, trigger)
}

// Start runs one cycle in the background. It returns ErrCycleRunning
// synchronously when a cycle is already in flight.
func (o *Orchestrator) Start(ctx context.Context, trigger string) error {
	if !o.running.CompareAndSwap(false, true) {
		slog.Warn("scraping cycle already running, dropping trigger", "trigger", trigger)
		return ErrCycleRunning
	}
	go func() {
		defer o.running.Store(false)
		if _, err := o.run(ctx, trigger); err != nil && !errors.Is(err, ErrCycleRunning) {
			slog.Error("scraping cycle failed", "trigger", trigger, "error", err)
		}
	}()
	return nil
}

func (o *Orchestrator) run(ctx context.Context, trigger string) (*CycleReport, error) {
	if o.lock != nil {
		release, ok, err := o.lock.Acquire(ctx)
		if err != nil {
			return nil, fmt.Errorf("acquire cycle lock: %w", err)
		}
		if !ok {
			slog.Warn("scraping cycle running on another instance, dropping trigger", "trigger", trigger)
			return nil, ErrCycleRunning
		}
		defer release()
	}

	report := &CycleReport{ID: uuid.NewString(), Trigger: trigger, StartedAt: o.now()}
	log := slog.With("cycle", report.ID)
	log.Info("scraping cycle started", "trigger", trigger, "keywords", len(o.cfg.Keywords))

	err := o.walk(ctx, report)
	if err != nil {
		report.Interrupted = true
	} else {
		o.sweep(ctx, report)
	}

	report.FinishedAt = o.now()
	report.Duration = report.FinishedAt.Sub(report.StartedAt)
	log.Info("scraping cycle finished",
		"trigger", trigger,
		"duration", report.Duration,
		"found", report.Found,
		"created", report.Totals.Created,
		"updated", report.Totals.Updated,
		"duplicate", report.Totals.Duplicate,
		"errored", report.Totals.Errored,
		"filtered", report.Totals.Filtered,
		"failures", report.Failures,
		"captchas", len(report.Captchas),
		"swept", report.Swept,
		"interrupted", report.Interrupted,
	)

	o.mu.Lock()
	o.last = report
	o.mu.Unlock()

	for _, h := range o.hooks {
		o.runHook(ctx, h, report)
	}
	return report, err
}

// walk runs every keyword × source pair. It returns an error only when ctx
// ended.
func (o *Orchestrator) walk(ctx context.Context, report *CycleReport) error {
	for ki, keyword := range o.cfg.Keywords {
		sources := o.sources.Enabled()
		for si, src := range sources {
			if err := ctx.Err(); err != nil {
				return err
			}

			entry := o.runSource(ctx, src, keyword)
			report.Entries = append(report.Entries, entry)
			report.Found += entry.Found
			report.Totals.Add(entry.Counts)
			if entry.Failed() {
				report.Failures++
			}
			if entry.Stop == string(scraper.StopCaptcha) {
				report.Captchas = append(report.Captchas, entry.Source)
			}

			if si < len(sources)-1 && entry.Skipped == "" {
				if err := o.sleep(ctx, o.cfg.SourceDelay); err != nil {
					return err
				}
			}
		}
		if ki < len(o.cfg.Keywords)-1 {
			if err := o.sleep(ctx, o.cfg.KeywordDelay); err != nil {
				return err
			}
		}
	}
	return nil
}

// runSource runs one scraper for one keyword and ingests the result. A
// failure, even a panic, is recorded on the entry and never escapes.
func (o *Orchestrator) runSource(ctx context.Context, src scraper.Scraper, keyword string) (entry Entry) {
	key := src.Key()
	entry = Entry{Source: key, Keyword: keyword}
	log := slog.With("source", key, "keyword", keyword)

	if benched, err := o.cooldowns.Benched(ctx, key); err != nil {
		log.Warn("cooldown lookup failed, running source anyway", "error", err)
	} else if benched {
		entry.Skipped = "captcha cooldown"
		log.Info("source skipped, cooling down after captcha")
		return entry
	}

	start := o.now()
	defer func() {
		if r := recover(); r != nil {
			entry.Error = fmt.Sprintf("panic: %v", r)
			log.Error("source panicked", "panic", r, "stack", string(debug.Stack()))
		}
		entry.Elapsed = o.now().Sub(start)
	}()

	src.ResetMetrics()
	opts := scraper.Options{MaxPages: o.cfg.MaxPages[key]}
	if o.cfg.MaxAgeDays > 0 {
		opts.MaxAge = time.Duration(o.cfg.MaxAgeDays) * 24 * time.Hour
	}
	res, err := src.Scrape(ctx, keyword, o.cfg.Location, opts)
	entry.Metrics = src.Metrics()
	if err != nil {
		entry.Error = err.Error()
		log.Error("source run failed", "error", err)
	}
	if res == nil {
		return entry
	}

	entry.Stop = string(res.Stop)
	entry.Pages = res.Pages
	entry.Found = len(res.Listings)
	if res.Captcha() {
		log.Warn("source served an anti-bot challenge",
			"signal", "captcha", "vendor", res.Challenge, "cooldown", o.cfg.CaptchaCooldown)
		if o.cfg.CaptchaCooldown > 0 {
			if err := o.cooldowns.Bench(ctx, key, o.cfg.CaptchaCooldown); err != nil {
				log.Warn("could not bench source", "error", err)
			}
		}
	}

	if len(res.Listings) > 0 {
		counts, err := o.ingester.Ingest(ctx, res.Listings)
		entry.Counts = counts
		if err != nil {
			entry.Error = err.Error()
			log.Error("ingest failed", "error", err)
		}
	}
	log.Info("source finished",
		"found", entry.Found, "saved", entry.Counts.Created, "updated", entry.Counts.Updated,
		"duplicate", entry.Counts.Duplicate, "stop", entry.Stop)
	return entry
}

func (o *Orchestrator) sweep(ctx context.Context, report *CycleReport) {
	if o.sweeper == nil || o.cfg.MaxAgeDays <= 0 {
		return
	}
	n, err := o.sweeper.Sweep(ctx, o.cfg.MaxAgeDays)
	if err != nil {
		report.SweepError = err.Error()
		slog.Error("post-cycle sweep failed", "error", err)
		return
	}
	report.Swept = n
}

func (o *Orchestrator) runHook(ctx context.Context, h Hook, report *CycleReport) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("post-cycle hook panicked", "panic", r)
		}
	}()
	h(ctx, report)
}
