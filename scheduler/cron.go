package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// CronConfig configures the periodic triggers.
type CronConfig struct {
	// Every is the cycle interval, e.g. 6h.
	Every time.Duration

	// SweepSpec is a cron spec for the standalone staleness sweep, e.g.
	// "0 3 * * *". Empty disables it.
	SweepSpec string

	MaxAgeDays int

	// RunOnStart fires one cycle as soon as Start is called.
	RunOnStart bool
}

// Cron wraps robfig/cron and triggers cycles and sweeps.
type Cron struct {
	cron    *cron.Cron
	cfg     CronConfig
	orch    *Orchestrator
	sweeper Sweeper
}

// NewCron creates a Cron. sweeper may be nil when SweepSpec is empty.
func NewCron(cfg CronConfig, orch *Orchestrator, sweeper Sweeper) *Cron {
	logger := cron.PrintfLogger(slog.NewLogLogger(slog.Default().Handler(), slog.LevelDebug))
	return &Cron{
		cron:    cron.New(cron.WithLogger(logger), cron.WithChain(cron.Recover(logger))),
		cfg:     cfg,
		orch:    orch,
		sweeper: sweeper,
	}
}

// Start registers the jobs and starts the scheduler. Jobs run until Stop
// or until ctx is cancelled.
func (c *Cron) Start(ctx context.Context) error {
	if c.cfg.Every <= 0 {
		return fmt.Errorf("schedule interval must be positive, got %s", c.cfg.Every)
	}
	spec := "@every " + c.cfg.Every.String()
	if _, err := c.cron.AddFunc(spec, func() { c.runCycle(ctx, "cron") }); err != nil {
		return fmt.Errorf("cron.AddFunc %q: %w", spec, err)
	}
	if c.cfg.SweepSpec != "" && c.sweeper != nil {
		if _, err := c.cron.AddFunc(c.cfg.SweepSpec, func() { c.runSweep(ctx) }); err != nil {
			return fmt.Errorf("cron.AddFunc %q: %w", c.cfg.SweepSpec, err)
		}
	}

	c.cron.Start()
	slog.Info("scheduler started", "every", c.cfg.Every, "sweep", c.cfg.SweepSpec)

	if c.cfg.RunOnStart {
		go c.runCycle(ctx, "startup")
	}
	return nil
}

// Stop stops the scheduler and waits for running jobs to return.
func (c *Cron) Stop() {
	<-c.cron.Stop().Done()
	slog.Info("scheduler stopped")
}

func (c *Cron) runCycle(ctx context.Context, trigger string) {
	if ctx.Err() != nil {
		return
	}
	if _, err := c.orch.RunScrapingJob(ctx, trigger); err != nil && !errors.Is(err, ErrCycleRunning) {
		slog.Error("scheduled cycle failed", "trigger", trigger, "error", err)
	}
}

func (c *Cron) runSweep(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	n, err := c.sweeper.Sweep(ctx, c.cfg.MaxAgeDays)
	if err != nil {
		slog.Error("scheduled sweep failed", "error", err)
		return
	}
	slog.Info("scheduled sweep finished", "expired", n)
}
