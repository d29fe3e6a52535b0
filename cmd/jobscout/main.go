package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/use-agent/jobscout/api"
	"github.com/use-agent/jobscout/apply"
	"github.com/use-agent/jobscout/cache"
	"github.com/use-agent/jobscout/config"
	"github.com/use-agent/jobscout/drafter"
	"github.com/use-agent/jobscout/ingest"
	"github.com/use-agent/jobscout/llm"
	"github.com/use-agent/jobscout/models"
	"github.com/use-agent/jobscout/retry"
	"github.com/use-agent/jobscout/scheduler"
	"github.com/use-agent/jobscout/store"
	"github.com/use-agent/jobscout/sweeper"
	"github.com/use-agent/jobscout/webhook"
)

func main() {
	if len(os.Args) > 1 && os.Args[1] == "probe" {
		if err := runProbe(os.Args[2:]); err != nil {
			fmt.Fprintf(os.Stderr, "probe: %v\n", err)
			os.Exit(1)
		}
		return
	}
	if err := run(); err != nil {
		slog.Error("jobscout failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// ── 1. Load configuration ───────────────────────────────────────
	cfg := config.Load()

	// ── 2. Initialise structured logging ────────────────────────────
	initLogger(cfg.Log)
	slog.Info("jobscout starting",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
		"mode", cfg.Server.Mode,
		"keywords", len(cfg.Search.Keywords),
		"location", cfg.Search.Location,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── 3. Record store ─────────────────────────────────────────────
	st, err := openStore(ctx, cfg.Store)
	if err != nil {
		return err
	}
	defer st.Close()

	// ── 4. Redis (optional) ─────────────────────────────────────────
	var rdb *redis.Client
	if cfg.Redis.URL != "" {
		if rdb, err = scheduler.NewRedisClient(ctx, cfg.Redis.URL); err != nil {
			return err
		}
		defer rdb.Close()
		slog.Info("redis connected, cycle lock and cooldowns are shared")
	}

	// ── 5. Fetch engines ────────────────────────────────────────────
	dispatcher, pool, closeEngines := buildEngines(ctx, cfg)
	defer closeEngines()

	// ── 6. Sources ──────────────────────────────────────────────────
	registry, err := buildSources(cfg, dispatcher)
	if err != nil {
		return err
	}

	// ── 7. Pipeline stages ──────────────────────────────────────────
	ingester := ingest.New(st, ingest.Config{
		RepostAfter: time.Duration(cfg.Retention.RepostAfterDays) * 24 * time.Hour,
		RedFlags:    cfg.Scraper.RedFlags,
	})
	sw := sweeper.New(st, nil)
	stats := cache.New[*models.JobStats](cfg.Cache.StatsTTL, 1)

	opts := []scheduler.Option{
		scheduler.WithHook(func(context.Context, *scheduler.CycleReport) { stats.Invalidate() }),
	}
	if rdb != nil {
		opts = append(opts,
			scheduler.WithLock(scheduler.NewRedisLock(rdb, cfg.Redis.LockTTL)),
			scheduler.WithCooldowns(scheduler.NewRedisCooldowns(rdb)),
		)
	}
	var d *drafter.Drafter
	if cfg.Drafter.Enabled {
		if d, err = newDrafter(cfg, st); err != nil {
			return err
		}
		opts = append(opts, scheduler.WithHook(func(ctx context.Context, _ *scheduler.CycleReport) {
			go func() {
				if _, err := d.RunBatch(ctx); err != nil && !errors.Is(err, drafter.ErrBusy) {
					slog.Error("drafting batch failed", "error", err)
				}
				stats.Invalidate()
			}()
		}))
	}
	var notifier *webhook.Notifier
	if cfg.Webhook.URL != "" {
		notifier = webhook.New(cfg.Webhook.URL, cfg.Webhook.Secret)
		opts = append(opts, scheduler.WithHook(notifier.CycleHook))
	}

	orch := scheduler.New(scheduler.Config{
		Keywords:        cfg.Search.Keywords,
		Location:        cfg.Search.Location,
		MaxPages:        maxPagesBySource(cfg),
		MaxAgeDays:      cfg.Retention.MaxJobAgeDays,
		SourceDelay:     cfg.Scraper.SourceDelay,
		KeywordDelay:    cfg.Scraper.KeywordDelay,
		CaptchaCooldown: cfg.Scraper.CaptchaCooldown,
	}, registry, ingester, sw, opts...)

	// ── 8. Scheduler ────────────────────────────────────────────────
	var crons *scheduler.Cron
	if cfg.Schedule.Enabled {
		crons = scheduler.NewCron(scheduler.CronConfig{
			Every:      cfg.Schedule.Every,
			SweepSpec:  cfg.Schedule.SweepSpec,
			MaxAgeDays: cfg.Retention.MaxJobAgeDays,
			RunOnStart: cfg.Schedule.RunOnStart,
		}, orch, sw)
		if err := crons.Start(ctx); err != nil {
			return err
		}
	}

	// ── 9. Applications ─────────────────────────────────────────────
	var mailer apply.Mailer
	if cfg.Mail.Host != "" {
		mailer = apply.NewSMTPMailer(apply.SMTPConfig{
			Host:     cfg.Mail.Host,
			Port:     cfg.Mail.Port,
			Username: cfg.Mail.Username,
			Password: cfg.Mail.Password,
			From:     cfg.Mail.From,
		})
		slog.Info("SMTP relay configured, applications can be emailed", "host", cfg.Mail.Host)
	}

	// ── 10. HTTP server ─────────────────────────────────────────────
	deps := api.Deps{
		Store:     st,
		Cycles:    orch,
		Sweeper:   sw,
		Stats:     stats,
		Sources:   registry,
		Applicant: apply.New(st, mailer, nil),
		Pool:      pool,
		StartTime: time.Now(),
	}
	if d != nil {
		deps.Preparer = d
	}
	router := api.NewRouter(ctx, deps, cfg)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errc := make(chan error, 1)
	go func() {
		slog.Info("HTTP server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
	}()

	// ── 11. Graceful shutdown ───────────────────────────────────────
	select {
	case <-ctx.Done():
		slog.Info("shutdown signal received")
	case err := <-errc:
		return fmt.Errorf("http server: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server forced shutdown", "error", err)
	} else {
		slog.Info("HTTP server drained gracefully")
	}
	if crons != nil {
		crons.Stop()
	}
	if notifier != nil {
		notifier.Wait()
	}

	slog.Info("jobscout stopped")
	return nil
}

func openStore(ctx context.Context, cfg config.StoreConfig) (store.Store, error) {
	if cfg.DatabaseURL == "" {
		slog.Warn("JOBSCOUT_DATABASE_URL not set, records are kept in memory only")
		return store.NewMemory(), nil
	}
	pg, err := store.NewPostgres(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	slog.Info("postgres store ready")
	return pg, nil
}

func newDrafter(cfg *config.Config, st store.Store) (*drafter.Drafter, error) {
	params := llm.Params{
		Provider: cfg.LLM.Provider,
		APIKey:   cfg.LLM.APIKey,
		Model:    cfg.LLM.Model,
		Timeout:  cfg.LLM.Timeout,
	}
	if cfg.LLM.Provider == "openai" {
		params.BaseURL = cfg.LLM.BaseURL
	}
	gen, err := llm.New(params)
	if err != nil {
		return nil, err
	}
	if gen == nil {
		slog.Warn("no LLM provider configured, drafts use templates", "provider", cfg.LLM.Provider)
	}

	profile, err := drafter.LoadProfile(cfg.Drafter.ProfileFile)
	if err != nil {
		return nil, err
	}
	return drafter.New(st, llm.NewFallback(gen, retry.Policy{}), profile, drafter.Config{
		BatchSize: cfg.Drafter.BatchSize,
	}), nil
}

// initLogger configures slog based on the LogConfig.
func initLogger(cfg config.LogConfig) {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if cfg.Format == "text" {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	slog.SetDefault(slog.New(handler))
}
