// Package drafter is the downstream stage that turns scraped records into
// review-ready applications: it validates a record, extracts the skills it
// shares with the candidate profile, then drafts a tailored CV and a cover
// email. Every stage is persisted, so an interrupted record resumes where
// it stopped.
package drafter

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync/atomic"
	"time"

	"github.com/use-agent/jobscout/llm"
	"github.com/use-agent/jobscout/models"
	"github.com/use-agent/jobscout/store"
)

// ErrBusy is returned when a batch is already running.
var ErrBusy = errors.New("drafting batch already running")

// Pending lists the statuses the drafter picks up. Records stopped midway
// are resumed from their current stage.
var Pending = []models.Status{
	models.StatusScraped,
	models.StatusValidated,
	models.StatusKeywordsExtracted,
	models.StatusResumePending,
	models.StatusResumeGenerated,
	models.StatusEmailPending,
	models.StatusEmailGenerated,
}

// Config tunes a Drafter.
type Config struct {
	BatchSize int // default: 10

	// MaxAttempts moves a record that keeps failing validation to failed.
	MaxAttempts int // default: 3

	Now func() time.Time
}

// Stats tallies one batch.
type Stats struct {
	Processed int `json:"processed"`
	Ready     int `json:"ready"`
	Invalid   int `json:"invalid"`
	Failed    int `json:"failed"`
	Fallbacks int `json:"fallbacks"`
}

// Drafter advances records through the drafting stages.
type Drafter struct {
	st      store.Store
	gen     *llm.Fallback
	profile *Profile
	cfg     Config
	running atomic.Bool
}

// New creates a Drafter.
func New(st store.Store, gen *llm.Fallback, profile *Profile, cfg Config) *Drafter {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 10
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Drafter{st: st, gen: gen, profile: profile, cfg: cfg}
}

type stage struct {
	from, to models.Status
	run      func(ctx context.Context, rec *models.JobRecord, now time.Time) error
}

// errInvalid marks a record that cannot be drafted yet.
type errInvalid string

func (e errInvalid) Error() string { return string(e) }

func (d *Drafter) stages() []stage {
	noop := func(context.Context, *models.JobRecord, time.Time) error { return nil }
	return []stage{
		{models.StatusScraped, models.StatusValidated, d.validate},
		{models.StatusValidated, models.StatusKeywordsExtracted, d.extractKeywords},
		{models.StatusKeywordsExtracted, models.StatusResumePending, noop},
		{models.StatusResumePending, models.StatusResumeGenerated, d.draftResume},
		{models.StatusResumeGenerated, models.StatusEmailPending, noop},
		{models.StatusEmailPending, models.StatusEmailGenerated, d.draftEmail},
		{models.StatusEmailGenerated, models.StatusReadyForReview, d.finish},
	}
}

// RunBatch drafts up to BatchSize pending records, highest priority first.
// It returns early only when ctx ends or the store is unavailable.
func (d *Drafter) RunBatch(ctx context.Context) (Stats, error) {
	var stats Stats
	if !d.running.CompareAndSwap(false, true) {
		return stats, ErrBusy
	}
	defer d.running.Store(false)

	recs, _, err := d.st.List(ctx, store.Query{
		Filter: store.Filter{Statuses: Pending},
		Limit:  d.cfg.BatchSize,
	})
	if err != nil {
		return stats, fmt.Errorf("list pending records: %w", err)
	}

	for _, rec := range recs {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		err := d.process(ctx, rec, &stats)
		switch {
		case err == nil:
		case errors.Is(err, store.ErrUnavailable), ctx.Err() != nil:
			return stats, err
		case errors.Is(err, store.ErrNotFound):
			slog.Info("record deleted while drafting", "job_id", rec.JobID)
		case errors.Is(err, store.ErrConflict):
			slog.Info("record moved while drafting, leaving it", "job_id", rec.JobID, "error", err)
		default:
			stats.Failed++
			slog.Error("drafting failed", "job_id", rec.JobID, "error", err)
		}
	}

	if len(recs) > 0 {
		slog.Info("drafting batch finished",
			"processed", stats.Processed,
			"ready", stats.Ready,
			"invalid", stats.Invalid,
			"failed", stats.Failed,
			"fallbacks", stats.Fallbacks,
		)
	}
	return stats, nil
}

// Prepare drafts one record now instead of waiting for the next batch.
// The record must be in a Pending status. A record the drafter cannot bring
// to ready_for_review comes back with an INVALID_INPUT error carrying the
// last logged failure.
func (d *Drafter) Prepare(ctx context.Context, id string) (*models.JobRecord, error) {
	rec, err := d.st.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !slices.Contains(Pending, rec.Status) {
		return nil, models.NewScrapeError(models.ErrCodeInvalidStatus,
			fmt.Sprintf("job %s is %s and cannot be prepared", id, rec.Status), nil)
	}

	var stats Stats
	if err := d.process(ctx, rec, &stats); err != nil {
		return nil, err
	}
	if rec.Status != models.StatusReadyForReview {
		msg := "job could not be drafted"
		if n := len(rec.ErrorLogs); n > 0 {
			msg = rec.ErrorLogs[n-1].Message
		}
		return nil, models.NewScrapeError(models.ErrCodeInvalidInput, msg, nil)
	}
	return rec, nil
}

// process runs every remaining stage of rec. Each save is conditional on
// the status the drafter last wrote, so a record rejected, expired or
// deleted meanwhile is left as it is and ErrConflict or ErrNotFound comes
// back.
func (d *Drafter) process(ctx context.Context, rec *models.JobRecord, stats *Stats) error {
	now := d.cfg.Now()
	stored := rec.Status
	rec.ProcessingAttempts++
	rec.LastProcessedAt = &now
	stats.Processed++
	usedFallback := rec.AIGenerated.UsedFallback

	for _, s := range d.stages() {
		if rec.Status != s.from {
			continue
		}
		err := s.run(ctx, rec, now)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		var invalid errInvalid
		if errors.As(err, &invalid) {
			return d.reject(ctx, rec, stored, invalid, now, stats)
		}
		if err != nil {
			rec.AppendError(string(s.from), err.Error(), now)
			if saveErr := d.save(ctx, rec, stored, now); saveErr != nil {
				return errors.Join(err, saveErr)
			}
			return err
		}
		if !models.CanTransition(rec.Status, s.to) {
			return fmt.Errorf("illegal transition %s -> %s", rec.Status, s.to)
		}
		rec.Status = s.to
		if err := d.save(ctx, rec, stored, now); err != nil {
			return err
		}
		stored = rec.Status
	}

	if rec.AIGenerated.UsedFallback && !usedFallback {
		stats.Fallbacks++
	}
	if rec.Status == models.StatusReadyForReview {
		stats.Ready++
		slog.Info("record ready for review", "job_id", rec.JobID, "match_score", rec.Quality.MatchScore)
	}
	return nil
}

// reject logs why a record cannot be drafted. It stays put for another
// attempt until MaxAttempts, then fails.
func (d *Drafter) reject(ctx context.Context, rec *models.JobRecord, stored models.Status, why errInvalid, now time.Time, stats *Stats) error {
	rec.AppendError("validation", string(why), now)
	if rec.ProcessingAttempts >= d.cfg.MaxAttempts {
		rec.Status = models.StatusFailed
		stats.Failed++
	} else {
		stats.Invalid++
	}
	slog.Warn("record not draftable", "job_id", rec.JobID, "reason", string(why), "status", rec.Status)
	return d.save(ctx, rec, stored, now)
}

func (d *Drafter) save(ctx context.Context, rec *models.JobRecord, expect models.Status, now time.Time) error {
	rec.UpdatedAt = now
	return d.st.UpdateIf(ctx, rec, expect)
}

func (d *Drafter) validate(_ context.Context, rec *models.JobRecord, _ time.Time) error {
	switch {
	case strings.TrimSpace(rec.Title) == "" || strings.TrimSpace(rec.Company) == "":
		return errInvalid("missing title or company")
	case strings.TrimSpace(rec.Description) == "" && len(rec.Requirements) == 0:
		return errInvalid("no description or requirements")
	}
	return nil
}

func (d *Drafter) extractKeywords(ctx context.Context, rec *models.JobRecord, _ time.Time) error {
	res := d.analyse(ctx, rec)
	rec.AIGenerated.Skills = res.MatchedSkills
	rec.AIGenerated.MissingSkills = res.MissingSkills
	rec.AIGenerated.Recommendations = res.Recommendations
	rec.AIGenerated.ATSSource = res.source
	rec.Quality.MatchScore = res.Score
	return nil
}

func (d *Drafter) draftResume(ctx context.Context, rec *models.JobRecord, _ time.Time) error {
	text, fallback := d.gen.Generate(ctx, resumePrompt(d.profile, rec), resumeTemplate(d.profile, rec))
	rec.AIGenerated.Resume = text
	rec.AIGenerated.UsedFallback = rec.AIGenerated.UsedFallback || fallback
	return nil
}

func (d *Drafter) draftEmail(ctx context.Context, rec *models.JobRecord, _ time.Time) error {
	text, fallback := d.gen.Generate(ctx, emailPrompt(d.profile, rec), emailTemplate(d.profile, rec))
	rec.AIGenerated.Email = text
	rec.AIGenerated.EmailSubject = emailSubject(rec)
	rec.AIGenerated.UsedFallback = rec.AIGenerated.UsedFallback || fallback
	return nil
}

func (d *Drafter) finish(_ context.Context, rec *models.JobRecord, now time.Time) error {
	rec.AIGenerated.GeneratedAt = &now
	return nil
}
