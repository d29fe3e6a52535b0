// Package ingest deduplicates scraped listings into the record store.
//
// Identity is the content hash of title, company and location, with the
// source URL and jobId as co-referring fallbacks. A match is either a
// duplicate (seen recently, left alone) or a repost (unseen for longer than
// the repost threshold, refreshed and resurfaced).
package ingest

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/use-agent/jobscout/models"
	"github.com/use-agent/jobscout/store"
)

// DefaultRepostAfter is how long a job must go unseen before a new sighting
// counts as a repost.
const DefaultRepostAfter = 30 * 24 * time.Hour

// Counts tallies one Ingest call.
type Counts struct {
	Created   int `json:"created"`
	Updated   int `json:"updated"`
	Duplicate int `json:"duplicate"`
	Errored   int `json:"errored"`
	Filtered  int `json:"filtered"`
}

// Add accumulates o into c.
func (c *Counts) Add(o Counts) {
	c.Created += o.Created
	c.Updated += o.Updated
	c.Duplicate += o.Duplicate
	c.Errored += o.Errored
	c.Filtered += o.Filtered
}

// Config tunes an Engine.
type Config struct {
	// RepostAfter is the repost threshold. Default: 30 days.
	RepostAfter time.Duration

	// RedFlags are case-insensitive terms; a listing whose title, company
	// or description contains one is counted as filtered and not stored.
	RedFlags []string

	// Now is injectable for tests. Default: time.Now.
	Now func() time.Time
}

// Engine is the only writer of scrape-originated changes to the store.
type Engine struct {
	store    store.Store
	cfg      Config
	validate *validator.Validate
}

// New creates an Engine over st.
func New(st store.Store, cfg Config) *Engine {
	if cfg.RepostAfter <= 0 {
		cfg.RepostAfter = DefaultRepostAfter
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Engine{store: st, cfg: cfg, validate: validator.New()}
}

// Ingest stores listings one at a time. A bad listing is counted and
// skipped; only store unavailability or a cancelled ctx ends the call
// early, returning the counts so far with the error.
func (e *Engine) Ingest(ctx context.Context, listings []models.JobListing) (Counts, error) {
	var c Counts
	for i := range listings {
		if err := ctx.Err(); err != nil {
			return c, err
		}
		if err := e.ingestOne(ctx, listings[i], &c); err != nil {
			return c, err
		}
	}
	return c, nil
}

// ingestOne returns an error only when the whole call must stop.
func (e *Engine) ingestOne(ctx context.Context, l models.JobListing, c *Counts) error {
	if err := e.validate.Struct(&l); err != nil {
		c.Errored++
		slog.Debug("listing failed validation", "url", l.URL, "error", err)
		return nil
	}
	if containsRedFlag(&l, e.cfg.RedFlags) {
		c.Filtered++
		return nil
	}

	now := e.cfg.Now()
	hash := ListingHash(&l)

	existing, err := e.store.FindByKeys(ctx, hash, l.URL, l.JobID)
	switch {
	case errors.Is(err, store.ErrNotFound):
		return e.create(ctx, l, hash, now, c)
	case err != nil:
		return e.recordFailure(err, l, c)
	}

	if now.Sub(existing.Source.ScrapedAt) <= e.cfg.RepostAfter {
		c.Duplicate++
		return nil
	}
	return e.repost(ctx, existing, l, now, c)
}

func (e *Engine) create(ctx context.Context, l models.JobListing, hash string, now time.Time, c *Counts) error {
	rec := models.NewJobRecord(l, hash, now)
	rec.Quality = quality(&l, now)

	err := e.store.InsertIfAbsent(ctx, rec)
	switch {
	case err == nil:
		c.Created++
		slog.Debug("job created", "job_id", rec.JobID, "title", rec.Title, "company", rec.Company,
			"priority", rec.Quality.PriorityScore)
		return nil
	case errors.Is(err, store.ErrDuplicate):
		// Lost a race with another writer for one of the unique keys.
		c.Duplicate++
		return nil
	default:
		return e.recordFailure(err, l, c)
	}
}

// protectedStatuses keep their status across a repost: the user already
// acted on them.
var protectedStatuses = map[models.Status]bool{
	models.StatusUserApproved: true,
	models.StatusApplying:     true,
	models.StatusApplied:      true,
}

// repost refreshes a record that reappeared after the repost threshold.
func (e *Engine) repost(ctx context.Context, rec *models.JobRecord, l models.JobListing, now time.Time, c *Counts) error {
	prev := rec.Status

	scrapedAt := l.ScrapedAt
	if scrapedAt.IsZero() {
		scrapedAt = now
	}
	rec.Source.ScrapedAt = scrapedAt
	rec.PostedDate = scrapedAt
	if !l.PostedDate.IsZero() {
		rec.PostedDate = l.PostedDate
	}
	if strings.TrimSpace(l.Description) != "" && (!l.DescriptionSynthesized || rec.DescriptionSynthesized) {
		rec.Description = l.Description
		rec.DescriptionSynthesized = l.DescriptionSynthesized
	}
	if l.Salary != nil {
		rec.Salary = l.Salary
	}
	if !protectedStatuses[prev] {
		rec.Status = models.StatusScraped
	}
	q := quality(&l, now)
	q.MatchScore = rec.Quality.MatchScore
	rec.Quality = q
	rec.UpdatedAt = now

	err := e.store.UpdateIf(ctx, rec, prev)
	switch {
	case errors.Is(err, store.ErrConflict):
		// Moved by a reviewer or the drafter since FindByKeys; their write wins.
		c.Duplicate++
		slog.Info("repost skipped, job changed concurrently", "job_id", rec.JobID)
		return nil
	case err != nil:
		return e.recordFailure(err, l, c)
	}
	c.Updated++
	slog.Info("job reposted", "job_id", rec.JobID, "title", rec.Title, "company", rec.Company,
		"previous_status", string(prev), "status", string(rec.Status))
	return nil
}

// recordFailure counts a per-listing failure, or returns the error when the
// store itself is gone.
func (e *Engine) recordFailure(err error, l models.JobListing, c *Counts) error {
	if errors.Is(err, store.ErrUnavailable) {
		return models.NewScrapeError(models.ErrCodeStoreUnavailable, "record store unavailable", err)
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	c.Errored++
	slog.Warn("listing not stored", "url", l.URL, "error", err)
	return nil
}

func containsRedFlag(l *models.JobListing, flags []string) bool {
	if len(flags) == 0 {
		return false
	}
	combined := strings.ToLower(l.Title + " " + l.Company + " " + l.Description)
	for _, flag := range flags {
		if flag == "" {
			continue
		}
		if strings.Contains(combined, strings.ToLower(flag)) {
			return true
		}
	}
	return false
}
