// Package sweeper expires records that sat in an early pipeline status for
// too long without anyone acting on them.
package sweeper

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/use-agent/jobscout/models"
	"github.com/use-agent/jobscout/store"
)

// Sweeper demotes stale records to expired.
type Sweeper struct {
	store store.Store
	now   func() time.Time
}

// New creates a Sweeper over st. now defaults to time.Now.
func New(st store.Store, now func() time.Time) *Sweeper {
	if now == nil {
		now = time.Now
	}
	return &Sweeper{store: st, now: now}
}

// Sweep expires every record scraped more than maxAgeDays ago whose status
// is still scraped, validated or keywords_extracted. Records that reached
// review or application are never touched. Re-running with the same cutoff
// changes nothing.
func (s *Sweeper) Sweep(ctx context.Context, maxAgeDays int) (int64, error) {
	if maxAgeDays <= 0 {
		return 0, fmt.Errorf("sweep: maxAgeDays must be positive, got %d", maxAgeDays)
	}
	now := s.now()
	cutoff := now.AddDate(0, 0, -maxAgeDays)

	n, err := s.store.UpdateStatus(ctx, store.Filter{
		Statuses:      models.SweepableStatuses,
		ScrapedBefore: cutoff,
	}, models.StatusExpired, now)
	if err != nil {
		return 0, fmt.Errorf("sweep: %w", err)
	}
	if n > 0 {
		slog.Info("expired stale jobs", "count", n, "max_age_days", maxAgeDays, "cutoff", cutoff)
	} else {
		slog.Debug("no stale jobs to expire", "max_age_days", maxAgeDays)
	}
	return n, nil
}
