// Package store persists JobRecords.
//
// Two implementations satisfy Store: Memory for tests and zero-config runs,
// and Postgres (pgx) for deployments. Both enforce the same uniqueness
// rules: job_id, job_hash and source URL are each unique.
package store

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/use-agent/jobscout/models"
)

var (
	// ErrNotFound is returned when no record matches.
	ErrNotFound = errors.New("store: record not found")

	// ErrDuplicate is returned when an insert collides with an existing
	// job_id, job_hash or URL.
	ErrDuplicate = errors.New("store: duplicate key")

	// ErrConflict is returned by UpdateIf when the stored record is no
	// longer in the expected status.
	ErrConflict = errors.New("store: record changed concurrently")

	// ErrUnavailable wraps connection-level failures. Callers treat it as
	// fatal for the current operation.
	ErrUnavailable = errors.New("store: unavailable")
)

// Store is the record store.
type Store interface {
	// InsertIfAbsent stores rec unless its job_id, job_hash or URL is
	// already taken, in which case it returns ErrDuplicate.
	InsertIfAbsent(ctx context.Context, rec *models.JobRecord) error

	// FindByKeys returns the record matching hash, else url, else id.
	// Empty keys are skipped.
	FindByKeys(ctx context.Context, hash, url, id string) (*models.JobRecord, error)

	Get(ctx context.Context, id string) (*models.JobRecord, error)

	// Update replaces the record with rec.JobID.
	Update(ctx context.Context, rec *models.JobRecord) error

	// UpdateIf replaces the record only while its stored status is still
	// expect, and returns ErrConflict otherwise. Writers that read, work,
	// then write back use it so they never undo a concurrent move.
	UpdateIf(ctx context.Context, rec *models.JobRecord, expect models.Status) error

	// UpdateStatus moves every record matching f to status and returns how
	// many changed.
	UpdateStatus(ctx context.Context, f Filter, status models.Status, at time.Time) (int64, error)

	Count(ctx context.Context, f Filter) (int64, error)

	// List returns one page of matching records, highest priority first and
	// most recently scraped first within a priority, plus the total match
	// count.
	List(ctx context.Context, q Query) ([]*models.JobRecord, int64, error)

	Stats(ctx context.Context) (*models.JobStats, error)
	Delete(ctx context.Context, id string) error

	// DeleteAll removes every record. It exists for administrative resets.
	DeleteAll(ctx context.Context) (int64, error)

	Ping(ctx context.Context) error
	Close()
}

// Filter selects records. Zero fields match everything.
type Filter struct {
	Statuses []models.Status
	Platform models.Platform

	// Search matches title, company or location, case-insensitively.
	Search string

	// ScrapedBefore keeps records whose source.scrapedAt is strictly
	// earlier.
	ScrapedBefore time.Time
}

// Matches reports whether rec satisfies f.
func (f Filter) Matches(rec *models.JobRecord) bool {
	if len(f.Statuses) > 0 {
		found := false
		for _, s := range f.Statuses {
			if rec.Status == s {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if f.Platform != "" && rec.Source.Platform != f.Platform {
		return false
	}
	if !f.ScrapedBefore.IsZero() && !rec.Source.ScrapedAt.Before(f.ScrapedBefore) {
		return false
	}
	if q := strings.ToLower(strings.TrimSpace(f.Search)); q != "" {
		hay := strings.ToLower(rec.Title + "\n" + rec.Company + "\n" + rec.Location)
		if !strings.Contains(hay, q) {
			return false
		}
	}
	return true
}

// Query is a paginated List request.
type Query struct {
	Filter
	Offset int
	Limit  int // default: 20
}
