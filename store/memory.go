package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/use-agent/jobscout/models"
)

// Memory is an in-process Store. Records are cloned on the way in and out,
// so callers never share state with the store.
type Memory struct {
	mu     sync.RWMutex
	byID   map[string]*models.JobRecord
	byHash map[string]string
	byURL  map[string]string
}

// NewMemory creates an empty Memory store.
func NewMemory() *Memory {
	return &Memory{
		byID:   make(map[string]*models.JobRecord),
		byHash: make(map[string]string),
		byURL:  make(map[string]string),
	}
}

func (m *Memory) InsertIfAbsent(_ context.Context, rec *models.JobRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.byID[rec.JobID]; ok {
		return fmt.Errorf("job_id %s: %w", rec.JobID, ErrDuplicate)
	}
	if _, ok := m.byHash[rec.JobHash]; ok {
		return fmt.Errorf("job_hash %s: %w", rec.JobHash, ErrDuplicate)
	}
	if _, ok := m.byURL[rec.Source.URL]; ok {
		return fmt.Errorf("url %s: %w", rec.Source.URL, ErrDuplicate)
	}
	m.put(rec.Clone())
	return nil
}

func (m *Memory) FindByKeys(_ context.Context, hash, url, id string) (*models.JobRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if hash != "" {
		if jid, ok := m.byHash[hash]; ok {
			return m.byID[jid].Clone(), nil
		}
	}
	if url != "" {
		if jid, ok := m.byURL[url]; ok {
			return m.byID[jid].Clone(), nil
		}
	}
	if id != "" {
		if rec, ok := m.byID[id]; ok {
			return rec.Clone(), nil
		}
	}
	return nil, ErrNotFound
}

func (m *Memory) Get(_ context.Context, id string) (*models.JobRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	return rec.Clone(), nil
}

// Update replaces a record. Changing its hash or URL to one held by a
// different record fails with ErrDuplicate.
func (m *Memory) Update(_ context.Context, rec *models.JobRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.replace(rec, "")
}

func (m *Memory) UpdateIf(_ context.Context, rec *models.JobRecord, expect models.Status) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.replace(rec, expect)
}

// replace swaps in rec. A non-empty expect must match the stored status.
func (m *Memory) replace(rec *models.JobRecord, expect models.Status) error {
	old, ok := m.byID[rec.JobID]
	if !ok {
		return ErrNotFound
	}
	if expect != "" && old.Status != expect {
		return fmt.Errorf("job %s is %s, not %s: %w", rec.JobID, old.Status, expect, ErrConflict)
	}
	if jid, taken := m.byHash[rec.JobHash]; taken && jid != rec.JobID {
		return fmt.Errorf("job_hash %s: %w", rec.JobHash, ErrDuplicate)
	}
	if jid, taken := m.byURL[rec.Source.URL]; taken && jid != rec.JobID {
		return fmt.Errorf("url %s: %w", rec.Source.URL, ErrDuplicate)
	}
	delete(m.byHash, old.JobHash)
	delete(m.byURL, old.Source.URL)
	m.put(rec.Clone())
	return nil
}

func (m *Memory) UpdateStatus(_ context.Context, f Filter, status models.Status, at time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var n int64
	for _, rec := range m.byID {
		if rec.Status == status || !f.Matches(rec) {
			continue
		}
		rec.Status = status
		rec.UpdatedAt = at
		n++
	}
	return n, nil
}

func (m *Memory) Count(_ context.Context, f Filter) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var n int64
	for _, rec := range m.byID {
		if f.Matches(rec) {
			n++
		}
	}
	return n, nil
}

func (m *Memory) List(_ context.Context, q Query) ([]*models.JobRecord, int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var matched []*models.JobRecord
	for _, rec := range m.byID {
		if q.Matches(rec) {
			matched = append(matched, rec)
		}
	}
	sort.Slice(matched, func(i, j int) bool {
		a, b := matched[i], matched[j]
		if a.Quality.PriorityScore != b.Quality.PriorityScore {
			return a.Quality.PriorityScore > b.Quality.PriorityScore
		}
		if !a.Source.ScrapedAt.Equal(b.Source.ScrapedAt) {
			return a.Source.ScrapedAt.After(b.Source.ScrapedAt)
		}
		return a.JobID < b.JobID
	})

	total := int64(len(matched))
	limit := q.Limit
	if limit <= 0 {
		limit = 20
	}
	start := min(max(q.Offset, 0), len(matched))
	end := min(start+limit, len(matched))

	out := make([]*models.JobRecord, 0, end-start)
	for _, rec := range matched[start:end] {
		out = append(out, rec.Clone())
	}
	return out, total, nil
}

func (m *Memory) Stats(_ context.Context) (*models.JobStats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	stats := &models.JobStats{
		ByStatus:   make(map[models.Status]int64),
		ByPlatform: make(map[models.Platform]int64),
	}
	for _, rec := range m.byID {
		stats.Total++
		stats.ByStatus[rec.Status]++
		stats.ByPlatform[rec.Source.Platform]++
	}
	return stats, nil
}

func (m *Memory) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.byID[id]
	if !ok {
		return ErrNotFound
	}
	delete(m.byID, id)
	delete(m.byHash, rec.JobHash)
	delete(m.byURL, rec.Source.URL)
	return nil
}

func (m *Memory) DeleteAll(_ context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := int64(len(m.byID))
	m.byID = make(map[string]*models.JobRecord)
	m.byHash = make(map[string]string)
	m.byURL = make(map[string]string)
	return n, nil
}

func (m *Memory) Ping(context.Context) error { return nil }
func (m *Memory) Close()                     {}

func (m *Memory) put(rec *models.JobRecord) {
	m.byID[rec.JobID] = rec
	m.byHash[rec.JobHash] = rec.JobID
	m.byURL[rec.Source.URL] = rec.JobID
}
