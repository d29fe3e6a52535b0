package ingest

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"
	"testing"
	"time"

	"github.com/use-agent/jobscout/models"
	"github.com/use-agent/jobscout/store"
)

var t0 = time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)

// clock is a settable time source.
type clock struct{ now time.Time }

func (c *clock) Now() time.Time { return c.now }

func listing(title, url string) models.JobListing {
	return models.JobListing{
		Title:    title,
		Company:  "Acme",
		Location: "London",
		URL:      url,
		Platform: models.PlatformReed,
	}
}

func newEngine(st store.Store, c *clock, flags ...string) *Engine {
	return New(st, Config{Now: c.Now, RedFlags: flags})
}

func TestIngest_SecondPassIsAllDuplicates(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()
	c := &clock{now: t0}
	e := newEngine(st, c)

	batch := []models.JobListing{listing("SOC Analyst", "https://x/1")}
	first, err := e.Ingest(ctx, batch)
	if err != nil {
		t.Fatalf("first Ingest: %v", err)
	}
	if first != (Counts{Created: 1}) {
		t.Errorf("first = %+v, want created=1", first)
	}

	c.now = t0.Add(24 * time.Hour)
	second, err := e.Ingest(ctx, batch)
	if err != nil {
		t.Fatalf("second Ingest: %v", err)
	}
	if second != (Counts{Duplicate: 1}) {
		t.Errorf("second = %+v, want duplicate=1", second)
	}
}

func TestIngest_BatchIdempotent(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()
	e := newEngine(st, &clock{now: t0})

	batch := []models.JobListing{
		listing("SOC Analyst", "https://x/1"),
		listing("Penetration Tester", "https://x/2"),
		listing("GRC Analyst", "https://x/3"),
		listing("soc analyst", "https://x/1?ref=feed"), // same hash as the first
	}
	first, _ := e.Ingest(ctx, batch)
	if first.Created != 3 || first.Duplicate != 1 {
		t.Fatalf("first = %+v", first)
	}
	second, _ := e.Ingest(ctx, batch)
	if second.Created != 0 || second.Updated != 0 || second.Duplicate != 4 {
		t.Errorf("second = %+v, want 4 duplicates", second)
	}
	if n, _ := st.Count(ctx, store.Filter{}); n != 3 {
		t.Errorf("store holds %d records, want 3", n)
	}
}

func TestIngest_MatchesOnURLAndJobID(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()
	e := newEngine(st, &clock{now: t0})

	orig := listing("SOC Analyst", "https://x/1")
	orig.JobID = "reed_1"
	_, _ = e.Ingest(ctx, []models.JobListing{orig})

	retitled := listing("SOC Analyst (Tier 1)", "https://x/1")
	sameID := listing("Security Analyst", "https://x/other")
	sameID.JobID = "reed_1"

	got, err := e.Ingest(ctx, []models.JobListing{retitled, sameID})
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if got != (Counts{Duplicate: 2}) {
		t.Errorf("got %+v, want 2 duplicates", got)
	}
}

func TestIngest_Repost(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()
	c := &clock{now: t0}
	e := newEngine(st, c)

	_, _ = e.Ingest(ctx, []models.JobListing{listing("SOC Analyst", "https://x/1")})
	rec, _ := st.FindByKeys(ctx, "", "https://x/1", "")
	rec.Status = models.StatusKeywordsExtracted
	rec.Quality.MatchScore = 77
	_ = st.Update(ctx, rec)

	c.now = t0.AddDate(0, 0, 31)
	again := listing("SOC Analyst", "https://x/1")
	again.Description = strings.Repeat("Investigate alerts and tune detections. ", 6)
	got, err := e.Ingest(ctx, []models.JobListing{again})
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if got != (Counts{Updated: 1}) {
		t.Fatalf("got %+v, want updated=1", got)
	}

	rec, _ = st.Get(ctx, rec.JobID)
	if rec.Status != models.StatusScraped {
		t.Errorf("status = %s, want scraped", rec.Status)
	}
	if !rec.Source.ScrapedAt.Equal(c.now) || !rec.PostedDate.Equal(c.now) {
		t.Errorf("scrapedAt = %v postedDate = %v, want %v", rec.Source.ScrapedAt, rec.PostedDate, c.now)
	}
	if rec.Description != again.Description {
		t.Error("description not refreshed")
	}
	if rec.Quality.MatchScore != 77 || !rec.Quality.HasDescription {
		t.Errorf("quality = %+v", rec.Quality)
	}
}

func TestIngest_RepostKeepsUserDecisions(t *testing.T) {
	ctx := context.Background()
	for _, status := range []models.Status{models.StatusApplied, models.StatusUserApproved, models.StatusApplying} {
		t.Run(string(status), func(t *testing.T) {
			st := store.NewMemory()
			c := &clock{now: t0}
			e := newEngine(st, c)
			_, _ = e.Ingest(ctx, []models.JobListing{listing("SOC Analyst", "https://x/1")})
			rec, _ := st.FindByKeys(ctx, "", "https://x/1", "")
			rec.Status = status
			_ = st.Update(ctx, rec)

			c.now = t0.AddDate(0, 0, 45)
			got, _ := e.Ingest(ctx, []models.JobListing{listing("SOC Analyst", "https://x/1")})
			if got.Updated != 1 {
				t.Fatalf("got %+v", got)
			}
			rec, _ = st.Get(ctx, rec.JobID)
			if rec.Status != status {
				t.Errorf("status = %s, want %s", rec.Status, status)
			}
		})
	}
}

func TestIngest_SkipsBadListingsWithoutAborting(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()
	e := newEngine(st, &clock{now: t0}, "unpaid", "commission only")

	noTitle := listing("", "https://x/1")
	badURL := listing("SOC Analyst", "not a url")
	flagged := listing("SOC Analyst (Commission Only)", "https://x/3")
	good := listing("SOC Analyst", "https://x/4")

	got, err := e.Ingest(ctx, []models.JobListing{noTitle, badURL, flagged, good})
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	want := Counts{Created: 1, Errored: 2, Filtered: 1}
	if got != want {
		t.Errorf("got %+v, want %+v", got, want)
	}
}

// flakyStore fails selected operations.
type flakyStore struct {
	*store.Memory
	findErr   error
	insertErr error
}

func (f *flakyStore) FindByKeys(ctx context.Context, hash, url, id string) (*models.JobRecord, error) {
	if f.findErr != nil {
		return nil, f.findErr
	}
	return f.Memory.FindByKeys(ctx, hash, url, id)
}

func (f *flakyStore) InsertIfAbsent(ctx context.Context, rec *models.JobRecord) error {
	if f.insertErr != nil {
		return f.insertErr
	}
	return f.Memory.InsertIfAbsent(ctx, rec)
}

func TestIngest_StoreUnavailableAborts(t *testing.T) {
	st := &flakyStore{Memory: store.NewMemory(), findErr: fmt.Errorf("%w: dial tcp: refused", store.ErrUnavailable)}
	e := newEngine(st, &clock{now: t0})

	_, err := e.Ingest(context.Background(), []models.JobListing{
		listing("SOC Analyst", "https://x/1"),
		listing("Pen Tester", "https://x/2"),
	})
	var se *models.ScrapeError
	if !errors.As(err, &se) || se.Code != models.ErrCodeStoreUnavailable {
		t.Fatalf("err = %v, want STORE_UNAVAILABLE", err)
	}
	if !errors.Is(err, store.ErrUnavailable) {
		t.Error("cause not preserved")
	}
}

func TestIngest_InsertRaceCountsAsDuplicate(t *testing.T) {
	st := &flakyStore{Memory: store.NewMemory(), insertErr: fmt.Errorf("url: %w", store.ErrDuplicate)}
	e := newEngine(st, &clock{now: t0})

	got, err := e.Ingest(context.Background(), []models.JobListing{listing("SOC Analyst", "https://x/1")})
	if err != nil || got != (Counts{Duplicate: 1}) {
		t.Errorf("got %+v, %v; want duplicate=1", got, err)
	}
}

// rejectingStore rejects the matched record right after FindByKeys, the
// way a reviewer acting between the lookup and the repost write would.
type rejectingStore struct {
	*store.Memory
}

func (r *rejectingStore) FindByKeys(ctx context.Context, hash, url, id string) (*models.JobRecord, error) {
	rec, err := r.Memory.FindByKeys(ctx, hash, url, id)
	if err != nil {
		return nil, err
	}
	moved := rec.Clone()
	moved.Status = models.StatusUserRejected
	if err := r.Memory.Update(ctx, moved); err != nil {
		return nil, err
	}
	return rec, nil
}

func TestIngest_RepostYieldsToConcurrentReview(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	c := &clock{now: t0}
	_, _ = newEngine(mem, c).Ingest(ctx, []models.JobListing{listing("SOC Analyst", "https://x/1")})

	c.now = t0.AddDate(0, 0, 31)
	got, err := newEngine(&rejectingStore{Memory: mem}, c).Ingest(ctx, []models.JobListing{listing("SOC Analyst", "https://x/1")})
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if got != (Counts{Duplicate: 1}) {
		t.Errorf("got %+v, want duplicate=1", got)
	}
	rec, _ := mem.FindByKeys(ctx, "", "https://x/1", "")
	if rec.Status != models.StatusUserRejected {
		t.Errorf("status = %s, want %s", rec.Status, models.StatusUserRejected)
	}
}

func TestIngest_UnknownCompanyKeepsDistinctJobs(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()
	e := newEngine(st, &clock{now: t0})

	a := listing("SOC Analyst", "https://x/1")
	b := listing("SOC Analyst", "https://x/2")
	a.Company, b.Company = models.UnknownCompany, models.UnknownCompany

	got, err := e.Ingest(ctx, []models.JobListing{a, b})
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if got != (Counts{Created: 2}) {
		t.Errorf("got %+v, want created=2", got)
	}
	if ListingHash(&a) == ListingHash(&b) {
		t.Error("listings without a company share a hash")
	}
	named := listing("SOC Analyst", "https://x/3")
	if ListingHash(&named) != JobHash("SOC Analyst", "Acme", "London") {
		t.Error("named company hash should ignore the URL")
	}
}

func TestJobHash_Normalizes(t *testing.T) {
	base := JobHash("SOC Analyst", "Acme", "London")
	same := [][3]string{
		{"soc analyst", "ACME", "london"},
		{"SOC-Analyst", "Acme.", " London "},
	}
	for _, s := range same {
		if got := JobHash(s[0], s[1], s[2]); got != base {
			t.Errorf("JobHash(%q) = %s, want %s", s, got, base)
		}
	}
	if JobHash("SOC Analyst", "Globex", "London") == base {
		t.Error("different company hashed identically")
	}
	if len(base) != 32 {
		t.Errorf("hash length = %d", len(base))
	}
}

func TestPriorityScore(t *testing.T) {
	long := strings.Repeat("x", 201)
	tests := []struct {
		name string
		l    models.JobListing
		want int
	}{
		{"old plain", models.JobListing{Title: "SOC Analyst", PostedDate: t0.AddDate(0, 0, -10)}, 50},
		{"five days", models.JobListing{Title: "SOC Analyst", PostedDate: t0.AddDate(0, 0, -5)}, 60},
		{"hybrid two days", models.JobListing{Title: "SOC Analyst", PostedDate: t0.AddDate(0, 0, -2), JobType: models.JobTypeHybrid}, 75},
		{"graduate today", models.JobListing{Title: "Graduate SOC Analyst", PostedDate: t0}, 95},
		{"everything clamps", models.JobListing{
			Title: "Junior SOC Analyst", PostedDate: t0, JobType: models.JobTypeRemote,
			Description: long, VisaSponsorship: true,
		}, 100},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := PriorityScore(&tt.l, t0); got != tt.want {
				t.Errorf("PriorityScore = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestPriorityScore_Bounds(t *testing.T) {
	r := rand.New(rand.NewPCG(1, 2))
	types := []models.JobType{models.JobTypeRemote, models.JobTypeHybrid, models.JobTypeOnSite, models.JobTypeNotSpecified, ""}
	for i := 0; i < 500; i++ {
		l := models.JobListing{
			Title:           []string{"SOC Analyst", "Graduate Engineer", "Head of Security"}[r.IntN(3)],
			PostedDate:      t0.Add(-time.Duration(r.IntN(24*60)) * time.Hour),
			JobType:         types[r.IntN(len(types))],
			Description:     strings.Repeat("a", r.IntN(400)),
			IsGraduateRole:  r.IntN(2) == 0,
			VisaSponsorship: r.IntN(2) == 0,
		}
		if got := PriorityScore(&l, t0); got < 0 || got > 100 {
			t.Fatalf("PriorityScore(%+v) = %d out of range", l, got)
		}
	}
}
