package models_test

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/use-agent/jobscout/models"
)

func sampleListing() models.JobListing {
	return models.JobListing{
		Title:    "SOC Analyst",
		Company:  "Acme",
		Location: "London",
		Platform: models.PlatformReed,
		URL:      "https://x/1",
	}
}

func TestNewJobRecord_FullyInitialised(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	r := models.NewJobRecord(sampleListing(), "abc", now)

	if r.Status != models.StatusScraped {
		t.Errorf("status = %q, want scraped", r.Status)
	}
	if r.JobHash != "abc" {
		t.Errorf("hash = %q", r.JobHash)
	}
	if !strings.HasPrefix(r.JobID, "reed_") {
		t.Errorf("generated job id %q should carry the platform prefix", r.JobID)
	}
	if r.Requirements == nil || r.AIGenerated.Skills == nil || r.ErrorLogs == nil ||
		r.AIGenerated.MissingSkills == nil || r.AIGenerated.Recommendations == nil {
		t.Error("substructures must be present, not nil")
	}
	if !r.Source.ScrapedAt.Equal(now) || !r.PostedDate.Equal(now) {
		t.Errorf("scrapedAt/postedDate should default to now, got %v / %v", r.Source.ScrapedAt, r.PostedDate)
	}
	if r.JobType != models.JobTypeNotSpecified {
		t.Errorf("job type = %q, want Not specified", r.JobType)
	}
}

func TestNewJobRecord_KeepsListingID(t *testing.T) {
	l := sampleListing()
	l.JobID = "reed_123"
	r := models.NewJobRecord(l, "h", time.Now())
	if r.JobID != "reed_123" {
		t.Errorf("job id = %q, want reed_123", r.JobID)
	}
}

func TestAppendError_RingBuffer(t *testing.T) {
	r := models.NewJobRecord(sampleListing(), "h", time.Now())
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	for i := 0; i < 27; i++ {
		r.AppendError("stage", fmt.Sprintf("err-%d", i), base.Add(time.Duration(i)*time.Minute))
	}

	if len(r.ErrorLogs) != models.MaxErrorLogs {
		t.Fatalf("len = %d, want %d", len(r.ErrorLogs), models.MaxErrorLogs)
	}
	for i, e := range r.ErrorLogs {
		want := fmt.Sprintf("err-%d", i+7)
		if e.Message != want {
			t.Errorf("ErrorLogs[%d] = %q, want %q", i, e.Message, want)
		}
	}
}

func TestAppendError_BelowCap(t *testing.T) {
	r := models.NewJobRecord(sampleListing(), "h", time.Now())
	r.AppendError("validate", "missing description", time.Now())
	r.AppendError("email", "generator down", time.Now())
	if len(r.ErrorLogs) != 2 || r.ErrorLogs[0].Stage != "validate" || r.ErrorLogs[1].Stage != "email" {
		t.Errorf("unexpected logs: %+v", r.ErrorLogs)
	}
}

func TestClone_DoesNotShareState(t *testing.T) {
	r := models.NewJobRecord(sampleListing(), "h", time.Now())
	r.Requirements = []string{"SIEM"}
	r.Salary = &models.Salary{Min: 30000, Currency: "GBP"}

	c := r.Clone()
	c.Requirements[0] = "EDR"
	c.Salary.Min = 1
	c.AppendError("x", "y", time.Now())

	if r.Requirements[0] != "SIEM" || r.Salary.Min != 30000 || len(r.ErrorLogs) != 0 {
		t.Error("mutating the clone changed the original")
	}
}
