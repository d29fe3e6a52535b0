package scraper

import (
	"strings"
	"testing"
	"time"

	"github.com/use-agent/jobscout/models"
)

var testNow = time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)

func TestParseSalary(t *testing.T) {
	tests := []struct {
		in       string
		min, max int
		period   string
	}{
		{"£30,000 - £40,000 per annum", 30000, 40000, "annum"},
		{"£35k-£45k", 35000, 45000, "annum"},
		{"Up to £45,000", 45000, 45000, "annum"},
		{"£450 per day", 450, 450, "day"},
		{"£500", 500, 500, "day"},
		{"£15 an hour", 15, 15, "hour"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			s := ParseSalary(tt.in)
			if s == nil {
				t.Fatal("ParseSalary returned nil")
			}
			if s.Min != tt.min || s.Max != tt.max || s.Period != tt.period {
				t.Errorf("got %d-%d/%s, want %d-%d/%s", s.Min, s.Max, s.Period, tt.min, tt.max, tt.period)
			}
			if s.Currency != "GBP" || s.Raw != tt.in {
				t.Errorf("Currency=%q Raw=%q", s.Currency, s.Raw)
			}
		})
	}

	for _, in := range []string{"", "Competitive", "Negotiable"} {
		if s := ParseSalary(in); s != nil {
			t.Errorf("ParseSalary(%q) = %+v, want nil", in, s)
		}
	}
}

func TestParsePostedDate(t *testing.T) {
	tests := []struct {
		in   string
		want time.Time
	}{
		{"Today", testNow},
		{"Just posted", testNow},
		{"Posted yesterday", testNow.AddDate(0, 0, -1)},
		{"3 days ago", testNow.AddDate(0, 0, -3)},
		{"30+ days ago", testNow.AddDate(0, 0, -30)},
		{"2w ago", testNow.AddDate(0, 0, -14)},
		{"5 hours ago", testNow.Add(-5 * time.Hour)},
		{"45 mins ago", testNow.Add(-45 * time.Minute)},
		{"2026-10-01", time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)},
		{"Posted 12/10/2026", time.Date(2026, 10, 12, 0, 0, 0, 0, time.UTC)},
		{"12 March", time.Date(2026, 3, 12, 0, 0, 0, 0, time.UTC)},
		{"28 December", time.Date(2025, 12, 28, 0, 0, 0, 0, time.UTC)},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := ParsePostedDate(tt.in, testNow)
			if !ok {
				t.Fatal("not recognised")
			}
			if !got.Equal(tt.want) {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}

	if _, ok := ParsePostedDate("recently-ish", testNow); ok {
		t.Error("unrecognised text should report ok=false")
	}
}

func TestDetectJobType(t *testing.T) {
	tests := map[string]models.JobType{
		"Hybrid - London":          models.JobTypeHybrid,
		"Remote in London":         models.JobTypeRemote,
		"Work from home":           models.JobTypeRemote,
		"Office based, Manchester": models.JobTypeOnSite,
		"Leeds":                    models.JobTypeNotSpecified,
	}
	for in, want := range tests {
		if got := DetectJobType(in); got != want {
			t.Errorf("DetectJobType(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestSignals(t *testing.T) {
	if !IsGraduateRole("Graduate Cyber Security Analyst") {
		t.Error("graduate title not detected")
	}
	if IsGraduateRole("Head of Security") {
		t.Error("senior title flagged as graduate")
	}
	if !MentionsVisaSponsorship("Skilled Worker visa sponsorship available") {
		t.Error("sponsorship not detected")
	}
	if MentionsVisaSponsorship("Unfortunately we are unable to sponsor a visa sponsorship application") {
		t.Error("refusal should win over positive phrase")
	}
}

func TestSlugAndIDs(t *testing.T) {
	if got := slug("  SOC Analyst (Tier 1) "); got != "soc-analyst-tier-1" {
		t.Errorf("slug = %q", got)
	}
	if got := idFromURL("reed", "https://www.reed.co.uk/jobs/soc-analyst/51234567?source=x"); got != "reed_51234567" {
		t.Errorf("idFromURL = %q", got)
	}
	if got := idFromURL("x", "https://example.com/careers/analyst"); got != "" {
		t.Errorf("idFromURL without digits = %q", got)
	}
	if got := AbsoluteURL("https://www.reed.co.uk/jobs?p=1", "/jobs/a/1#apply"); got != "https://www.reed.co.uk/jobs/a/1" {
		t.Errorf("AbsoluteURL = %q", got)
	}
	if got := AbsoluteURL("https://x.test", "javascript:void(0)"); got != "" {
		t.Errorf("AbsoluteURL(javascript:) = %q", got)
	}
}

func TestFinalize_SynthesizesShortDescription(t *testing.T) {
	l := models.JobListing{
		Title:       "Junior Penetration Tester",
		URL:         "https://x.test/1",
		Description: "Apply now",
		Salary:      ParseSalary("£30k"),
	}
	finalize(&l, models.PlatformReed, testNow)

	if !l.DescriptionSynthesized || !strings.HasPrefix(l.Description, SynthesizedPrefix) {
		t.Fatalf("description not synthesized: %q", l.Description)
	}
	if !strings.Contains(l.Description, "Apply now") || !strings.Contains(l.Description, "£30k") {
		t.Errorf("synthesized description lost listing details: %q", l.Description)
	}
	if l.Company != models.UnknownCompany || l.Location != "United Kingdom" {
		t.Errorf("defaults not applied: %q / %q", l.Company, l.Location)
	}
	if !l.IsGraduateRole || l.Platform != models.PlatformReed || !l.PostedDate.Equal(testNow) {
		t.Errorf("derived fields wrong: %+v", l)
	}

	long := models.JobListing{Title: "SOC Analyst", Description: strings.Repeat("Monitor alerts. ", 10)}
	finalize(&long, models.PlatformReed, testNow)
	if long.DescriptionSynthesized {
		t.Error("long description should be kept as-is")
	}
}
