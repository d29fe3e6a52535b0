package scraper

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/use-agent/jobscout/cache"
	"github.com/use-agent/jobscout/engine"
	"github.com/use-agent/jobscout/models"
	"github.com/use-agent/jobscout/retry"
)

func parseHTML(t *testing.T, s Site, html, pageURL string) []models.JobListing {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		t.Fatalf("parse html: %v", err)
	}
	return s.Parse(doc, pageURL, testNow)
}

func TestSearchURLs(t *testing.T) {
	tests := []struct {
		site Site
		page int
		want string
	}{
		{NewReed(), 1, "https://www.reed.co.uk/jobs/soc-analyst-jobs-in-london"},
		{NewReed(), 2, "https://www.reed.co.uk/jobs/soc-analyst-jobs-in-london?pageno=2"},
		{NewIndeed(), 2, "https://uk.indeed.com/jobs?l=London&q=SOC+Analyst&sort=date&start=10"},
		{NewTotalJobs(), 1, "https://www.totaljobs.com/jobs/soc-analyst/in-london?page=1"},
		{NewCWJobs(), 3, "https://www.cwjobs.co.uk/jobs/soc-analyst?location=London&page=3"},
		{NewStudentCircus(), 1, "https://www.studentcircus.com/jobs?location=London&page=1&q=SOC+Analyst"},
	}
	for _, tt := range tests {
		if got := tt.site.SearchURL("SOC Analyst", "London", tt.page); got != tt.want {
			t.Errorf("%s page %d: got %s, want %s", tt.site.Key(), tt.page, got, tt.want)
		}
	}
}

func TestReedParse(t *testing.T) {
	html := `<html><body>
<article class="job-card" data-job-id="51234567">
  <h2><a href="/jobs/soc-analyst/51234567?source=searchResults">SOC Analyst</a></h2>
  <div class="job-result-heading__posted-by">Posted 2 days ago by <a class="gtmJobListingPostedBy" href="/recruiters/acme">Acme Security</a></div>
  <ul><li class="location">London</li><li class="salary">£35,000 - £45,000 per annum</li></ul>
</article>
<article class="job-card"><h2>Featured employers</h2></article>
</body></html>`

	got := parseHTML(t, NewReed(), html, "https://www.reed.co.uk/jobs/soc-analyst-jobs-in-london")
	if len(got) != 1 {
		t.Fatalf("got %d listings, want 1 (card without link skipped)", len(got))
	}
	l := got[0]
	if l.JobID != "reed_51234567" || l.Title != "SOC Analyst" || l.Company != "Acme Security" {
		t.Errorf("listing = %+v", l)
	}
	if l.URL != "https://www.reed.co.uk/jobs/soc-analyst/51234567?source=searchResults" {
		t.Errorf("URL = %s", l.URL)
	}
	if l.Salary == nil || l.Salary.Min != 35000 || l.Salary.Max != 45000 {
		t.Errorf("Salary = %+v", l.Salary)
	}
	if !l.PostedDate.Equal(testNow.AddDate(0, 0, -2)) {
		t.Errorf("PostedDate = %v", l.PostedDate)
	}
}

func TestIndeedParse_CanonicalURL(t *testing.T) {
	html := `<html><body>
<div class="job_seen_beacon">
  <h2 class="jobTitle"><a data-jk="abc123" href="/rc/clk?jk=abc123&amp;fccid=x"><span title="Junior SOC Analyst">Junior SOC Analyst</span></a></h2>
  <span data-testid="company-name">Acme</span>
  <div data-testid="text-location">Remote in London</div>
  <div class="job-snippet">Triage alerts from the SIEM.</div>
  <span class="date">Posted 3 days ago</span>
</div>
</body></html>`

	got := parseHTML(t, NewIndeed(), html, "https://uk.indeed.com/jobs?q=soc")
	if len(got) != 1 {
		t.Fatalf("got %d listings", len(got))
	}
	l := got[0]
	if l.JobID != "indeed_abc123" || l.URL != "https://uk.indeed.com/viewjob?jk=abc123" {
		t.Errorf("JobID = %s URL = %s", l.JobID, l.URL)
	}
	if l.Title != "Junior SOC Analyst" || l.Company != "Acme" || l.Location != "Remote in London" {
		t.Errorf("listing = %+v", l)
	}
}

func TestStepStoneParse(t *testing.T) {
	html := `<html><body>
<article data-testid="job-item" id="job-101234567">
  <h2><a data-testid="job-item-title" href="/job/security-engineer/acme-job101234567">Security Engineer</a></h2>
  <span data-at="job-item-company-name">Acme</span>
  <span data-at="job-item-location">Manchester</span>
  <span data-at="job-item-salary-info">£50k - £60k</span>
  <span data-at="job-item-timeago">1 week ago</span>
</article>
</body></html>`

	for _, site := range []Site{NewTotalJobs(), NewCWJobs()} {
		got := parseHTML(t, site, html, "https://www.totaljobs.com/jobs/security")
		if len(got) != 1 {
			t.Fatalf("%s: got %d listings", site.Key(), len(got))
		}
		l := got[0]
		if l.JobID != site.Key()+"_101234567" {
			t.Errorf("%s: JobID = %s", site.Key(), l.JobID)
		}
		if l.Salary == nil || l.Salary.Min != 50000 || l.Salary.Max != 60000 {
			t.Errorf("%s: Salary = %+v", site.Key(), l.Salary)
		}
		if !l.PostedDate.Equal(testNow.AddDate(0, 0, -7)) {
			t.Errorf("%s: PostedDate = %v", site.Key(), l.PostedDate)
		}
	}
}

func TestStudentCircusParse_MarksGraduate(t *testing.T) {
	html := `<html><body>
<div class="job-card">
  <h3><a href="/jobs/cyber-analyst-programme-88231">Cyber Analyst Programme</a></h3>
  <span class="job-card__company">Acme</span>
</div>
</body></html>`

	got := parseHTML(t, NewStudentCircus(), html, "https://www.studentcircus.com/jobs")
	if len(got) != 1 || !got[0].IsGraduateRole || got[0].JobID != "studentcircus_88231" {
		t.Fatalf("listings = %+v", got)
	}
}

func TestLoadCompanies_Embedded(t *testing.T) {
	companies, err := LoadCompanies("")
	if err != nil {
		t.Fatalf("LoadCompanies: %v", err)
	}
	if len(companies) == 0 {
		t.Fatal("embedded list is empty")
	}
	for _, c := range companies {
		if c.Priority != "high" || c.CareersURL == "" {
			t.Errorf("unexpected entry %+v", c)
		}
	}
}

const careersPage = `<html><head><title>Careers</title></head><body>
<div class="vacancy"><h3>Cyber Security Analyst</h3><a href="/jobs/1">View</a>
  <span class="job-location">Cheltenham</span>
  <p class="description">Join our security operations team protecting national infrastructure from threats every day.</p></div>
<div class="vacancy"><h3>Marketing Manager</h3><a href="/jobs/2">View</a></div>
<div class="vacancy"><h3>Threat Intelligence Lead</h3><a href="/jobs/3">View</a></div>
</body></html>`

type companyFetcher struct{ calls map[string]int }

func (f *companyFetcher) Fetch(_ context.Context, req *engine.FetchRequest) (*engine.FetchResult, error) {
	f.calls[req.URL]++
	if req.URL == "https://careers.acme.test/" {
		return &engine.FetchResult{StatusCode: 200, HTML: careersPage, FinalURL: req.URL}, nil
	}
	return &engine.FetchResult{StatusCode: 404, HTML: "<html><body>gone</body></html>", FinalURL: req.URL}, nil
}

func TestCompanyPages_FiltersAndCaches(t *testing.T) {
	f := &companyFetcher{calls: make(map[string]int)}
	src := NewCompanyPages(
		[]Company{{Name: "Acme", CareersURL: "https://careers.acme.test/", Location: "London"}},
		Deps{
			Fetcher: f,
			Limiter: &countingLimiter{},
			Retry:   retry.Policy{MaxAttempts: 1},
			Now:     func() time.Time { return testNow },
		},
		cache.New[string](time.Hour, 100),
	)

	res, err := src.Scrape(context.Background(), "SOC Analyst", "London", Options{})
	if err != nil {
		t.Fatalf("Scrape: %v", err)
	}
	if len(res.Listings) != 2 {
		t.Fatalf("got %d listings, want 2 (marketing role filtered)", len(res.Listings))
	}
	first := res.Listings[0]
	if first.Company != "Acme" || first.Location != "Cheltenham" || first.Platform != models.PlatformCompanyCareerPage {
		t.Errorf("first = %+v", first)
	}
	if first.DescriptionSynthesized {
		t.Error("card description long enough to keep")
	}
	second := res.Listings[1]
	if second.Location != "London" || !second.DescriptionSynthesized {
		t.Errorf("second = %+v", second)
	}
	if f.calls["https://careers.acme.test/jobs/3"] != 1 {
		t.Errorf("detail page fetched %d times, want 1", f.calls["https://careers.acme.test/jobs/3"])
	}

	if _, err := src.Scrape(context.Background(), "Penetration Tester", "London", Options{}); err != nil {
		t.Fatalf("second Scrape: %v", err)
	}
	if n := f.calls["https://careers.acme.test/"]; n != 1 {
		t.Errorf("careers page fetched %d times, want 1 (cached)", n)
	}
}
