package scraper

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/use-agent/jobscout/cleaner"
	"github.com/use-agent/jobscout/models"
)

// TotalJobs and CWJobs run on the same StepStone platform and share markup.
var stepStoneFields = cardFields{
	Cards:       cleaner.MustChain(`article[data-testid="job-item"]`, `article`, `.job`, `.job-result`, `.job-card`, `.search-card`),
	Title:       cleaner.MustChain(`[data-testid="job-item-title"]`, `[data-testid="job-title"]`, `h2 a`, `h2`, `.job-title`),
	Link:        cleaner.MustChain(`a[data-testid="job-item-title"]`, `[data-testid="job-title"] a`, `h2 a`, `a.job-title`, `a[href*="/job/"]`),
	Company:     cleaner.MustChain(`[data-at="job-item-company-name"]`, `[data-testid="company-name"]`, `.company`, `.company-name`),
	Location:    cleaner.MustChain(`[data-at="job-item-location"]`, `[data-testid="job-location"]`, `.location`),
	Salary:      cleaner.MustChain(`[data-at="job-item-salary-info"]`, `[data-testid="job-salary"]`, `.salary`),
	Description: cleaner.MustChain(`[data-at="jobcard-content"]`, `[data-testid="job-snippet"]`, `.job-intro`, `.description`),
	Posted:      cleaner.MustChain(`[data-at="job-item-timeago"]`, `time`, `.date-posted`),
}

type stepStone struct {
	key      string
	platform models.Platform
	search   func(keyword, location string, page int) string
}

// NewTotalJobs returns the totaljobs.com board.
func NewTotalJobs() Site {
	return stepStone{
		key:      "totaljobs",
		platform: models.PlatformTotalJobs,
		search: func(keyword, location string, page int) string {
			u := fmt.Sprintf("https://www.totaljobs.com/jobs/%s", slug(keyword))
			if loc := slug(location); loc != "" {
				u += "/in-" + loc
			}
			return u + fmt.Sprintf("?page=%d", page)
		},
	}
}

// NewCWJobs returns the cwjobs.co.uk board.
func NewCWJobs() Site {
	return stepStone{
		key:      "cwjobs",
		platform: models.PlatformCWJobs,
		search: func(keyword, location string, page int) string {
			q := url.Values{}
			q.Set("location", location)
			q.Set("page", fmt.Sprint(page))
			return fmt.Sprintf("https://www.cwjobs.co.uk/jobs/%s?%s", slug(keyword), q.Encode())
		},
	}
}

func (s stepStone) Key() string               { return s.key }
func (s stepStone) Platform() models.Platform { return s.platform }

func (s stepStone) SearchURL(keyword, location string, page int) string {
	return s.search(keyword, location, page)
}

func (s stepStone) Parse(doc *goquery.Document, pageURL string, now time.Time) []models.JobListing {
	return readCards(doc, pageURL, now, stepStoneFields, func(card *goquery.Selection, link string) string {
		if v, ok := strings.CutPrefix(card.AttrOr("id", ""), "job-"); ok && v != "" {
			return s.key + "_" + v
		}
		return idFromURL(s.key, link)
	})
}
