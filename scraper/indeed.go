package scraper

import (
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/use-agent/jobscout/cleaner"
	"github.com/use-agent/jobscout/models"
)

var indeedFields = cardFields{
	Cards:       cleaner.MustChain(`.job_seen_beacon`, `div[data-jk]`, `.cardOutline`, `.result`),
	Title:       cleaner.MustChain(`h2.jobTitle span[title]`, `h2.jobTitle a span`, `h2 a`, `.jobTitle`),
	Link:        cleaner.MustChain(`h2.jobTitle a`, `a.jcs-JobTitle`, `h2 a`),
	Company:     cleaner.MustChain(`[data-testid="company-name"]`, `.companyName`, `.company`),
	Location:    cleaner.MustChain(`[data-testid="text-location"]`, `.companyLocation`, `.location`),
	Salary:      cleaner.MustChain(`.salary-snippet-container`, `[data-testid="attribute_snippet_testid"]`, `.salaryText`),
	Description: cleaner.MustChain(`.job-snippet`, `[data-testid="jobsnippet_footer"]`, `.summary`),
	Posted:      cleaner.MustChain(`[data-testid="myJobsStateDate"]`, `span.date`, `.date`),
}

var indeedJK = cleaner.MustChain(`[data-jk]`)

type indeed struct{}

// NewIndeed returns the uk.indeed.com board.
func NewIndeed() Site { return indeed{} }

func (indeed) Key() string               { return "indeed" }
func (indeed) Platform() models.Platform { return models.PlatformIndeed }

func (indeed) SearchURL(keyword, location string, page int) string {
	q := url.Values{}
	q.Set("q", keyword)
	q.Set("l", location)
	q.Set("sort", "date")
	if page > 1 {
		q.Set("start", strconv.Itoa((page-1)*10))
	}
	return "https://uk.indeed.com/jobs?" + q.Encode()
}

// Parse rewrites every listing URL to the canonical viewjob form so the
// tracking parameters Indeed appends never split one job into two URLs.
func (indeed) Parse(doc *goquery.Document, pageURL string, now time.Time) []models.JobListing {
	listings := readCards(doc, pageURL, now, indeedFields, func(card *goquery.Selection, link string) string {
		jk, _ := card.Attr("data-jk")
		if jk == "" {
			jk = indeedJK.Attr(card, "data-jk")
		}
		if jk == "" {
			if u, err := url.Parse(link); err == nil {
				jk = u.Query().Get("jk")
			}
		}
		if jk == "" {
			return ""
		}
		return "indeed_" + strings.TrimSpace(jk)
	})
	for i := range listings {
		if jk, ok := strings.CutPrefix(listings[i].JobID, "indeed_"); ok {
			listings[i].URL = "https://uk.indeed.com/viewjob?jk=" + url.QueryEscape(jk)
		}
	}
	return listings
}
