package scraper

import (
	"fmt"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/use-agent/jobscout/cleaner"
	"github.com/use-agent/jobscout/models"
)

var reedFields = cardFields{
	Cards:       cleaner.MustChain(`article[data-qa="job-card"]`, `.job-card`, `article[data-job-id]`, `article.job-result`),
	Title:       cleaner.MustChain(`[data-qa="job-card-title"]`, `h2 a`, `h3 a`, `.job-result-heading__title a`),
	Link:        cleaner.MustChain(`a[data-qa="job-card-title"]`, `h2 a`, `h3 a`, `.job-result-heading__title a`),
	Company:     cleaner.MustChain(`.gtmJobListingPostedBy`, `[data-qa="job-posted-by"] a`, `.job-result-heading__posted-by a`),
	Location:    cleaner.MustChain(`[data-qa="job-metadata-location"]`, `.job-metadata__item--location`, `li.location`),
	Salary:      cleaner.MustChain(`[data-qa="job-metadata-salary"]`, `.job-metadata__item--salary`, `li.salary`),
	Description: cleaner.MustChain(`[data-qa="job-card-description"]`, `.job-result-description__details`, `p.description`),
	Posted:      cleaner.MustChain(`[data-qa="job-posted-by"]`, `.job-result-heading__posted-by`),
}

type reed struct{}

// NewReed returns the reed.co.uk board.
func NewReed() Site { return reed{} }

func (reed) Key() string               { return "reed" }
func (reed) Platform() models.Platform { return models.PlatformReed }

func (reed) SearchURL(keyword, location string, page int) string {
	u := fmt.Sprintf("https://www.reed.co.uk/jobs/%s-jobs", slug(keyword))
	if loc := slug(location); loc != "" {
		u += "-in-" + loc
	}
	if page > 1 {
		u += fmt.Sprintf("?pageno=%d", page)
	}
	return u
}

func (reed) Parse(doc *goquery.Document, pageURL string, now time.Time) []models.JobListing {
	return readCards(doc, pageURL, now, reedFields, func(card *goquery.Selection, link string) string {
		if v, ok := card.Attr("data-job-id"); ok && v != "" {
			return "reed_" + v
		}
		return idFromURL("reed", link)
	})
}
