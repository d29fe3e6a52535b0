package scraper

import (
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/use-agent/jobscout/cleaner"
	"github.com/use-agent/jobscout/models"
)

// cardFields is the selector fallback chain for each field of a listing
// card. Title and Link are required; the rest are best effort.
type cardFields struct {
	Cards       cleaner.Chain
	Title       cleaner.Chain
	Link        cleaner.Chain
	Company     cleaner.Chain
	Location    cleaner.Chain
	Salary      cleaner.Chain
	Description cleaner.Chain
	Posted      cleaner.Chain
}

// readCards extracts a listing from every card on the page. id derives the
// source's stable jobId from a card and its resolved URL; it may return "".
func readCards(doc *goquery.Document, pageURL string, now time.Time, f cardFields,
	id func(card *goquery.Selection, link string) string) []models.JobListing {

	var out []models.JobListing
	f.Cards.Find(doc.Selection).Each(func(_ int, card *goquery.Selection) {
		title := f.Title.Text(card)
		link := AbsoluteURL(pageURL, f.Link.Attr(card, "href"))
		if title == "" || link == "" {
			return
		}

		l := models.JobListing{
			Title:       title,
			URL:         link,
			Company:     f.Company.Text(card),
			Location:    f.Location.Text(card),
			Description: f.Description.Text(card),
			ScrapedAt:   now,
		}
		if salary := f.Salary.Text(card); salary != "" {
			l.Salary = ParseSalary(salary)
		}
		if posted, ok := ParsePostedDate(f.Posted.Text(card), now); ok {
			l.PostedDate = posted
		}
		if id != nil {
			l.JobID = id(card, link)
		}
		out = append(out, l)
	})
	return out
}

var reTrailingDigits = regexp.MustCompile(`(\d{4,})(?:[/?#]|$)`)

// idFromURL builds "<prefix>_<n>" from the last long digit run in the URL
// path, or "" when there is none.
func idFromURL(prefix, link string) string {
	path := link
	if i := strings.IndexAny(path, "?#"); i >= 0 {
		path = path[:i]
	}
	m := reTrailingDigits.FindAllStringSubmatch(path, -1)
	if len(m) == 0 {
		return ""
	}
	return prefix + "_" + m[len(m)-1][1]
}

// slug lowercases s and joins its words with dashes, the way boards build
// SEO search paths ("SOC Analyst" -> "soc-analyst").
func slug(s string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(strings.TrimSpace(s)) {
		switch {
		case (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9'):
			b.WriteRune(r)
			dash = false
		case !dash && b.Len() > 0:
			b.WriteByte('-')
			dash = true
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}
