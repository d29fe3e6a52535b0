package scraper

import (
	"net/url"
	"strconv"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/use-agent/jobscout/cleaner"
	"github.com/use-agent/jobscout/models"
)

var studentCircusFields = cardFields{
	Cards:       cleaner.MustChain(`.job-card`, `.vacancy-card`, `.opportunity`, `article`),
	Title:       cleaner.MustChain(`.job-card__title`, `h3 a`, `h2 a`, `h3`, `h2`),
	Link:        cleaner.MustChain(`a.job-card__link`, `h3 a`, `h2 a`, `a[href*="/jobs/"]`),
	Company:     cleaner.MustChain(`.job-card__company`, `.company-name`, `.employer`),
	Location:    cleaner.MustChain(`.job-card__location`, `.location`),
	Salary:      cleaner.MustChain(`.job-card__salary`, `.salary`),
	Description: cleaner.MustChain(`.job-card__summary`, `.description`, `p`),
	Posted:      cleaner.MustChain(`.job-card__date`, `time`, `.posted`),
}

type studentCircus struct{}

// NewStudentCircus returns the studentcircus.com graduate board. Every
// listing it yields is a graduate role.
func NewStudentCircus() Site { return studentCircus{} }

func (studentCircus) Key() string               { return "studentcircus" }
func (studentCircus) Platform() models.Platform { return models.PlatformStudentCircus }

func (studentCircus) SearchURL(keyword, location string, page int) string {
	q := url.Values{}
	q.Set("q", keyword)
	if location != "" {
		q.Set("location", location)
	}
	q.Set("page", strconv.Itoa(page))
	return "https://www.studentcircus.com/jobs?" + q.Encode()
}

func (studentCircus) Parse(doc *goquery.Document, pageURL string, now time.Time) []models.JobListing {
	listings := readCards(doc, pageURL, now, studentCircusFields, func(_ *goquery.Selection, link string) string {
		return idFromURL("studentcircus", link)
	})
	for i := range listings {
		listings[i].IsGraduateRole = true
	}
	return listings
}
