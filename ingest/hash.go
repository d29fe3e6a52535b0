package ingest

import (
	"crypto/md5"
	"encoding/hex"
	"strings"
	"time"
	"unicode"

	"github.com/use-agent/jobscout/models"
	"github.com/use-agent/jobscout/scraper"
)

// JobHash fingerprints a job by its normalized title, company and location.
// Normalization lowercases and drops everything but letters and digits, so
// "SOC Analyst" and "soc-analyst" at the same company and place hash alike.
func JobHash(title, company, location string) string {
	sum := md5.Sum([]byte(normalize(title) + "|" + normalize(company) + "|" + normalize(location)))
	return hex.EncodeToString(sum[:])
}

// ListingHash is the JobHash of l. Without a real company name the title
// and location alone say too little, so the URL stands in for the company.
func ListingHash(l *models.JobListing) string {
	company := strings.TrimSpace(l.Company)
	if company == "" || company == models.UnknownCompany {
		company = "url:" + l.URL
	}
	return JobHash(l.Title, company, l.Location)
}

func normalize(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return unicode.ToLower(r)
		}
		return -1
	}, s)
}

// PriorityScore orders downstream processing, 0-100. Fresh postings,
// graduate roles, remote work, real descriptions and visa sponsorship rank
// higher.
func PriorityScore(l *models.JobListing, now time.Time) int {
	score := 50

	posted := l.PostedDate
	if posted.IsZero() {
		posted = l.ScrapedAt
	}
	if !posted.IsZero() {
		switch age := now.Sub(posted); {
		case age < 24*time.Hour:
			score += 30
		case age < 72*time.Hour:
			score += 20
		case age < 168*time.Hour:
			score += 10
		}
	}

	if l.IsGraduateRole || scraper.IsGraduateRole(l.Title) {
		score += 15
	}
	switch l.JobType {
	case models.JobTypeRemote:
		score += 10
	case models.JobTypeHybrid:
		score += 5
	}
	if len(l.Description) > 200 {
		score += 5
	}
	if l.VisaSponsorship || scraper.MentionsVisaSponsorship(l.Description) {
		score += 10
	}

	return max(0, min(100, score))
}

// quality derives the quality flags for a listing.
func quality(l *models.JobListing, now time.Time) models.Quality {
	return models.Quality{
		HasDescription:  strings.TrimSpace(l.Description) != "" && !l.DescriptionSynthesized,
		HasSalary:       l.Salary != nil,
		HasRequirements: len(l.Requirements) > 0,
		IsRemote:        l.JobType == models.JobTypeRemote,
		IsGraduateRole:  l.IsGraduateRole || scraper.IsGraduateRole(l.Title),
		VisaSponsorship: l.VisaSponsorship || scraper.MentionsVisaSponsorship(l.Description),
		PriorityScore:   PriorityScore(l, now),
	}
}
