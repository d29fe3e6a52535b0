package scraper

import (
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/use-agent/jobscout/models"
)

// MinDescriptionLength is the shortest description kept as-is. Shorter
// text is replaced by a synthesized summary.
const MinDescriptionLength = 50

// SynthesizedPrefix marks descriptions built from listing fields rather
// than scraped from the source.
const SynthesizedPrefix = "[Summary generated from listing details] "

var (
	reAmount   = regexp.MustCompile(`(\d+(?:\.\d+)?)\s*(k)?\b`)
	reRelative = regexp.MustCompile(`(\d+)\+?\s*(minute|min|hour|hr|day|d|week|wk|w|month|mo)s?\b`)
	reISODate  = regexp.MustCompile(`\b(\d{4})-(\d{2})-(\d{2})`)
	reUKDate   = regexp.MustCompile(`\b(\d{1,2})/(\d{1,2})/(\d{4})\b`)
	reDayMonth = regexp.MustCompile(`\b(\d{1,2})\s+(jan|feb|mar|apr|may|jun|jul|aug|sep|oct|nov|dec)[a-z]*\b(?:\s+(\d{4}))?`)
)

var months = map[string]time.Month{
	"jan": time.January, "feb": time.February, "mar": time.March, "apr": time.April,
	"may": time.May, "jun": time.June, "jul": time.July, "aug": time.August,
	"sep": time.September, "oct": time.October, "nov": time.November, "dec": time.December,
}

// ParseSalary parses UK salary text such as "£30,000 - £40,000 per annum",
// "£35k-£45k", "£450 per day" or "£15.50 an hour". Text without a figure
// ("Competitive", "Negotiable") yields nil.
func ParseSalary(text string) *models.Salary {
	raw := strings.TrimSpace(text)
	if raw == "" {
		return nil
	}
	lower := strings.ToLower(strings.ReplaceAll(raw, ",", ""))

	var amounts []int
	for _, m := range reAmount.FindAllStringSubmatch(lower, -1) {
		v, err := strconv.ParseFloat(m[1], 64)
		if err != nil {
			continue
		}
		if m[2] == "k" {
			v *= 1000
		}
		amounts = append(amounts, int(v+0.5))
		if len(amounts) == 2 {
			break
		}
	}
	if len(amounts) == 0 || amounts[0] == 0 {
		return nil
	}

	s := &models.Salary{Min: amounts[0], Max: amounts[0], Currency: "GBP", Raw: raw}
	if len(amounts) == 2 && amounts[1] >= amounts[0] {
		s.Max = amounts[1]
	}

	switch {
	case strings.Contains(lower, "hour") || strings.Contains(lower, "/hr") || strings.Contains(lower, "p/h"):
		s.Period = "hour"
	case strings.Contains(lower, "day") || strings.Contains(lower, "daily"):
		s.Period = "day"
	case s.Max < 1000:
		// Bare three-figure amounts on UK boards are contractor day rates.
		s.Period = "day"
	default:
		s.Period = "annum"
	}
	return s
}

// ParsePostedDate turns a board's posted-date text into a time. It accepts
// relative forms ("today", "yesterday", "3 days ago", "2w ago", "30+ days
// ago"), ISO dates, UK dd/mm/yyyy dates and "12 March [2026]". ok is false
// when nothing was recognised.
func ParsePostedDate(text string, now time.Time) (t time.Time, ok bool) {
	lower := strings.ToLower(strings.TrimSpace(text))
	if lower == "" {
		return time.Time{}, false
	}

	switch {
	case strings.Contains(lower, "just now"), strings.Contains(lower, "just posted"),
		strings.Contains(lower, "today"), lower == "new", strings.Contains(lower, "moments ago"):
		return now, true
	case strings.Contains(lower, "yesterday"):
		return now.AddDate(0, 0, -1), true
	}

	if m := reISODate.FindStringSubmatch(lower); m != nil {
		y, _ := strconv.Atoi(m[1])
		mo, _ := strconv.Atoi(m[2])
		d, _ := strconv.Atoi(m[3])
		if mo >= 1 && mo <= 12 && d >= 1 && d <= 31 {
			return time.Date(y, time.Month(mo), d, 0, 0, 0, 0, now.Location()), true
		}
	}
	if m := reUKDate.FindStringSubmatch(lower); m != nil {
		d, _ := strconv.Atoi(m[1])
		mo, _ := strconv.Atoi(m[2])
		y, _ := strconv.Atoi(m[3])
		if mo >= 1 && mo <= 12 && d >= 1 && d <= 31 {
			return time.Date(y, time.Month(mo), d, 0, 0, 0, 0, now.Location()), true
		}
	}
	if m := reRelative.FindStringSubmatch(lower); m != nil {
		n, _ := strconv.Atoi(m[1])
		switch m[2] {
		case "minute", "min":
			return now.Add(-time.Duration(n) * time.Minute), true
		case "hour", "hr":
			return now.Add(-time.Duration(n) * time.Hour), true
		case "day", "d":
			return now.AddDate(0, 0, -n), true
		case "week", "wk", "w":
			return now.AddDate(0, 0, -7*n), true
		case "month", "mo":
			return now.AddDate(0, -n, 0), true
		}
	}
	if m := reDayMonth.FindStringSubmatch(lower); m != nil {
		d, _ := strconv.Atoi(m[1])
		y := now.Year()
		if m[3] != "" {
			y, _ = strconv.Atoi(m[3])
		}
		t := time.Date(y, months[m[2]], d, 0, 0, 0, 0, now.Location())
		// "28 December" read in January belongs to last year.
		if m[3] == "" && t.After(now) {
			t = t.AddDate(-1, 0, 0)
		}
		return t, true
	}
	return time.Time{}, false
}

// DetectJobType reads the working arrangement from free text.
func DetectJobType(texts ...string) models.JobType {
	joined := strings.ToLower(strings.Join(texts, " "))
	switch {
	case strings.Contains(joined, "hybrid"):
		return models.JobTypeHybrid
	case strings.Contains(joined, "fully remote"), strings.Contains(joined, "remote"),
		strings.Contains(joined, "work from home"), strings.Contains(joined, "home based"),
		strings.Contains(joined, "home-based"):
		return models.JobTypeRemote
	case strings.Contains(joined, "on-site"), strings.Contains(joined, "onsite"),
		strings.Contains(joined, "office based"), strings.Contains(joined, "office-based"):
		return models.JobTypeOnSite
	}
	return models.JobTypeNotSpecified
}

var graduateTerms = []string{
	"graduate", "entry level", "entry-level", "junior", "trainee", "apprentice",
	"intern", "placement", "early career", "no experience",
}

// IsGraduateRole reports whether the text advertises an early-career role.
func IsGraduateRole(texts ...string) bool {
	return containsAny(strings.ToLower(strings.Join(texts, " ")), graduateTerms)
}

var (
	visaPositive = []string{
		"visa sponsorship", "sponsorship available", "skilled worker visa",
		"will sponsor", "can sponsor", "sponsor visa", "tier 2",
	}
	visaNegative = []string{
		"no visa sponsorship", "unable to sponsor", "cannot sponsor", "can't sponsor",
		"not able to sponsor", "unable to offer sponsorship", "no sponsorship",
		"sponsorship is not available", "sponsorship not available", "without sponsorship",
	}
)

// MentionsVisaSponsorship reports a positive sponsorship signal. Explicit
// refusals ("no visa sponsorship") win over positive phrases.
func MentionsVisaSponsorship(texts ...string) bool {
	joined := strings.ToLower(strings.Join(texts, " "))
	if containsAny(joined, visaNegative) {
		return false
	}
	return containsAny(joined, visaPositive)
}

func containsAny(s string, terms []string) bool {
	for _, t := range terms {
		if strings.Contains(s, t) {
			return true
		}
	}
	return false
}

// AbsoluteURL resolves href against base. Fragments are dropped; an empty
// or unparsable href yields "".
func AbsoluteURL(base, href string) string {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "javascript:") || strings.HasPrefix(href, "mailto:") {
		return ""
	}
	b, err := url.Parse(base)
	if err != nil {
		return ""
	}
	ref, err := url.Parse(href)
	if err != nil {
		return ""
	}
	u := b.ResolveReference(ref)
	u.Fragment = ""
	return u.String()
}

// SynthesizeDescription builds a labelled stand-in description from the
// listing's own fields.
func SynthesizeDescription(l *models.JobListing) string {
	var b strings.Builder
	b.WriteString(SynthesizedPrefix)
	b.WriteString(l.Title)
	b.WriteString(" position at ")
	b.WriteString(l.Company)
	if l.Location != "" {
		b.WriteString(" in ")
		b.WriteString(l.Location)
	}
	b.WriteString(".")
	if l.Salary != nil && l.Salary.Raw != "" {
		b.WriteString(" Salary: ")
		b.WriteString(l.Salary.Raw)
		b.WriteString(".")
	}
	if l.JobType != "" && l.JobType != models.JobTypeNotSpecified {
		b.WriteString(" Working pattern: ")
		b.WriteString(string(l.JobType))
		b.WriteString(".")
	}
	if existing := strings.TrimSpace(l.Description); existing != "" {
		b.WriteString(" ")
		b.WriteString(existing)
	}
	b.WriteString(" Full details are on the original posting.")
	return b.String()
}

// finalize fills the fields every source derives the same way.
func finalize(l *models.JobListing, platform models.Platform, now time.Time) {
	l.Platform = platform
	if l.ScrapedAt.IsZero() {
		l.ScrapedAt = now
	}
	if l.PostedDate.IsZero() {
		l.PostedDate = now
	}
	if l.Company == "" {
		l.Company = models.UnknownCompany
	}
	if l.Location == "" {
		l.Location = "United Kingdom"
	}
	if l.JobType == "" || l.JobType == models.JobTypeNotSpecified {
		l.JobType = DetectJobType(l.Title, l.Location, l.Description)
	}
	if !l.IsGraduateRole {
		l.IsGraduateRole = IsGraduateRole(l.Title, l.Description)
	}
	if !l.VisaSponsorship {
		l.VisaSponsorship = MentionsVisaSponsorship(l.Title, l.Description)
	}
	if len(strings.TrimSpace(l.Description)) < MinDescriptionLength {
		l.Description = SynthesizeDescription(l)
		l.DescriptionSynthesized = true
	}
}
