package models

import "time"

// Platform identifies the job board or site a listing came from.
type Platform string

const (
	PlatformReed              Platform = "Reed"
	PlatformIndeed            Platform = "Indeed"
	PlatformTotalJobs         Platform = "TotalJobs"
	PlatformCWJobs            Platform = "CWJobs"
	PlatformStudentCircus     Platform = "StudentCircus"
	PlatformCompanyCareerPage Platform = "CompanyCareerPage"

	// Reserved for records imported from older collections.
	PlatformLinkedIn          Platform = "LinkedIn"
	PlatformCyberSecurityJobs Platform = "CyberSecurityJobs"
	PlatformGovUK             Platform = "GovUK"
)

// JobType is the working arrangement advertised by a listing.
type JobType string

const (
	JobTypeRemote       JobType = "Remote"
	JobTypeHybrid       JobType = "Hybrid"
	JobTypeOnSite       JobType = "On-site"
	JobTypeNotSpecified JobType = "Not specified"
)

// Salary is a parsed salary band. Raw keeps the text as the site showed it.
type Salary struct {
	Min      int    `json:"min,omitempty"`
	Max      int    `json:"max,omitempty"`
	Currency string `json:"currency"`
	Period   string `json:"period,omitempty"` // "annum", "day", "hour"
	Raw      string `json:"raw,omitempty"`
}

// UnknownCompany stands in for a company the source did not publish.
const UnknownCompany = "Company not specified"

// JobListing is one posting as a scraper extracted it, before deduplication.
// Listings are values: the ingestion engine never mutates what it is handed.
type JobListing struct {
	JobID       string    `json:"job_id,omitempty"`
	Title       string    `json:"title" validate:"required,max=300"`
	Company     string    `json:"company" validate:"required,max=200"`
	Location    string    `json:"location" validate:"max=200"`
	Description string    `json:"description"`
	Salary      *Salary   `json:"salary,omitempty"`
	JobType     JobType   `json:"job_type"`
	Platform    Platform  `json:"platform"`
	URL         string    `json:"url" validate:"required,url"`
	PostedDate  time.Time `json:"posted_date"`
	ScrapedAt   time.Time `json:"scraped_at"`

	// Requirements holds bullet points when the source exposes them.
	Requirements []string `json:"requirements,omitempty"`

	// DescriptionSynthesized is set when Description was generated from
	// the title/company/location because the source gave too little text.
	DescriptionSynthesized bool `json:"description_synthesized,omitempty"`

	IsGraduateRole  bool `json:"is_graduate_role,omitempty"`
	VisaSponsorship bool `json:"visa_sponsorship,omitempty"`
}
