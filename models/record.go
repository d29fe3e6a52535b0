package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// MaxErrorLogs caps JobRecord.ErrorLogs. Older entries are evicted first.
const MaxErrorLogs = 20

// Source records where a JobRecord was found. URL is globally unique.
type Source struct {
	Platform  Platform  `json:"platform"`
	URL       string    `json:"url"`
	ScrapedAt time.Time `json:"scraped_at"`
}

// Quality holds derived flags plus the two numeric scores.
type Quality struct {
	HasDescription  bool `json:"has_description"`
	HasSalary       bool `json:"has_salary"`
	HasRequirements bool `json:"has_requirements"`
	IsRemote        bool `json:"is_remote"`
	IsGraduateRole  bool `json:"is_graduate_role"`
	VisaSponsorship bool `json:"visa_sponsorship"`

	// MatchScore is filled in by downstream analysis (0-100).
	MatchScore int `json:"match_score"`

	// PriorityScore orders downstream processing (0-100).
	PriorityScore int `json:"priority_score"`
}

// AIGenerated holds drafted documents.
type AIGenerated struct {
	Resume       string     `json:"resume"`
	Email        string     `json:"email"`
	EmailSubject string     `json:"email_subject"`
	Skills       []string   `json:"skills"`
	UsedFallback bool       `json:"used_fallback"`

	// ATS analysis of the job against the candidate profile. ATSSource is
	// "model" when the score came from the LLM, "keywords" otherwise.
	MissingSkills   []string `json:"missing_skills"`
	Recommendations []string `json:"recommendations"`
	ATSSource       string   `json:"ats_source,omitempty"`

	GeneratedAt *time.Time `json:"generated_at,omitempty"`
}

// UserActions records review activity on a job.
type UserActions struct {
	ViewedAt   *time.Time `json:"viewed_at,omitempty"`
	ReviewedAt *time.Time `json:"reviewed_at,omitempty"`
	ApprovedAt *time.Time `json:"approved_at,omitempty"`
	RejectedAt *time.Time `json:"rejected_at,omitempty"`
	AppliedAt  *time.Time `json:"applied_at,omitempty"`
	Notes      string     `json:"notes"`
	Rating     int        `json:"rating"`
}

// Application records the outcome of an application attempt.
type Application struct {
	Method      string     `json:"method"`
	Recipient   string     `json:"recipient,omitempty"`
	SubmittedAt *time.Time `json:"submitted_at,omitempty"`
	Outcome     string     `json:"outcome"`
}

// ErrorLog is one processing failure kept on a record.
type ErrorLog struct {
	Stage     string    `json:"stage"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// JobRecord is the canonical, deduplicated job. Build it with NewJobRecord.
type JobRecord struct {
	JobID       string    `json:"job_id"`
	JobHash     string    `json:"job_hash"`
	Title       string    `json:"title"`
	Company     string    `json:"company"`
	Location    string    `json:"location"`
	Description string    `json:"description"`
	Salary      *Salary   `json:"salary,omitempty"`
	JobType     JobType   `json:"job_type"`
	PostedDate  time.Time `json:"posted_date"`

	Requirements           []string `json:"requirements"`
	DescriptionSynthesized bool     `json:"description_synthesized"`

	Status  Status  `json:"status"`
	Source  Source  `json:"source"`
	Quality Quality `json:"quality"`

	AIGenerated AIGenerated `json:"ai_generated"`
	UserActions UserActions `json:"user_actions"`
	Application Application `json:"application"`

	ProcessingAttempts int        `json:"processing_attempts"`
	LastProcessedAt    *time.Time `json:"last_processed_at,omitempty"`
	ErrorLogs          []ErrorLog `json:"error_logs"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewJobRecord builds a fully initialised record in the scraped state.
// The caller supplies the content hash; scores and flags are set by the
// ingestion engine. A listing without a JobID gets a generated one.
func NewJobRecord(l JobListing, hash string, now time.Time) *JobRecord {
	jobID := l.JobID
	if jobID == "" {
		jobID = strings.ToLower(string(l.Platform)) + "_" + uuid.NewString()
	}
	scrapedAt := l.ScrapedAt
	if scrapedAt.IsZero() {
		scrapedAt = now
	}
	posted := l.PostedDate
	if posted.IsZero() {
		posted = scrapedAt
	}
	jobType := l.JobType
	if jobType == "" {
		jobType = JobTypeNotSpecified
	}
	reqs := make([]string, len(l.Requirements))
	copy(reqs, l.Requirements)

	return &JobRecord{
		JobID:                  jobID,
		JobHash:                hash,
		Title:                  l.Title,
		Company:                l.Company,
		Location:               l.Location,
		Description:            l.Description,
		Salary:                 l.Salary,
		JobType:                jobType,
		PostedDate:             posted,
		Requirements:           reqs,
		DescriptionSynthesized: l.DescriptionSynthesized,
		Status:                 StatusScraped,
		Source: Source{
			Platform:  l.Platform,
			URL:       l.URL,
			ScrapedAt: scrapedAt,
		},
		AIGenerated: AIGenerated{
			Skills:          []string{},
			MissingSkills:   []string{},
			Recommendations: []string{},
		},
		ErrorLogs:   make([]ErrorLog, 0, MaxErrorLogs),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// AppendError records a processing failure, evicting the oldest entry once
// the log holds MaxErrorLogs entries.
func (r *JobRecord) AppendError(stage, message string, at time.Time) {
	if len(r.ErrorLogs) >= MaxErrorLogs {
		n := copy(r.ErrorLogs, r.ErrorLogs[len(r.ErrorLogs)-MaxErrorLogs+1:])
		r.ErrorLogs = r.ErrorLogs[:n]
	}
	r.ErrorLogs = append(r.ErrorLogs, ErrorLog{Stage: stage, Message: message, Timestamp: at})
}

// Normalize fills substructures a decoded record may lack, so readers never
// have to nil-check them.
func (r *JobRecord) Normalize() {
	if r.Requirements == nil {
		r.Requirements = []string{}
	}
	if r.AIGenerated.Skills == nil {
		r.AIGenerated.Skills = []string{}
	}
	if r.AIGenerated.MissingSkills == nil {
		r.AIGenerated.MissingSkills = []string{}
	}
	if r.AIGenerated.Recommendations == nil {
		r.AIGenerated.Recommendations = []string{}
	}
	if r.ErrorLogs == nil {
		r.ErrorLogs = make([]ErrorLog, 0, MaxErrorLogs)
	}
	if len(r.ErrorLogs) > MaxErrorLogs {
		r.ErrorLogs = r.ErrorLogs[len(r.ErrorLogs)-MaxErrorLogs:]
	}
}

// Clone returns a deep copy so stores can hand out records without sharing
// slices or pointers with their own state.
func (r *JobRecord) Clone() *JobRecord {
	c := *r
	if r.Salary != nil {
		s := *r.Salary
		c.Salary = &s
	}
	c.Requirements = append([]string(nil), r.Requirements...)
	c.AIGenerated.Skills = append([]string(nil), r.AIGenerated.Skills...)
	c.AIGenerated.MissingSkills = append([]string(nil), r.AIGenerated.MissingSkills...)
	c.AIGenerated.Recommendations = append([]string(nil), r.AIGenerated.Recommendations...)
	c.ErrorLogs = append(make([]ErrorLog, 0, MaxErrorLogs), r.ErrorLogs...)
	c.LastProcessedAt = cloneTime(r.LastProcessedAt)
	c.AIGenerated.GeneratedAt = cloneTime(r.AIGenerated.GeneratedAt)
	c.UserActions.ViewedAt = cloneTime(r.UserActions.ViewedAt)
	c.UserActions.ReviewedAt = cloneTime(r.UserActions.ReviewedAt)
	c.UserActions.ApprovedAt = cloneTime(r.UserActions.ApprovedAt)
	c.UserActions.RejectedAt = cloneTime(r.UserActions.RejectedAt)
	c.UserActions.AppliedAt = cloneTime(r.UserActions.AppliedAt)
	c.Application.SubmittedAt = cloneTime(r.Application.SubmittedAt)
	c.Normalize()
	return &c
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
