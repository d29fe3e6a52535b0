package models

import "fmt"

// Status is the lifecycle position of a JobRecord.
//
// Main path:
//
//	scraped ─► validated ─► keywords_extracted ─► resume_pending ─► resume_generated
//	   ─► email_pending ─► email_generated ─► ready_for_review ─► user_approved
//	   ─► applying ─► applied
//
// Side exits: user_rejected (until approval), failed (any non-terminal state),
// expired (any non-terminal state except user_approved and applying).
// applied, user_rejected, failed and expired are terminal.
type Status string

const (
	StatusScraped           Status = "scraped"
	StatusValidated         Status = "validated"
	StatusKeywordsExtracted Status = "keywords_extracted"
	StatusResumePending     Status = "resume_pending"
	StatusResumeGenerated   Status = "resume_generated"
	StatusEmailPending      Status = "email_pending"
	StatusEmailGenerated    Status = "email_generated"
	StatusReadyForReview    Status = "ready_for_review"
	StatusUserApproved      Status = "user_approved"
	StatusUserRejected      Status = "user_rejected"
	StatusApplying          Status = "applying"
	StatusApplied           Status = "applied"
	StatusFailed            Status = "failed"
	StatusExpired           Status = "expired"
)

// mainPath orders the non-exit statuses.
var mainPath = map[Status]int{
	StatusScraped:           0,
	StatusValidated:         1,
	StatusKeywordsExtracted: 2,
	StatusResumePending:     3,
	StatusResumeGenerated:   4,
	StatusEmailPending:      5,
	StatusEmailGenerated:    6,
	StatusReadyForReview:    7,
	StatusUserApproved:      8,
	StatusApplying:          9,
	StatusApplied:           10,
}

// AllStatuses lists every status in lifecycle order.
var AllStatuses = []Status{
	StatusScraped, StatusValidated, StatusKeywordsExtracted, StatusResumePending,
	StatusResumeGenerated, StatusEmailPending, StatusEmailGenerated, StatusReadyForReview,
	StatusUserApproved, StatusUserRejected, StatusApplying, StatusApplied,
	StatusFailed, StatusExpired,
}

// SweepableStatuses are the early statuses the staleness sweeper may expire.
var SweepableStatuses = []Status{StatusScraped, StatusValidated, StatusKeywordsExtracted}

// ParseStatus converts a raw string to a Status.
func ParseStatus(s string) (Status, error) {
	st := Status(s)
	if _, ok := mainPath[st]; ok {
		return st, nil
	}
	switch st {
	case StatusUserRejected, StatusFailed, StatusExpired:
		return st, nil
	}
	return "", fmt.Errorf("unknown job status %q", s)
}

// IsTerminal reports whether no transition leaves s.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusApplied, StatusUserRejected, StatusFailed, StatusExpired:
		return true
	}
	return false
}

// CanTransition reports whether a record may move from → to through a
// regular update. The ingestion repost path is the only writer allowed to
// move a record back to scraped and does not go through this check.
func CanTransition(from, to Status) bool {
	if from == to || from.IsTerminal() {
		return false
	}
	switch to {
	case StatusExpired:
		return from != StatusUserApproved && from != StatusApplying
	case StatusFailed:
		return true
	case StatusUserRejected:
		return mainPath[from] <= mainPath[StatusUserApproved]
	}
	fromRank, okFrom := mainPath[from]
	toRank, okTo := mainPath[to]
	if !okFrom || !okTo {
		return false
	}
	return toRank > fromRank
}
