package models_test

import (
	"testing"

	"github.com/use-agent/jobscout/models"
)

// ── ParseStatus ────────────────────────────────────────────────────────────

func TestParseStatus_AllKnown(t *testing.T) {
	for _, s := range models.AllStatuses {
		got, err := models.ParseStatus(string(s))
		if err != nil {
			t.Errorf("ParseStatus(%q) returned unexpected error: %v", s, err)
		}
		if got != s {
			t.Errorf("ParseStatus(%q) = %q", s, got)
		}
	}
}

func TestParseStatus_Unknown(t *testing.T) {
	for _, s := range []string{"", "SCRAPED", "archived"} {
		if _, err := models.ParseStatus(s); err == nil {
			t.Errorf("ParseStatus(%q) expected error, got nil", s)
		}
	}
}

// ── CanTransition ──────────────────────────────────────────────────────────

func TestCanTransition_Forward(t *testing.T) {
	cases := []struct{ from, to models.Status }{
		{models.StatusScraped, models.StatusValidated},
		{models.StatusValidated, models.StatusKeywordsExtracted},
		{models.StatusEmailGenerated, models.StatusReadyForReview},
		{models.StatusReadyForReview, models.StatusUserApproved},
		{models.StatusUserApproved, models.StatusApplying},
		{models.StatusApplying, models.StatusApplied},
		{models.StatusScraped, models.StatusReadyForReview},
	}
	for _, tc := range cases {
		if !models.CanTransition(tc.from, tc.to) {
			t.Errorf("CanTransition(%s → %s) = false, want true", tc.from, tc.to)
		}
	}
}

func TestCanTransition_Backward(t *testing.T) {
	cases := []struct{ from, to models.Status }{
		{models.StatusValidated, models.StatusScraped},
		{models.StatusReadyForReview, models.StatusResumePending},
		{models.StatusApplying, models.StatusUserApproved},
		{models.StatusScraped, models.StatusScraped},
	}
	for _, tc := range cases {
		if models.CanTransition(tc.from, tc.to) {
			t.Errorf("CanTransition(%s → %s) = true, want false", tc.from, tc.to)
		}
	}
}

func TestCanTransition_Exits(t *testing.T) {
	if !models.CanTransition(models.StatusReadyForReview, models.StatusUserRejected) {
		t.Error("ready_for_review → user_rejected should be allowed")
	}
	if models.CanTransition(models.StatusApplying, models.StatusUserRejected) {
		t.Error("applying → user_rejected should not be allowed")
	}
	if !models.CanTransition(models.StatusApplying, models.StatusFailed) {
		t.Error("applying → failed should be allowed")
	}
	if !models.CanTransition(models.StatusScraped, models.StatusExpired) {
		t.Error("scraped → expired should be allowed")
	}
}

func TestCanTransition_NeverExpiresApprovedOrApplied(t *testing.T) {
	for _, from := range []models.Status{models.StatusUserApproved, models.StatusApplied, models.StatusApplying} {
		if models.CanTransition(from, models.StatusExpired) {
			t.Errorf("%s → expired should not be allowed", from)
		}
	}
}

func TestCanTransition_TerminalStatesAreAbsorbing(t *testing.T) {
	terminal := []models.Status{
		models.StatusApplied, models.StatusUserRejected, models.StatusFailed, models.StatusExpired,
	}
	for _, from := range terminal {
		for _, to := range models.AllStatuses {
			if models.CanTransition(from, to) {
				t.Errorf("terminal %s → %s should not be allowed", from, to)
			}
		}
	}
}
