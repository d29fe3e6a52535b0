// Package apply sends an approved application by email and records the
// outcome on the job: applying while the message is in flight, then
// applied or failed.
package apply

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/use-agent/jobscout/models"
	"github.com/use-agent/jobscout/store"
)

// ResumeFilename is the name the drafted CV is attached under.
const ResumeFilename = "Resume.txt"

// Attachment is one file sent with a Message.
type Attachment struct {
	Filename    string
	ContentType string
	Data        []byte
}

// Message is one outgoing email.
type Message struct {
	To          string
	Subject     string
	Body        string
	Attachments []Attachment
}

// Mailer delivers a Message.
type Mailer interface {
	Send(ctx context.Context, msg *Message) error
}

// Service applies to jobs through a Mailer.
type Service struct {
	st     store.Store
	mailer Mailer
	now    func() time.Time
}

// New creates a Service. A nil mailer leaves applying disabled: Apply
// fails with MAILER_NOT_CONFIGURED.
func New(st store.Store, mailer Mailer, now func() time.Time) *Service {
	if now == nil {
		now = time.Now
	}
	return &Service{st: st, mailer: mailer, now: now}
}

// Apply emails the drafted application for job id to the given address.
//
// The job must be ready_for_review or user_approved and carry a drafted
// email. It is moved to applying before the message goes out, so a second
// Apply for the same job loses the status compare and gets a 409. A send
// failure leaves the job failed with an email_application error log.
func (s *Service) Apply(ctx context.Context, id, to string) (*models.JobRecord, error) {
	if s.mailer == nil {
		return nil, models.NewScrapeError(models.ErrCodeMailerDisabled, "no SMTP relay configured", nil)
	}
	rec, err := s.st.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	from := rec.Status
	if from != models.StatusReadyForReview && from != models.StatusUserApproved {
		return nil, models.NewScrapeError(models.ErrCodeInvalidStatus,
			fmt.Sprintf("job %s is %s, not ready to apply", id, from), nil)
	}
	if strings.TrimSpace(rec.AIGenerated.Email) == "" {
		return nil, models.NewScrapeError(models.ErrCodeInvalidInput, "job has no drafted email", nil)
	}

	now := s.now()
	rec.Status = models.StatusApplying
	rec.Application.Method = "email"
	rec.Application.Recipient = to
	rec.UpdatedAt = now
	if err := s.st.UpdateIf(ctx, rec, from); err != nil {
		return nil, err
	}

	sendErr := s.mailer.Send(ctx, message(rec, to))

	// The outcome is recorded even if the caller went away mid-send.
	ctx = context.WithoutCancel(ctx)
	now = s.now()
	rec.UpdatedAt = now
	if sendErr != nil {
		rec.Status = models.StatusFailed
		rec.Application.Outcome = "failed"
		rec.AppendError("email_application", sendErr.Error(), now)
		slog.Error("email application failed", "job_id", rec.JobID, "to", to, "error", sendErr)
		if err := s.st.UpdateIf(ctx, rec, models.StatusApplying); err != nil {
			sendErr = errors.Join(sendErr, err)
		}
		return nil, models.NewScrapeError(models.ErrCodeApplicationFailed, "sending the application failed", sendErr)
	}

	rec.Status = models.StatusApplied
	rec.Application.Outcome = "sent"
	rec.Application.SubmittedAt = &now
	rec.UserActions.AppliedAt = &now
	if err := s.st.UpdateIf(ctx, rec, models.StatusApplying); err != nil {
		return nil, fmt.Errorf("application sent but not recorded: %w", err)
	}
	slog.Info("email application sent", "job_id", rec.JobID, "title", rec.Title, "company", rec.Company, "to", to)
	return rec, nil
}

func message(rec *models.JobRecord, to string) *Message {
	msg := &Message{
		To:      to,
		Subject: rec.AIGenerated.EmailSubject,
		Body:    rec.AIGenerated.Email,
	}
	if msg.Subject == "" {
		msg.Subject = "Application for " + rec.Title
	}
	if rec.AIGenerated.Resume != "" {
		msg.Attachments = append(msg.Attachments, Attachment{
			Filename:    ResumeFilename,
			ContentType: "text/plain; charset=utf-8",
			Data:        []byte(rec.AIGenerated.Resume),
		})
	}
	return msg
}
