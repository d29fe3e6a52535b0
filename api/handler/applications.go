package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/use-agent/jobscout/models"
	"github.com/use-agent/jobscout/store"
)

// Preparer drafts one job on demand. *drafter.Drafter satisfies it.
type Preparer interface {
	Prepare(ctx context.Context, id string) (*models.JobRecord, error)
}

// Applicant sends an application. *apply.Service satisfies it.
type Applicant interface {
	Apply(ctx context.Context, id, to string) (*models.JobRecord, error)
}

// PrepareApplication returns a handler for POST
// /api/v1/applications/prepare/:id. It runs the drafting stages for one
// job now and answers with the review-ready record.
func PrepareApplication(p Preparer, stats *StatsCache) gin.HandlerFunc {
	return func(c *gin.Context) {
		if p == nil {
			respondError(c, models.NewScrapeError(models.ErrCodeInvalidInput, "drafting is disabled", nil))
			return
		}
		rec, err := p.Prepare(c.Request.Context(), c.Param("id"))
		if err != nil {
			respondError(c, err)
			return
		}
		stats.Invalidate()
		c.JSON(http.StatusOK, models.JobResponse{Success: true, Job: rec})
	}
}

// ApplyToJob returns a handler for POST /api/v1/applications/apply/:id.
func ApplyToJob(a Applicant, stats *StatsCache) gin.HandlerFunc {
	return func(c *gin.Context) {
		if a == nil {
			respondError(c, models.NewScrapeError(models.ErrCodeMailerDisabled, "applying is disabled", nil))
			return
		}
		var req models.ApplyRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}
		rec, err := a.Apply(c.Request.Context(), c.Param("id"), req.To)
		stats.Invalidate()
		if err != nil {
			respondError(c, err)
			return
		}
		slog.Info("application submitted", "job_id", rec.JobID, "client_ip", c.ClientIP())
		c.JSON(http.StatusOK, models.JobResponse{Success: true, Job: rec})
	}
}

// PreviewResume returns a handler for GET /api/v1/resumes/:id/preview. It
// serves the drafted CV as plain text, or 404 before one exists.
func PreviewResume(st store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		rec, err := st.Get(c.Request.Context(), c.Param("id"))
		if err != nil {
			respondError(c, err)
			return
		}
		if rec.AIGenerated.Resume == "" {
			respondError(c, models.NewScrapeError(models.ErrCodeNotFound, "resume not drafted yet", nil))
			return
		}
		c.String(http.StatusOK, rec.AIGenerated.Resume)
	}
}
