package handler

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/use-agent/jobscout/cache"
	"github.com/use-agent/jobscout/models"
	"github.com/use-agent/jobscout/store"
)

// StatsCache holds the aggregate counts served by JobStats. Writes through
// this API and completed cycles invalidate it.
type StatsCache = cache.Cache[*models.JobStats]

const statsKey = "job-stats"

// ListJobs returns a handler for GET /api/v1/jobs.
func ListJobs(st store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.ListJobsRequest
		if err := c.ShouldBindQuery(&req); err != nil {
			badRequest(c, err.Error())
			return
		}
		req.Defaults()

		f := store.Filter{Search: req.Search, Platform: models.Platform(req.Platform)}
		if req.Status != "" && req.Status != "all" {
			status, err := models.ParseStatus(req.Status)
			if err != nil {
				badRequest(c, err.Error())
				return
			}
			f.Statuses = []models.Status{status}
		}

		jobs, total, err := st.List(c.Request.Context(), store.Query{
			Filter: f,
			Offset: (req.Page - 1) * req.Limit,
			Limit:  req.Limit,
		})
		if err != nil {
			respondError(c, err)
			return
		}
		if jobs == nil {
			jobs = []*models.JobRecord{}
		}

		c.JSON(http.StatusOK, models.JobsResponse{
			Success: true,
			Jobs:    jobs,
			Pagination: models.Pagination{
				Page:  req.Page,
				Limit: req.Limit,
				Total: total,
				Pages: (total + int64(req.Limit) - 1) / int64(req.Limit),
			},
		})
	}
}

// GetJob returns a handler for GET /api/v1/jobs/:id. The first read stamps
// userActions.viewedAt.
func GetJob(st store.Store, now func() time.Time) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		rec, err := st.Get(ctx, c.Param("id"))
		if err != nil {
			respondError(c, err)
			return
		}
		if rec.UserActions.ViewedAt == nil {
			t := now()
			rec.UserActions.ViewedAt = &t
			if err := st.UpdateIf(ctx, rec, rec.Status); err != nil {
				slog.Warn("could not stamp viewedAt", "job_id", rec.JobID, "error", err)
			}
		}
		c.JSON(http.StatusOK, models.JobResponse{Success: true, Job: rec})
	}
}

// UpdateJobStatus returns a handler for PATCH /api/v1/jobs/:id/status.
//
// Transitions follow the lifecycle table; an illegal move is a 409, as is
// a record whose status changed between the read and the write.
// Approval, rejection and application stamp the matching userActions time.
func UpdateJobStatus(st store.Store, stats *StatsCache, now func() time.Time) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.UpdateStatusRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}
		to, err := models.ParseStatus(strings.TrimSpace(req.Status))
		if err != nil {
			badRequest(c, err.Error())
			return
		}

		ctx := c.Request.Context()
		rec, err := st.Get(ctx, c.Param("id"))
		if err != nil {
			respondError(c, err)
			return
		}
		if !models.CanTransition(rec.Status, to) {
			respondError(c, models.NewScrapeError(models.ErrCodeInvalidStatus,
				"cannot move job from "+string(rec.Status)+" to "+string(to), nil))
			return
		}

		from := rec.Status
		t := now()
		rec.Status = to
		rec.UpdatedAt = t
		switch to {
		case models.StatusUserApproved:
			rec.UserActions.ApprovedAt = &t
			rec.UserActions.ReviewedAt = &t
		case models.StatusUserRejected:
			rec.UserActions.RejectedAt = &t
			rec.UserActions.ReviewedAt = &t
		case models.StatusApplied:
			rec.UserActions.AppliedAt = &t
			rec.Application.SubmittedAt = &t
			if rec.Application.Method == "" {
				rec.Application.Method = "manual"
			}
		}
		if req.Notes != "" {
			rec.UserActions.Notes = req.Notes
		}
		if req.Rating != 0 {
			rec.UserActions.Rating = req.Rating
		}

		if err := st.UpdateIf(ctx, rec, from); err != nil {
			respondError(c, err)
			return
		}
		stats.Invalidate()
		slog.Info("job status updated", "job_id", rec.JobID, "from", from, "status", to)
		c.JSON(http.StatusOK, models.JobResponse{Success: true, Job: rec})
	}
}

// DeleteJob returns a handler for DELETE /api/v1/jobs/:id.
func DeleteJob(st store.Store, stats *StatsCache) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := st.Delete(c.Request.Context(), c.Param("id")); err != nil {
			respondError(c, err)
			return
		}
		stats.Invalidate()
		c.JSON(http.StatusOK, models.DeleteResponse{Success: true, Deleted: 1})
	}
}

// DeleteAllJobs returns a handler for DELETE /api/v1/jobs. It refuses to
// run without ?confirm=true.
func DeleteAllJobs(st store.Store, stats *StatsCache) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Query("confirm") != "true" {
			badRequest(c, "deleting every job requires confirm=true")
			return
		}
		n, err := st.DeleteAll(c.Request.Context())
		if err != nil {
			respondError(c, err)
			return
		}
		stats.Invalidate()
		slog.Warn("all jobs deleted", "dangerous", true, "deleted", n, "client_ip", c.ClientIP())
		c.JSON(http.StatusOK, models.DeleteResponse{Success: true, Deleted: n})
	}
}

// JobStats returns a handler for GET /api/v1/jobs/stats.
func JobStats(st store.Store, stats *StatsCache) gin.HandlerFunc {
	return func(c *gin.Context) {
		if cached, ok := stats.Get(statsKey); ok {
			c.JSON(http.StatusOK, models.StatsResponse{Success: true, Stats: cached, Cached: true})
			return
		}
		s, err := st.Stats(c.Request.Context())
		if err != nil {
			respondError(c, err)
			return
		}
		stats.Set(statsKey, s)
		c.JSON(http.StatusOK, models.StatsResponse{Success: true, Stats: s})
	}
}
