package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/use-agent/jobscout/models"
	"github.com/use-agent/jobscout/scheduler"
)

// CycleRunner is the scheduler surface the API drives.
// *scheduler.Orchestrator satisfies it.
type CycleRunner interface {
	Start(ctx context.Context, trigger string) error
	Running() bool
	LastReport() *scheduler.CycleReport
}

// Sweeper expires stale records on demand.
type Sweeper interface {
	Sweep(ctx context.Context, maxAgeDays int) (int64, error)
}

// CycleResponse is the response for the /cycle endpoints.
type CycleResponse struct {
	Success bool                   `json:"success"`
	Running bool                   `json:"running"`
	Started bool                   `json:"started,omitempty"`
	Last    *scheduler.CycleReport `json:"last,omitempty"`
	Error   *models.ErrorDetail    `json:"error,omitempty"`
}

// PostCycle returns a handler for POST /api/v1/cycle. The cycle runs in
// the background under base, not the request context, and the handler
// answers 202 at once, or 409 when a cycle is already running.
func PostCycle(runner CycleRunner, base context.Context) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := runner.Start(base, "manual"); err != nil {
			if errors.Is(err, scheduler.ErrCycleRunning) {
				respondError(c, models.NewScrapeError(models.ErrCodeCycleInProgress, err.Error(), err))
				return
			}
			respondError(c, err)
			return
		}
		c.JSON(http.StatusAccepted, CycleResponse{Success: true, Running: true, Started: true})
	}
}

// GetCycle returns a handler for GET /api/v1/cycle.
func GetCycle(runner CycleRunner) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, CycleResponse{
			Success: true,
			Running: runner.Running(),
			Last:    runner.LastReport(),
		})
	}
}

// PostSweep returns a handler for POST /api/v1/sweep.
func PostSweep(sw Sweeper, maxAgeDays int, stats *StatsCache) gin.HandlerFunc {
	return func(c *gin.Context) {
		n, err := sw.Sweep(c.Request.Context(), maxAgeDays)
		if err != nil {
			respondError(c, err)
			return
		}
		if n > 0 {
			stats.Invalidate()
		}
		c.JSON(http.StatusOK, models.SweepResponse{Success: true, MaxAgeDays: maxAgeDays, Expired: n})
	}
}
