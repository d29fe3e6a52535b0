package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/use-agent/jobscout/models"
)

// Version is reported by the health endpoint.
const Version = "0.1.0"

// Pinger checks store connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Health returns a handler for GET /api/v1/health.
//
// Degrades when the store does not answer a ping or the browser page pool
// is more than 80% busy. pool may be nil when no browser is running.
func Health(st Pinger, cycles CycleRunner, pool func() models.PoolStats, startTime time.Time) gin.HandlerFunc {
	return func(c *gin.Context) {
		resp := models.HealthResponse{
			Status:      "healthy",
			Uptime:      time.Since(startTime).Round(time.Second).String(),
			Store:       "ok",
			CycleActive: cycles.Running(),
			Version:     Version,
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := st.Ping(ctx); err != nil {
			resp.Status = "degraded"
			resp.Store = "unreachable"
		}

		if pool != nil {
			stats := pool()
			resp.PoolStats = &stats
			if stats.MaxPages > 0 && stats.ActivePages > int(float64(stats.MaxPages)*0.8) {
				resp.Status = "degraded"
			}
		}
		if last := cycles.LastReport(); last != nil {
			t := last.FinishedAt
			resp.LastCycleAt = &t
		}

		c.JSON(http.StatusOK, resp)
	}
}
