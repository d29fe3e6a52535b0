package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/use-agent/jobscout/models"
	"github.com/use-agent/jobscout/scraper"
)

// SourceRegistry is the scraper table the API can inspect and toggle.
// *scraper.Registry satisfies it.
type SourceRegistry interface {
	All() []scraper.Registration
	SetEnabled(key string, enabled bool) bool
}

// SourcesResponse is the response for the /sources endpoints.
type SourcesResponse struct {
	Success bool                   `json:"success"`
	Sources []scraper.Registration `json:"sources"`
}

// ListSources returns a handler for GET /api/v1/sources.
func ListSources(reg SourceRegistry) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, SourcesResponse{Success: true, Sources: reg.All()})
	}
}

// SetSourceEnabled returns a handler for PATCH /api/v1/sources/:key. The
// change applies from the next cycle and lasts until restart.
func SetSourceEnabled(reg SourceRegistry) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.SetSourceRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}
		if !reg.SetEnabled(c.Param("key"), *req.Enabled) {
			respondError(c, models.NewScrapeError(models.ErrCodeNotFound, "unknown source "+c.Param("key"), nil))
			return
		}
		c.JSON(http.StatusOK, SourcesResponse{Success: true, Sources: reg.All()})
	}
}
