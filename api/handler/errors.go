package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/use-agent/jobscout/models"
	"github.com/use-agent/jobscout/store"
)

// respondError maps err to an HTTP status and writes a structured JSON
// error body.
func respondError(c *gin.Context, err error) {
	var scrapeErr *models.ScrapeError
	switch {
	case errors.As(err, &scrapeErr):
	case errors.Is(err, store.ErrNotFound):
		scrapeErr = models.NewScrapeError(models.ErrCodeNotFound, "job not found", err)
	case errors.Is(err, store.ErrConflict):
		scrapeErr = models.NewScrapeError(models.ErrCodeInvalidStatus, "job changed concurrently, reload and retry", err)
	case errors.Is(err, store.ErrUnavailable):
		scrapeErr = models.NewScrapeError(models.ErrCodeStoreUnavailable, "record store unavailable", err)
	default:
		scrapeErr = models.NewScrapeError(models.ErrCodeInternal, err.Error(), err)
	}

	c.JSON(mapErrorToStatus(scrapeErr), models.ErrorResponse{
		Success: false,
		Error:   scrapeErr.ToDetail(),
	})
}

func badRequest(c *gin.Context, msg string) {
	respondError(c, models.NewScrapeError(models.ErrCodeInvalidInput, msg, nil))
}

// mapErrorToStatus translates error codes to HTTP status codes.
func mapErrorToStatus(e *models.ScrapeError) int {
	switch e.Code {
	case models.ErrCodeInvalidInput:
		return http.StatusBadRequest // 400
	case models.ErrCodeUnauthorized:
		return http.StatusUnauthorized // 401
	case models.ErrCodeNotFound:
		return http.StatusNotFound // 404
	case models.ErrCodeInvalidStatus, models.ErrCodeCycleInProgress:
		return http.StatusConflict // 409
	case models.ErrCodeRateLimited:
		return http.StatusTooManyRequests // 429
	case models.ErrCodeApplicationFailed:
		return http.StatusBadGateway // 502
	case models.ErrCodeStoreUnavailable, models.ErrCodeMailerDisabled:
		return http.StatusServiceUnavailable // 503
	case models.ErrCodeTimeout:
		return http.StatusGatewayTimeout // 504
	default:
		return http.StatusInternalServerError // 500
	}
}
