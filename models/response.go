package models

import "time"

// JobsResponse is the response for GET /api/v1/jobs.
type JobsResponse struct {
	Success    bool         `json:"success"`
	Jobs       []*JobRecord `json:"jobs"`
	Pagination Pagination   `json:"pagination"`
	Error      *ErrorDetail `json:"error,omitempty"`
}

// Pagination describes the page returned by a list call.
type Pagination struct {
	Page  int   `json:"page"`
	Limit int   `json:"limit"`
	Total int64 `json:"total"`
	Pages int64 `json:"pages"`
}

// JobResponse wraps a single record.
type JobResponse struct {
	Success bool         `json:"success"`
	Job     *JobRecord   `json:"job,omitempty"`
	Error   *ErrorDetail `json:"error,omitempty"`
}

// DeleteResponse reports how many records a delete removed.
type DeleteResponse struct {
	Success bool         `json:"success"`
	Deleted int64        `json:"deleted"`
	Error   *ErrorDetail `json:"error,omitempty"`
}

// JobStats holds aggregate counts over the store.
type JobStats struct {
	Total      int64              `json:"total"`
	ByStatus   map[Status]int64   `json:"by_status"`
	ByPlatform map[Platform]int64 `json:"by_platform"`
}

// StatsResponse is the response for GET /api/v1/jobs/stats.
type StatsResponse struct {
	Success bool         `json:"success"`
	Stats   *JobStats    `json:"stats,omitempty"`
	Cached  bool         `json:"cached"`
	Error   *ErrorDetail `json:"error,omitempty"`
}

// SweepResponse is the response for POST /api/v1/sweep.
type SweepResponse struct {
	Success    bool         `json:"success"`
	MaxAgeDays int          `json:"max_age_days"`
	Expired    int64        `json:"expired"`
	Error      *ErrorDetail `json:"error,omitempty"`
}

// ErrorResponse is the body of any failed request without a richer envelope.
type ErrorResponse struct {
	Success bool         `json:"success"`
	Error   *ErrorDetail `json:"error"`
}

// HealthResponse is the response for GET /api/v1/health.
type HealthResponse struct {
	Status      string     `json:"status"` // "healthy" or "degraded"
	Uptime      string     `json:"uptime"`
	Store       string     `json:"store"`
	CycleActive bool       `json:"cycle_active"`
	LastCycleAt *time.Time `json:"last_cycle_at,omitempty"`
	PoolStats   *PoolStats `json:"pool_stats,omitempty"`
	Version     string     `json:"version"`
}

// PoolStats reports the state of the browser page pool.
type PoolStats struct {
	MaxPages    int `json:"max_pages"`
	ActivePages int `json:"active_pages"`
}
