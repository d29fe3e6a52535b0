package models

// ListJobsRequest is the query string for GET /api/v1/jobs.
type ListJobsRequest struct {
	// Status filters by lifecycle status. Empty means all.
	Status string `form:"status"`

	// Platform filters by source platform. Empty means all.
	Platform string `form:"platform"`

	// Search matches title, company or location, case-insensitively.
	Search string `form:"search" binding:"max=200"`

	// Page is 1-based. Default: 1.
	Page int `form:"page" binding:"omitempty,min=1"`

	// Limit is the page size. Default: 20. Max: 100.
	Limit int `form:"limit" binding:"omitempty,min=1,max=100"`
}

// Defaults applies default values to unset fields.
func (r *ListJobsRequest) Defaults() {
	if r.Page == 0 {
		r.Page = 1
	}
	if r.Limit == 0 {
		r.Limit = 20
	}
}

// UpdateStatusRequest is the payload for PATCH /api/v1/jobs/:id/status.
type UpdateStatusRequest struct {
	Status string `json:"status" binding:"required"`

	// Notes replaces the reviewer notes when non-empty.
	Notes string `json:"notes,omitempty" binding:"max=2000"`

	// Rating is an optional 1-5 reviewer rating.
	Rating int `json:"rating,omitempty" binding:"omitempty,min=1,max=5"`
}

// ApplyRequest is the payload for POST /api/v1/applications/apply/:id.
type ApplyRequest struct {
	// To is the address the application is emailed to.
	To string `json:"to" binding:"required,email"`
}

// SetSourceRequest is the payload for PATCH /api/v1/sources/:key.
type SetSourceRequest struct {
	Enabled *bool `json:"enabled" binding:"required"`
}
