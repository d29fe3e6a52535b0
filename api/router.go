package api

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/use-agent/jobscout/api/handler"
	"github.com/use-agent/jobscout/api/middleware"
	"github.com/use-agent/jobscout/config"
	"github.com/use-agent/jobscout/models"
	"github.com/use-agent/jobscout/store"
)

// Deps are the services the review API drives.
type Deps struct {
	Store   store.Store
	Cycles  handler.CycleRunner
	Sweeper handler.Sweeper
	Stats   *handler.StatsCache

	// Sources is the scraper table. Nil leaves the /sources routes out.
	Sources handler.SourceRegistry

	// Preparer and Applicant are nil when drafting or mail is disabled;
	// their endpoints then answer with an error.
	Preparer  handler.Preparer
	Applicant handler.Applicant

	// Pool reports browser page pool usage. Nil when no browser runs.
	Pool func() models.PoolStats

	Now       func() time.Time
	StartTime time.Time
}

// NewRouter creates a configured Gin engine with all routes and middleware.
// Background cycles started through the API run under ctx.
//
// Middleware chain:
//
//	Global:  Recovery → Logger
//	API:     Auth (if enabled) → RateLimit
//
// Health stays outside auth so monitoring probes always work.
func NewRouter(ctx context.Context, d Deps, cfg *config.Config) *gin.Engine {
	gin.SetMode(cfg.Server.Mode)
	if d.Now == nil {
		d.Now = time.Now
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(gin.Logger())

	v1 := r.Group("/api/v1")
	v1.GET("/health", handler.Health(d.Store, d.Cycles, d.Pool, d.StartTime))

	protected := v1.Group("")
	if cfg.Auth.Enabled {
		protected.Use(middleware.Auth(cfg.Auth.APIKeys))
	}
	protected.Use(middleware.RateLimit(ctx, cfg.RateLimit))

	// Jobs
	protected.GET("/jobs", handler.ListJobs(d.Store))
	protected.GET("/jobs/stats", handler.JobStats(d.Store, d.Stats))
	protected.GET("/jobs/:id", handler.GetJob(d.Store, d.Now))
	protected.PATCH("/jobs/:id/status", handler.UpdateJobStatus(d.Store, d.Stats, d.Now))
	protected.DELETE("/jobs/:id", handler.DeleteJob(d.Store, d.Stats))
	protected.DELETE("/jobs", handler.DeleteAllJobs(d.Store, d.Stats))

	// Pipeline
	protected.POST("/cycle", handler.PostCycle(d.Cycles, ctx))
	protected.GET("/cycle", handler.GetCycle(d.Cycles))
	protected.POST("/sweep", handler.PostSweep(d.Sweeper, cfg.Retention.MaxJobAgeDays, d.Stats))
	if d.Sources != nil {
		protected.GET("/sources", handler.ListSources(d.Sources))
		protected.PATCH("/sources/:key", handler.SetSourceEnabled(d.Sources))
	}

	// Applications
	protected.POST("/applications/prepare/:id", handler.PrepareApplication(d.Preparer, d.Stats))
	protected.POST("/applications/apply/:id", handler.ApplyToJob(d.Applicant, d.Stats))
	protected.GET("/resumes/:id/preview", handler.PreviewResume(d.Store))

	return r
}
