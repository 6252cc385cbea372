package router

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/openspool/printtrack/internal/api/handler"
	"github.com/openspool/printtrack/internal/api/middleware"
)

// SetupRouter configures and returns the Gin router with all routes
func SetupRouter(deps *handler.Dependencies, auth *middleware.AuthMiddleware) *gin.Engine {
	r := gin.New()

	// Middleware
	r.Use(gin.Recovery())
	r.Use(LoggerMiddleware(deps.Logger))
	r.Use(CORSMiddleware())

	// Health check endpoint, verifies the database alongside the process
	r.GET("/health", func(c *gin.Context) {
		if deps.Health != nil {
			if err := deps.Health.HealthCheck(c.Request.Context()); err != nil {
				deps.Logger.Error("Health check failed", slog.String("error", err.Error()))
				c.JSON(http.StatusServiceUnavailable, gin.H{
					"status":  "unhealthy",
					"service": "print-service",
				})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"service": "print-service",
		})
	})

	jobHandler := handler.NewJobHandler(deps)
	printerHandler := handler.NewPrinterHandler(deps)

	// API v1 routes
	v1 := r.Group("/api/v1")
	v1.Use(auth.RequireAuth())
	{
		jobs := v1.Group("/jobs")
		{
			// POST /api/v1/jobs - Submit a document for printing
			jobs.POST("", jobHandler.SubmitJob)

			// GET /api/v1/jobs - List jobs with filtering and pagination
			jobs.GET("", jobHandler.ListJobs)

			// GET /api/v1/jobs/stats - Job counts and page accounting
			jobs.GET("/stats", jobHandler.Stats)

			// GET /api/v1/jobs/stream - Server-sent events feed of job updates
			jobs.GET("/stream", jobHandler.StreamJobs)

			// GET /api/v1/jobs/:job_id - Get job details
			jobs.GET("/:job_id", jobHandler.GetJob)

			// POST /api/v1/jobs/:job_id/cancel - Cancel a job
			jobs.POST("/:job_id/cancel", jobHandler.CancelJob)
		}

		printers := v1.Group("/printers")
		{
			// GET /api/v1/printers - List printers with availability
			printers.GET("", printerHandler.ListPrinters)

			// GET /api/v1/printers/:name/options - Supported print options
			printers.GET("/:name/options", printerHandler.PrinterOptions)
		}
	}

	return r
}
