package handler

import (
	"context"
	"log/slog"

	"github.com/openspool/printtrack/internal/domain"
	"github.com/openspool/printtrack/internal/notify"
	"github.com/openspool/printtrack/internal/provider"
	"github.com/openspool/printtrack/internal/reconcile"
	"github.com/openspool/printtrack/internal/storage"
)

// JobStore is the persistence surface the handlers need, satisfied by
// *storage.Storage.
type JobStore interface {
	CreateJob(ctx context.Context, job *domain.Job) error
	UpdateJob(ctx context.Context, job *domain.Job) error
	GetJob(ctx context.Context, jobID, ownerID string) (*domain.Job, error)
	ListJobs(ctx context.Context, filter storage.JobFilter) ([]domain.Job, error)
	Stats(ctx context.Context, ownerID string) (*storage.JobStats, error)
}

// HealthChecker reports backing-store liveness, satisfied by
// *postgresql.Client.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Dependencies holds all dependencies needed by handlers
type Dependencies struct {
	Logger     *slog.Logger
	Storage    JobStore
	Health     HealthChecker
	Providers  provider.Factory
	Reconciler *reconcile.Reconciler
	Hub        *notify.Hub

	UploadDir      string
	MaxUploadBytes int64
}

// JobHandler handles job-related HTTP requests
type JobHandler struct {
	logger         *slog.Logger
	storage        JobStore
	providers      provider.Factory
	reconciler     *reconcile.Reconciler
	hub            *notify.Hub
	uploadDir      string
	maxUploadBytes int64
}

// NewJobHandler creates a new JobHandler instance
func NewJobHandler(deps *Dependencies) *JobHandler {
	return &JobHandler{
		logger:         deps.Logger,
		storage:        deps.Storage,
		providers:      deps.Providers,
		reconciler:     deps.Reconciler,
		hub:            deps.Hub,
		uploadDir:      deps.UploadDir,
		maxUploadBytes: deps.MaxUploadBytes,
	}
}

// PrinterHandler handles printer-related HTTP requests
type PrinterHandler struct {
	logger    *slog.Logger
	providers provider.Factory
}

// NewPrinterHandler creates a new PrinterHandler instance
func NewPrinterHandler(deps *Dependencies) *PrinterHandler {
	return &PrinterHandler{
		logger:    deps.Logger,
		providers: deps.Providers,
	}
}
