package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/openspool/printtrack/internal/domain"
	"github.com/openspool/printtrack/shared/postgresql"
)

const jobColumns = `
	job_id, owner_id, printer_job_id, printer_name, file_name,
	page_count, pages_printed, color_mode, state, status_message,
	unreachable, created_at, updated_at, completed_at
`

// Storage persists job records. It is shared by the API handlers and the
// reconciliation loop; writes are whole-record replaces at row granularity.
type Storage struct {
	db *sqlx.DB
}

// NewStorage creates a Storage on the shared PostgreSQL client.
func NewStorage(pg *postgresql.Client) *Storage {
	return &Storage{db: pg.GetDB()}
}

// CreateJob inserts a new record.
func (s *Storage) CreateJob(ctx context.Context, job *domain.Job) error {
	query := `
		INSERT INTO print_jobs (` + jobColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`

	_, err := s.db.ExecContext(ctx, query,
		job.ID, job.OwnerID, job.PrinterJobID, job.PrinterName, job.FileName,
		job.PageCount, job.PagesPrinted, job.ColorMode, job.State, job.StatusMessage,
		job.Unreachable, job.CreatedAt, job.UpdatedAt, job.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create job: %w", err)
	}

	return nil
}

// UpdateJob replaces the stored record wholesale.
func (s *Storage) UpdateJob(ctx context.Context, job *domain.Job) error {
	query := `
		UPDATE print_jobs
		SET printer_job_id = $1,
		    pages_printed = $2,
		    state = $3,
		    status_message = $4,
		    unreachable = $5,
		    updated_at = $6,
		    completed_at = $7
		WHERE job_id = $8
	`

	result, err := s.db.ExecContext(ctx, query,
		job.PrinterJobID, job.PagesPrinted, job.State, job.StatusMessage,
		job.Unreachable, job.UpdatedAt, job.CompletedAt, job.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update job: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if affected == 0 {
		return domain.ErrJobNotFound
	}

	return nil
}

// GetJob fetches one record, scoped to its owner. A job is never visible to
// a non-owner.
func (s *Storage) GetJob(ctx context.Context, jobID, ownerID string) (*domain.Job, error) {
	query := `SELECT ` + jobColumns + ` FROM print_jobs WHERE job_id = $1 AND owner_id = $2`

	var job domain.Job
	if err := s.db.GetContext(ctx, &job, query, jobID, ownerID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrJobNotFound
		}
		return nil, fmt.Errorf("failed to get job: %w", err)
	}

	return &job, nil
}

// ListActive returns every non-terminal record; the reconciliation loop's
// only discovery query.
func (s *Storage) ListActive(ctx context.Context) ([]domain.Job, error) {
	query := `
		SELECT ` + jobColumns + `
		FROM print_jobs
		WHERE state IN ($1, $2, $3)
		ORDER BY created_at ASC
	`

	var jobs []domain.Job
	active := domain.ActiveStates()
	if err := s.db.SelectContext(ctx, &jobs, query, active[0], active[1], active[2]); err != nil {
		return nil, fmt.Errorf("failed to list active jobs: %w", err)
	}

	return jobs, nil
}

// ListActiveByOwner returns one owner's non-terminal records.
func (s *Storage) ListActiveByOwner(ctx context.Context, ownerID string) ([]domain.Job, error) {
	query := `
		SELECT ` + jobColumns + `
		FROM print_jobs
		WHERE owner_id = $1 AND state IN ($2, $3, $4)
		ORDER BY created_at ASC
	`

	var jobs []domain.Job
	active := domain.ActiveStates()
	if err := s.db.SelectContext(ctx, &jobs, query, ownerID, active[0], active[1], active[2]); err != nil {
		return nil, fmt.Errorf("failed to list active jobs for owner: %w", err)
	}

	return jobs, nil
}

// JobFilter narrows ListJobs. StatusClass is one of "", "pending",
// "completed", "failed"; ColorMode one of "", "color", "monochrome".
type JobFilter struct {
	OwnerID     string
	StatusClass string
	ColorMode   string
	PageSize    int
	Cursor      *JobCursor
}

// JobCursor is a keyset-pagination position.
type JobCursor struct {
	CreatedAt time.Time
	JobID     string
}

// ListJobs returns one page of an owner's jobs, newest first, fetching one
// extra row so the caller can detect a next page.
func (s *Storage) ListJobs(ctx context.Context, filter JobFilter) ([]domain.Job, error) {
	query := `SELECT ` + jobColumns + ` FROM print_jobs WHERE owner_id = $1`
	args := []any{filter.OwnerID}
	argIdx := 2

	switch filter.StatusClass {
	case "pending":
		query += fmt.Sprintf(" AND state IN ($%d, $%d, $%d)", argIdx, argIdx+1, argIdx+2)
		active := domain.ActiveStates()
		args = append(args, active[0], active[1], active[2])
		argIdx += 3
	case "completed":
		query += fmt.Sprintf(" AND state = $%d", argIdx)
		args = append(args, domain.StateCompleted)
		argIdx++
	case "failed":
		query += fmt.Sprintf(" AND state IN ($%d, $%d, $%d)", argIdx, argIdx+1, argIdx+2)
		args = append(args, domain.StateCanceled, domain.StateAborted, domain.StateTimedOut)
		argIdx += 3
	}

	if filter.ColorMode != "" {
		query += fmt.Sprintf(" AND color_mode = $%d", argIdx)
		args = append(args, filter.ColorMode)
		argIdx++
	}

	if filter.Cursor != nil {
		query += fmt.Sprintf(" AND (created_at, job_id) < ($%d, $%d)", argIdx, argIdx+1)
		args = append(args, filter.Cursor.CreatedAt, filter.Cursor.JobID)
		argIdx += 2
	}

	query += " ORDER BY created_at DESC, job_id DESC"
	query += fmt.Sprintf(" LIMIT $%d", argIdx)
	args = append(args, filter.PageSize+1)

	var jobs []domain.Job
	if err := s.db.SelectContext(ctx, &jobs, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}

	return jobs, nil
}

// JobStats aggregates one owner's page accounting. Printed-page sums only
// count jobs that have left the active set, where the figure is trustworthy.
type JobStats struct {
	TotalJobs   int `db:"total_jobs" json:"total_jobs"`
	PendingJobs int `db:"pending_jobs" json:"pending_jobs"`
	ColorPages  int `db:"color_pages" json:"color_pages"`
	MonoPages   int `db:"mono_pages" json:"mono_pages"`
}

// Stats computes job and page totals for one owner.
func (s *Storage) Stats(ctx context.Context, ownerID string) (*JobStats, error) {
	query := `
		SELECT
			COUNT(*) AS total_jobs,
			COUNT(*) FILTER (WHERE state IN ($2, $3, $4)) AS pending_jobs,
			COALESCE(SUM(pages_printed) FILTER (WHERE color_mode = $5 AND state NOT IN ($2, $3, $4)), 0) AS color_pages,
			COALESCE(SUM(pages_printed) FILTER (WHERE color_mode = $6 AND state NOT IN ($2, $3, $4)), 0) AS mono_pages
		FROM print_jobs
		WHERE owner_id = $1
	`

	var stats JobStats
	active := domain.ActiveStates()
	err := s.db.GetContext(ctx, &stats, query,
		ownerID, active[0], active[1], active[2],
		domain.ColorModeColor, domain.ColorModeMono,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to compute job stats: %w", err)
	}

	return &stats, nil
}
