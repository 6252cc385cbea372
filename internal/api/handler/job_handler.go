package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/pdfcpu/pdfcpu/pkg/api"

	"github.com/openspool/printtrack/internal/api/dto"
	"github.com/openspool/printtrack/internal/api/middleware"
	"github.com/openspool/printtrack/internal/domain"
	"github.com/openspool/printtrack/internal/provider"
	"github.com/openspool/printtrack/internal/storage"
)

const pdfMimeType = "application/pdf"

// SubmitJob handles POST /api/v1/jobs
// Accepts a multipart PDF upload, records the job, and hands the document to
// the print service.
func (h *JobHandler) SubmitJob(c *gin.Context) {
	ownerID := middleware.OwnerID(c)

	h.logger.Info("SubmitJob called",
		slog.String("method", c.Request.Method),
		slog.String("path", c.Request.URL.Path),
		slog.String("owner_id", ownerID),
	)

	printerName := c.PostForm("printer_name")
	if printerName == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "printer_name is required"})
		return
	}

	options, err := parseOptions(c.PostForm("options"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "options must be a JSON object of string values"})
		return
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file is required"})
		return
	}

	if fileHeader.Size > h.maxUploadBytes {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "file exceeds maximum upload size"})
		return
	}

	if !strings.EqualFold(filepath.Ext(fileHeader.Filename), ".pdf") {
		c.JSON(http.StatusBadRequest, gin.H{"error": "only PDF documents are accepted"})
		return
	}

	jobID := uuid.New().String()
	savedPath := filepath.Join(h.uploadDir, jobID+".pdf")
	if err := c.SaveUploadedFile(fileHeader, savedPath); err != nil {
		h.logger.Error("Failed to save upload", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to store uploaded file"})
		return
	}
	// The print service copies the document on submit, so the stored upload
	// is gone once this request finishes, whatever its outcome.
	defer os.Remove(savedPath)

	// Extension alone is not trusted; sniff the stored bytes.
	mime, err := mimetype.DetectFile(savedPath)
	if err != nil || !mime.Is(pdfMimeType) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "uploaded file is not a PDF"})
		return
	}

	pageCount, err := api.PageCountFile(savedPath)
	if err != nil {
		h.logger.Error("Failed to count pages", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{"error": "could not read page count from PDF"})
		return
	}

	now := time.Now()
	job := domain.Job{
		ID:          jobID,
		OwnerID:     ownerID,
		PrinterName: printerName,
		FileName:    filepath.Base(fileHeader.Filename),
		PageCount:   pageCount,
		ColorMode:   detectColorMode(options),
		State:       domain.StatePending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := h.storage.CreateJob(c.Request.Context(), &job); err != nil {
		h.logger.Error("Failed to create job", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create job"})
		return
	}

	printerJobID, err := h.submitToPrinter(&job, savedPath, options)
	if err != nil {
		// The record survives as aborted so the failed attempt stays visible
		// in the owner's history.
		job.State = domain.StateAborted
		job.StatusMessage = fmt.Sprintf("submission failed: %v", err)
		completed := time.Now()
		job.CompletedAt = &completed
		job.UpdatedAt = completed
		if uerr := h.storage.UpdateJob(c.Request.Context(), &job); uerr != nil {
			h.logger.Error("Failed to persist aborted job", slog.String("error", uerr.Error()))
		}
		h.hub.Publish(job)

		h.logger.Error("Failed to submit job to printer",
			slog.String("job_id", job.ID),
			slog.String("printer", printerName),
			slog.String("error", err.Error()),
		)
		if errors.Is(err, domain.ErrPrinterNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "printer not found"})
			return
		}
		c.JSON(http.StatusBadGateway, gin.H{"error": "Failed to submit job to printer"})
		return
	}

	job.PrinterJobID = &printerJobID
	job.UpdatedAt = time.Now()
	if err := h.storage.UpdateJob(c.Request.Context(), &job); err != nil {
		h.logger.Error("Failed to record printer job id", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update job"})
		return
	}

	c.JSON(http.StatusCreated, dto.SubmitJobResponse{Job: toJobDTO(job)})
}

func (h *JobHandler) submitToPrinter(job *domain.Job, path string, options map[string]string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("failed to open stored document: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return 0, fmt.Errorf("failed to stat stored document: %w", err)
	}

	doc := provider.Document{
		Reader:   f,
		Size:     int(info.Size()),
		Name:     job.FileName,
		MimeType: pdfMimeType,
	}

	client := h.providers()
	return client.Submit(job.PrinterName, doc, options, job.FileName)
}

func parseOptions(raw string) (map[string]string, error) {
	if raw == "" {
		return map[string]string{}, nil
	}
	options := map[string]string{}
	if err := json.Unmarshal([]byte(raw), &options); err != nil {
		return nil, err
	}
	return options, nil
}

// GetJob handles GET /api/v1/jobs/:job_id
// Retrieves detailed information about one of the caller's jobs
func (h *JobHandler) GetJob(c *gin.Context) {
	ownerID := middleware.OwnerID(c)
	jobID := c.Param("job_id")

	if _, err := uuid.Parse(jobID); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "job_id must be a valid UUID"})
		return
	}

	job, err := h.storage.GetJob(c.Request.Context(), jobID, ownerID)
	if err != nil {
		if errors.Is(err, domain.ErrJobNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "job not found"})
			return
		}
		h.logger.Error("Failed to get job", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get job"})
		return
	}

	c.JSON(http.StatusOK, toJobDTO(*job))
}

// ListJobs handles GET /api/v1/jobs
// Lists the caller's jobs with optional filtering and cursor pagination
func (h *JobHandler) ListJobs(c *gin.Context) {
	ownerID := middleware.OwnerID(c)

	var req dto.ListJobsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid query parameters"})
		return
	}

	switch req.Status {
	case "", "pending", "completed", "failed":
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "status must be one of pending, completed, failed"})
		return
	}

	if req.PageSize <= 0 {
		req.PageSize = 20
	}
	if req.PageSize > 100 {
		req.PageSize = 100
	}

	cursor, err := DecodeJobCursor(req.Cursor)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid cursor"})
		return
	}

	filter := storage.JobFilter{
		OwnerID:     ownerID,
		StatusClass: req.Status,
		ColorMode:   req.ColorMode,
		PageSize:    req.PageSize,
		Cursor:      cursor,
	}

	jobs, err := h.storage.ListJobs(c.Request.Context(), filter)
	if err != nil {
		h.logger.Error("Failed to list jobs", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list jobs"})
		return
	}

	hasMore := len(jobs) > req.PageSize
	if hasMore {
		jobs = jobs[:req.PageSize]
	}

	jobResponse := make([]dto.JobDTO, len(jobs))
	for i, job := range jobs {
		jobResponse[i] = toJobDTO(job)
	}

	var nextCursor string
	if hasMore {
		lastJob := jobs[len(jobs)-1]
		nextCursor, err = EncodeJobCursor(&storage.JobCursor{
			CreatedAt: lastJob.CreatedAt,
			JobID:     lastJob.ID,
		})
		if err != nil {
			h.logger.Error("Failed to encode next cursor", slog.String("error", err.Error()))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to encode next cursor"})
			return
		}
	}

	c.JSON(http.StatusOK, dto.ListJobsResponse{
		Jobs:       jobResponse,
		NextCursor: nextCursor,
	})
}

// CancelJob handles POST /api/v1/jobs/:job_id/cancel
// Cancels a job that has not yet reached the printer
func (h *JobHandler) CancelJob(c *gin.Context) {
	ownerID := middleware.OwnerID(c)
	jobID := c.Param("job_id")

	if _, err := uuid.Parse(jobID); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "job_id must be a valid UUID"})
		return
	}

	job, err := h.storage.GetJob(c.Request.Context(), jobID, ownerID)
	if err != nil {
		if errors.Is(err, domain.ErrJobNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "job not found"})
			return
		}
		h.logger.Error("Failed to get job", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get job"})
		return
	}

	err = h.reconciler.CancelJob(c.Request.Context(), job)
	if errors.Is(err, domain.ErrNotCancelable) {
		c.JSON(http.StatusConflict, gin.H{"error": "job has already reached the printer and cannot be canceled"})
		return
	}
	if err != nil {
		// The record is canceled even when the print service call failed, so
		// report the job as it now stands.
		h.logger.Warn("Cancel reached the record but not the printer",
			slog.String("job_id", job.ID),
			slog.String("error", err.Error()),
		)
	}

	c.JSON(http.StatusOK, toJobDTO(*job))
}

// Stats handles GET /api/v1/jobs/stats
// Returns job counts and page accounting for the caller
func (h *JobHandler) Stats(c *gin.Context) {
	ownerID := middleware.OwnerID(c)

	stats, err := h.storage.Stats(c.Request.Context(), ownerID)
	if err != nil {
		h.logger.Error("Failed to compute stats", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to compute stats"})
		return
	}

	c.JSON(http.StatusOK, dto.StatsResponse{
		TotalJobs:   stats.TotalJobs,
		PendingJobs: stats.PendingJobs,
		ColorPages:  stats.ColorPages,
		MonoPages:   stats.MonoPages,
	})
}

func toJobDTO(job domain.Job) dto.JobDTO {
	out := dto.JobDTO{
		ID:            job.ID,
		PrinterName:   job.PrinterName,
		FileName:      job.FileName,
		PageCount:     job.PageCount,
		PagesPrinted:  job.PagesPrinted,
		ColorMode:     string(job.ColorMode),
		State:         string(job.State),
		StatusMessage: job.StatusMessage,
		Unreachable:   job.Unreachable,
		CreatedAt:     job.CreatedAt.Format(time.RFC3339),
		UpdatedAt:     job.UpdatedAt.Format(time.RFC3339),
	}
	if job.CompletedAt != nil {
		out.CompletedAt = job.CompletedAt.Format(time.RFC3339)
	}
	return out
}
