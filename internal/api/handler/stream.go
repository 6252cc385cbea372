package handler

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/openspool/printtrack/internal/api/dto"
	"github.com/openspool/printtrack/internal/api/middleware"
	"github.com/openspool/printtrack/internal/domain"
)

const (
	streamBufferSize  = 16
	keepaliveInterval = 30 * time.Second
)

// StreamJobs handles GET /api/v1/jobs/stream
// Server-sent events feed of the caller's job updates. The connection opens
// with a "connected" event carrying the active jobs after a forced sync, then
// emits one "job-update" event per committed record change.
func (h *JobHandler) StreamJobs(c *gin.Context) {
	ownerID := middleware.OwnerID(c)

	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "streaming unsupported"})
		return
	}

	// The server's WriteTimeout is an absolute per-response deadline; a
	// stream outlives it, so it must be cleared for this response.
	if err := http.NewResponseController(c.Writer).SetWriteDeadline(time.Time{}); err != nil {
		h.logger.Warn("Failed to clear write deadline for stream",
			slog.String("owner_id", ownerID),
			slog.String("error", err.Error()),
		)
	}

	// Subscribe before the snapshot so no update between the two is lost.
	updates := make(chan domain.Job, streamBufferSize)
	unsubscribe := h.hub.Subscribe(ownerID, func(job domain.Job) {
		select {
		case updates <- job:
		default:
			h.logger.Warn("Dropping job update for slow stream consumer",
				slog.String("owner_id", ownerID),
				slog.String("job_id", job.ID),
			)
		}
	})
	defer unsubscribe()

	active, err := h.reconciler.SyncOwner(c.Request.Context(), ownerID)
	if err != nil {
		h.logger.Error("Failed to sync jobs on stream connect",
			slog.String("owner_id", ownerID),
			slog.String("error", err.Error()),
		)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load jobs"})
		return
	}

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Writer.Header().Set("X-Accel-Buffering", "no")
	c.Writer.WriteHeader(http.StatusOK)

	snapshot := make([]dto.JobDTO, len(active))
	for i, job := range active {
		snapshot[i] = toJobDTO(job)
	}
	if err := writeEvent(c.Writer, "connected", snapshot); err != nil {
		return
	}
	flusher.Flush()

	keepalive := time.NewTicker(keepaliveInterval)
	defer keepalive.Stop()

	for {
		select {
		case <-c.Request.Context().Done():
			return

		case job := <-updates:
			if err := writeEvent(c.Writer, "job-update", toJobDTO(job)); err != nil {
				return
			}
			flusher.Flush()

		case <-keepalive.C:
			if _, err := fmt.Fprint(c.Writer, ": keepalive\n\n"); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

func writeEvent(w http.ResponseWriter, event string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data)
	return err
}
