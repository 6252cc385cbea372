package events

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/openspool/printtrack/internal/domain"
	"github.com/openspool/printtrack/shared/rabbitmq"
)

const (
	routingKeyPrefix = "print.job."
	publishTimeout   = 5 * time.Second
	queueDepth       = 256
)

// jobEvent is the wire form of one committed job change.
type jobEvent struct {
	JobID         string           `json:"job_id"`
	OwnerID       string           `json:"owner_id"`
	PrinterName   string           `json:"printer_name"`
	State         domain.JobState  `json:"state"`
	StatusMessage string           `json:"status_message"`
	PageCount     int              `json:"page_count"`
	PagesPrinted  int              `json:"pages_printed"`
	ColorMode     domain.ColorMode `json:"color_mode"`
	Unreachable   bool             `json:"unreachable"`
	UpdatedAt     time.Time        `json:"updated_at"`
}

// Publisher relays committed job changes to a RabbitMQ topic exchange with
// routing keys of the form print.job.<state>, for external consumers
// (accounting, dashboards). Delivery is best effort and never blocks the
// reconciliation loop: records are handed off through a bounded queue and
// dropped with a log line when it is full.
type Publisher struct {
	logger *slog.Logger
	mq     *rabbitmq.Client
	queue  chan domain.Job
	done   chan struct{}
}

// NewPublisher starts the relay goroutine.
func NewPublisher(mq *rabbitmq.Client, logger *slog.Logger) *Publisher {
	p := &Publisher{
		logger: logger,
		mq:     mq,
		queue:  make(chan domain.Job, queueDepth),
		done:   make(chan struct{}),
	}
	go p.drain()
	return p
}

// Publish enqueues one record for relay. Never blocks.
func (p *Publisher) Publish(job domain.Job) {
	select {
	case p.queue <- job:
	default:
		p.logger.Warn("Event queue full, dropping job event",
			slog.String("job_id", job.ID),
			slog.String("state", string(job.State)),
		)
	}
}

// Close stops the relay after flushing queued events.
func (p *Publisher) Close() {
	close(p.queue)
	<-p.done
}

func (p *Publisher) drain() {
	defer close(p.done)

	for job := range p.queue {
		p.send(job)
	}
}

func (p *Publisher) send(job domain.Job) {
	body, err := json.Marshal(jobEvent{
		JobID:         job.ID,
		OwnerID:       job.OwnerID,
		PrinterName:   job.PrinterName,
		State:         job.State,
		StatusMessage: job.StatusMessage,
		PageCount:     job.PageCount,
		PagesPrinted:  job.PagesPrinted,
		ColorMode:     job.ColorMode,
		Unreachable:   job.Unreachable,
		UpdatedAt:     job.UpdatedAt,
	})
	if err != nil {
		p.logger.Error("Failed to marshal job event",
			slog.String("job_id", job.ID),
			slog.Any("error", err),
		)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()

	if err := p.mq.Publish(ctx, routingKeyPrefix+string(job.State), body, "application/json"); err != nil {
		p.logger.Error("Failed to publish job event",
			slog.String("job_id", job.ID),
			slog.Any("error", err),
		)
	}
}
