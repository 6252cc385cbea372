package reconcile

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/openspool/printtrack/internal/domain"
	"github.com/openspool/printtrack/internal/provider"
)

const (
	// Best-effort cancel on timeout: attempts and linear backoff base.
	cancelAttempts    = 3
	cancelBackoffStep = 500 * time.Millisecond

	// Bound on how long Stop waits for an in-flight tick to finish.
	stopTimeout = 5 * time.Second
)

// Store is the persistence surface the reconciler needs. Whole-record replace
// semantics; call failures are isolated per record by the loop.
type Store interface {
	ListActive(ctx context.Context) ([]domain.Job, error)
	ListActiveByOwner(ctx context.Context, ownerID string) ([]domain.Job, error)
	UpdateJob(ctx context.Context, job *domain.Job) error
}

// Notifier receives every committed record change, in commit order per owner.
type Notifier interface {
	Publish(job domain.Job)
}

// Config wires a Reconciler.
type Config struct {
	Logger    *slog.Logger
	Store     Store
	Providers provider.Factory
	Notifiers []Notifier
	Timeout   time.Duration // job age threshold
	Interval  time.Duration // tick cadence
}

// Reconciler drives the job state machine over the active set on a fixed
// cadence and forwards committed changes to the notifiers. It runs until Stop
// and never exits on per-record or per-tick errors.
type Reconciler struct {
	logger    *slog.Logger
	store     Store
	providers provider.Factory
	notifiers []Notifier
	timeout   time.Duration
	interval  time.Duration

	sleep func(time.Duration)

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// New creates a stopped Reconciler.
func New(cfg Config) *Reconciler {
	interval := cfg.Interval
	if interval <= 0 {
		interval = 2 * time.Second
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}

	return &Reconciler{
		logger:    cfg.Logger,
		store:     cfg.Store,
		providers: cfg.Providers,
		notifiers: cfg.Notifiers,
		timeout:   timeout,
		interval:  interval,
		sleep:     time.Sleep,
	}
}

// Start launches the background loop. Calling Start while already running is
// a no-op.
func (r *Reconciler) Start() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.running {
		return
	}
	r.running = true
	r.stopCh = make(chan struct{})
	r.doneCh = make(chan struct{})

	go r.run(r.stopCh, r.doneCh)

	r.logger.Info("Reconciler started",
		slog.Duration("interval", r.interval),
		slog.Duration("timeout", r.timeout),
	)
}

// Stop signals the loop and waits, bounded, for the current tick to finish.
func (r *Reconciler) Stop() {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return
	}
	r.running = false
	stopCh, doneCh := r.stopCh, r.doneCh
	r.mu.Unlock()

	close(stopCh)
	select {
	case <-doneCh:
		r.logger.Info("Reconciler stopped")
	case <-time.After(stopTimeout):
		r.logger.Warn("Reconciler stop timed out waiting for tick to finish")
	}
}

func (r *Reconciler) run(stopCh <-chan struct{}, doneCh chan<- struct{}) {
	defer close(doneCh)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-stopCh:
			return
		case <-ticker.C:
			r.tick(context.Background())
		}
	}
}

// tick reconciles the whole active set once.
func (r *Reconciler) tick(ctx context.Context) {
	jobs, err := r.store.ListActive(ctx)
	if err != nil {
		r.logger.Error("Failed to load active jobs",
			slog.String("error", err.Error()),
		)
		return
	}
	if len(jobs) == 0 {
		return
	}

	// A fresh provider per tick; stale connections are never reused.
	client := r.providers()
	for i := range jobs {
		r.syncJob(ctx, &jobs[i], client)
	}
}

// SyncOwner reconciles one owner's active jobs immediately and returns them
// with fresh state. Used when a live subscriber connects, so the first event
// it receives is never stale.
func (r *Reconciler) SyncOwner(ctx context.Context, ownerID string) ([]domain.Job, error) {
	jobs, err := r.store.ListActiveByOwner(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to load active jobs for owner: %w", err)
	}
	if len(jobs) == 0 {
		return nil, nil
	}

	client := r.providers()
	for i := range jobs {
		r.syncJob(ctx, &jobs[i], client)
	}

	return jobs, nil
}

// syncJob runs decide → cancel-if-needed → persist → notify for one record.
// Failures are logged and contained; the caller's loop continues.
func (r *Reconciler) syncJob(ctx context.Context, job *domain.Job, client provider.Client) {
	now := time.Now().UTC()

	var status *provider.JobStatus
	var lookupErr error
	if job.Active() && !job.TimedOut(now, r.timeout) && job.PrinterJobID != nil {
		status, lookupErr = client.JobStatus(*job.PrinterJobID)
		if lookupErr != nil && !isNotFound(lookupErr) {
			r.logger.Warn("Print service unreachable for job",
				slog.String("job_id", job.ID),
				slog.String("error", lookupErr.Error()),
			)
		}
	}

	decision := Decide(*job, status, lookupErr, now, r.timeout)
	if !decision.Changed {
		return
	}

	if decision.CancelNeeded {
		r.cancelTimedOut(&decision.Job, *job.PrinterJobID, client)
	} else if decision.TimedOut {
		r.logger.Warn("Job timed out at printer, not canceling",
			slog.String("job_id", job.ID),
			slog.String("state", string(job.State)),
		)
	}

	if err := r.store.UpdateJob(ctx, &decision.Job); err != nil {
		r.logger.Error("Failed to persist job update",
			slog.String("job_id", job.ID),
			slog.String("error", err.Error()),
		)
		return
	}

	*job = decision.Job
	r.publish(decision.Job)
}

// cancelTimedOut attempts the advisory external cancel for a timed-out queued
// job: up to cancelAttempts tries with linear backoff between them. The
// record is timed out regardless of the result; only the message differs.
func (r *Reconciler) cancelTimedOut(job *domain.Job, printerJobID int, client provider.Client) {
	var err error
	for attempt := 1; attempt <= cancelAttempts; attempt++ {
		err = client.Cancel(printerJobID)
		if err == nil || isNotFound(err) {
			job.StatusMessage = "job timed out and was canceled"
			r.logger.Info("Timed-out job canceled on print service",
				slog.String("job_id", job.ID),
				slog.Int("printer_job_id", printerJobID),
			)
			return
		}
		if attempt < cancelAttempts {
			r.sleep(cancelBackoffStep * time.Duration(attempt))
		}
	}

	// Cancellation is advisory; the record must not get stuck.
	job.StatusMessage = fmt.Sprintf("job timed out (cancel failed: %v)", err)
	r.logger.Error("Failed to cancel timed-out job",
		slog.String("job_id", job.ID),
		slog.Int("printer_job_id", printerJobID),
		slog.String("error", err.Error()),
	)
}

// CancelJob is the user-initiated cancel path. It rejects jobs that are
// physically committed or already finished. Otherwise it makes a single
// best-effort external cancel (a missing printer job counts as success) and
// advances the record to canceled even when the external call fails, so a
// queued job is never orphaned; the provider error is still returned.
func (r *Reconciler) CancelJob(ctx context.Context, job *domain.Job) error {
	if job.AtPrinter() {
		return fmt.Errorf("%w: already at printer or finished", domain.ErrNotCancelable)
	}

	var cancelErr error
	if job.PrinterJobID != nil {
		client := r.providers()
		if err := client.Cancel(*job.PrinterJobID); err != nil && !isNotFound(err) {
			cancelErr = err
			r.logger.Error("Failed to cancel job on print service",
				slog.String("job_id", job.ID),
				slog.String("error", err.Error()),
			)
		}
	}

	now := time.Now().UTC()
	job.State = domain.StateCanceled
	job.StatusMessage = "canceled by user"
	if cancelErr != nil {
		job.StatusMessage = fmt.Sprintf("canceled by user (print service cancel failed: %v)", cancelErr)
	}
	finishJob(job, now)

	if err := r.store.UpdateJob(ctx, job); err != nil {
		return fmt.Errorf("failed to persist cancellation: %w", err)
	}
	r.publish(*job)

	if cancelErr != nil {
		return fmt.Errorf("job canceled locally, print service cancel failed: %w", cancelErr)
	}
	return nil
}

func (r *Reconciler) publish(job domain.Job) {
	for _, n := range r.notifiers {
		n.Publish(job)
	}
}
