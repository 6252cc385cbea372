package reconcile

import (
	"errors"
	"time"

	"github.com/openspool/printtrack/internal/domain"
	"github.com/openspool/printtrack/internal/provider"
)

// Decision is the outcome of one reconciliation step for one job. Job carries
// the (possibly updated) record; Changed reports whether it must be persisted
// and published. CancelNeeded instructs the loop to attempt a best-effort
// external cancel before persisting (timeout of a not-yet-committed job).
type Decision struct {
	Job          domain.Job
	Changed      bool
	TimedOut     bool
	CancelNeeded bool
}

// Decide is the job state machine. Given the current record, a fresh provider
// status (or the error the lookup failed with), and the current time, it
// returns the new record state plus side-effect instructions. It performs no
// I/O.
//
// Rule order: timeout first, then missing external id, then lookup failure,
// then the status-derived transition.
func Decide(job domain.Job, status *provider.JobStatus, lookupErr error, now time.Time, timeout time.Duration) Decision {
	if job.Terminal() {
		return Decision{Job: job}
	}

	// Timeout policy takes priority over any external read, stale or fresh.
	if job.TimedOut(now, timeout) {
		return decideTimeout(job, now)
	}

	// Submission has not resolved to an external id yet; keep waiting.
	if job.PrinterJobID == nil {
		return Decision{Job: job}
	}

	if lookupErr != nil {
		return decideLookupFailed(job, lookupErr, now)
	}

	return decideStatus(job, status, now)
}

func decideTimeout(job domain.Job, now time.Time) Decision {
	if job.AtPrinter() {
		// Physically committed: never cancel, pages stay untouched.
		job.State = domain.StateTimedOut
		job.StatusMessage = "job timed out but may have printed"
		finishJob(&job, now)
		return Decision{Job: job, Changed: true, TimedOut: true}
	}

	if job.PrinterJobID == nil {
		job.State = domain.StateTimedOut
		job.StatusMessage = "job timed out before reaching the print service"
		job.PagesPrinted = 0
		finishJob(&job, now)
		return Decision{Job: job, Changed: true, TimedOut: true}
	}

	// Still queued: the loop should try to cancel, but the record times out
	// either way. The loop fills in the status message from the cancel result.
	job.State = domain.StateTimedOut
	job.PagesPrinted = 0
	finishJob(&job, now)
	return Decision{Job: job, Changed: true, TimedOut: true, CancelNeeded: true}
}

func decideLookupFailed(job domain.Job, lookupErr error, now time.Time) Decision {
	// A missing job is not unreachability: the print service may have purged
	// it after completion. Keep polling until the timeout resolves it.
	if isNotFound(lookupErr) {
		return Decision{Job: job}
	}

	// Flip the unreachable flag exactly once; repeated failures stay quiet.
	if job.Unreachable {
		return Decision{Job: job}
	}
	job.Unreachable = true
	job.UpdatedAt = now
	return Decision{Job: job, Changed: true}
}

func decideStatus(job domain.Job, status *provider.JobStatus, now time.Time) Decision {
	wasUnreachable := job.Unreachable
	job.Unreachable = false

	if status.State == job.State && !wasUnreachable {
		return Decision{Job: job}
	}

	job.State = status.State
	job.StatusMessage = status.Message
	job.UpdatedAt = now

	switch status.State {
	case domain.StateCompleted:
		job.PagesPrinted = status.PagesCompleted
		if job.PagesPrinted == 0 {
			job.PagesPrinted = job.PageCount
		}
		finishJob(&job, now)
	case domain.StateCanceled, domain.StateAborted:
		job.PagesPrinted = status.PagesCompleted
		finishJob(&job, now)
	}

	return Decision{Job: job, Changed: true}
}

func isNotFound(err error) bool {
	return errors.Is(err, domain.ErrJobNotFound)
}

// finishJob applies the invariants of every terminal entry: completedAt is
// set and the printer-side job id is dropped, because the print service may
// recycle it.
func finishJob(job *domain.Job, now time.Time) {
	completed := now
	job.CompletedAt = &completed
	job.PrinterJobID = nil
	job.UpdatedAt = now
}
