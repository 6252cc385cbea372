package domain

import "time"

// JobState is the lifecycle state of a tracked print job.
type JobState string

const (
	StatePending    JobState = "pending"    // submitted, waiting in the print queue
	StateHeld       JobState = "held"       // held (or stopped) in the print queue
	StateProcessing JobState = "processing" // at the printer, actively printing
	StateCompleted  JobState = "completed"  // successfully printed
	StateCanceled   JobState = "canceled"   // canceled by the user
	StateAborted    JobState = "aborted"    // system or printer error
	StateTimedOut   JobState = "timed_out"  // exceeded the tracking timeout
)

// Terminal reports whether no further transitions occur from s.
func (s JobState) Terminal() bool {
	switch s {
	case StateCompleted, StateCanceled, StateAborted, StateTimedOut:
		return true
	}
	return false
}

// Active reports whether a job in state s still needs reconciliation.
func (s JobState) Active() bool {
	return !s.Terminal()
}

// ActiveStates lists the non-terminal states, for storage queries.
func ActiveStates() []JobState {
	return []JobState{StatePending, StateHeld, StateProcessing}
}

// ColorMode classifies a job for page accounting. Fixed at submission.
type ColorMode string

const (
	ColorModeColor ColorMode = "color"
	ColorModeMono  ColorMode = "monochrome"
)

// Job is the durable record of one submitted print job. It is mutated only by
// the reconciliation loop and the explicit cancel path.
type Job struct {
	ID            string     `db:"job_id" json:"id"`
	OwnerID       string     `db:"owner_id" json:"-"`
	PrinterJobID  *int       `db:"printer_job_id" json:"-"`
	PrinterName   string     `db:"printer_name" json:"printer_name"`
	FileName      string     `db:"file_name" json:"file_name"`
	PageCount     int        `db:"page_count" json:"page_count"`
	PagesPrinted  int        `db:"pages_printed" json:"pages_printed"`
	ColorMode     ColorMode  `db:"color_mode" json:"color_mode"`
	State         JobState   `db:"state" json:"state"`
	StatusMessage string     `db:"status_message" json:"status_message"`
	Unreachable   bool       `db:"unreachable" json:"unreachable"`
	CreatedAt     time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time  `db:"updated_at" json:"updated_at"`
	CompletedAt   *time.Time `db:"completed_at" json:"completed_at,omitempty"`
}

// Terminal reports whether the job has finished.
func (j *Job) Terminal() bool {
	return j.State.Terminal()
}

// Active reports whether the job still needs reconciliation.
func (j *Job) Active() bool {
	return j.State.Active()
}

// AtPrinter reports whether the job is physically committed. Once a job
// reaches processing or any terminal state, pages may already be on paper, so
// it must never be canceled and its printed-page count never decreased.
func (j *Job) AtPrinter() bool {
	return j.State == StateProcessing || j.State.Terminal()
}

// TimedOut reports whether a non-terminal job is older than threshold.
func (j *Job) TimedOut(now time.Time, threshold time.Duration) bool {
	if j.Terminal() {
		return false
	}
	return now.Sub(j.CreatedAt) > threshold
}
