package reconcile

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openspool/printtrack/internal/domain"
	"github.com/openspool/printtrack/internal/provider"
)

const testTimeout = 5 * time.Minute

func makeJob(state domain.JobState, age time.Duration, now time.Time) domain.Job {
	printerJobID := 42
	return domain.Job{
		ID:           "3f6b5a52-3a94-4f6e-9c9a-6f2f8b6f9e01",
		OwnerID:      "alice",
		PrinterJobID: &printerJobID,
		PrinterName:  "office",
		FileName:     "report.pdf",
		PageCount:    10,
		ColorMode:    domain.ColorModeColor,
		State:        state,
		CreatedAt:    now.Add(-age),
		UpdatedAt:    now.Add(-age),
	}
}

func TestDecideTerminalIsFrozen(t *testing.T) {
	now := time.Now()
	job := makeJob(domain.StateCompleted, time.Hour, now)

	d := Decide(job, &provider.JobStatus{State: domain.StateProcessing}, nil, now, testTimeout)

	assert.False(t, d.Changed)
	assert.Equal(t, domain.StateCompleted, d.Job.State)
}

func TestDecideNoChangeWhenStateMatches(t *testing.T) {
	now := time.Now()
	job := makeJob(domain.StateProcessing, time.Minute, now)

	d := Decide(job, &provider.JobStatus{State: domain.StateProcessing}, nil, now, testTimeout)

	assert.False(t, d.Changed)
}

func TestDecideTransitionToProcessing(t *testing.T) {
	now := time.Now()
	job := makeJob(domain.StatePending, time.Minute, now)

	d := Decide(job, &provider.JobStatus{State: domain.StateProcessing, Message: "printing page 3"}, nil, now, testTimeout)

	require.True(t, d.Changed)
	assert.Equal(t, domain.StateProcessing, d.Job.State)
	assert.Equal(t, "printing page 3", d.Job.StatusMessage)
	assert.Nil(t, d.Job.CompletedAt)
	assert.NotNil(t, d.Job.PrinterJobID)
}

func TestDecideCompletedUsesProviderPages(t *testing.T) {
	now := time.Now()
	job := makeJob(domain.StateProcessing, time.Minute, now)

	d := Decide(job, &provider.JobStatus{State: domain.StateCompleted, PagesCompleted: 7}, nil, now, testTimeout)

	require.True(t, d.Changed)
	assert.Equal(t, domain.StateCompleted, d.Job.State)
	assert.Equal(t, 7, d.Job.PagesPrinted)
	require.NotNil(t, d.Job.CompletedAt)
	assert.Nil(t, d.Job.PrinterJobID)
}

func TestDecideCompletedFallsBackToPageCount(t *testing.T) {
	now := time.Now()
	job := makeJob(domain.StateProcessing, time.Minute, now)

	d := Decide(job, &provider.JobStatus{State: domain.StateCompleted}, nil, now, testTimeout)

	require.True(t, d.Changed)
	assert.Equal(t, 10, d.Job.PagesPrinted)
}

func TestDecideCanceledKeepsProviderPagesOnly(t *testing.T) {
	now := time.Now()
	job := makeJob(domain.StateProcessing, time.Minute, now)

	d := Decide(job, &provider.JobStatus{State: domain.StateCanceled, PagesCompleted: 2}, nil, now, testTimeout)

	require.True(t, d.Changed)
	assert.Equal(t, domain.StateCanceled, d.Job.State)
	assert.Equal(t, 2, d.Job.PagesPrinted)
	require.NotNil(t, d.Job.CompletedAt)
	assert.Nil(t, d.Job.PrinterJobID)
}

func TestDecideAbortedZeroPagesWhenUnreported(t *testing.T) {
	now := time.Now()
	job := makeJob(domain.StateProcessing, time.Minute, now)

	d := Decide(job, &provider.JobStatus{State: domain.StateAborted}, nil, now, testTimeout)

	require.True(t, d.Changed)
	assert.Equal(t, 0, d.Job.PagesPrinted)
}

func TestDecideUnreachableFlipsOnce(t *testing.T) {
	now := time.Now()
	job := makeJob(domain.StatePending, time.Minute, now)
	lookupErr := errors.New("dial tcp: connection refused")

	first := Decide(job, nil, lookupErr, now, testTimeout)
	require.True(t, first.Changed)
	assert.True(t, first.Job.Unreachable)

	second := Decide(first.Job, nil, lookupErr, now.Add(2*time.Second), testTimeout)
	assert.False(t, second.Changed)
	assert.True(t, second.Job.Unreachable)
}

func TestDecideRecoveryClearsFlagAndNotifies(t *testing.T) {
	now := time.Now()
	job := makeJob(domain.StatePending, time.Minute, now)
	job.Unreachable = true

	// Same state as before, but the flag change alone must be committed.
	d := Decide(job, &provider.JobStatus{State: domain.StatePending}, nil, now, testTimeout)

	require.True(t, d.Changed)
	assert.False(t, d.Job.Unreachable)
	assert.Equal(t, domain.StatePending, d.Job.State)
}

func TestDecideNotFoundLeavesRecordUntouched(t *testing.T) {
	now := time.Now()
	job := makeJob(domain.StatePending, time.Minute, now)

	d := Decide(job, nil, domain.ErrJobNotFound, now, testTimeout)

	assert.False(t, d.Changed)
	assert.False(t, d.Job.Unreachable)
}

func TestDecideNotFoundDoesNotClearUnreachable(t *testing.T) {
	now := time.Now()
	job := makeJob(domain.StatePending, time.Minute, now)
	job.Unreachable = true

	d := Decide(job, nil, domain.ErrJobNotFound, now, testTimeout)

	assert.False(t, d.Changed)
	assert.True(t, d.Job.Unreachable)
}

func TestDecideTimeoutQueuedRequestsCancel(t *testing.T) {
	now := time.Now()
	job := makeJob(domain.StatePending, 6*time.Minute, now)

	d := Decide(job, &provider.JobStatus{State: domain.StatePending}, nil, now, testTimeout)

	require.True(t, d.Changed)
	assert.True(t, d.TimedOut)
	assert.True(t, d.CancelNeeded)
	assert.Equal(t, domain.StateTimedOut, d.Job.State)
	assert.Equal(t, 0, d.Job.PagesPrinted)
	require.NotNil(t, d.Job.CompletedAt)
	assert.Nil(t, d.Job.PrinterJobID)
}

func TestDecideTimeoutCommittedNeverCancels(t *testing.T) {
	now := time.Now()
	job := makeJob(domain.StateProcessing, 6*time.Minute, now)
	job.PagesPrinted = 4

	d := Decide(job, &provider.JobStatus{State: domain.StateProcessing}, nil, now, testTimeout)

	require.True(t, d.Changed)
	assert.True(t, d.TimedOut)
	assert.False(t, d.CancelNeeded)
	assert.Equal(t, domain.StateTimedOut, d.Job.State)
	assert.Equal(t, 4, d.Job.PagesPrinted)
	assert.Equal(t, "job timed out but may have printed", d.Job.StatusMessage)
}

func TestDecideTimeoutWithoutPrinterJobID(t *testing.T) {
	now := time.Now()
	job := makeJob(domain.StatePending, 6*time.Minute, now)
	job.PrinterJobID = nil

	d := Decide(job, nil, nil, now, testTimeout)

	require.True(t, d.Changed)
	assert.True(t, d.TimedOut)
	assert.False(t, d.CancelNeeded)
	assert.Equal(t, domain.StateTimedOut, d.Job.State)
}

func TestDecideTimeoutBeatsLookupFailure(t *testing.T) {
	now := time.Now()
	job := makeJob(domain.StatePending, 6*time.Minute, now)

	d := Decide(job, nil, errors.New("connection refused"), now, testTimeout)

	require.True(t, d.Changed)
	assert.True(t, d.TimedOut)
	assert.Equal(t, domain.StateTimedOut, d.Job.State)
	assert.False(t, d.Job.Unreachable)
}

func TestDecideWaitingForPrinterJobID(t *testing.T) {
	now := time.Now()
	job := makeJob(domain.StatePending, time.Minute, now)
	job.PrinterJobID = nil

	d := Decide(job, nil, nil, now, testTimeout)

	assert.False(t, d.Changed)
	assert.Equal(t, domain.StatePending, d.Job.State)
}
