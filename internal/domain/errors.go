package domain

import "errors"

var (
	// ErrJobNotFound is returned when a job record does not exist, or when
	// the print service has no job with the referenced id. The latter is
	// expected for jobs that finished and aged out of the print service.
	ErrJobNotFound = errors.New("job not found")

	// ErrPrinterNotFound is returned when the named printer does not exist.
	ErrPrinterNotFound = errors.New("printer not found")

	// ErrNotCancelable is returned when a cancel request targets a job that
	// is physically committed or already finished.
	ErrNotCancelable = errors.New("job cannot be canceled")
)
