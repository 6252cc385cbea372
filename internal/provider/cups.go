package provider

import (
	"errors"
	"fmt"

	ipp "github.com/phin1x/go-ipp"

	"github.com/openspool/printtrack/internal/domain"
)

const (
	printerStateStopped = 5

	// CUPS printer-type bitmask bit set when the printer rejects jobs.
	cupsPrinterRejecting = 0x10000

	// IPP client-error-not-found status code.
	ippStatusNotFound = 0x0406
)

// IPP job-state values mapped into domain vocabulary. A stopped job (6) is
// treated as held; unknown codes fall back to pending.
var ippJobStateMap = map[int]domain.JobState{
	3: domain.StatePending,
	4: domain.StateHeld,
	5: domain.StateProcessing,
	6: domain.StateHeld,
	7: domain.StateCanceled,
	8: domain.StateAborted,
	9: domain.StateCompleted,
}

func mapJobState(raw int) domain.JobState {
	if st, ok := ippJobStateMap[raw]; ok {
		return st
	}
	return domain.StatePending
}

// Config holds the CUPS server endpoint and credentials.
type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	UseTLS   bool
}

// CUPSClient implements Client against a CUPS server over IPP. The CUPS
// client variant is required: printer enumeration is a CUPS operation, not
// plain IPP.
type CUPSClient struct {
	ipp *ipp.CUPSClient
}

// NewCUPS creates a client for one CUPS server. The underlying HTTP
// connection is established lazily on first use.
func NewCUPS(cfg Config) *CUPSClient {
	return &CUPSClient{
		ipp: ipp.NewCUPSClient(cfg.Host, cfg.Port, cfg.Username, cfg.Password, cfg.UseTLS),
	}
}

// NewFactory returns a Factory producing a fresh CUPS client per call.
func NewFactory(cfg Config) Factory {
	return func() Client {
		return NewCUPS(cfg)
	}
}

var printerAttributes = []string{
	"printer-name",
	"printer-info",
	"printer-location",
	"printer-make-and-model",
	"printer-state",
	"printer-state-message",
	"printer-is-accepting-jobs",
	"printer-type",
	"device-uri",
}

// Printers lists all printers known to the server. Whether a printer is
// accepting jobs is resolved from the explicit attribute when present, then
// from a per-printer attribute query, then from the printer-type bitmask,
// defaulting to accepting.
func (c *CUPSClient) Printers() ([]PrinterInfo, error) {
	attrsByPrinter, err := c.ipp.GetPrinters(printerAttributes)
	if err != nil {
		return nil, wrapProviderErr("get printers", err)
	}

	printers := make([]PrinterInfo, 0, len(attrsByPrinter))
	for name, attrs := range attrsByPrinter {
		accepting, ok := attrBool(attrs, "printer-is-accepting-jobs")
		if !ok {
			if detail, derr := c.ipp.GetPrinterAttributes(name, []string{"printer-is-accepting-jobs"}); derr == nil {
				accepting, ok = attrBool(detail, "printer-is-accepting-jobs")
			}
		}
		if !ok {
			ptype, _ := attrInt(attrs, "printer-type")
			accepting = ptype&cupsPrinterRejecting == 0
		}

		state, _ := attrInt(attrs, "printer-state")
		printers = append(printers, PrinterInfo{
			Name:          name,
			Info:          attrString(attrs, "printer-info"),
			Location:      attrString(attrs, "printer-location"),
			MakeAndModel:  attrString(attrs, "printer-make-and-model"),
			State:         state,
			StateMessage:  attrString(attrs, "printer-state-message"),
			AcceptingJobs: accepting,
			URI:           attrString(attrs, "device-uri"),
		})
	}

	return printers, nil
}

// Printer looks up one printer by name.
func (c *CUPSClient) Printer(name string) (*PrinterInfo, error) {
	printers, err := c.Printers()
	if err != nil {
		return nil, err
	}
	for i := range printers {
		if printers[i].Name == name {
			return &printers[i], nil
		}
	}
	return nil, fmt.Errorf("%w: %q", domain.ErrPrinterNotFound, name)
}

// Submit sends the document to the named printer and returns the print
// service's job id.
func (c *CUPSClient) Submit(printerName string, doc Document, options map[string]string, title string) (int, error) {
	if _, err := c.Printer(printerName); err != nil {
		return 0, err
	}

	if title == "" {
		title = doc.Name
	}
	jobAttrs := make(map[string]any, len(options)+1)
	for k, v := range options {
		jobAttrs[k] = v
	}
	jobAttrs["job-name"] = title

	jobID, err := c.ipp.PrintJob(ipp.Document{
		Document: doc.Reader,
		Size:     doc.Size,
		Name:     doc.Name,
		MimeType: doc.MimeType,
	}, printerName, jobAttrs)
	if err != nil {
		return 0, wrapProviderErr("submit job", err)
	}

	return jobID, nil
}

var jobStatusAttributes = []string{
	"job-id",
	"job-state",
	"job-state-reasons",
	"job-state-message",
	"job-impressions-completed",
}

// JobStatus fetches the current status of one job. Returns
// domain.ErrJobNotFound when the print service has no record of the id, which
// is the expected outcome for completed jobs that aged out.
func (c *CUPSClient) JobStatus(printerJobID int) (*JobStatus, error) {
	attrs, err := c.ipp.GetJobAttributes(printerJobID, jobStatusAttributes)
	if err != nil {
		if isIPPNotFound(err) {
			return nil, fmt.Errorf("%w: printer job %d", domain.ErrJobNotFound, printerJobID)
		}
		return nil, wrapProviderErr("get job status", err)
	}

	raw, _ := attrInt(attrs, "job-state")
	pages, _ := attrInt(attrs, "job-impressions-completed")

	return &JobStatus{
		PrinterJobID:   printerJobID,
		State:          mapJobState(raw),
		RawState:       raw,
		StateReasons:   attrStrings(attrs, "job-state-reasons"),
		Message:        attrString(attrs, "job-state-message"),
		PagesCompleted: pages,
	}, nil
}

// Cancel cancels one job on the print service.
func (c *CUPSClient) Cancel(printerJobID int) error {
	if err := c.ipp.CancelJob(printerJobID, false); err != nil {
		if isIPPNotFound(err) {
			return fmt.Errorf("%w: printer job %d", domain.ErrJobNotFound, printerJobID)
		}
		return wrapProviderErr("cancel job", err)
	}
	return nil
}

func wrapProviderErr(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrUnavailable, op, err)
}

func isIPPNotFound(err error) bool {
	var ippErr ipp.IPPError
	return errors.As(err, &ippErr) && ippErr.Status == ippStatusNotFound
}

func attrString(attrs ipp.Attributes, name string) string {
	if vals, ok := attrs[name]; ok && len(vals) > 0 {
		if s, ok := vals[0].Value.(string); ok {
			return s
		}
	}
	return ""
}

func attrStrings(attrs ipp.Attributes, name string) []string {
	vals, ok := attrs[name]
	if !ok {
		return nil
	}
	out := make([]string, 0, len(vals))
	for _, v := range vals {
		if s, ok := v.Value.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func attrInt(attrs ipp.Attributes, name string) (int, bool) {
	if vals, ok := attrs[name]; ok && len(vals) > 0 {
		switch v := vals[0].Value.(type) {
		case int:
			return v, true
		case int32:
			return int(v), true
		}
	}
	return 0, false
}

func attrBool(attrs ipp.Attributes, name string) (bool, bool) {
	if vals, ok := attrs[name]; ok && len(vals) > 0 {
		if b, ok := vals[0].Value.(bool); ok {
			return b, true
		}
	}
	return false, false
}
