package provider

import (
	"errors"
	"io"

	"github.com/openspool/printtrack/internal/domain"
)

// ErrUnavailable wraps any transport or protocol failure talking to the print
// service. It drives the unreachable flag on affected job records.
var ErrUnavailable = errors.New("print service unavailable")

// PrinterInfo describes one printer known to the print service.
type PrinterInfo struct {
	Name          string `json:"name"`
	Info          string `json:"info"`
	Location      string `json:"location"`
	MakeAndModel  string `json:"make_and_model"`
	State         int    `json:"state"` // 3=idle, 4=printing, 5=stopped
	StateMessage  string `json:"state_message"`
	AcceptingJobs bool   `json:"accepting_jobs"`
	URI           string `json:"-"`
}

// Available reports whether the printer can take new jobs.
func (p *PrinterInfo) Available() bool {
	return p.AcceptingJobs && p.State != printerStateStopped
}

// JobStatus is a point-in-time snapshot of one job as reported by the print
// service, already translated into domain vocabulary.
type JobStatus struct {
	PrinterJobID   int
	State          domain.JobState
	RawState       int
	StateReasons   []string
	Message        string
	PagesCompleted int
}

// PrintOption is a single configurable option with its allowed choices.
type PrintOption struct {
	Keyword string         `json:"keyword"`
	Text    string         `json:"text"`
	Default string         `json:"default"`
	Choices []OptionChoice `json:"choices"`
}

// OptionChoice is one selectable value of a PrintOption.
type OptionChoice struct {
	Value string `json:"value"`
	Text  string `json:"text"`
}

// OptionGroup bundles related print options.
type OptionGroup struct {
	Name    string        `json:"name"`
	Text    string        `json:"text"`
	Options []PrintOption `json:"options"`
}

// Document is a payload to submit for printing.
type Document struct {
	Reader   io.Reader
	Size     int
	Name     string
	MimeType string
}

// Client is the query/command surface over the external print service. All
// calls are synchronous and may block on network I/O; callers must not hold
// locks across them.
type Client interface {
	Printers() ([]PrinterInfo, error)
	Printer(name string) (*PrinterInfo, error)
	PrinterOptions(name string) ([]OptionGroup, error)
	Submit(printerName string, doc Document, options map[string]string, title string) (int, error)
	JobStatus(printerJobID int) (*JobStatus, error)
	Cancel(printerJobID int) error
}

// Factory builds a fresh Client. The reconciliation loop uses a new client per
// tick so a stale connection is never reused across ticks.
type Factory func() Client
