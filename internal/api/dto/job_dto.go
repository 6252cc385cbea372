package dto

// SubmitJobRequest carries the non-file fields of a submission. The document
// itself arrives as the "file" part of the multipart form.
type SubmitJobRequest struct {
	PrinterName string            `form:"printer_name" binding:"required"`
	Options     map[string]string `form:"-"`
}

type ListJobsRequest struct {
	Status    string `form:"status"`
	ColorMode string `form:"color_mode"`
	PageSize  int    `form:"page_size"`
	Cursor    string `form:"cursor"`
}

type ListJobsResponse struct {
	Jobs       []JobDTO `json:"jobs"`
	NextCursor string   `json:"next_cursor,omitempty"`
}

type JobDTO struct {
	ID            string `json:"id"`
	PrinterName   string `json:"printer_name"`
	FileName      string `json:"file_name"`
	PageCount     int    `json:"page_count"`
	PagesPrinted  int    `json:"pages_printed"`
	ColorMode     string `json:"color_mode"`
	State         string `json:"state"`
	StatusMessage string `json:"status_message"`
	Unreachable   bool   `json:"unreachable"`
	CreatedAt     string `json:"created_at"`
	UpdatedAt     string `json:"updated_at"`
	CompletedAt   string `json:"completed_at,omitempty"`
}

type SubmitJobResponse struct {
	Job JobDTO `json:"job"`
}

type StatsResponse struct {
	TotalJobs   int `json:"total_jobs"`
	PendingJobs int `json:"pending_jobs"`
	ColorPages  int `json:"color_pages"`
	MonoPages   int `json:"mono_pages"`
}

type PrinterDTO struct {
	Name         string `json:"name"`
	Info         string `json:"info"`
	Location     string `json:"location"`
	MakeAndModel string `json:"make_and_model"`
	State        int    `json:"state"`
	StateMessage string `json:"state_message"`
	Available    bool   `json:"available"`
}

type PrintersResponse struct {
	Printers []PrinterDTO `json:"printers"`
}
