package models

import "time"

// ReportFormat selects the transcript output encoding.
type ReportFormat string

// Supported transcript formats.
const (
	ReportFormatCSV ReportFormat = "csv"
	ReportFormatPDF ReportFormat = "pdf"
)

// ReportStatus tracks the lifecycle of a transcript job.
type ReportStatus string

// Possible report job statuses.
const (
	ReportStatusPending ReportStatus = "PENDING"
	ReportStatusRunning ReportStatus = "RUNNING"
	ReportStatusDone    ReportStatus = "DONE"
	ReportStatusFailed  ReportStatus = "FAILED"
)

// ReportJob describes an asynchronous transcript generation request.
type ReportJob struct {
	ID          string       `db:"id" json:"id"`
	StudentID   string       `db:"student_id" json:"student_id"`
	Format      ReportFormat `db:"format" json:"format"`
	Status      ReportStatus `db:"status" json:"status"`
	FilePath    string       `db:"file_path" json:"-"`
	ErrorText   string       `db:"error_text" json:"error,omitempty"`
	RequestedBy string       `db:"requested_by" json:"requested_by"`
	CreatedAt   time.Time    `db:"created_at" json:"created_at"`
	CompletedAt *time.Time   `db:"completed_at" json:"completed_at,omitempty"`
}

// TranscriptRow is one line of a student's academic transcript.
type TranscriptRow struct {
	SubjectCode string `db:"subject_code" json:"subject_code"`
	SubjectName string `db:"subject_name" json:"subject_name"`
	CatalogYear int    `db:"catalog_year" json:"catalog_year"`
	Grade       *int   `db:"grade" json:"grade,omitempty"`
	Condition   string `db:"condition" json:"condition"`
}
