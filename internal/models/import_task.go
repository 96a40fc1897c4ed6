package models

import "time"

// ImportTask records one import run and its progress
type ImportTask struct {
	ID         int64    `json:"id" db:"id"`
	ReportType string   `json:"report_type" db:"report_type"` // in, out
	Paths      []string `json:"paths" db:"paths"`             // Stored as a JSON array

	// Status
	Status          string `json:"status" db:"status"` // pending, running, completed, failed
	ProgressPercent int    `json:"progress_percent" db:"progress_percent"`

	// Execution info
	TotalFiles     int `json:"total_files" db:"total_files"` // .xml files found
	ProcessedFiles int `json:"processed_files" db:"processed_files"`
	Imported       int `json:"imported" db:"imported"`
	Skipped        int `json:"skipped" db:"skipped"`
	Ignored        int `json:"ignored" db:"ignored"`
	FailedFiles    int `json:"failed_files" db:"failed_files"`

	ErrorMessage string `json:"error_message,omitempty" db:"error_message"`

	// Metadata
	CreatedAt   time.Time  `json:"created_at" db:"created_at"`
	StartedAt   *time.Time `json:"started_at,omitempty" db:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty" db:"completed_at"`
}

// TaskStatus constants
const (
	TaskStatusPending   = "pending"
	TaskStatusRunning   = "running"
	TaskStatusCompleted = "completed"
	TaskStatusFailed    = "failed"
)

// ImportTaskFilter represents filter parameters for listing import tasks
type ImportTaskFilter struct {
	Status string `form:"status"`
	Limit  int    `form:"limit"`
	Offset int    `form:"offset"`
}
