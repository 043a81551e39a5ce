package models

import "time"

const (
	JobStatusIdle      = "idle"
	JobStatusPending   = "pending"
	JobStatusRunning   = "running"
	JobStatusCompleted = "completed"
	JobStatusError     = "error"
	JobStatusCancelled = "cancelled"
)

// IsTerminal reports whether status is absorbing. Terminal jobs are never polled again.
func IsTerminal(status string) bool {
	switch status {
	case JobStatusCompleted, JobStatusError, JobStatusCancelled:
		return true
	}
	return false
}

// JobStats counts per-element outcomes of a single tool run.
type JobStats struct {
	Total     int `json:"total"`
	Processed int `json:"processed"`
	Skipped   int `json:"skipped"`
	Errors    int `json:"errors"`
}

// JobDetail is one log line of a tool run as reported by the hub.
type JobDetail struct {
	ID      string `json:"id"`
	Status  string `json:"status"`
	Message string `json:"message"`
	Number  string `json:"number,omitempty"`
	Level   string `json:"level,omitempty"`
}

// JobResult is the hub's snapshot of a dispatched job. The client polls
// get_job_result until Status is terminal.
type JobResult struct {
	JobID         string         `json:"job_id"`
	ToolID        string         `json:"tool_id"`
	Status        string         `json:"status,omitempty"`
	Message       string         `json:"message,omitempty"`
	Error         string         `json:"error,omitempty"`
	ExecutionTime *float64       `json:"executionTime,omitempty"`
	Stats         *JobStats      `json:"stats,omitempty"`
	Details       []JobDetail    `json:"details,omitempty"`
	Summary       map[string]any `json:"summary,omitempty"`
}

// JobRecord is the persisted history row of a dispatched job.
type JobRecord struct {
	ID            string         `db:"id"             json:"id"`
	ToolID        string         `db:"tool_id"        json:"tool_id"`
	DisplayName   string         `db:"display_name"   json:"display_name"`
	SessionID     string         `db:"session_id"     json:"session_id"`
	Status        string         `db:"status"         json:"status"`
	Message       *string        `db:"message"        json:"message,omitempty"`
	ErrorMessage  *string        `db:"error_message"  json:"error_message,omitempty"`
	Stats         *JobStats      `db:"stats"          json:"stats,omitempty"`
	Summary       map[string]any `db:"summary"        json:"summary,omitempty"`
	ExecutionTime *float64       `db:"execution_time" json:"execution_time,omitempty"`
	CompletedAt   *time.Time     `db:"completed_at"   json:"completed_at,omitempty"`
	CreatedAt     time.Time      `db:"created_at"     json:"created_at"`
	UpdatedAt     time.Time      `db:"updated_at"     json:"updated_at"`
}
