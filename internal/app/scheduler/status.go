package scheduler

import (
	"time"
)

// TaskStatus tracks execution metadata for one scheduled task. Statuses
// are keyed "job:student" ("canteen:global" for the school-wide job).
type TaskStatus struct {
	TaskName        string     `json:"task_name"`
	Student         string     `json:"student"`
	IntervalSeconds int        `json:"interval_seconds"`
	LastRun         *time.Time `json:"last_run,omitempty"`
	LastDurationMS  int64      `json:"last_duration_ms"`
	LastStatus      string     `json:"last_status"`
	LastError       string     `json:"last_error,omitempty"`
	NextRun         *time.Time `json:"next_run,omitempty"`
	RunCount        int        `json:"run_count"`
	ErrorCount      int        `json:"error_count"`
}

const (
	statusPending = "pending"
	statusSuccess = "success"
	statusError   = "error"
)
