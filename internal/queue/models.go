package queue

import (
	"strings"
	"time"
)

// Type identifies the unit of work a job performs.
type Type string

const (
	TypeSync            Type = "sync"
	TypeQualityAnalysis Type = "quality_analysis"
	TypeStitching       Type = "stitching"
)

var allTypes = []Type{TypeSync, TypeQualityAnalysis, TypeStitching}

// ParseType converts a string into a known job Type.
func ParseType(value string) (Type, bool) {
	normalized := Type(strings.ToLower(strings.TrimSpace(value)))
	for _, t := range allTypes {
		if t == normalized {
			return t, true
		}
	}
	return "", false
}

// Status represents the lifecycle of a job.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusCancelled  Status = "cancelled"
)

var allStatuses = []Status{
	StatusPending,
	StatusProcessing,
	StatusCompleted,
	StatusFailed,
	StatusCancelled,
}

// AllStatuses returns the ordered list of known statuses.
func AllStatuses() []Status {
	cp := make([]Status, len(allStatuses))
	copy(cp, allStatuses)
	return cp
}

// ParseStatus converts a string into a known Status.
func ParseStatus(value string) (Status, bool) {
	normalized := Status(strings.ToLower(strings.TrimSpace(value)))
	for _, s := range allStatuses {
		if s == normalized {
			return s, true
		}
	}
	return "", false
}

// Terminal reports whether a status admits no further transitions.
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusCancelled:
		return true
	default:
		return false
	}
}

// CancelledMessage is the error message recorded when a user cancels a job.
const CancelledMessage = "Job cancelled by user"

// Job is one schedulable unit of pipeline work, persisted in SQLite.
//
// A job is created pending, transitions once to processing, then once to a
// terminal state. A failed job is never restarted automatically; Retry
// spawns a fresh pending job for the same project and type.
type Job struct {
	ID           int64      `json:"id"`
	ProjectID    string     `json:"projectId"`
	Type         Type       `json:"type"`
	Status       Status     `json:"status"`
	Priority     int        `json:"priority"`
	Progress     int        `json:"progress"`
	ErrorMessage string     `json:"error,omitempty"`
	ResultJSON   string     `json:"result,omitempty"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt"`
	StartedAt    *time.Time `json:"startedAt,omitempty"`
	CompletedAt  *time.Time `json:"completedAt,omitempty"`
}

// HealthSummary describes aggregated job counts per key lifecycle states.
type HealthSummary struct {
	Total      int
	Pending    int
	Processing int
	Completed  int
	Failed     int
	Cancelled  int
}

// DatabaseHealth captures diagnostic information about the job database.
type DatabaseHealth struct {
	DBPath           string
	DatabaseExists   bool
	DatabaseReadable bool
	TableExists      bool
	IntegrityCheck   bool
	TotalJobs        int
	Error            string
}
