package project

import (
	"strings"
	"time"
)

// Status represents the lifecycle of a project.
type Status string

const (
	StatusCreated    Status = "created"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusError      Status = "error"
	StatusCancelled  Status = "cancelled"
)

var allStatuses = []Status{
	StatusCreated,
	StatusProcessing,
	StatusCompleted,
	StatusError,
	StatusCancelled,
}

var statusSet = func() map[Status]struct{} {
	set := make(map[Status]struct{}, len(allStatuses))
	for _, status := range allStatuses {
		set[status] = struct{}{}
	}
	return set
}()

// ParseStatus converts a string into a known Status.
func ParseStatus(value string) (Status, bool) {
	normalized := Status(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	_, ok := statusSet[normalized]
	return normalized, ok
}

// Project groups the recordings of one event and tracks merge state.
type Project struct {
	ID         string
	Name       string
	Status     Status
	OutputPath string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Recording is one contributor-uploaded source clip of the event.
//
// SyncOffset and QualityScore stay nil until the corresponding pipeline
// stage has run; a later run overwrites them (last write wins).
type Recording struct {
	ID           string
	ProjectID    string
	FilePath     string
	Duration     float64
	SyncOffset   *float64
	QualityScore *int
	UploadedAt   time.Time
}

// Synchronized reports whether a sync offset has been computed.
func (r Recording) Synchronized() bool {
	return r.SyncOffset != nil
}

// Scored reports whether a quality score has been computed.
func (r Recording) Scored() bool {
	return r.QualityScore != nil
}

// Offset returns the sync offset, treating an unsynchronized recording as
// aligned to the reference timeline.
func (r Recording) Offset() float64 {
	if r.SyncOffset == nil {
		return 0
	}
	return *r.SyncOffset
}

// Score returns the quality score, or 0 when unscored.
func (r Recording) Score() int {
	if r.QualityScore == nil {
		return 0
	}
	return *r.QualityScore
}
