package queue

import (
	"encoding/json"
	"fmt"
)

// OutcomeKind tags the variant carried by an Outcome envelope.
type OutcomeKind string

const (
	OutcomeSync      OutcomeKind = "sync"
	OutcomeQuality   OutcomeKind = "quality"
	OutcomeStitching OutcomeKind = "stitching"
)

// AlignedVideo is one recording's computed offset within a sync outcome.
type AlignedVideo struct {
	RecordingID string  `json:"recordingId"`
	Offset      float64 `json:"offsetSeconds"`
	Confidence  float64 `json:"confidence"`
}

// SyncOutcome summarizes a completed synchronization job.
type SyncOutcome struct {
	Method     string         `json:"method"`
	Confidence float64        `json:"confidence"`
	Aligned    []AlignedVideo `json:"alignedVideos"`
}

// RecordingScore is one recording's overall quality within a quality outcome.
type RecordingScore struct {
	RecordingID string `json:"recordingId"`
	Overall     int    `json:"overall"`
}

// QualityOutcome summarizes a completed quality-analysis job.
type QualityOutcome struct {
	Rankings []RecordingScore `json:"rankings"`
}

// StitchingOutcome summarizes a completed stitching job.
type StitchingOutcome struct {
	OutputPath      string  `json:"outputPath"`
	Duration        float64 `json:"duration"`
	FileSize        int64   `json:"fileSize"`
	AverageQuality  float64 `json:"averageQuality"`
	TransitionCount int     `json:"transitionCount"`
	AngleSwitches   int     `json:"cameraAngleSwitches"`
}

// Outcome is the tagged result envelope stored on a completed job. Exactly
// one variant matching Kind is populated.
type Outcome struct {
	Kind      OutcomeKind       `json:"kind"`
	Sync      *SyncOutcome      `json:"sync,omitempty"`
	Quality   *QualityOutcome   `json:"quality,omitempty"`
	Stitching *StitchingOutcome `json:"stitching,omitempty"`
}

// Validate checks that exactly the variant named by Kind is present.
func (o Outcome) Validate() error {
	switch o.Kind {
	case OutcomeSync:
		if o.Sync == nil || o.Quality != nil || o.Stitching != nil {
			return fmt.Errorf("outcome kind %q requires only the sync variant", o.Kind)
		}
	case OutcomeQuality:
		if o.Quality == nil || o.Sync != nil || o.Stitching != nil {
			return fmt.Errorf("outcome kind %q requires only the quality variant", o.Kind)
		}
	case OutcomeStitching:
		if o.Stitching == nil || o.Sync != nil || o.Quality != nil {
			return fmt.Errorf("outcome kind %q requires only the stitching variant", o.Kind)
		}
	default:
		return fmt.Errorf("unknown outcome kind %q", o.Kind)
	}
	return nil
}

// Encode serializes the outcome for storage on a job record.
func (o Outcome) Encode() (string, error) {
	if err := o.Validate(); err != nil {
		return "", err
	}
	data, err := json.Marshal(o)
	if err != nil {
		return "", fmt.Errorf("marshal outcome: %w", err)
	}
	return string(data), nil
}

// DecodeOutcome parses a stored job result. Returns false when the job has
// no result yet.
func DecodeOutcome(raw string) (Outcome, bool, error) {
	if raw == "" {
		return Outcome{}, false, nil
	}
	var outcome Outcome
	if err := json.Unmarshal([]byte(raw), &outcome); err != nil {
		return Outcome{}, false, fmt.Errorf("unmarshal outcome: %w", err)
	}
	if err := outcome.Validate(); err != nil {
		return Outcome{}, false, err
	}
	return outcome, true, nil
}
