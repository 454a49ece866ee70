package stitching

import (
	"context"

	"montage/internal/services"
)

// Readiness reports whether a project can be stitched and what is missing.
type Readiness struct {
	Ready          bool     `json:"ready"`
	HasRecordings  bool     `json:"hasRecordings"`
	HasSyncData    bool     `json:"hasSyncData"`
	HasQualityData bool     `json:"hasQualityData"`
	Missing        []string `json:"missing,omitempty"`
}

// CheckReadiness gates stitching: recordings must exist, sync data must be
// present unless there is exactly one recording, and at least one recording
// must carry a quality score.
func (s *Service) CheckReadiness(ctx context.Context, projectID string) (Readiness, error) {
	recordings, err := s.projects.FindRecordings(ctx, projectID)
	if err != nil {
		return Readiness{}, services.Wrap(services.ErrTransient, "stitching", "readiness", "load recordings", err)
	}

	r := Readiness{HasRecordings: len(recordings) > 0}
	for _, rec := range recordings {
		if rec.Synchronized() {
			r.HasSyncData = true
		}
		if rec.Scored() {
			r.HasQualityData = true
		}
	}
	if len(recordings) == 1 {
		r.HasSyncData = true
	}

	if !r.HasRecordings {
		r.Missing = append(r.Missing, "no recordings uploaded")
	}
	if r.HasRecordings && !r.HasSyncData {
		r.Missing = append(r.Missing, "recordings are not synchronized")
	}
	if r.HasRecordings && !r.HasQualityData {
		r.Missing = append(r.Missing, "no recording has a quality score")
	}
	r.Ready = len(r.Missing) == 0
	return r, nil
}
