package stitching

import "montage/internal/media"

// Segment is one contiguous span of the output sourced from one recording.
// Start and End are output-timeline times: segments run gapless from zero.
type Segment struct {
	RecordingID string           `json:"recordingId"`
	Start       float64          `json:"startTime"`
	End         float64          `json:"endTime"`
	Quality     int              `json:"qualityScore"`
	Transition  media.Transition `json:"transition"`
	Angle       Angle            `json:"cameraAngle"`

	// shift is how far the segment moved left when coverage holes were
	// compacted out; the render mapping subtracts it from the source offset.
	shift float64
}

// source is a recording placed on the shared timeline, ready for selection.
type source struct {
	recordingID string
	filePath    string
	offset      float64
	duration    float64
	quality     int
	angle       Angle
}

func (s source) covers(start, end float64) bool {
	return s.offset <= start && s.offset+s.duration >= end
}

func (s source) overlaps(start, end float64) bool {
	return s.offset < end && s.offset+s.duration > start
}

// buildTimeline partitions [0, maxEnd) into fixed windows, picks a source
// per window favoring angle variety, merges adjacent windows from the same
// source, and assigns transitions.
func buildTimeline(sources []source, maxEnd, window float64) []Segment {
	if window <= 0 {
		window = 2
	}
	var segments []Segment
	prevAngle := AngleUnknown
	for start := 0.0; start < maxEnd; start += window {
		end := start + window
		if end > maxEnd {
			end = maxEnd
		}
		chosen := pickSource(sources, start, end, prevAngle)
		if chosen == nil {
			continue
		}
		prevAngle = chosen.angle

		if n := len(segments); n > 0 && segments[n-1].RecordingID == chosen.recordingID && segments[n-1].Angle == chosen.angle {
			segments[n-1].End = end
			continue
		}
		segments = append(segments, Segment{
			RecordingID: chosen.recordingID,
			Start:       start,
			End:         end,
			Quality:     chosen.quality,
			Angle:       chosen.angle,
		})
	}

	segments = compactTimeline(segments)

	for i := range segments {
		if i == 0 {
			segments[i].Transition = media.TransitionCut
			continue
		}
		prev := segments[i-1]
		switch {
		case prev.RecordingID != segments[i].RecordingID:
			segments[i].Transition = media.TransitionCrossfade
		case prev.Angle != segments[i].Angle:
			segments[i].Transition = media.TransitionFade
		default:
			segments[i].Transition = media.TransitionCut
		}
	}
	return segments
}

// compactTimeline shifts segments left over any windows no source covered,
// so the returned timeline is contiguous from zero. Recordings with disjoint
// synchronized spans otherwise leave holes that the renderer has no media
// for.
func compactTimeline(segments []Segment) []Segment {
	prevEnd := 0.0
	shift := 0.0
	for i := range segments {
		if gap := segments[i].Start - prevEnd; gap > 0 {
			shift += gap
		}
		prevEnd = segments[i].End
		segments[i].shift = shift
		segments[i].Start -= shift
		segments[i].End -= shift
	}
	return segments
}

// pickSource selects the window's recording: prefer a candidate whose angle
// differs from the previous segment, tie-broken by quality; otherwise the
// highest-quality candidate. Recordings fully covering the window beat
// partial overlaps.
func pickSource(sources []source, start, end float64, prevAngle Angle) *source {
	candidates := make([]*source, 0, len(sources))
	for i := range sources {
		if sources[i].covers(start, end) {
			candidates = append(candidates, &sources[i])
		}
	}
	if len(candidates) == 0 {
		for i := range sources {
			if sources[i].overlaps(start, end) {
				candidates = append(candidates, &sources[i])
			}
		}
	}
	if len(candidates) == 0 {
		return nil
	}

	var varied *source
	for _, cand := range candidates {
		if cand.angle == prevAngle {
			continue
		}
		if varied == nil || cand.quality > varied.quality {
			varied = cand
		}
	}
	if varied != nil {
		return varied
	}

	best := candidates[0]
	for _, cand := range candidates[1:] {
		if cand.quality > best.quality {
			best = cand
		}
	}
	return best
}

// timelineMetrics aggregates the quality and variety measures of a timeline.
func timelineMetrics(segments []Segment) Metrics {
	var m Metrics
	if len(segments) == 0 {
		return m
	}
	var qualityTotal float64
	for i, seg := range segments {
		qualityTotal += float64(seg.Quality)
		if seg.Transition != media.TransitionCut {
			m.TransitionCount++
		}
		if i > 0 && segments[i-1].Angle != seg.Angle {
			m.CameraAngleSwitches++
		}
	}
	m.AverageQuality = qualityTotal / float64(len(segments))
	return m
}
