package stitching

import "montage/internal/media"

// Angle is a recording's dominant camera framing class.
type Angle string

const (
	AngleWide    Angle = "wide"
	AngleMedium  Angle = "medium"
	AngleClose   Angle = "close"
	AngleUnknown Angle = "unknown"
)

// AngleClassifier assigns a camera angle to a single frame. Implementations
// must be deterministic for identical input.
type AngleClassifier interface {
	Classify(frame media.Frame) Angle
}

// LumaSpreadClassifier is a heuristic classifier: close shots concentrate a
// subject and show little luma spread, wide shots spread energy across the
// frame.
type LumaSpreadClassifier struct{}

func (LumaSpreadClassifier) Classify(frame media.Frame) Angle {
	if len(frame.Pixels) == 0 {
		return AngleUnknown
	}
	var sum float64
	for _, px := range frame.Pixels {
		sum += float64(px)
	}
	mean := sum / float64(len(frame.Pixels))

	var varSum float64
	for _, px := range frame.Pixels {
		d := float64(px) - mean
		varSum += d * d
	}
	spread := varSum / float64(len(frame.Pixels))

	switch {
	case mean < 5:
		return AngleUnknown
	case spread < 400:
		return AngleClose
	case spread < 1600:
		return AngleMedium
	default:
		return AngleWide
	}
}

// majorityAngle votes across per-frame classifications. Unknown frames are
// ignored unless nothing else was seen.
func majorityAngle(angles []Angle) Angle {
	counts := make(map[Angle]int, 4)
	for _, angle := range angles {
		counts[angle]++
	}
	best, bestCount := AngleUnknown, 0
	for _, angle := range []Angle{AngleWide, AngleMedium, AngleClose} {
		if counts[angle] > bestCount {
			best, bestCount = angle, counts[angle]
		}
	}
	return best
}
