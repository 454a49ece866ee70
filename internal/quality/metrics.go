package quality

import "sort"

// Scores are the 0 to 100 axis scores for one recording.
type Scores struct {
	Overall      int `json:"overall"`
	Stability    int `json:"stability"`
	Lighting     int `json:"lighting"`
	Framing      int `json:"framing"`
	Clarity      int `json:"clarity"`
	AudioQuality int `json:"audioQuality"`
}

// FrameSample carries the per-frame axis scores behind the aggregates.
type FrameSample struct {
	Timestamp float64 `json:"timestamp"`
	Stability float64 `json:"stabilityScore"`
	Lighting  float64 `json:"lightingScore"`
	Framing   float64 `json:"framingScore"`
	Clarity   float64 `json:"clarityScore"`
}

// Metrics is the full assessment of one recording.
type Metrics struct {
	RecordingID   string        `json:"recordingId"`
	Scores        Scores        `json:"scores"`
	PerFrame      []FrameSample `json:"perFrame"`
	ShakeDetected bool          `json:"shakeDetected"`
	// Degraded lists analyzers that failed and were neutralized to 50.
	Degraded []string `json:"degraded,omitempty"`
}

// Options toggles individual analyzers. A disabled analyzer contributes the
// neutral score without being marked degraded.
type Options struct {
	Stability bool
	Lighting  bool
	Framing   bool
	Clarity   bool
}

// Rank sorts metrics by overall score, highest first. The sort is stable so
// equal scores keep their input order.
func Rank(metrics []*Metrics) []*Metrics {
	ranked := make([]*Metrics, len(metrics))
	copy(ranked, metrics)
	sort.SliceStable(ranked, func(a, b int) bool {
		return ranked[a].Scores.Overall > ranked[b].Scores.Overall
	})
	return ranked
}
