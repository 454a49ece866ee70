package timesync

import "fmt"

// Validation thresholds for synchronization confidence.
const (
	invalidBelow      = 30.0
	warnBelow         = 60.0
	perRecordingFloor = 20.0
)

// Validation is the quality verdict on a sync result, consumed by stitching
// readiness checks.
type Validation struct {
	IsValid         bool     `json:"isValid"`
	Issues          []string `json:"issues"`
	Recommendations []string `json:"recommendations"`
}

// ValidateResult grades a sync result: overall confidence below 30 is
// invalid, 30 to 60 draws a warning, and any recording below 20 is flagged
// individually.
func ValidateResult(result *Result) Validation {
	v := Validation{IsValid: true}
	if result == nil {
		return Validation{Issues: []string{"no synchronization result available"}}
	}

	switch {
	case result.Confidence < invalidBelow:
		v.IsValid = false
		v.Issues = append(v.Issues,
			fmt.Sprintf("overall sync confidence %.1f is below the minimum of %.0f", result.Confidence, invalidBelow))
		v.Recommendations = append(v.Recommendations,
			"re-record with clearer shared audio or add overlapping footage")
	case result.Confidence < warnBelow:
		v.Recommendations = append(v.Recommendations,
			fmt.Sprintf("sync confidence %.1f is marginal; review alignment before stitching", result.Confidence))
	}

	for _, aligned := range result.Aligned {
		if aligned.Confidence < perRecordingFloor {
			v.Issues = append(v.Issues,
				fmt.Sprintf("recording %s could not be reliably synchronized", aligned.RecordingID))
		}
	}
	return v
}
