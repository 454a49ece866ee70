package timesync

import "math"

// correlationStride sub-samples the comparison window to bound the cost of
// each lag evaluation.
const correlationStride = 4

// candidate is one plausible alignment between a recording and the
// reference, before the final per-recording selection.
type candidate struct {
	// offset is the shift in seconds that aligns the recording to the
	// reference. Positive means the recording's content lags the reference.
	offset     float64
	confidence float64
	source     string
}

// crossCorrelate slides the recording against the reference over lags in
// [-maxLag, maxLag] samples at the given step and returns the normalized
// dot product per lag, indexed from -maxLag.
func crossCorrelate(ref, rec []float64, maxLag, step, window int) []float64 {
	if step <= 0 {
		step = 1
	}
	scores := make([]float64, 0, 2*maxLag/step+1)
	for lag := -maxLag; lag <= maxLag; lag += step {
		scores = append(scores, correlationAt(ref, rec, lag, window))
	}
	return scores
}

// correlationAt computes the normalized dot product of ref[i] against
// rec[i+lag] over up to window samples.
func correlationAt(ref, rec []float64, lag, window int) float64 {
	var dot, refEnergy, recEnergy float64
	count := 0
	for i := 0; i < len(ref) && count < window; i += correlationStride {
		j := i + lag
		if j < 0 {
			continue
		}
		if j >= len(rec) {
			break
		}
		dot += ref[i] * rec[j]
		refEnergy += ref[i] * ref[i]
		recEnergy += rec[j] * rec[j]
		count++
	}
	if refEnergy == 0 || recEnergy == 0 {
		return 0
	}
	return dot / math.Sqrt(refEnergy*recEnergy)
}

// localMaxima returns the indices of scores that are strict peaks above the
// floor. Endpoints count when they exceed their single neighbor.
func localMaxima(scores []float64, floor float64) []int {
	peaks := make([]int, 0, 4)
	for i, score := range scores {
		if score < floor {
			continue
		}
		if i > 0 && scores[i-1] > score {
			continue
		}
		if i < len(scores)-1 && scores[i+1] > score {
			continue
		}
		peaks = append(peaks, i)
	}
	return peaks
}

// cosineSimilarity compares two feature vectors; mismatched lengths score 0.
func cosineSimilarity(a, b []float64) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / math.Sqrt(normA*normB)
}
