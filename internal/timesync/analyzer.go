package timesync

import "montage/internal/media"

// FrameAnalyzer reduces decoded frames to feature vectors for visual
// alignment. Implementations must be deterministic for identical input.
type FrameAnalyzer interface {
	Features(frames []media.Frame) [][]float64
}

// HistogramAnalyzer summarizes each frame as a normalized 16-bin luma
// histogram. It is cheap and stable across re-encodes of the same scene.
type HistogramAnalyzer struct{}

const histogramBins = 16

func (HistogramAnalyzer) Features(frames []media.Frame) [][]float64 {
	features := make([][]float64, len(frames))
	for i, frame := range frames {
		hist := make([]float64, histogramBins)
		for _, px := range frame.Pixels {
			hist[int(px)*histogramBins/256]++
		}
		if n := len(frame.Pixels); n > 0 {
			for b := range hist {
				hist[b] /= float64(n)
			}
		}
		features[i] = hist
	}
	return features
}
