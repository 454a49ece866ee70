package quality

import (
	"errors"
	"math"

	"montage/internal/media"
)

// Analysis is one analyzer's verdict over a sampled frame sequence.
type Analysis struct {
	Score    float64
	PerFrame []float64
	Shaky    bool
}

// Analyzer scores a frame sequence on a single axis. Implementations must
// not panic on short sequences; a single frame is a legal input.
type Analyzer func(frames []media.Frame) (Analysis, error)

// luma statistics reused by several analyzers.

func frameMean(f media.Frame) float64 {
	if len(f.Pixels) == 0 {
		return 0
	}
	var sum float64
	for _, px := range f.Pixels {
		sum += float64(px)
	}
	return sum / float64(len(f.Pixels))
}

func frameStddev(f media.Frame, mean float64) float64 {
	if len(f.Pixels) == 0 {
		return 0
	}
	var sum float64
	for _, px := range f.Pixels {
		d := float64(px) - mean
		sum += d * d
	}
	return math.Sqrt(sum / float64(len(f.Pixels)))
}

func clampScore(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

// motionBetween is the mean absolute luma change between two frames, scaled
// to a 0 to 100 range.
func motionBetween(a, b media.Frame) float64 {
	n := len(a.Pixels)
	if len(b.Pixels) < n {
		n = len(b.Pixels)
	}
	if n == 0 {
		return 0
	}
	var sum float64
	for i := 0; i < n; i++ {
		sum += math.Abs(float64(a.Pixels[i]) - float64(b.Pixels[i]))
	}
	return sum / float64(n) / 2.55
}

// AnalyzeStability scores frame-to-frame motion. The score decays linearly
// with average motion; shake is flagged on high motion variance or a high
// average.
func AnalyzeStability(frames []media.Frame) (Analysis, error) {
	if len(frames) == 0 {
		return Analysis{}, errors.New("stability: no frames")
	}
	if len(frames) == 1 {
		return Analysis{Score: 100, PerFrame: []float64{100}}, nil
	}

	motions := make([]float64, 0, len(frames)-1)
	perFrame := make([]float64, 0, len(frames))
	perFrame = append(perFrame, 100)
	var total float64
	for i := 1; i < len(frames); i++ {
		motion := motionBetween(frames[i-1], frames[i])
		motions = append(motions, motion)
		total += motion
		perFrame = append(perFrame, clampScore(100-motion*10))
	}
	avgMotion := total / float64(len(motions))

	var variance float64
	for _, m := range motions {
		d := m - avgMotion
		variance += d * d
	}
	variance /= float64(len(motions))

	return Analysis{
		Score:    clampScore(100 - avgMotion*10),
		PerFrame: perFrame,
		Shaky:    variance > 50 || avgMotion > 15,
	}, nil
}

// lightingTarget is the preferred average brightness on the 0 to 100 scale.
const lightingTarget = 60.0

// AnalyzeLighting scores brightness and contrast per frame, penalizing
// deviation from the target brightness and washed-out low-contrast frames.
func AnalyzeLighting(frames []media.Frame) (Analysis, error) {
	if len(frames) == 0 {
		return Analysis{}, errors.New("lighting: no frames")
	}
	perFrame := make([]float64, 0, len(frames))
	var total float64
	for _, frame := range frames {
		mean := frameMean(frame)
		brightness := mean / 2.55
		contrast := frameStddev(frame, mean) / 2.55

		score := 100 - math.Abs(brightness-lightingTarget)*1.5
		if contrast < 15 {
			score -= (15 - contrast)
		}
		score = clampScore(score)
		perFrame = append(perFrame, score)
		total += score
	}
	return Analysis{Score: total / float64(len(perFrame)), PerFrame: perFrame}, nil
}

// AnalyzeFraming combines left/right balance, center emphasis, aspect ratio,
// and a texture-based subject confidence with fixed weights.
func AnalyzeFraming(frames []media.Frame) (Analysis, error) {
	if len(frames) == 0 {
		return Analysis{}, errors.New("framing: no frames")
	}
	perFrame := make([]float64, 0, len(frames))
	var total float64
	for _, frame := range frames {
		score := frameFraming(frame)
		perFrame = append(perFrame, score)
		total += score
	}
	return Analysis{Score: total / float64(len(perFrame)), PerFrame: perFrame}, nil
}

func frameFraming(f media.Frame) float64 {
	if f.Width == 0 || f.Height == 0 || len(f.Pixels) < f.Width*f.Height {
		return 0
	}
	mean := frameMean(f)

	var leftSum, rightSum float64
	half := f.Width / 2
	for y := 0; y < f.Height; y++ {
		row := y * f.Width
		for x := 0; x < half; x++ {
			leftSum += float64(f.Pixels[row+x])
		}
		for x := f.Width - half; x < f.Width; x++ {
			rightSum += float64(f.Pixels[row+x])
		}
	}
	area := float64(half * f.Height)
	balance := clampScore(100 - math.Abs(leftSum-rightSum)/area/2.55)

	var centerSum float64
	cx0, cx1 := f.Width/3, 2*f.Width/3
	cy0, cy1 := f.Height/3, 2*f.Height/3
	for y := cy0; y < cy1; y++ {
		row := y * f.Width
		for x := cx0; x < cx1; x++ {
			centerSum += float64(f.Pixels[row+x])
		}
	}
	centerArea := float64((cx1 - cx0) * (cy1 - cy0))
	centerMean := 0.0
	if centerArea > 0 {
		centerMean = centerSum / centerArea
	}
	centering := clampScore(50 + (centerMean-mean)/2.55)

	aspect := 100.0
	ratio := float64(f.Width) / float64(f.Height)
	if math.Abs(ratio-16.0/9.0) > 0.05 {
		aspect = 70
	}

	subject := clampScore(frameStddev(f, mean) / 2.55 * 2)

	return clampScore(balance*0.30 + centering*0.25 + aspect*0.20 + subject*0.25)
}

// AnalyzeClarity scores edge strength with penalties for blur and noise.
func AnalyzeClarity(frames []media.Frame) (Analysis, error) {
	if len(frames) == 0 {
		return Analysis{}, errors.New("clarity: no frames")
	}
	perFrame := make([]float64, 0, len(frames))
	var total float64
	for _, frame := range frames {
		score := frameClarity(frame)
		perFrame = append(perFrame, score)
		total += score
	}
	return Analysis{Score: total / float64(len(perFrame)), PerFrame: perFrame}, nil
}

func frameClarity(f media.Frame) float64 {
	if f.Width < 3 || f.Height < 3 || len(f.Pixels) < f.Width*f.Height {
		return 0
	}

	var gradient, highFreq float64
	samples := 0
	for y := 1; y < f.Height-1; y++ {
		row := y * f.Width
		for x := 1; x < f.Width-1; x++ {
			i := row + x
			gx := math.Abs(float64(f.Pixels[i+1]) - float64(f.Pixels[i-1]))
			gy := math.Abs(float64(f.Pixels[i+f.Width]) - float64(f.Pixels[i-f.Width]))
			gradient += gx + gy
			highFreq += math.Abs(2*float64(f.Pixels[i]) - float64(f.Pixels[i-1]) - float64(f.Pixels[i+1]))
			samples++
		}
	}
	if samples == 0 {
		return 0
	}
	sharpness := gradient / float64(samples) / 2.55 * 4
	noise := highFreq / float64(samples) / 2.55 * 4

	blurPenalty := 0.0
	if sharpness < 20 {
		blurPenalty = (20 - sharpness) * 1.5
	}
	noisePenalty := 0.0
	if noise > 60 {
		noisePenalty = (noise - 60) * 0.5
	}
	return clampScore(math.Min(sharpness, 100) - blurPenalty - noisePenalty)
}
