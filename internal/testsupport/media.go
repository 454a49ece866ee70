package testsupport

import (
	"context"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sync"

	"montage/internal/media"
)

// FakeClip describes one synthetic recording served by the FakeEngine.
type FakeClip struct {
	Duration float64
	// AudioDelay shifts the clip's synthetic audio pattern later in time,
	// simulating a camera that started recording early by that many seconds.
	AudioDelay float64
	// Brightness sets the luma value of generated frames.
	Brightness uint8
	// Motion adds per-frame brightness jitter so frames differ over time.
	Motion float64
	// ProbeErr, when set, is returned from Probe for this clip.
	ProbeErr error
}

// FakeEngine is a deterministic in-memory media.Engine for tests. Audio is a
// shared pseudo-random pattern offset per clip, so cross-correlation between
// clips peaks at the difference of their delays.
type FakeEngine struct {
	mu    sync.Mutex
	clips map[string]FakeClip
	// Rendered records every render spec the engine received.
	Rendered []media.RenderSpec
	// RenderErr, when set, fails Render calls.
	RenderErr error
}

// NewFakeEngine constructs an engine with no registered clips.
func NewFakeEngine() *FakeEngine {
	return &FakeEngine{clips: make(map[string]FakeClip)}
}

// AddClip registers a synthetic clip under the given path.
func (e *FakeEngine) AddClip(path string, clip FakeClip) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.clips[path] = clip
}

func (e *FakeEngine) clip(path string) (FakeClip, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	clip, ok := e.clips[path]
	if !ok {
		return FakeClip{}, fmt.Errorf("no such clip %s", path)
	}
	return clip, nil
}

func (e *FakeEngine) Probe(ctx context.Context, path string) (media.Info, error) {
	clip, err := e.clip(path)
	if err != nil {
		return media.Info{}, err
	}
	if clip.ProbeErr != nil {
		return media.Info{}, clip.ProbeErr
	}
	return media.Info{
		Path:       path,
		Duration:   clip.Duration,
		Width:      1920,
		Height:     1080,
		FrameRate:  30,
		VideoCodec: "h264",
		AudioCodec: "aac",
		SampleRate: 48000,
		Size:       int64(clip.Duration * 1_000_000),
		HasVideo:   true,
		HasAudio:   true,
	}, nil
}

// patternAt evaluates the shared audio pattern at absolute pattern time t.
// A mix of incommensurate sine frequencies under a slow envelope keeps the
// signal aperiodic over the sync window, giving a sharp autocorrelation
// peak at zero lag.
func patternAt(t float64) float64 {
	if t < 0 {
		return 0
	}
	envelope := 1 + 0.5*math.Sin(2*math.Pi*0.13*t)
	return envelope * (0.5*math.Sin(2*math.Pi*311.3*t) +
		0.3*math.Sin(2*math.Pi*127.7*t+1.3) +
		0.2*math.Sin(2*math.Pi*53.9*t+0.7))
}

func (e *FakeEngine) ExtractAudio(ctx context.Context, path string, sampleRate int, maxSeconds float64) (media.AudioTrack, error) {
	clip, err := e.clip(path)
	if err != nil {
		return media.AudioTrack{}, err
	}
	seconds := clip.Duration
	if maxSeconds > 0 && maxSeconds < seconds {
		seconds = maxSeconds
	}
	n := int(seconds * float64(sampleRate))
	samples := make([]float64, n)
	for i := range samples {
		t := float64(i) / float64(sampleRate)
		samples[i] = patternAt(t - clip.AudioDelay)
	}
	return media.AudioTrack{SampleRate: sampleRate, Samples: samples}, nil
}

func (e *FakeEngine) ExtractFrames(ctx context.Context, path string, timestamps []float64, width, height int) ([]media.Frame, error) {
	clip, err := e.clip(path)
	if err != nil {
		return nil, err
	}
	frames := make([]media.Frame, 0, len(timestamps))
	for _, ts := range timestamps {
		if ts >= clip.Duration {
			continue
		}
		pixels := make([]uint8, width*height)
		jitter := clip.Motion * math.Sin(2.7*ts+0.4)
		for i := range pixels {
			v := float64(clip.Brightness) + jitter + float64(i%16)
			if v < 0 {
				v = 0
			}
			if v > 255 {
				v = 255
			}
			pixels[i] = uint8(v)
		}
		frames = append(frames, media.Frame{Timestamp: ts, Width: width, Height: height, Pixels: pixels})
	}
	return frames, nil
}

func (e *FakeEngine) Render(ctx context.Context, spec media.RenderSpec) error {
	e.mu.Lock()
	e.Rendered = append(e.Rendered, spec)
	renderErr := e.RenderErr
	e.mu.Unlock()
	if renderErr != nil {
		return renderErr
	}
	if err := os.MkdirAll(filepath.Dir(spec.Output.Path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(spec.Output.Path, []byte("rendered"), 0o644)
}
