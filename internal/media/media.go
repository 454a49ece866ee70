package media

import "context"

// Info captures the probed properties of a recording file.
type Info struct {
	Path       string
	Duration   float64
	Width      int
	Height     int
	FrameRate  float64
	VideoCodec string
	AudioCodec string
	SampleRate int
	Size       int64
	HasVideo   bool
	HasAudio   bool
}

// Frame is a single decoded grayscale frame.
type Frame struct {
	Timestamp float64
	Width     int
	Height    int
	// Pixels holds row-major 8-bit luma values, len = Width*Height.
	Pixels []uint8
}

// AudioTrack is a mono PCM rendering of a file's audio.
type AudioTrack struct {
	SampleRate int
	// Samples are normalized to [-1, 1].
	Samples []float64
}

// Transition names how one rendered segment hands over to the next.
type Transition string

const (
	TransitionCut       Transition = "cut"
	TransitionCrossfade Transition = "crossfade"
	TransitionFade      Transition = "fade"
)

// Segment is one contiguous span of a source recording placed on the output
// timeline. Start and End are timeline positions; the source is read from
// timeline time minus the recording's sync offset.
type Segment struct {
	SourcePath string
	SyncOffset float64
	Start      float64
	End        float64
	Transition Transition
}

// Output describes the rendered file specification.
type Output struct {
	Path         string
	Width        int
	Height       int
	FrameRate    int
	VideoCodec   string
	VideoBitrate string
	AudioCodec   string
	AudioBitrate string
}

// RenderSpec is a complete render request: ordered segments plus the output
// specification.
type RenderSpec struct {
	Segments []Segment
	Output   Output
}

// Engine abstracts the media toolchain. The production implementation shells
// out to ffmpeg and ffprobe; tests substitute a synthetic engine.
type Engine interface {
	// Probe inspects a file's container and stream properties.
	Probe(ctx context.Context, path string) (Info, error)
	// ExtractAudio decodes up to maxSeconds of audio as mono PCM at the
	// requested sample rate.
	ExtractAudio(ctx context.Context, path string, sampleRate int, maxSeconds float64) (AudioTrack, error)
	// ExtractFrames decodes one grayscale frame per timestamp, scaled to
	// width x height.
	ExtractFrames(ctx context.Context, path string, timestamps []float64, width, height int) ([]Frame, error)
	// Render produces the stitched output file described by a RenderSpec.
	Render(ctx context.Context, spec RenderSpec) error
}
