package media

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"montage/internal/config"
)

// FFmpegEngine implements Engine by shelling out to ffmpeg and ffprobe.
type FFmpegEngine struct {
	ffmpeg  string
	ffprobe string
}

// NewFFmpegEngine builds an engine using the binaries named by the config.
func NewFFmpegEngine(cfg *config.Config) *FFmpegEngine {
	return &FFmpegEngine{
		ffmpeg:  cfg.FFmpegBinary(),
		ffprobe: cfg.FFprobeBinary(),
	}
}

type probeResult struct {
	Streams []probeStream `json:"streams"`
	Format  probeFormat   `json:"format"`
}

type probeStream struct {
	CodecName    string `json:"codec_name"`
	CodecType    string `json:"codec_type"`
	Width        int    `json:"width"`
	Height       int    `json:"height"`
	AvgFrameRate string `json:"avg_frame_rate"`
	SampleRate   string `json:"sample_rate"`
}

type probeFormat struct {
	Duration string `json:"duration"`
	Size     string `json:"size"`
}

// Probe inspects the file with ffprobe and decodes the JSON response.
func (e *FFmpegEngine) Probe(ctx context.Context, path string) (Info, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return Info{}, errors.New("probe: empty path")
	}

	cmd := exec.CommandContext(ctx, e.ffprobe,
		"-v", "error", "-hide_banner",
		"-show_format", "-show_streams",
		"-of", "json", "--", path)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return Info{}, fmt.Errorf("ffprobe %s: %w: %s", filepath.Base(path), err, strings.TrimSpace(string(output)))
	}

	var parsed probeResult
	if err := json.Unmarshal(output, &parsed); err != nil {
		return Info{}, fmt.Errorf("ffprobe parse: %w", err)
	}

	info := Info{
		Path:     path,
		Duration: parseFloat(parsed.Format.Duration),
		Size:     int64(parseFloat(parsed.Format.Size)),
	}
	for _, stream := range parsed.Streams {
		switch strings.ToLower(stream.CodecType) {
		case "video":
			info.HasVideo = true
			info.VideoCodec = stream.CodecName
			info.Width = stream.Width
			info.Height = stream.Height
			info.FrameRate = parseRational(stream.AvgFrameRate)
		case "audio":
			info.HasAudio = true
			info.AudioCodec = stream.CodecName
			info.SampleRate = int(parseFloat(stream.SampleRate))
		}
	}
	return info, nil
}

// ExtractAudio decodes the file's audio as mono signed 16-bit PCM and
// normalizes it to [-1, 1].
func (e *FFmpegEngine) ExtractAudio(ctx context.Context, path string, sampleRate int, maxSeconds float64) (AudioTrack, error) {
	if sampleRate <= 0 {
		return AudioTrack{}, fmt.Errorf("extract audio: invalid sample rate %d", sampleRate)
	}
	args := []string{"-hide_banner", "-loglevel", "error", "-i", path}
	if maxSeconds > 0 {
		args = append(args, "-t", formatSeconds(maxSeconds))
	}
	args = append(args,
		"-vn",
		"-ac", "1",
		"-ar", strconv.Itoa(sampleRate),
		"-f", "s16le",
		"-")

	cmd := exec.CommandContext(ctx, e.ffmpeg, args...)
	var stderr strings.Builder
	cmd.Stderr = &stderr
	raw, err := cmd.Output()
	if err != nil {
		return AudioTrack{}, fmt.Errorf("ffmpeg audio %s: %w: %s", filepath.Base(path), err, strings.TrimSpace(stderr.String()))
	}
	return AudioTrack{SampleRate: sampleRate, Samples: decodePCM16(raw)}, nil
}

// ExtractFrames decodes one grayscale frame per timestamp via rawvideo
// output. Timestamps past the end of the file are skipped.
func (e *FFmpegEngine) ExtractFrames(ctx context.Context, path string, timestamps []float64, width, height int) ([]Frame, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("extract frames: invalid dimensions %dx%d", width, height)
	}
	frames := make([]Frame, 0, len(timestamps))
	frameSize := width * height
	for _, ts := range timestamps {
		cmd := exec.CommandContext(ctx, e.ffmpeg,
			"-hide_banner", "-loglevel", "error",
			"-ss", formatSeconds(ts),
			"-i", path,
			"-frames:v", "1",
			"-vf", fmt.Sprintf("scale=%d:%d,format=gray", width, height),
			"-f", "rawvideo",
			"-")
		var stderr strings.Builder
		cmd.Stderr = &stderr
		raw, err := cmd.Output()
		if err != nil {
			return nil, fmt.Errorf("ffmpeg frame %s@%.2fs: %w: %s", filepath.Base(path), ts, err, strings.TrimSpace(stderr.String()))
		}
		if len(raw) < frameSize {
			continue
		}
		frames = append(frames, Frame{
			Timestamp: ts,
			Width:     width,
			Height:    height,
			Pixels:    raw[:frameSize],
		})
	}
	return frames, nil
}

// Render builds a filter graph from the segment list and invokes ffmpeg.
func (e *FFmpegEngine) Render(ctx context.Context, spec RenderSpec) error {
	args, err := renderArgs(spec)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(spec.Output.Path), 0o755); err != nil {
		return fmt.Errorf("render output dir: %w", err)
	}

	cmd := exec.CommandContext(ctx, e.ffmpeg, args...)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("ffmpeg render: %w: %s", err, strings.TrimSpace(string(output)))
	}
	return nil
}

func decodePCM16(raw []byte) []float64 {
	samples := make([]float64, 0, len(raw)/2)
	for i := 0; i+1 < len(raw); i += 2 {
		v := int16(binary.LittleEndian.Uint16(raw[i:]))
		samples = append(samples, float64(v)/32768.0)
	}
	return samples
}

func formatSeconds(v float64) string {
	return strconv.FormatFloat(v, 'f', 3, 64)
}

func parseFloat(value string) float64 {
	cleaned := strings.TrimSpace(value)
	if cleaned == "" {
		return 0
	}
	parsed, err := strconv.ParseFloat(cleaned, 64)
	if err != nil || math.IsNaN(parsed) || parsed < 0 {
		return 0
	}
	return parsed
}

func parseRational(value string) float64 {
	num, den, found := strings.Cut(strings.TrimSpace(value), "/")
	if !found {
		return parseFloat(value)
	}
	n := parseFloat(num)
	d := parseFloat(den)
	if d == 0 {
		return 0
	}
	return n / d
}
