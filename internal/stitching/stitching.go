package stitching

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"montage/internal/config"
	"montage/internal/logging"
	"montage/internal/media"
	"montage/internal/project"
	"montage/internal/services"
	"montage/internal/textutil"
)

// Metrics summarizes the rendered timeline.
type Metrics struct {
	AverageQuality      float64 `json:"averageQuality"`
	TransitionCount     int     `json:"transitionCount"`
	CameraAngleSwitches int     `json:"cameraAngleSwitches"`
}

// Result is the outcome of a stitching run.
type Result struct {
	OutputPath string    `json:"outputPath"`
	Timeline   []Segment `json:"timeline"`
	Duration   float64   `json:"duration"`
	FileSize   int64     `json:"fileSize"`
	Metrics    Metrics   `json:"metrics"`
}

// Options adjusts a single stitching run.
type Options struct {
	// OutputName overrides the output file name, extension excluded.
	OutputName string
}

// classifierThumbWidth and classifierThumbHeight size frames decoded for
// angle classification.
const (
	classifierThumbWidth  = 160
	classifierThumbHeight = 90
)

// Service assembles a project's recordings into one rendered video.
type Service struct {
	cfg        *config.Config
	engine     media.Engine
	projects   *project.Store
	classifier AngleClassifier
	logger     *slog.Logger
}

// NewService wires a stitching service. A nil classifier falls back to the
// luma spread heuristic.
func NewService(cfg *config.Config, engine media.Engine, projects *project.Store, classifier AngleClassifier, logger *slog.Logger) *Service {
	if classifier == nil {
		classifier = LumaSpreadClassifier{}
	}
	return &Service{
		cfg:        cfg,
		engine:     engine,
		projects:   projects,
		classifier: classifier,
		logger:     logging.NewComponentLogger(logger, "stitching"),
	}
}

// Stitch builds a timeline over the project's synchronized recordings,
// renders it, and persists the output path on the project. A render failure
// is fatal and leaves no output recorded.
func (s *Service) Stitch(ctx context.Context, projectID string, opts Options) (*Result, error) {
	logger := logging.WithContext(ctx, s.logger)

	recordings, err := s.projects.FindRecordings(ctx, projectID)
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "stitching", "stitch", "load recordings", err)
	}
	if len(recordings) == 0 {
		return nil, services.Wrap(services.ErrValidation, "stitching", "stitch", "project has no recordings", nil)
	}

	var segments []Segment
	var duration float64
	sources := make(map[string]source, len(recordings))
	if len(recordings) == 1 {
		rec := recordings[0]
		src := source{
			recordingID: rec.ID,
			filePath:    rec.FilePath,
			duration:    rec.Duration,
			quality:     rec.Score(),
			angle:       AngleUnknown,
		}
		sources[rec.ID] = src
		duration = rec.Duration
		segments = []Segment{{
			RecordingID: rec.ID,
			Start:       0,
			End:         rec.Duration,
			Quality:     src.quality,
			Transition:  media.TransitionCut,
			Angle:       AngleUnknown,
		}}
	} else {
		ordered := make([]source, 0, len(recordings))
		for _, rec := range recordings {
			src := source{
				recordingID: rec.ID,
				filePath:    rec.FilePath,
				offset:      rec.Offset(),
				duration:    rec.Duration,
				quality:     rec.Score(),
				angle:       s.classifyRecording(ctx, rec),
			}
			ordered = append(ordered, src)
			sources[rec.ID] = src
			if end := src.offset + src.duration; end > duration {
				duration = end
			}
		}
		segments = buildTimeline(ordered, duration, s.cfg.Stitching.MinSegmentSeconds)
	}
	if len(segments) == 0 {
		return nil, services.Wrap(services.ErrValidation, "stitching", "stitch", "no usable timeline segments", nil)
	}
	duration = segments[len(segments)-1].End

	outputPath := s.outputPath(projectID, opts)
	spec := media.RenderSpec{Output: s.outputSpec(outputPath)}
	for _, seg := range segments {
		src := sources[seg.RecordingID]
		spec.Segments = append(spec.Segments, media.Segment{
			SourcePath: src.filePath,
			SyncOffset: src.offset - seg.shift,
			Start:      seg.Start,
			End:        seg.End,
			Transition: seg.Transition,
		})
	}

	if err := s.engine.Render(ctx, spec); err != nil {
		return nil, services.Wrap(services.ErrFatalRender, "stitching", "render", "render failed", err)
	}
	if err := s.projects.SetOutput(ctx, projectID, outputPath); err != nil {
		return nil, services.Wrap(services.ErrTransient, "stitching", "stitch", "persist output path", err)
	}

	result := &Result{
		OutputPath: outputPath,
		Timeline:   segments,
		Duration:   duration,
		Metrics:    timelineMetrics(segments),
	}
	if info, err := os.Stat(outputPath); err == nil {
		result.FileSize = info.Size()
	}

	logger.Info("stitching complete",
		logging.String("output", outputPath),
		logging.Int("segments", len(segments)),
		logging.Float64("duration", duration),
		logging.Int("angle_switches", result.Metrics.CameraAngleSwitches),
	)
	return result, nil
}

// classifyRecording samples frames at a fixed interval and majority-votes
// their angles. Classification failure degrades to unknown.
func (s *Service) classifyRecording(ctx context.Context, rec *project.Recording) Angle {
	interval := s.cfg.Stitching.AngleSampleSeconds
	if interval <= 0 {
		interval = 5
	}
	timestamps := make([]float64, 0, 8)
	for t := 0.0; t < rec.Duration; t += interval {
		timestamps = append(timestamps, t)
	}
	if len(timestamps) == 0 {
		timestamps = append(timestamps, 0)
	}

	frames, err := s.engine.ExtractFrames(ctx, rec.FilePath, timestamps, classifierThumbWidth, classifierThumbHeight)
	if err != nil || len(frames) == 0 {
		logging.WithContext(ctx, s.logger).Warn("angle classification degraded to unknown",
			logging.String(logging.FieldRecordingID, rec.ID),
			logging.Error(err),
		)
		return AngleUnknown
	}

	angles := make([]Angle, len(frames))
	for i, frame := range frames {
		angles[i] = s.classifier.Classify(frame)
	}
	return majorityAngle(angles)
}

func (s *Service) outputPath(projectID string, opts Options) string {
	name := textutil.SanitizeFileName(opts.OutputName)
	if name == "" {
		name = fmt.Sprintf("%s_final", projectID)
	}
	container := s.cfg.Output.Container
	if container == "" {
		container = "mp4"
	}
	return filepath.Join(s.cfg.Paths.OutputDir, fmt.Sprintf("%s.%s", name, container))
}

func (s *Service) outputSpec(path string) media.Output {
	return media.Output{
		Path:         path,
		Width:        s.cfg.Output.Width,
		Height:       s.cfg.Output.Height,
		FrameRate:    s.cfg.Output.FrameRate,
		VideoCodec:   s.cfg.Output.VideoCodec,
		VideoBitrate: s.cfg.Output.VideoBitrate,
		AudioCodec:   s.cfg.Output.AudioCodec,
		AudioBitrate: s.cfg.Output.AudioBitrate,
	}
}
