package quality

import (
	"context"
	"log/slog"
	"math"

	"montage/internal/config"
	"montage/internal/logging"
	"montage/internal/media"
	"montage/internal/project"
	"montage/internal/services"
)

// neutralScore substitutes for a failed or disabled analyzer.
const neutralScore = 50.0

// defaultAudioQuality is the placeholder audio score used until a real
// audio analyzer is supplied.
const defaultAudioQuality = 70.0

// analysisWidth and analysisHeight size the frames decoded for scoring.
const (
	analysisWidth  = 320
	analysisHeight = 180
)

// Service assesses recording quality from sampled frames.
type Service struct {
	cfg      *config.Config
	engine   media.Engine
	projects *project.Store
	logger   *slog.Logger

	// Analyzer slots are replaceable for tests.
	Stability Analyzer
	Lighting  Analyzer
	Framing   Analyzer
	Clarity   Analyzer
}

// NewService wires a quality service with the default analyzers.
func NewService(cfg *config.Config, engine media.Engine, projects *project.Store, logger *slog.Logger) *Service {
	return &Service{
		cfg:       cfg,
		engine:    engine,
		projects:  projects,
		logger:    logging.NewComponentLogger(logger, "quality"),
		Stability: AnalyzeStability,
		Lighting:  AnalyzeLighting,
		Framing:   AnalyzeFraming,
		Clarity:   AnalyzeClarity,
	}
}

// DefaultOptions returns the analyzer toggles from configuration.
func (s *Service) DefaultOptions() Options {
	return Options{
		Stability: s.cfg.Quality.Stability,
		Lighting:  s.cfg.Quality.Lighting,
		Framing:   s.cfg.Quality.Framing,
		Clarity:   s.cfg.Quality.Clarity,
	}
}

// Assess samples frames from the recording, runs the enabled analyzers, and
// persists the overall score. An individual analyzer failure degrades to the
// neutral score; only frame extraction failure aborts.
func (s *Service) Assess(ctx context.Context, rec *project.Recording, opts Options) (*Metrics, error) {
	logger := logging.WithContext(ctx, s.logger).With(logging.String(logging.FieldRecordingID, rec.ID))

	timestamps := s.sampleTimestamps(rec.Duration)
	frames, err := s.engine.ExtractFrames(ctx, rec.FilePath, timestamps, analysisWidth, analysisHeight)
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "quality", "assess", "extract frames", err)
	}
	if len(frames) == 0 {
		return nil, services.Wrap(services.ErrTransient, "quality", "assess", "no frames decoded", nil)
	}

	metrics := &Metrics{RecordingID: rec.ID}

	stability := s.runAnalyzer(logger, metrics, "stability", opts.Stability, s.Stability, frames)
	lighting := s.runAnalyzer(logger, metrics, "lighting", opts.Lighting, s.Lighting, frames)
	framing := s.runAnalyzer(logger, metrics, "framing", opts.Framing, s.Framing, frames)
	clarity := s.runAnalyzer(logger, metrics, "clarity", opts.Clarity, s.Clarity, frames)

	metrics.ShakeDetected = stability.Shaky
	overall := stability.Score*0.25 + lighting.Score*0.25 + framing.Score*0.20 +
		clarity.Score*0.25 + defaultAudioQuality*0.05
	metrics.Scores = Scores{
		Overall:      int(math.Round(overall)),
		Stability:    int(math.Round(stability.Score)),
		Lighting:     int(math.Round(lighting.Score)),
		Framing:      int(math.Round(framing.Score)),
		Clarity:      int(math.Round(clarity.Score)),
		AudioQuality: int(defaultAudioQuality),
	}

	metrics.PerFrame = make([]FrameSample, len(frames))
	for i, frame := range frames {
		metrics.PerFrame[i] = FrameSample{
			Timestamp: frame.Timestamp,
			Stability: perFrameAt(stability, i),
			Lighting:  perFrameAt(lighting, i),
			Framing:   perFrameAt(framing, i),
			Clarity:   perFrameAt(clarity, i),
		}
	}

	if err := s.projects.SetQualityScore(ctx, rec.ID, metrics.Scores.Overall); err != nil {
		return nil, services.Wrap(services.ErrTransient, "quality", "assess", "persist score", err)
	}

	logger.Info("quality assessment complete",
		logging.Int("overall", metrics.Scores.Overall),
		logging.Int("frames", len(frames)),
		logging.Bool("shake_detected", metrics.ShakeDetected),
	)
	return metrics, nil
}

func (s *Service) runAnalyzer(logger *slog.Logger, metrics *Metrics, name string, enabled bool, analyzer Analyzer, frames []media.Frame) Analysis {
	if !enabled {
		return Analysis{Score: neutralScore}
	}
	analysis, err := analyzer(frames)
	if err != nil {
		logger.Warn("analyzer failed, using neutral score",
			logging.String("analyzer", name),
			logging.Error(err),
		)
		metrics.Degraded = append(metrics.Degraded, name)
		return Analysis{Score: neutralScore}
	}
	return analysis
}

// sampleTimestamps spaces frame samples at the configured interval, capped
// by both the configured count and the recording duration.
func (s *Service) sampleTimestamps(duration float64) []float64 {
	interval := s.cfg.Quality.SampleIntervalSeconds
	if interval <= 0 {
		interval = 2.5
	}
	count := s.cfg.Quality.FrameSamples
	if count <= 0 {
		count = 24
	}
	if duration > 0 {
		if fit := int(duration / interval); fit < count {
			count = fit
		}
	}
	if count < 1 {
		count = 1
	}
	timestamps := make([]float64, count)
	for i := range timestamps {
		timestamps[i] = float64(i) * interval
	}
	return timestamps
}

func perFrameAt(a Analysis, i int) float64 {
	if i < len(a.PerFrame) {
		return a.PerFrame[i]
	}
	return a.Score
}
