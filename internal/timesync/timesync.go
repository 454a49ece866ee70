package timesync

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"golang.org/x/sync/errgroup"

	"montage/internal/config"
	"montage/internal/logging"
	"montage/internal/media"
	"montage/internal/project"
	"montage/internal/services"
)

// Method names how a project's alignment was established.
const (
	MethodAudio  = "audio"
	MethodVisual = "visual"
	MethodHybrid = "hybrid"
)

// AlignedVideo is one recording's final offset against the reference.
type AlignedVideo struct {
	RecordingID string  `json:"recordingId"`
	Offset      float64 `json:"offsetSeconds"`
	Confidence  float64 `json:"confidence"`
}

// Result is the outcome of synchronizing a project's recordings. The
// reference recording always appears first with offset 0 and confidence 100.
type Result struct {
	Method     string         `json:"method"`
	Confidence float64        `json:"confidence"`
	Aligned    []AlignedVideo `json:"alignedVideos"`
}

// visualSimilarityFloor is the minimum cosine similarity a per-second frame
// match needs to become a fallback candidate.
const visualSimilarityFloor = 0.85

// visualThumbWidth and visualThumbHeight size the frames decoded for visual
// alignment. Small thumbnails are enough for histogram features.
const (
	visualThumbWidth  = 64
	visualThumbHeight = 36
)

// Service aligns a project's recordings on a common timeline.
type Service struct {
	cfg      *config.Config
	engine   media.Engine
	projects *project.Store
	analyzer FrameAnalyzer
	logger   *slog.Logger
}

// NewService wires a synchronization service. A nil analyzer falls back to
// the histogram analyzer.
func NewService(cfg *config.Config, engine media.Engine, projects *project.Store, analyzer FrameAnalyzer, logger *slog.Logger) *Service {
	if analyzer == nil {
		analyzer = HistogramAnalyzer{}
	}
	return &Service{
		cfg:      cfg,
		engine:   engine,
		projects: projects,
		analyzer: analyzer,
		logger:   logging.NewComponentLogger(logger, "timesync"),
	}
}

// Synchronize aligns every recording of the project against the reference
// (first by upload order) and persists the chosen offsets.
func (s *Service) Synchronize(ctx context.Context, projectID string) (*Result, error) {
	logger := logging.WithContext(ctx, s.logger)

	recordings, err := s.projects.FindRecordings(ctx, projectID)
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "timesync", "synchronize", "load recordings", err)
	}
	if len(recordings) < 2 {
		return nil, services.Wrap(services.ErrValidation, "timesync", "synchronize",
			fmt.Sprintf("project needs at least 2 recordings to synchronize, has %d", len(recordings)), nil)
	}

	waveforms, err := s.extractWaveforms(ctx, recordings)
	if err != nil {
		return nil, err
	}
	reference := recordings[0]
	refWave := waveforms[0]

	sampleRate := s.cfg.Sync.SampleRate
	maxLag := int(s.cfg.Sync.MaxOffsetSeconds * float64(sampleRate))
	step := s.cfg.Sync.CoarseStepMillis * sampleRate / 1000
	window := int(s.cfg.Sync.WindowSeconds*float64(sampleRate)) / correlationStride

	candidates := make([][]candidate, len(recordings))
	audioTotal, audioCount := 0.0, 0
	for i := 1; i < len(recordings); i++ {
		found := s.audioCandidates(refWave.Samples, waveforms[i].Samples, maxLag, step, window)
		candidates[i] = found
		for _, c := range found {
			audioTotal += c.confidence
			audioCount++
		}
	}

	audioAvg := 0.0
	if audioCount > 0 {
		audioAvg = audioTotal / float64(audioCount)
	}

	visualCount := 0
	if audioAvg < s.cfg.Sync.VisualFallbackBelow {
		logger.Info("audio confidence low, trying visual alignment",
			logging.Float64("audio_confidence", audioAvg),
		)
		refFeatures, err := s.visualFeatures(ctx, reference)
		if err != nil {
			return nil, err
		}
		for i := 1; i < len(recordings); i++ {
			features, err := s.visualFeatures(ctx, recordings[i])
			if err != nil {
				return nil, err
			}
			found := s.visualCandidates(refFeatures, features)
			candidates[i] = append(candidates[i], found...)
			visualCount += len(found)
		}
	}

	result := s.selectOffsets(recordings, candidates, audioCount, visualCount)
	for _, aligned := range result.Aligned[1:] {
		if err := s.projects.SetSyncOffset(ctx, aligned.RecordingID, aligned.Offset); err != nil {
			return nil, services.Wrap(services.ErrTransient, "timesync", "synchronize", "persist offset", err)
		}
	}

	logger.Info("synchronization complete",
		logging.String("method", result.Method),
		logging.Float64("confidence", result.Confidence),
		logging.Int("recordings", len(recordings)),
	)
	return result, nil
}

// extractWaveforms decodes mono PCM for every recording concurrently. Any
// extraction failure aborts the whole call.
func (s *Service) extractWaveforms(ctx context.Context, recordings []*project.Recording) ([]media.AudioTrack, error) {
	maxSeconds := s.cfg.Sync.WindowSeconds + s.cfg.Sync.MaxOffsetSeconds
	waveforms := make([]media.AudioTrack, len(recordings))

	group, groupCtx := errgroup.WithContext(ctx)
	for i, rec := range recordings {
		group.Go(func() error {
			track, err := s.engine.ExtractAudio(groupCtx, rec.FilePath, s.cfg.Sync.SampleRate, maxSeconds)
			if err != nil {
				return services.Wrap(services.ErrTransient, "timesync", "extract audio", rec.ID, err)
			}
			waveforms[i] = track
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}
	return waveforms, nil
}

func (s *Service) audioCandidates(ref, rec []float64, maxLag, step, window int) []candidate {
	scores := crossCorrelate(ref, rec, maxLag, step, window)
	peaks := localMaxima(scores, s.cfg.Sync.MinCorrelation)
	sort.SliceStable(peaks, func(a, b int) bool { return scores[peaks[a]] > scores[peaks[b]] })
	if len(peaks) > s.cfg.Sync.MaxCandidatesPerPair {
		peaks = peaks[:s.cfg.Sync.MaxCandidatesPerPair]
	}

	found := make([]candidate, 0, len(peaks))
	for _, idx := range peaks {
		lag := -maxLag + idx*step
		found = append(found, candidate{
			offset:     float64(lag) / float64(s.cfg.Sync.SampleRate),
			confidence: scores[idx] * 100,
			source:     MethodAudio,
		})
	}
	return found
}

// visualFeatures decodes one thumbnail per second over the correlation
// window and reduces each to a feature vector.
func (s *Service) visualFeatures(ctx context.Context, rec *project.Recording) ([][]float64, error) {
	seconds := s.cfg.Sync.WindowSeconds
	if rec.Duration > 0 && rec.Duration < seconds {
		seconds = rec.Duration
	}
	timestamps := make([]float64, 0, int(seconds))
	for t := 0.0; t < seconds; t++ {
		timestamps = append(timestamps, t)
	}
	frames, err := s.engine.ExtractFrames(ctx, rec.FilePath, timestamps, visualThumbWidth, visualThumbHeight)
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "timesync", "extract frames", rec.ID, err)
	}
	return s.analyzer.Features(frames), nil
}

// visualCandidates scans whole-second offsets and keeps those whose average
// per-second cosine similarity clears the floor.
func (s *Service) visualCandidates(ref, rec [][]float64) []candidate {
	maxOffset := int(s.cfg.Sync.MaxOffsetSeconds)
	found := make([]candidate, 0, 2)
	for lag := -maxOffset; lag <= maxOffset; lag++ {
		var total float64
		count := 0
		for i := range ref {
			j := i + lag
			if j < 0 || j >= len(rec) {
				continue
			}
			total += cosineSimilarity(ref[i], rec[j])
			count++
		}
		if count == 0 {
			continue
		}
		avg := total / float64(count)
		if avg < visualSimilarityFloor {
			continue
		}
		found = append(found, candidate{
			offset:     float64(lag),
			confidence: avg * 100,
			source:     MethodVisual,
		})
	}
	sort.SliceStable(found, func(a, b int) bool { return found[a].confidence > found[b].confidence })
	if len(found) > s.cfg.Sync.MaxCandidatesPerPair {
		found = found[:s.cfg.Sync.MaxCandidatesPerPair]
	}
	return found
}

// selectOffsets picks each recording's best candidate and derives the
// overall method and confidence.
func (s *Service) selectOffsets(recordings []*project.Recording, candidates [][]candidate, audioCount, visualCount int) *Result {
	aligned := make([]AlignedVideo, 0, len(recordings))
	aligned = append(aligned, AlignedVideo{RecordingID: recordings[0].ID, Offset: 0, Confidence: 100})

	var confidenceTotal float64
	corroborating := 0
	for i := 1; i < len(recordings); i++ {
		best := candidate{}
		for _, c := range candidates[i] {
			if c.confidence > best.confidence {
				best = c
			}
		}
		if extra := len(candidates[i]) - 1; extra > 0 {
			corroborating += extra
		}
		confidenceTotal += best.confidence
		aligned = append(aligned, AlignedVideo{
			RecordingID: recordings[i].ID,
			Offset:      best.offset,
			Confidence:  best.confidence,
		})
	}

	confidence := confidenceTotal / float64(len(recordings)-1)
	bonus := 2.5 * float64(corroborating)
	if bonus > 10 {
		bonus = 10
	}
	confidence += bonus
	if confidence > 100 {
		confidence = 100
	}

	method := MethodAudio
	switch {
	case audioCount == 0 && visualCount > 0:
		method = MethodVisual
	case audioCount > 0 && visualCount > 0:
		method = MethodHybrid
	}

	return &Result{Method: method, Confidence: confidence, Aligned: aligned}
}
