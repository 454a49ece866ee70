package workflow

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"

	"montage/internal/logging"
	"montage/internal/queue"
	"montage/internal/quality"
	"montage/internal/services"
	"montage/internal/stitching"
	"montage/internal/timesync"
)

func (o *Orchestrator) registerHandlers() {
	o.scheduler.RegisterHandler(queue.TypeSync, o.handleSync)
	o.scheduler.RegisterHandler(queue.TypeQualityAnalysis, o.handleQuality)
	o.scheduler.RegisterHandler(queue.TypeStitching, o.handleStitching)
}

func (o *Orchestrator) handleSync(ctx context.Context, job *queue.Job) (queue.Outcome, error) {
	result, err := o.sync.Synchronize(ctx, job.ProjectID)
	if err != nil {
		return queue.Outcome{}, err
	}

	validation := timesync.ValidateResult(result)
	logger := logging.WithContext(ctx, o.logger)
	for _, issue := range validation.Issues {
		logger.Warn("sync validation issue", logging.String("issue", issue))
	}
	if !validation.IsValid {
		return queue.Outcome{}, services.Wrap(services.ErrValidation, "workflow", "sync",
			"synchronization confidence too low to continue", nil)
	}

	aligned := make([]queue.AlignedVideo, len(result.Aligned))
	for i, video := range result.Aligned {
		aligned[i] = queue.AlignedVideo{
			RecordingID: video.RecordingID,
			Offset:      video.Offset,
			Confidence:  video.Confidence,
		}
	}
	return queue.Outcome{
		Kind: queue.OutcomeSync,
		Sync: &queue.SyncOutcome{
			Method:     result.Method,
			Confidence: result.Confidence,
			Aligned:    aligned,
		},
	}, nil
}

// handleQuality fans assessment out across the project's recordings and
// joins the per-recording results into a ranked outcome.
func (o *Orchestrator) handleQuality(ctx context.Context, job *queue.Job) (queue.Outcome, error) {
	recordings, err := o.projects.FindRecordings(ctx, job.ProjectID)
	if err != nil {
		return queue.Outcome{}, services.Wrap(services.ErrTransient, "workflow", "quality", "load recordings", err)
	}
	if len(recordings) == 0 {
		return queue.Outcome{}, services.Wrap(services.ErrValidation, "workflow", "quality", "project has no recordings", nil)
	}

	opts := o.quality.DefaultOptions()
	metrics := make([]*quality.Metrics, len(recordings))
	var mu sync.Mutex
	completed := 0

	group, groupCtx := errgroup.WithContext(ctx)
	for i, rec := range recordings {
		group.Go(func() error {
			assessed, err := o.quality.Assess(groupCtx, rec, opts)
			if err != nil {
				return err
			}
			mu.Lock()
			metrics[i] = assessed
			completed++
			percent := completed * 100 / len(recordings)
			mu.Unlock()
			if err := o.scheduler.UpdateProgress(ctx, job.ID, percent); err != nil {
				logging.WithContext(ctx, o.logger).Debug("progress update failed", logging.Error(err))
			}
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return queue.Outcome{}, err
	}

	ranked := quality.Rank(metrics)
	rankings := make([]queue.RecordingScore, len(ranked))
	for i, m := range ranked {
		rankings[i] = queue.RecordingScore{RecordingID: m.RecordingID, Overall: m.Scores.Overall}
	}
	return queue.Outcome{
		Kind:    queue.OutcomeQuality,
		Quality: &queue.QualityOutcome{Rankings: rankings},
	}, nil
}

func (o *Orchestrator) handleStitching(ctx context.Context, job *queue.Job) (queue.Outcome, error) {
	readiness, err := o.stitching.CheckReadiness(ctx, job.ProjectID)
	if err != nil {
		return queue.Outcome{}, err
	}
	if !readiness.Ready {
		message := "project is not ready for stitching"
		if len(readiness.Missing) > 0 {
			message = readiness.Missing[0]
		}
		return queue.Outcome{}, services.Wrap(services.ErrValidation, "workflow", "stitching", message, nil)
	}

	result, err := o.stitching.Stitch(ctx, job.ProjectID, stitching.Options{})
	if err != nil {
		return queue.Outcome{}, err
	}

	angleSwitches := result.Metrics.CameraAngleSwitches
	return queue.Outcome{
		Kind: queue.OutcomeStitching,
		Stitching: &queue.StitchingOutcome{
			OutputPath:      result.OutputPath,
			Duration:        result.Duration,
			FileSize:        result.FileSize,
			AverageQuality:  result.Metrics.AverageQuality,
			TransitionCount: result.Metrics.TransitionCount,
			AngleSwitches:   angleSwitches,
		},
	}, nil
}
