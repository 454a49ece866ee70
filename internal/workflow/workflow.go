package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"montage/internal/config"
	"montage/internal/logging"
	"montage/internal/media"
	"montage/internal/notifications"
	"montage/internal/project"
	"montage/internal/queue"
	"montage/internal/quality"
	"montage/internal/services"
	"montage/internal/stitching"
	"montage/internal/timesync"
)

// Stage names used in progress events.
const (
	StageProcessing = "processing"
	StageSync       = "sync"
	StageQuality    = "quality"
	StageStitching  = "stitching"
	StageComplete   = "complete"
	StageError      = "error"
)

// StageStatus records which stages completed before the workflow ended.
type StageStatus struct {
	Upload     bool `json:"upload"`
	Processing bool `json:"processing"`
	Sync       bool `json:"sync"`
	Quality    bool `json:"quality"`
	Stitching  bool `json:"stitching"`
}

// Summary is the terminal report of one workflow run.
type Summary struct {
	ProjectID  string      `json:"projectId"`
	Stages     StageStatus `json:"stages"`
	OutputPath string      `json:"outputPath,omitempty"`
	Error      string      `json:"error,omitempty"`
}

// jobPollInterval paces the wait for a stage job to reach a terminal state.
const jobPollInterval = 200 * time.Millisecond

// Orchestrator drives a project through the full pipeline. Stages run
// sequentially; each media stage executes as a queue job so the single-flight
// scheduler serializes work across projects.
type Orchestrator struct {
	cfg       *config.Config
	engine    media.Engine
	projects  *project.Store
	scheduler *queue.Scheduler
	sync      *timesync.Service
	quality   *quality.Service
	stitching *stitching.Service
	bus       *notifications.Bus
	logger    *slog.Logger
}

// NewOrchestrator wires the orchestrator and registers the stage handlers on
// the scheduler.
func NewOrchestrator(
	cfg *config.Config,
	engine media.Engine,
	projects *project.Store,
	scheduler *queue.Scheduler,
	syncSvc *timesync.Service,
	qualitySvc *quality.Service,
	stitchingSvc *stitching.Service,
	bus *notifications.Bus,
	logger *slog.Logger,
) *Orchestrator {
	o := &Orchestrator{
		cfg:       cfg,
		engine:    engine,
		projects:  projects,
		scheduler: scheduler,
		sync:      syncSvc,
		quality:   qualitySvc,
		stitching: stitchingSvc,
		bus:       bus,
		logger:    logging.NewComponentLogger(logger, "workflow"),
	}
	o.registerHandlers()
	return o
}

// Execute runs the full pipeline for a project. Stage failures stop the run,
// mark the project errored, and report which stages completed; persisted
// side effects from earlier stages stay in place.
func (o *Orchestrator) Execute(ctx context.Context, projectID string) (*Summary, error) {
	ctx = services.WithProjectID(ctx, projectID)
	logger := logging.WithContext(ctx, o.logger)
	summary := &Summary{ProjectID: projectID}

	proj, err := o.projects.Get(ctx, projectID)
	if err != nil {
		return summary, o.fail(ctx, summary,
			services.Wrap(services.ErrValidation, "workflow", "execute", "project not found", err))
	}
	recordings, err := o.projects.FindRecordings(ctx, projectID)
	if err != nil {
		return summary, o.fail(ctx, summary,
			services.Wrap(services.ErrTransient, "workflow", "execute", "load recordings", err))
	}
	if len(recordings) == 0 {
		return summary, o.fail(ctx, summary,
			services.Wrap(services.ErrValidation, "workflow", "execute", "project has no recordings", nil))
	}
	summary.Stages.Upload = true

	if err := o.projects.SetStatus(ctx, projectID, project.StatusProcessing); err != nil {
		return summary, o.fail(ctx, summary,
			services.Wrap(services.ErrTransient, "workflow", "execute", "mark processing", err))
	}
	logger.Info("workflow started",
		logging.String("project_name", proj.Name),
		logging.Int("recordings", len(recordings)),
	)

	if err := o.standardize(ctx, recordings); err != nil {
		return summary, o.fail(ctx, summary, err)
	}
	summary.Stages.Processing = true
	o.progress(projectID, StageProcessing, 10, "recordings validated")

	if len(recordings) >= 2 {
		if err := o.runStageJob(ctx, projectID, queue.TypeSync); err != nil {
			return summary, o.fail(ctx, summary, err)
		}
		o.progress(projectID, StageSync, 35, "recordings synchronized")
	} else {
		o.progress(projectID, StageSync, 35, "synchronization skipped for single recording")
	}
	summary.Stages.Sync = true

	if err := o.runStageJob(ctx, projectID, queue.TypeQualityAnalysis); err != nil {
		return summary, o.fail(ctx, summary, err)
	}
	summary.Stages.Quality = true
	o.progress(projectID, StageQuality, 60, "quality assessed")

	stitchJob, err := o.runStitchJob(ctx, projectID)
	if err != nil {
		return summary, o.fail(ctx, summary, err)
	}
	summary.Stages.Stitching = true
	if outcome, ok, err := queue.DecodeOutcome(stitchJob.ResultJSON); err == nil && ok && outcome.Stitching != nil {
		summary.OutputPath = outcome.Stitching.OutputPath
	}
	o.progress(projectID, StageStitching, 90, "final video rendered")

	if err := o.projects.SetStatus(ctx, projectID, project.StatusCompleted); err != nil {
		return summary, o.fail(ctx, summary,
			services.Wrap(services.ErrTransient, "workflow", "execute", "mark completed", err))
	}
	o.progress(projectID, StageComplete, 100, "workflow complete")
	o.bus.Publish(projectID, notifications.EventWorkflowCompleted, notifications.Payload{
		"outputPath": summary.OutputPath,
	})
	logger.Info("workflow complete", logging.String("output", summary.OutputPath))
	return summary, nil
}

// Retry cancels the project's in-flight jobs, resets its status, and runs
// the workflow again from the beginning. The returned summary is never nil,
// even when the reset itself fails.
func (o *Orchestrator) Retry(ctx context.Context, projectID string) (*Summary, error) {
	summary := &Summary{ProjectID: projectID}
	if _, err := o.scheduler.CancelProjectJobs(ctx, projectID); err != nil {
		summary.Error = "cancel project jobs: " + err.Error()
		return summary, services.Wrap(services.ErrTransient, "workflow", "retry", "cancel project jobs", err)
	}
	if err := o.projects.SetStatus(ctx, projectID, project.StatusCreated); err != nil {
		summary.Error = "reset project status: " + err.Error()
		return summary, services.Wrap(services.ErrTransient, "workflow", "retry", "reset project status", err)
	}
	return o.Execute(ctx, projectID)
}

// Cancel marks the project and its in-flight jobs cancelled. Cancellation is
// cooperative; an external render already in flight is not killed.
func (o *Orchestrator) Cancel(ctx context.Context, projectID string) error {
	if _, err := o.scheduler.CancelProjectJobs(ctx, projectID); err != nil {
		return services.Wrap(services.ErrTransient, "workflow", "cancel", "cancel project jobs", err)
	}
	if err := o.projects.SetStatus(ctx, projectID, project.StatusCancelled); err != nil {
		return services.Wrap(services.ErrTransient, "workflow", "cancel", "mark cancelled", err)
	}
	o.progressError(projectID, "workflow cancelled by user")
	return nil
}

// standardize probes every recording concurrently, confirming each file is
// readable before any stage job is enqueued.
func (o *Orchestrator) standardize(ctx context.Context, recordings []*project.Recording) error {
	group, groupCtx := errgroup.WithContext(ctx)
	for _, rec := range recordings {
		group.Go(func() error {
			info, err := o.engine.Probe(groupCtx, rec.FilePath)
			if err != nil {
				return services.Wrap(services.ErrTransient, "workflow", "standardize", rec.ID, err)
			}
			if !info.HasVideo {
				return services.Wrap(services.ErrValidation, "workflow", "standardize",
					fmt.Sprintf("recording %s has no video stream", rec.ID), nil)
			}
			return nil
		})
	}
	return group.Wait()
}

// runStageJob enqueues one stage job and waits for it to reach a terminal
// state.
func (o *Orchestrator) runStageJob(ctx context.Context, projectID string, jobType queue.Type) error {
	_, err := o.runJob(ctx, projectID, jobType)
	return err
}

func (o *Orchestrator) runStitchJob(ctx context.Context, projectID string) (*queue.Job, error) {
	return o.runJob(ctx, projectID, queue.TypeStitching)
}

func (o *Orchestrator) runJob(ctx context.Context, projectID string, jobType queue.Type) (*queue.Job, error) {
	job, err := o.scheduler.AddJob(ctx, projectID, jobType, 0)
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "workflow", "enqueue", string(jobType), err)
	}
	done, err := o.waitForJob(ctx, job.ID)
	if err != nil {
		return nil, err
	}
	if done.Status != queue.StatusCompleted {
		return nil, services.Wrap(services.ErrTransient, "workflow", string(jobType), done.ErrorMessage, nil)
	}
	return done, nil
}

func (o *Orchestrator) waitForJob(ctx context.Context, jobID int64) (*queue.Job, error) {
	ticker := time.NewTicker(jobPollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
		job, err := o.scheduler.GetJob(ctx, jobID)
		if err != nil {
			return nil, services.Wrap(services.ErrTransient, "workflow", "wait", "poll job", err)
		}
		if job == nil {
			return nil, services.Wrap(services.ErrNotFound, "workflow", "wait",
				fmt.Sprintf("job %d disappeared", jobID), nil)
		}
		if job.Status.Terminal() {
			return job, nil
		}
	}
}

// fail records the terminal error on the summary and the project, then
// emits the error-stage progress event.
func (o *Orchestrator) fail(ctx context.Context, summary *Summary, cause error) error {
	message := services.Message(cause)
	summary.Error = message
	if err := o.projects.SetStatus(ctx, summary.ProjectID, project.StatusError); err != nil {
		logging.WithContext(ctx, o.logger).Error("failed to mark project errored", logging.Error(err))
	}
	o.progressError(summary.ProjectID, message)
	o.bus.Publish(summary.ProjectID, notifications.EventWorkflowError, notifications.Payload{
		"error": message,
	})
	logging.WithContext(ctx, o.logger).Error("workflow failed",
		logging.String("error_message", message),
		logging.Error(cause),
	)
	return cause
}

func (o *Orchestrator) progress(projectID, stage string, percent int, message string) {
	o.bus.Publish(projectID, notifications.EventWorkflowProgress, notifications.Payload{
		"stage":    stage,
		"progress": percent,
		"message":  message,
	})
}

func (o *Orchestrator) progressError(projectID, message string) {
	o.bus.Publish(projectID, notifications.EventWorkflowProgress, notifications.Payload{
		"stage":    StageError,
		"progress": 0,
		"message":  message,
		"error":    message,
	})
}
