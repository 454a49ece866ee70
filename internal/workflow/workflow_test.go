package workflow_test

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"montage/internal/config"
	"montage/internal/logging"
	"montage/internal/notifications"
	"montage/internal/project"
	"montage/internal/quality"
	"montage/internal/queue"
	"montage/internal/services"
	"montage/internal/stitching"
	"montage/internal/testsupport"
	"montage/internal/timesync"
	"montage/internal/workflow"
)

type fixture struct {
	cfg          *config.Config
	projects     *project.Store
	queueStore   *queue.Store
	scheduler    *queue.Scheduler
	engine       *testsupport.FakeEngine
	bus          *notifications.Bus
	orchestrator *workflow.Orchestrator
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	cfg := testsupport.NewConfig(t, func(c *config.Config) {
		c.Sync.MaxOffsetSeconds = 4
		c.Sync.WindowSeconds = 6
		c.Sync.SampleRate = 4000
	})
	projects := testsupport.MustOpenProjectStore(t, cfg)
	queueStore := testsupport.MustOpenStore(t, cfg)
	engine := testsupport.NewFakeEngine()
	bus := notifications.NewBus()
	logger := logging.NewNop()

	scheduler := queue.NewScheduler(queueStore, bus, logger, 10*time.Millisecond)
	orchestrator := workflow.NewOrchestrator(
		cfg,
		engine,
		projects,
		scheduler,
		timesync.NewService(cfg, engine, projects, nil, logger),
		quality.NewService(cfg, engine, projects, logger),
		stitching.NewService(cfg, engine, projects, nil, logger),
		bus,
		logger,
	)

	if err := scheduler.Start(context.Background()); err != nil {
		t.Fatalf("scheduler.Start failed: %v", err)
	}
	t.Cleanup(scheduler.Stop)

	return &fixture{
		cfg:          cfg,
		projects:     projects,
		queueStore:   queueStore,
		scheduler:    scheduler,
		engine:       engine,
		bus:          bus,
		orchestrator: orchestrator,
	}
}

func TestExecuteFullPipeline(t *testing.T) {
	f := newFixture(t)
	f.engine.AddClip("/clips/ref.mp4", testsupport.FakeClip{Duration: 30, Brightness: 150})
	f.engine.AddClip("/clips/late.mp4", testsupport.FakeClip{Duration: 30, Brightness: 150, AudioDelay: 2})

	ctx := context.Background()
	proj := testsupport.NewProject(t, f.projects, "two-cam")
	testsupport.NewRecording(t, f.projects, proj.ID, "/clips/ref.mp4", 30)
	testsupport.NewRecording(t, f.projects, proj.ID, "/clips/late.mp4", 30)

	summary, err := f.orchestrator.Execute(ctx, proj.ID)
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if !summary.Stages.Upload || !summary.Stages.Processing || !summary.Stages.Sync ||
		!summary.Stages.Quality || !summary.Stages.Stitching {
		t.Fatalf("expected all stages complete, got %#v", summary.Stages)
	}
	if summary.OutputPath == "" {
		t.Fatal("expected an output path on the summary")
	}
	if _, err := os.Stat(summary.OutputPath); err != nil {
		t.Fatalf("expected rendered output file: %v", err)
	}

	updated, err := f.projects.Get(ctx, proj.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if updated.Status != project.StatusCompleted {
		t.Fatalf("expected completed project, got %s", updated.Status)
	}
	if updated.OutputPath != summary.OutputPath {
		t.Fatalf("expected persisted output path %q, got %q", summary.OutputPath, updated.OutputPath)
	}

	jobs, err := f.queueStore.ProjectJobs(ctx, proj.ID)
	if err != nil {
		t.Fatalf("ProjectJobs failed: %v", err)
	}
	if len(jobs) != 3 {
		t.Fatalf("expected 3 stage jobs, got %d", len(jobs))
	}
	for _, job := range jobs {
		if job.Status != queue.StatusCompleted || job.Progress != 100 {
			t.Fatalf("expected completed job, got %#v", job)
		}
	}
}

func TestExecuteSkipsSyncForSingleRecording(t *testing.T) {
	f := newFixture(t)
	f.engine.AddClip("/clips/solo.mp4", testsupport.FakeClip{Duration: 20, Brightness: 150})

	ctx := context.Background()
	proj := testsupport.NewProject(t, f.projects, "solo")
	testsupport.NewRecording(t, f.projects, proj.ID, "/clips/solo.mp4", 20)

	summary, err := f.orchestrator.Execute(ctx, proj.ID)
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if !summary.Stages.Sync {
		t.Fatal("expected skipped sync stage to count as complete")
	}

	jobs, err := f.queueStore.ProjectJobs(ctx, proj.ID)
	if err != nil {
		t.Fatalf("ProjectJobs failed: %v", err)
	}
	for _, job := range jobs {
		if job.Type == queue.TypeSync {
			t.Fatal("expected no sync job for a single recording")
		}
	}
}

func TestExecuteRequiresRecordings(t *testing.T) {
	f := newFixture(t)

	ctx := context.Background()
	proj := testsupport.NewProject(t, f.projects, "empty")

	sub := f.bus.Subscribe(16)
	defer sub.Cancel()

	summary, err := f.orchestrator.Execute(ctx, proj.ID)
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if summary.Stages.Processing {
		t.Fatal("expected no stage to complete")
	}

	updated, err := f.projects.Get(ctx, proj.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if updated.Status != project.StatusError {
		t.Fatalf("expected error status, got %s", updated.Status)
	}

	sawError := false
	deadline := time.After(2 * time.Second)
	for !sawError {
		select {
		case msg := <-sub.C():
			if msg.Event == notifications.EventWorkflowError {
				sawError = true
			}
		case <-deadline:
			t.Fatal("timed out waiting for workflow error event")
		}
	}
}

func TestExecuteStopsOnUnreadableRecording(t *testing.T) {
	f := newFixture(t)
	f.engine.AddClip("/clips/good.mp4", testsupport.FakeClip{Duration: 20, Brightness: 150})

	ctx := context.Background()
	proj := testsupport.NewProject(t, f.projects, "unreadable")
	testsupport.NewRecording(t, f.projects, proj.ID, "/clips/good.mp4", 20)
	testsupport.NewRecording(t, f.projects, proj.ID, "/clips/missing.mp4", 20)

	summary, err := f.orchestrator.Execute(ctx, proj.ID)
	if err == nil {
		t.Fatal("expected execute to fail on unreadable recording")
	}
	if summary.Stages.Processing {
		t.Fatal("expected processing stage incomplete")
	}
	if summary.Error == "" {
		t.Fatal("expected error message on summary")
	}
}

func TestRetryReturnsSummaryOnResetFailure(t *testing.T) {
	f := newFixture(t)

	ctx := context.Background()
	proj := testsupport.NewProject(t, f.projects, "stuck")

	f.scheduler.Stop()
	if err := f.queueStore.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	summary, err := f.orchestrator.Retry(ctx, proj.ID)
	if err == nil {
		t.Fatal("expected retry to fail with a closed job store")
	}
	if summary == nil {
		t.Fatal("expected a summary alongside the retry error")
	}
	if summary.ProjectID != proj.ID || summary.Error == "" {
		t.Fatalf("expected populated summary, got %#v", summary)
	}
}

func TestCancelMarksProjectAndJobs(t *testing.T) {
	f := newFixture(t)

	ctx := context.Background()
	proj := testsupport.NewProject(t, f.projects, "cancelme")
	job, err := f.queueStore.Add(ctx, proj.ID, queue.TypeStitching, 0)
	if err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	if err := f.orchestrator.Cancel(ctx, proj.ID); err != nil {
		t.Fatalf("Cancel failed: %v", err)
	}

	updated, err := f.projects.Get(ctx, proj.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if updated.Status != project.StatusCancelled {
		t.Fatalf("expected cancelled status, got %s", updated.Status)
	}

	cancelled, err := f.queueStore.GetByID(ctx, job.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if cancelled.Status != queue.StatusFailed || cancelled.ErrorMessage != queue.CancelledMessage {
		t.Fatalf("expected cancelled job, got %#v", cancelled)
	}
}

func TestRetryRerunsWorkflow(t *testing.T) {
	f := newFixture(t)
	f.engine.AddClip("/clips/solo.mp4", testsupport.FakeClip{Duration: 20, Brightness: 150})

	ctx := context.Background()
	proj := testsupport.NewProject(t, f.projects, "retry")
	testsupport.NewRecording(t, f.projects, proj.ID, "/clips/solo.mp4", 20)
	if err := f.projects.SetStatus(ctx, proj.ID, project.StatusError); err != nil {
		t.Fatalf("SetStatus failed: %v", err)
	}

	summary, err := f.orchestrator.Retry(ctx, proj.ID)
	if err != nil {
		t.Fatalf("Retry failed: %v", err)
	}
	if !summary.Stages.Stitching {
		t.Fatalf("expected full re-run, got %#v", summary.Stages)
	}

	updated, err := f.projects.Get(ctx, proj.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if updated.Status != project.StatusCompleted {
		t.Fatalf("expected completed project after retry, got %s", updated.Status)
	}
}
