package queue_test

import (
	"context"
	"testing"

	"montage/internal/queue"
	"montage/internal/testsupport"
)

func TestAddAndFetch(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	job, err := store.Add(ctx, "project-1", queue.TypeSync, 0)
	if err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	if job.ID == 0 {
		t.Fatal("expected job ID to be assigned")
	}
	if job.Status != queue.StatusPending {
		t.Fatalf("expected pending status, got %s", job.Status)
	}

	fetched, err := store.GetByID(ctx, job.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if fetched == nil || fetched.ProjectID != "project-1" || fetched.Type != queue.TypeSync {
		t.Fatalf("unexpected fetched job: %#v", fetched)
	}
}

func TestAddRequiresProjectAndType(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	if _, err := store.Add(ctx, "", queue.TypeSync, 0); err == nil {
		t.Fatal("expected error when project ID missing")
	}
	if _, err := store.Add(ctx, "project-1", queue.Type("bogus"), 0); err == nil {
		t.Fatal("expected error for unknown job type")
	}
}

func TestNextPendingOrder(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	first, err := store.Add(ctx, "project-1", queue.TypeSync, 0)
	if err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	if _, err := store.Add(ctx, "project-2", queue.TypeSync, 0); err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	urgent, err := store.Add(ctx, "project-3", queue.TypeStitching, 5)
	if err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	next, err := store.NextPending(ctx)
	if err != nil {
		t.Fatalf("NextPending failed: %v", err)
	}
	if next == nil || next.ID != urgent.ID {
		t.Fatalf("expected high-priority job first, got %#v", next)
	}

	next.Status = queue.StatusCompleted
	if err := store.Update(ctx, next); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	next, err = store.NextPending(ctx)
	if err != nil {
		t.Fatalf("NextPending failed: %v", err)
	}
	if next == nil || next.ID != first.ID {
		t.Fatalf("expected oldest job among equals, got %#v", next)
	}
}

func TestUpdateProgressNeverRegresses(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	job, err := store.Add(ctx, "project-1", queue.TypeQualityAnalysis, 0)
	if err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	job.Status = queue.StatusProcessing
	if err := store.Update(ctx, job); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	if err := store.UpdateProgress(ctx, job.ID, 60); err != nil {
		t.Fatalf("UpdateProgress failed: %v", err)
	}
	if err := store.UpdateProgress(ctx, job.ID, 30); err != nil {
		t.Fatalf("UpdateProgress failed: %v", err)
	}

	fetched, err := store.GetByID(ctx, job.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if fetched.Progress != 60 {
		t.Fatalf("expected progress to stay at 60, got %d", fetched.Progress)
	}
}

func TestUpdateProgressIgnoresTerminalJobs(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	job, err := store.Add(ctx, "project-1", queue.TypeSync, 0)
	if err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	job.Status = queue.StatusFailed
	job.ErrorMessage = "boom"
	if err := store.Update(ctx, job); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	if err := store.UpdateProgress(ctx, job.ID, 50); err != nil {
		t.Fatalf("UpdateProgress failed: %v", err)
	}
	fetched, err := store.GetByID(ctx, job.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if fetched.Progress != 0 {
		t.Fatalf("expected progress untouched on terminal job, got %d", fetched.Progress)
	}
}

func TestFinishTransitionsProcessingJob(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	job, err := store.Add(ctx, "project-1", queue.TypeSync, 0)
	if err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	job.Status = queue.StatusProcessing
	if err := store.Update(ctx, job); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	job.Status = queue.StatusCompleted
	job.Progress = 100
	finished, err := store.Finish(ctx, job)
	if err != nil {
		t.Fatalf("Finish failed: %v", err)
	}
	if !finished {
		t.Fatal("expected processing job to transition")
	}
	fetched, err := store.GetByID(ctx, job.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if fetched.Status != queue.StatusCompleted || fetched.Progress != 100 {
		t.Fatalf("unexpected finished job: %#v", fetched)
	}
}

func TestFinishLeavesCancelledJobUntouched(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	job, err := store.Add(ctx, "project-1", queue.TypeStitching, 0)
	if err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	job.Status = queue.StatusProcessing
	if err := store.Update(ctx, job); err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	if _, err := store.Cancel(ctx, job.ID); err != nil {
		t.Fatalf("Cancel failed: %v", err)
	}

	job.Status = queue.StatusCompleted
	job.Progress = 100
	job.ResultJSON = `{"outputPath":"/tmp/out.mp4"}`
	finished, err := store.Finish(ctx, job)
	if err != nil {
		t.Fatalf("Finish failed: %v", err)
	}
	if finished {
		t.Fatal("expected finish to skip a job cancelled mid-flight")
	}
	fetched, err := store.GetByID(ctx, job.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if fetched.Status != queue.StatusFailed || fetched.ErrorMessage != queue.CancelledMessage {
		t.Fatalf("expected cancelled job untouched, got %#v", fetched)
	}
	if fetched.ResultJSON != "" {
		t.Fatal("expected no result recorded for cancelled job")
	}

	if _, err := store.Finish(ctx, &queue.Job{ID: job.ID, Status: queue.StatusProcessing}); err == nil {
		t.Fatal("expected error finishing with a non-terminal status")
	}
}

func TestCancelMarksFailedWithMessage(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	job, err := store.Add(ctx, "project-1", queue.TypeStitching, 0)
	if err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	cancelled, err := store.Cancel(ctx, job.ID)
	if err != nil {
		t.Fatalf("Cancel failed: %v", err)
	}
	if cancelled.Status != queue.StatusFailed {
		t.Fatalf("expected failed status, got %s", cancelled.Status)
	}
	if cancelled.ErrorMessage != queue.CancelledMessage {
		t.Fatalf("unexpected cancel message: %q", cancelled.ErrorMessage)
	}
	if cancelled.CompletedAt == nil {
		t.Fatal("expected completion timestamp on cancelled job")
	}

	if _, err := store.Cancel(ctx, job.ID); err == nil {
		t.Fatal("expected error cancelling a terminal job")
	}
}

func TestRetrySpawnsFreshJob(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	job, err := store.Add(ctx, "project-1", queue.TypeSync, 0)
	if err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	if _, err := store.Retry(ctx, job.ID); err == nil {
		t.Fatal("expected retry of a pending job to fail")
	}

	job.Status = queue.StatusFailed
	job.ErrorMessage = "sync blew up"
	if err := store.Update(ctx, job); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	fresh, err := store.Retry(ctx, job.ID)
	if err != nil {
		t.Fatalf("Retry failed: %v", err)
	}
	if fresh.ID == job.ID {
		t.Fatal("expected retry to create a new job")
	}
	if fresh.Status != queue.StatusPending || fresh.ErrorMessage != "" {
		t.Fatalf("unexpected retried job: %#v", fresh)
	}

	original, err := store.GetByID(ctx, job.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if original.Status != queue.StatusFailed || original.ErrorMessage != "sync blew up" {
		t.Fatalf("expected original failure preserved, got %#v", original)
	}
}

func TestStatsAndHealth(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	for range 3 {
		if _, err := store.Add(ctx, "project-1", queue.TypeSync, 0); err != nil {
			t.Fatalf("Add failed: %v", err)
		}
	}
	job, err := store.Add(ctx, "project-2", queue.TypeStitching, 0)
	if err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	job.Status = queue.StatusCompleted
	if err := store.Update(ctx, job); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	stats, err := store.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if stats[queue.StatusPending] != 3 || stats[queue.StatusCompleted] != 1 {
		t.Fatalf("unexpected stats: %#v", stats)
	}

	health, err := store.Health(ctx)
	if err != nil {
		t.Fatalf("Health failed: %v", err)
	}
	if health.Total != 4 || health.Pending != 3 || health.Completed != 1 {
		t.Fatalf("unexpected health summary: %#v", health)
	}

	check, err := store.CheckHealth(ctx)
	if err != nil {
		t.Fatalf("CheckHealth failed: %v", err)
	}
	if !check.DatabaseExists || !check.TableExists || !check.IntegrityCheck {
		t.Fatalf("unexpected database health: %#v", check)
	}
}

func TestClearCompleted(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	done, err := store.Add(ctx, "project-1", queue.TypeSync, 0)
	if err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	done.Status = queue.StatusCompleted
	if err := store.Update(ctx, done); err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	if _, err := store.Add(ctx, "project-1", queue.TypeStitching, 0); err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	removed, err := store.ClearCompleted(ctx)
	if err != nil {
		t.Fatalf("ClearCompleted failed: %v", err)
	}
	if removed != 1 {
		t.Fatalf("expected 1 removed job, got %d", removed)
	}

	jobs, err := store.ProjectJobs(ctx, "project-1")
	if err != nil {
		t.Fatalf("ProjectJobs failed: %v", err)
	}
	if len(jobs) != 1 || jobs[0].Type != queue.TypeStitching {
		t.Fatalf("unexpected remaining jobs: %#v", jobs)
	}
}
