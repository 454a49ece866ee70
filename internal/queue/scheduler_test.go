package queue_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"montage/internal/logging"
	"montage/internal/notifications"
	"montage/internal/queue"
	"montage/internal/testsupport"
)

func newScheduler(t *testing.T, store *queue.Store, bus *notifications.Bus) *queue.Scheduler {
	t.Helper()
	return queue.NewScheduler(store, bus, logging.NewNop(), 10*time.Millisecond)
}

func waitForStatus(t *testing.T, store *queue.Store, id int64, want queue.Status) *queue.Job {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		job, err := store.GetByID(context.Background(), id)
		if err != nil {
			t.Fatalf("GetByID failed: %v", err)
		}
		if job != nil && job.Status == want {
			return job
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("job %d never reached status %s", id, want)
	return nil
}

func TestSchedulerRunsHandlerAndRecordsOutcome(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	bus := notifications.NewBus()
	sched := newScheduler(t, store, bus)

	sched.RegisterHandler(queue.TypeSync, func(ctx context.Context, job *queue.Job) (queue.Outcome, error) {
		return queue.Outcome{
			Kind: queue.OutcomeSync,
			Sync: &queue.SyncOutcome{
				Method:     "audio",
				Confidence: 92.5,
				Aligned:    []queue.AlignedVideo{{RecordingID: "rec-1", Offset: 0, Confidence: 92.5}},
			},
		}, nil
	})

	ctx := context.Background()
	if err := sched.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer sched.Stop()

	job, err := sched.AddJob(ctx, "project-1", queue.TypeSync, 0)
	if err != nil {
		t.Fatalf("AddJob failed: %v", err)
	}

	done := waitForStatus(t, store, job.ID, queue.StatusCompleted)
	if done.Progress != 100 {
		t.Fatalf("expected progress 100, got %d", done.Progress)
	}
	outcome, ok, err := queue.DecodeOutcome(done.ResultJSON)
	if err != nil {
		t.Fatalf("DecodeOutcome failed: %v", err)
	}
	if !ok {
		t.Fatal("expected a stored result")
	}
	if outcome.Kind != queue.OutcomeSync || outcome.Sync == nil || outcome.Sync.Method != "audio" {
		t.Fatalf("unexpected outcome: %#v", outcome)
	}
}

func TestSchedulerSingleFlight(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	sched := newScheduler(t, store, notifications.NewBus())

	running := make(chan int64, 4)
	release := make(chan struct{})
	sched.RegisterHandler(queue.TypeSync, func(ctx context.Context, job *queue.Job) (queue.Outcome, error) {
		running <- job.ID
		select {
		case <-release:
		case <-ctx.Done():
			return queue.Outcome{}, ctx.Err()
		}
		return queue.Outcome{Kind: queue.OutcomeSync, Sync: &queue.SyncOutcome{Method: "audio"}}, nil
	})

	ctx := context.Background()
	if err := sched.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer sched.Stop()

	first, err := sched.AddJob(ctx, "project-1", queue.TypeSync, 0)
	if err != nil {
		t.Fatalf("AddJob failed: %v", err)
	}
	second, err := sched.AddJob(ctx, "project-2", queue.TypeSync, 0)
	if err != nil {
		t.Fatalf("AddJob failed: %v", err)
	}

	select {
	case id := <-running:
		if id != first.ID {
			t.Fatalf("expected first job to start, got %d", id)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("first job never started")
	}

	// The second job must stay queued while the first is in flight.
	select {
	case id := <-running:
		t.Fatalf("job %d started while another was running", id)
	case <-time.After(100 * time.Millisecond):
	}
	queued, err := store.GetByID(ctx, second.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if queued.Status != queue.StatusPending {
		t.Fatalf("expected second job pending, got %s", queued.Status)
	}

	close(release)
	waitForStatus(t, store, first.ID, queue.StatusCompleted)
	waitForStatus(t, store, second.ID, queue.StatusCompleted)
}

func TestSchedulerRecordsFailure(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	sched := newScheduler(t, store, notifications.NewBus())

	sched.RegisterHandler(queue.TypeQualityAnalysis, func(ctx context.Context, job *queue.Job) (queue.Outcome, error) {
		return queue.Outcome{}, errors.New("frames unreadable")
	})

	ctx := context.Background()
	if err := sched.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer sched.Stop()

	job, err := sched.AddJob(ctx, "project-1", queue.TypeQualityAnalysis, 0)
	if err != nil {
		t.Fatalf("AddJob failed: %v", err)
	}

	failed := waitForStatus(t, store, job.ID, queue.StatusFailed)
	if failed.ErrorMessage != "frames unreadable" {
		t.Fatalf("unexpected error message: %q", failed.ErrorMessage)
	}
	if failed.CompletedAt == nil {
		t.Fatal("expected completion timestamp on failed job")
	}
}

func TestSchedulerDiscardsResultAfterCancel(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	sched := newScheduler(t, store, notifications.NewBus())

	started := make(chan struct{})
	release := make(chan struct{})
	sched.RegisterHandler(queue.TypeStitching, func(ctx context.Context, job *queue.Job) (queue.Outcome, error) {
		close(started)
		<-release
		return queue.Outcome{Kind: queue.OutcomeStitching, Stitching: &queue.StitchingOutcome{OutputPath: "/tmp/out.mp4"}}, nil
	})

	ctx := context.Background()
	if err := sched.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer sched.Stop()

	job, err := sched.AddJob(ctx, "project-1", queue.TypeStitching, 0)
	if err != nil {
		t.Fatalf("AddJob failed: %v", err)
	}

	select {
	case <-started:
	case <-time.After(5 * time.Second):
		t.Fatal("job never started")
	}

	if _, err := sched.CancelJob(ctx, job.ID); err != nil {
		t.Fatalf("CancelJob failed: %v", err)
	}
	close(release)

	// Give the scheduler a moment to process the stale handler result.
	time.Sleep(200 * time.Millisecond)
	final, err := store.GetByID(ctx, job.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if final.Status != queue.StatusFailed || final.ErrorMessage != queue.CancelledMessage {
		t.Fatalf("expected cancelled job untouched, got %#v", final)
	}
	if final.ResultJSON != "" {
		t.Fatal("expected no result recorded for cancelled job")
	}
}

func TestSchedulerPublishesLifecycleEvents(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	bus := notifications.NewBus()
	sched := newScheduler(t, store, bus)

	sub := bus.Subscribe(16)
	defer sub.Cancel()

	sched.RegisterHandler(queue.TypeSync, func(ctx context.Context, job *queue.Job) (queue.Outcome, error) {
		return queue.Outcome{Kind: queue.OutcomeSync, Sync: &queue.SyncOutcome{Method: "audio"}}, nil
	})

	ctx := context.Background()
	if err := sched.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer sched.Stop()

	job, err := sched.AddJob(ctx, "project-1", queue.TypeSync, 0)
	if err != nil {
		t.Fatalf("AddJob failed: %v", err)
	}
	waitForStatus(t, store, job.ID, queue.StatusCompleted)

	want := []notifications.Event{
		notifications.EventJobAdded,
		notifications.EventJobStarted,
		notifications.EventJobCompleted,
	}
	for _, event := range want {
		select {
		case msg := <-sub.C():
			if msg.Event != event {
				t.Fatalf("expected event %s, got %s", event, msg.Event)
			}
			if msg.ProjectID != "project-1" {
				t.Fatalf("unexpected project on event: %q", msg.ProjectID)
			}
		case <-time.After(5 * time.Second):
			t.Fatalf("timed out waiting for event %s", event)
		}
	}
}
