package timesync_test

import (
	"context"
	"errors"
	"math"
	"testing"

	"montage/internal/config"
	"montage/internal/logging"
	"montage/internal/services"
	"montage/internal/testsupport"
	"montage/internal/timesync"
)

func syncConfig(t *testing.T) *config.Config {
	t.Helper()
	return testsupport.NewConfig(t, func(cfg *config.Config) {
		cfg.Sync.MaxOffsetSeconds = 4
		cfg.Sync.WindowSeconds = 6
		cfg.Sync.CoarseStepMillis = 100
		cfg.Sync.SampleRate = 4000
	})
}

func TestSynchronizeRequiresTwoRecordings(t *testing.T) {
	cfg := syncConfig(t)
	store := testsupport.MustOpenProjectStore(t, cfg)
	engine := testsupport.NewFakeEngine()
	svc := timesync.NewService(cfg, engine, store, nil, logging.NewNop())

	proj := testsupport.NewProject(t, store, "solo")
	testsupport.NewRecording(t, store, proj.ID, "/clips/only.mp4", 30)

	_, err := svc.Synchronize(context.Background(), proj.ID)
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestSynchronizeFindsKnownDelay(t *testing.T) {
	cfg := syncConfig(t)
	store := testsupport.MustOpenProjectStore(t, cfg)
	engine := testsupport.NewFakeEngine()
	engine.AddClip("/clips/ref.mp4", testsupport.FakeClip{Duration: 30})
	engine.AddClip("/clips/late.mp4", testsupport.FakeClip{Duration: 30, AudioDelay: 2})
	svc := timesync.NewService(cfg, engine, store, nil, logging.NewNop())

	proj := testsupport.NewProject(t, store, "two-cam")
	ref := testsupport.NewRecording(t, store, proj.ID, "/clips/ref.mp4", 30)
	late := testsupport.NewRecording(t, store, proj.ID, "/clips/late.mp4", 30)

	result, err := svc.Synchronize(context.Background(), proj.ID)
	if err != nil {
		t.Fatalf("Synchronize failed: %v", err)
	}

	if len(result.Aligned) != 2 {
		t.Fatalf("expected 2 aligned videos, got %d", len(result.Aligned))
	}
	if result.Aligned[0].RecordingID != ref.ID || result.Aligned[0].Offset != 0 || result.Aligned[0].Confidence != 100 {
		t.Fatalf("unexpected reference alignment: %#v", result.Aligned[0])
	}

	got := result.Aligned[1]
	if got.RecordingID != late.ID {
		t.Fatalf("expected alignment for %s, got %s", late.ID, got.RecordingID)
	}
	if math.Abs(got.Offset-2.0) > 0.15 {
		t.Fatalf("expected offset near 2s, got %.3f", got.Offset)
	}
	if result.Confidence < 30 {
		t.Fatalf("expected confidence above validity threshold, got %.1f", result.Confidence)
	}

	persisted, err := store.GetRecording(context.Background(), late.ID)
	if err != nil {
		t.Fatalf("GetRecording failed: %v", err)
	}
	if !persisted.Synchronized() || math.Abs(persisted.Offset()-2.0) > 0.15 {
		t.Fatalf("expected persisted offset near 2s, got %#v", persisted.SyncOffset)
	}
}

func TestSynchronizeAbortsOnExtractionFailure(t *testing.T) {
	cfg := syncConfig(t)
	store := testsupport.MustOpenProjectStore(t, cfg)
	engine := testsupport.NewFakeEngine()
	engine.AddClip("/clips/ref.mp4", testsupport.FakeClip{Duration: 30})
	svc := timesync.NewService(cfg, engine, store, nil, logging.NewNop())

	proj := testsupport.NewProject(t, store, "broken")
	testsupport.NewRecording(t, store, proj.ID, "/clips/ref.mp4", 30)
	testsupport.NewRecording(t, store, proj.ID, "/clips/missing.mp4", 30)

	_, err := svc.Synchronize(context.Background(), proj.ID)
	if !errors.Is(err, services.ErrTransient) {
		t.Fatalf("expected transient error, got %v", err)
	}
}

func TestValidateResultThresholds(t *testing.T) {
	invalid := timesync.ValidateResult(&timesync.Result{Method: timesync.MethodAudio, Confidence: 20})
	if invalid.IsValid {
		t.Fatal("expected confidence 20 to be invalid")
	}
	if len(invalid.Issues) == 0 {
		t.Fatal("expected an issue for invalid confidence")
	}

	marginal := timesync.ValidateResult(&timesync.Result{Method: timesync.MethodAudio, Confidence: 45})
	if !marginal.IsValid {
		t.Fatal("expected confidence 45 to be valid")
	}
	if len(marginal.Recommendations) == 0 {
		t.Fatal("expected a recommendation for marginal confidence")
	}

	weak := timesync.ValidateResult(&timesync.Result{
		Method:     timesync.MethodHybrid,
		Confidence: 70,
		Aligned: []timesync.AlignedVideo{
			{RecordingID: "rec-ref", Offset: 0, Confidence: 100},
			{RecordingID: "rec-weak", Offset: 1.5, Confidence: 12},
		},
	})
	if !weak.IsValid {
		t.Fatal("expected overall result to stay valid")
	}
	found := false
	for _, issue := range weak.Issues {
		if issue == "recording rec-weak could not be reliably synchronized" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected per-recording issue, got %v", weak.Issues)
	}
}
