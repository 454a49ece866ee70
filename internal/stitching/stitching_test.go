package stitching_test

import (
	"context"
	"errors"
	"math"
	"testing"

	"montage/internal/logging"
	"montage/internal/media"
	"montage/internal/services"
	"montage/internal/stitching"
	"montage/internal/testsupport"
)

// brightnessClassifier maps bright frames to wide shots and dark frames to
// close shots, so tests can steer angles through FakeClip brightness.
type brightnessClassifier struct{}

func (brightnessClassifier) Classify(frame media.Frame) stitching.Angle {
	var sum float64
	for _, px := range frame.Pixels {
		sum += float64(px)
	}
	if len(frame.Pixels) == 0 {
		return stitching.AngleUnknown
	}
	if sum/float64(len(frame.Pixels)) > 150 {
		return stitching.AngleWide
	}
	return stitching.AngleClose
}

func TestStitchSingleRecording(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenProjectStore(t, cfg)
	engine := testsupport.NewFakeEngine()
	engine.AddClip("/clips/solo.mp4", testsupport.FakeClip{Duration: 30, Brightness: 120})
	svc := stitching.NewService(cfg, engine, store, nil, logging.NewNop())

	ctx := context.Background()
	proj := testsupport.NewProject(t, store, "solo")
	rec := testsupport.NewRecording(t, store, proj.ID, "/clips/solo.mp4", 30)
	if err := store.SetQualityScore(ctx, rec.ID, 75); err != nil {
		t.Fatalf("SetQualityScore failed: %v", err)
	}

	result, err := svc.Stitch(ctx, proj.ID, stitching.Options{})
	if err != nil {
		t.Fatalf("Stitch failed: %v", err)
	}
	if len(result.Timeline) != 1 {
		t.Fatalf("expected one segment, got %d", len(result.Timeline))
	}
	seg := result.Timeline[0]
	if seg.Start != 0 || seg.End != 30 {
		t.Fatalf("expected segment [0,30), got [%.1f,%.1f)", seg.Start, seg.End)
	}
	if seg.Transition != media.TransitionCut || seg.Angle != stitching.AngleUnknown {
		t.Fatalf("unexpected segment shape: %#v", seg)
	}
	if result.Duration != 30 {
		t.Fatalf("expected 30s duration, got %.1f", result.Duration)
	}

	updated, err := store.Get(ctx, proj.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if updated.OutputPath != result.OutputPath {
		t.Fatalf("expected output path persisted, got %q", updated.OutputPath)
	}
}

func TestStitchPrefersAngleVariety(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenProjectStore(t, cfg)
	engine := testsupport.NewFakeEngine()
	engine.AddClip("/clips/a.mp4", testsupport.FakeClip{Duration: 30, Brightness: 210})
	engine.AddClip("/clips/b.mp4", testsupport.FakeClip{Duration: 30, Brightness: 200})
	engine.AddClip("/clips/c.mp4", testsupport.FakeClip{Duration: 30, Brightness: 90})
	svc := stitching.NewService(cfg, engine, store, brightnessClassifier{}, logging.NewNop())

	ctx := context.Background()
	proj := testsupport.NewProject(t, store, "variety")
	a := testsupport.NewRecording(t, store, proj.ID, "/clips/a.mp4", 30)
	b := testsupport.NewRecording(t, store, proj.ID, "/clips/b.mp4", 30)
	c := testsupport.NewRecording(t, store, proj.ID, "/clips/c.mp4", 30)
	for _, rec := range []string{b.ID, c.ID} {
		if err := store.SetSyncOffset(ctx, rec, 0); err != nil {
			t.Fatalf("SetSyncOffset failed: %v", err)
		}
	}
	if err := store.SetQualityScore(ctx, a.ID, 80); err != nil {
		t.Fatalf("SetQualityScore failed: %v", err)
	}
	if err := store.SetQualityScore(ctx, b.ID, 78); err != nil {
		t.Fatalf("SetQualityScore failed: %v", err)
	}
	if err := store.SetQualityScore(ctx, c.ID, 76); err != nil {
		t.Fatalf("SetQualityScore failed: %v", err)
	}

	result, err := svc.Stitch(ctx, proj.ID, stitching.Options{})
	if err != nil {
		t.Fatalf("Stitch failed: %v", err)
	}

	fromClose := false
	for _, seg := range result.Timeline {
		if seg.RecordingID == c.ID {
			fromClose = true
		}
	}
	if !fromClose {
		t.Fatalf("expected at least one segment from the close-angle recording, timeline: %#v", result.Timeline)
	}
	if result.Metrics.CameraAngleSwitches == 0 {
		t.Fatal("expected camera angle switches in a mixed-angle timeline")
	}

	// Timeline must be contiguous and gapless over [0, duration).
	cursor := 0.0
	for _, seg := range result.Timeline {
		if math.Abs(seg.Start-cursor) > 1e-9 {
			t.Fatalf("gap before segment %#v at cursor %.2f", seg, cursor)
		}
		if seg.End <= seg.Start {
			t.Fatalf("empty segment %#v", seg)
		}
		cursor = seg.End
	}
	if math.Abs(cursor-result.Duration) > 1e-9 {
		t.Fatalf("timeline ends at %.2f, expected %.2f", cursor, result.Duration)
	}
}

func TestStitchCompactsDisjointCoverage(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenProjectStore(t, cfg)
	engine := testsupport.NewFakeEngine()
	engine.AddClip("/clips/a.mp4", testsupport.FakeClip{Duration: 4})
	engine.AddClip("/clips/b.mp4", testsupport.FakeClip{Duration: 4})
	svc := stitching.NewService(cfg, engine, store, nil, logging.NewNop())

	ctx := context.Background()
	proj := testsupport.NewProject(t, store, "sparse")
	a := testsupport.NewRecording(t, store, proj.ID, "/clips/a.mp4", 4)
	b := testsupport.NewRecording(t, store, proj.ID, "/clips/b.mp4", 4)
	if err := store.SetSyncOffset(ctx, a.ID, 0); err != nil {
		t.Fatalf("SetSyncOffset failed: %v", err)
	}
	// The second recording starts well after the first ends, so nothing
	// covers the synchronized span between them.
	if err := store.SetSyncOffset(ctx, b.ID, 8); err != nil {
		t.Fatalf("SetSyncOffset failed: %v", err)
	}
	if err := store.SetQualityScore(ctx, a.ID, 70); err != nil {
		t.Fatalf("SetQualityScore failed: %v", err)
	}
	if err := store.SetQualityScore(ctx, b.ID, 70); err != nil {
		t.Fatalf("SetQualityScore failed: %v", err)
	}

	result, err := svc.Stitch(ctx, proj.ID, stitching.Options{})
	if err != nil {
		t.Fatalf("Stitch failed: %v", err)
	}

	cursor := 0.0
	for _, seg := range result.Timeline {
		if math.Abs(seg.Start-cursor) > 1e-9 {
			t.Fatalf("gap before segment %#v at cursor %.2f", seg, cursor)
		}
		cursor = seg.End
	}
	if math.Abs(result.Duration-8) > 1e-9 {
		t.Fatalf("expected 8s of media after compaction, got %.2f", result.Duration)
	}
	if len(result.Timeline) != 2 {
		t.Fatalf("expected two segments, got %#v", result.Timeline)
	}
	second := result.Timeline[1]
	if second.RecordingID != b.ID || second.Start != 4 || second.End != 8 {
		t.Fatalf("expected second recording at [4,8), got %#v", second)
	}
	if second.Transition != media.TransitionCrossfade {
		t.Fatalf("expected crossfade into second recording, got %q", second.Transition)
	}

	// The render spec must still read the second clip from its own start:
	// output time minus the adjusted offset lands at source time zero.
	if len(engine.Rendered) != 1 {
		t.Fatalf("expected one render, got %d", len(engine.Rendered))
	}
	spec := engine.Rendered[0].Segments[1]
	if spec.Start-spec.SyncOffset != 0 {
		t.Fatalf("second segment maps to source time %.2f, expected 0", spec.Start-spec.SyncOffset)
	}
}

func TestStitchRenderFailureIsFatal(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenProjectStore(t, cfg)
	engine := testsupport.NewFakeEngine()
	engine.AddClip("/clips/solo.mp4", testsupport.FakeClip{Duration: 30})
	engine.RenderErr = errors.New("encoder crashed")
	svc := stitching.NewService(cfg, engine, store, nil, logging.NewNop())

	ctx := context.Background()
	proj := testsupport.NewProject(t, store, "broken")
	rec := testsupport.NewRecording(t, store, proj.ID, "/clips/solo.mp4", 30)
	if err := store.SetQualityScore(ctx, rec.ID, 70); err != nil {
		t.Fatalf("SetQualityScore failed: %v", err)
	}

	_, err := svc.Stitch(ctx, proj.ID, stitching.Options{})
	if !errors.Is(err, services.ErrFatalRender) {
		t.Fatalf("expected fatal render error, got %v", err)
	}

	updated, err := store.Get(ctx, proj.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if updated.OutputPath != "" {
		t.Fatalf("expected no output persisted after render failure, got %q", updated.OutputPath)
	}
}

func TestCheckReadiness(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenProjectStore(t, cfg)
	engine := testsupport.NewFakeEngine()
	svc := stitching.NewService(cfg, engine, store, nil, logging.NewNop())

	ctx := context.Background()
	proj := testsupport.NewProject(t, store, "gate")

	empty, err := svc.CheckReadiness(ctx, proj.ID)
	if err != nil {
		t.Fatalf("CheckReadiness failed: %v", err)
	}
	if empty.Ready || empty.HasRecordings {
		t.Fatalf("expected empty project not ready, got %#v", empty)
	}

	rec := testsupport.NewRecording(t, store, proj.ID, "/clips/one.mp4", 30)
	unscored, err := svc.CheckReadiness(ctx, proj.ID)
	if err != nil {
		t.Fatalf("CheckReadiness failed: %v", err)
	}
	if unscored.Ready || unscored.HasQualityData {
		t.Fatalf("expected not ready without quality data, got %#v", unscored)
	}
	if !unscored.HasSyncData {
		t.Fatal("single recording should not require sync data")
	}

	if err := store.SetQualityScore(ctx, rec.ID, 64); err != nil {
		t.Fatalf("SetQualityScore failed: %v", err)
	}
	ready, err := svc.CheckReadiness(ctx, proj.ID)
	if err != nil {
		t.Fatalf("CheckReadiness failed: %v", err)
	}
	if !ready.Ready || len(ready.Missing) != 0 {
		t.Fatalf("expected ready project, got %#v", ready)
	}
}
