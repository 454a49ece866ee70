package quality_test

import (
	"context"
	"errors"
	"testing"

	"montage/internal/logging"
	"montage/internal/media"
	"montage/internal/quality"
	"montage/internal/services"
	"montage/internal/testsupport"
)

func allOn() quality.Options {
	return quality.Options{Stability: true, Lighting: true, Framing: true, Clarity: true}
}

func TestAssessPersistsScore(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenProjectStore(t, cfg)
	engine := testsupport.NewFakeEngine()
	engine.AddClip("/clips/steady.mp4", testsupport.FakeClip{Duration: 60, Brightness: 150})
	svc := quality.NewService(cfg, engine, store, logging.NewNop())

	proj := testsupport.NewProject(t, store, "assess")
	rec := testsupport.NewRecording(t, store, proj.ID, "/clips/steady.mp4", 60)

	metrics, err := svc.Assess(context.Background(), rec, allOn())
	if err != nil {
		t.Fatalf("Assess failed: %v", err)
	}
	if metrics.RecordingID != rec.ID {
		t.Fatalf("unexpected recording ID: %s", metrics.RecordingID)
	}
	if metrics.Scores.Overall < 0 || metrics.Scores.Overall > 100 {
		t.Fatalf("overall score out of range: %d", metrics.Scores.Overall)
	}
	if len(metrics.PerFrame) == 0 {
		t.Fatal("expected per-frame samples")
	}
	if len(metrics.Degraded) != 0 {
		t.Fatalf("expected no degraded analyzers, got %v", metrics.Degraded)
	}

	persisted, err := store.GetRecording(context.Background(), rec.ID)
	if err != nil {
		t.Fatalf("GetRecording failed: %v", err)
	}
	if !persisted.Scored() || persisted.Score() != metrics.Scores.Overall {
		t.Fatalf("expected persisted score %d, got %#v", metrics.Scores.Overall, persisted.QualityScore)
	}
}

func TestAssessDegradesOnAnalyzerFailure(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenProjectStore(t, cfg)
	engine := testsupport.NewFakeEngine()
	engine.AddClip("/clips/steady.mp4", testsupport.FakeClip{Duration: 60, Brightness: 150})
	svc := quality.NewService(cfg, engine, store, logging.NewNop())
	svc.Clarity = func(frames []media.Frame) (quality.Analysis, error) {
		return quality.Analysis{}, errors.New("clarity model unavailable")
	}

	proj := testsupport.NewProject(t, store, "degraded")
	rec := testsupport.NewRecording(t, store, proj.ID, "/clips/steady.mp4", 60)

	metrics, err := svc.Assess(context.Background(), rec, allOn())
	if err != nil {
		t.Fatalf("Assess failed despite degradable analyzer: %v", err)
	}
	if len(metrics.Degraded) != 1 || metrics.Degraded[0] != "clarity" {
		t.Fatalf("expected clarity degraded, got %v", metrics.Degraded)
	}
	if metrics.Scores.Clarity != 50 {
		t.Fatalf("expected neutral clarity score, got %d", metrics.Scores.Clarity)
	}
}

func TestAssessAbortsWhenExtractionFails(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenProjectStore(t, cfg)
	engine := testsupport.NewFakeEngine()
	svc := quality.NewService(cfg, engine, store, logging.NewNop())

	proj := testsupport.NewProject(t, store, "missing")
	rec := testsupport.NewRecording(t, store, proj.ID, "/clips/gone.mp4", 60)

	_, err := svc.Assess(context.Background(), rec, allOn())
	if !errors.Is(err, services.ErrTransient) {
		t.Fatalf("expected transient error, got %v", err)
	}
}

func TestStabilityPenalizesMotion(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenProjectStore(t, cfg)
	engine := testsupport.NewFakeEngine()
	engine.AddClip("/clips/steady.mp4", testsupport.FakeClip{Duration: 60, Brightness: 150})
	engine.AddClip("/clips/shaky.mp4", testsupport.FakeClip{Duration: 60, Brightness: 150, Motion: 60})
	svc := quality.NewService(cfg, engine, store, logging.NewNop())

	proj := testsupport.NewProject(t, store, "motion")
	steady := testsupport.NewRecording(t, store, proj.ID, "/clips/steady.mp4", 60)
	shaky := testsupport.NewRecording(t, store, proj.ID, "/clips/shaky.mp4", 60)

	steadyMetrics, err := svc.Assess(context.Background(), steady, allOn())
	if err != nil {
		t.Fatalf("Assess steady failed: %v", err)
	}
	shakyMetrics, err := svc.Assess(context.Background(), shaky, allOn())
	if err != nil {
		t.Fatalf("Assess shaky failed: %v", err)
	}

	if shakyMetrics.Scores.Stability >= steadyMetrics.Scores.Stability {
		t.Fatalf("expected shaky stability %d below steady %d",
			shakyMetrics.Scores.Stability, steadyMetrics.Scores.Stability)
	}
}

func TestRankIsStableDescending(t *testing.T) {
	a := &quality.Metrics{RecordingID: "a", Scores: quality.Scores{Overall: 80}}
	b := &quality.Metrics{RecordingID: "b", Scores: quality.Scores{Overall: 92}}
	c := &quality.Metrics{RecordingID: "c", Scores: quality.Scores{Overall: 80}}

	ranked := quality.Rank([]*quality.Metrics{a, b, c})
	if ranked[0].RecordingID != "b" {
		t.Fatalf("expected highest score first, got %s", ranked[0].RecordingID)
	}
	if ranked[1].RecordingID != "a" || ranked[2].RecordingID != "c" {
		t.Fatalf("expected stable order for ties, got %s then %s",
			ranked[1].RecordingID, ranked[2].RecordingID)
	}
}
