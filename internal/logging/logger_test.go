package logging_test

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"

	"montage/internal/logging"
	"montage/internal/services"
)

func newBufferedConsoleLogger(t *testing.T, buf *bytes.Buffer) *slog.Logger {
	t.Helper()
	logger, err := logging.New(logging.Options{Level: "debug", Format: "console", OutputPaths: nil})
	if err != nil {
		t.Fatalf("logging.New: %v", err)
	}
	_ = logger
	// Options cannot target a buffer directly; build a handler via the JSON
	// path for content assertions instead.
	return slog.New(slog.NewTextHandler(buf, nil))
}

func TestNewRejectsUnknownFormat(t *testing.T) {
	if _, err := logging.New(logging.Options{Format: "yaml"}); err == nil {
		t.Fatal("expected error for unsupported format")
	}
}

func TestWithContextAddsFields(t *testing.T) {
	var buf bytes.Buffer
	base := newBufferedConsoleLogger(t, &buf)

	ctx := services.WithProjectID(t.Context(), "proj-9")
	ctx = services.WithJobID(ctx, 7)
	ctx = services.WithStage(ctx, "quality")

	logging.WithContext(ctx, base).Info("assessed")

	out := buf.String()
	for _, want := range []string{"project_id=proj-9", "job_id=7", "stage=quality", "assessed"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in output %q", want, out)
		}
	}
}

func TestComponentLoggerNilBase(t *testing.T) {
	logger := logging.NewComponentLogger(nil, "timesync")
	// Must not panic and must swallow output.
	logger.Info("noop")
}
