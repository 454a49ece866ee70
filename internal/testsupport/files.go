package testsupport

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"montage/internal/config"
)

// WriteFile fills the target path with the requested number of bytes using a
// repeating pattern. A size <= 0 writes a single byte.
func WriteFile(t testing.TB, path string, size int64) {
	t.Helper()

	if size <= 0 {
		size = 1
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	buf := make([]byte, size)
	for i := range buf {
		buf[i] = byte('m' + i%7)
	}
	if err := os.WriteFile(path, buf, 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

// WriteClip places a small placeholder clip file in the staging directory and
// returns its path.
func WriteClip(t testing.TB, cfg *config.Config, name string) string {
	t.Helper()

	if filepath.Ext(name) == "" {
		name = fmt.Sprintf("%s.mp4", name)
	}
	path := filepath.Join(cfg.Paths.StagingDir, name)
	WriteFile(t, path, 2048)
	return path
}
