package testsupport

import (
	"context"
	"testing"

	"montage/internal/config"
	"montage/internal/project"
	"montage/internal/queue"
)

// MustOpenStore opens a queue.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *queue.Store {
	t.Helper()

	store, err := queue.Open(cfg)
	if err != nil {
		t.Fatalf("queue.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// MustOpenProjectStore opens a project.Store for tests and registers cleanup.
func MustOpenProjectStore(t testing.TB, cfg *config.Config) *project.Store {
	t.Helper()

	store, err := project.Open(cfg)
	if err != nil {
		t.Fatalf("project.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// NewProject creates a project for tests using the provided store.
func NewProject(t testing.TB, store *project.Store, name string) *project.Project {
	t.Helper()

	proj, err := store.Create(context.Background(), name)
	if err != nil {
		t.Fatalf("store.Create: %v", err)
	}
	return proj
}

// NewRecording registers a recording for tests using the provided store.
func NewRecording(t testing.TB, store *project.Store, projectID, filePath string, duration float64) *project.Recording {
	t.Helper()

	rec, err := store.AddRecording(context.Background(), projectID, filePath, duration)
	if err != nil {
		t.Fatalf("store.AddRecording: %v", err)
	}
	return rec
}
