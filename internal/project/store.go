package project

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"montage/internal/config"
	"montage/internal/services"
)

// Store manages project and recording persistence backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
}

// Open initializes or connects to the project database.
func Open(cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}

	dbPath := cfg.DatabasePath()
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: dbPath}
	if err := store.ensureSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) ensureSchema(ctx context.Context) error {
	const schema = `
CREATE TABLE IF NOT EXISTS projects (
    id          TEXT PRIMARY KEY,
    name        TEXT NOT NULL,
    status      TEXT NOT NULL,
    output_path TEXT,
    created_at  TEXT NOT NULL,
    updated_at  TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS recordings (
    id            TEXT PRIMARY KEY,
    project_id    TEXT NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
    file_path     TEXT NOT NULL,
    duration      REAL NOT NULL,
    sync_offset   REAL,
    quality_score INTEGER,
    uploaded_at   TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_recordings_project ON recordings(project_id, uploaded_at);
`
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("apply project schema: %w", err)
	}
	return nil
}

// Create inserts a new project in the created state.
func (s *Store) Create(ctx context.Context, name string) (*Project, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, services.Wrap(services.ErrValidation, "project", "create", "name must not be empty", nil)
	}
	now := time.Now().UTC()
	timestamp := now.Format(time.RFC3339Nano)
	id := uuid.NewString()

	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO projects (id, name, status, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		id, name, StatusCreated, timestamp, timestamp,
	)
	if err != nil {
		return nil, fmt.Errorf("insert project: %w", err)
	}
	return s.Get(ctx, id)
}

// Get fetches a project by identifier; returns nil when absent.
func (s *Store) Get(ctx context.Context, id string) (*Project, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT id, name, status, output_path, created_at, updated_at FROM projects WHERE id = ?`,
		id,
	)
	proj, err := scanProject(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get project: %w", err)
	}
	return proj, nil
}

// List returns all projects ordered by creation time.
func (s *Store) List(ctx context.Context) ([]*Project, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT id, name, status, output_path, created_at, updated_at FROM projects ORDER BY created_at`,
	)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	defer rows.Close()

	var projects []*Project
	for rows.Next() {
		proj, err := scanProject(rows)
		if err != nil {
			return nil, err
		}
		projects = append(projects, proj)
	}
	return projects, rows.Err()
}

// SetStatus transitions a project to the given status.
func (s *Store) SetStatus(ctx context.Context, id string, status Status) error {
	_, err := s.db.ExecContext(
		ctx,
		`UPDATE projects SET status = ?, updated_at = ? WHERE id = ?`,
		status, time.Now().UTC().Format(time.RFC3339Nano), id,
	)
	if err != nil {
		return fmt.Errorf("set project status: %w", err)
	}
	return nil
}

// SetOutput records the final stitched output path and marks the project completed.
func (s *Store) SetOutput(ctx context.Context, id, outputPath string) error {
	_, err := s.db.ExecContext(
		ctx,
		`UPDATE projects SET status = ?, output_path = ?, updated_at = ? WHERE id = ?`,
		StatusCompleted, outputPath, time.Now().UTC().Format(time.RFC3339Nano), id,
	)
	if err != nil {
		return fmt.Errorf("set project output: %w", err)
	}
	return nil
}

// AddRecording registers an uploaded clip under a project.
func (s *Store) AddRecording(ctx context.Context, projectID, filePath string, duration float64) (*Recording, error) {
	filePath = strings.TrimSpace(filePath)
	if filePath == "" {
		return nil, services.Wrap(services.ErrValidation, "project", "add recording", "file path must not be empty", nil)
	}
	if duration <= 0 {
		return nil, services.Wrap(services.ErrValidation, "project", "add recording", "duration must be positive", nil)
	}
	id := uuid.NewString()
	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO recordings (id, project_id, file_path, duration, uploaded_at) VALUES (?, ?, ?, ?, ?)`,
		id, projectID, filePath, duration, time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return nil, fmt.Errorf("insert recording: %w", err)
	}
	return s.GetRecording(ctx, id)
}

// GetRecording fetches a recording by identifier; returns nil when absent.
func (s *Store) GetRecording(ctx context.Context, id string) (*Recording, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+recordingColumns+` FROM recordings WHERE id = ?`, id)
	rec, err := scanRecording(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get recording: %w", err)
	}
	return rec, nil
}

// FindRecordings returns a project's recordings in upload order. The first
// recording is the synchronization reference.
func (s *Store) FindRecordings(ctx context.Context, projectID string) ([]*Recording, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT `+recordingColumns+` FROM recordings WHERE project_id = ? ORDER BY uploaded_at, id`,
		projectID,
	)
	if err != nil {
		return nil, fmt.Errorf("find recordings: %w", err)
	}
	defer rows.Close()

	var recordings []*Recording
	for rows.Next() {
		rec, err := scanRecording(rows)
		if err != nil {
			return nil, err
		}
		recordings = append(recordings, rec)
	}
	return recordings, rows.Err()
}

// SetSyncOffset persists the computed offset for a recording.
func (s *Store) SetSyncOffset(ctx context.Context, id string, offset float64) error {
	_, err := s.db.ExecContext(ctx, `UPDATE recordings SET sync_offset = ? WHERE id = ?`, offset, id)
	if err != nil {
		return fmt.Errorf("set sync offset: %w", err)
	}
	return nil
}

// SetQualityScore persists the overall quality score for a recording.
func (s *Store) SetQualityScore(ctx context.Context, id string, score int) error {
	_, err := s.db.ExecContext(ctx, `UPDATE recordings SET quality_score = ? WHERE id = ?`, score, id)
	if err != nil {
		return fmt.Errorf("set quality score: %w", err)
	}
	return nil
}

const recordingColumns = "id, project_id, file_path, duration, sync_offset, quality_score, uploaded_at"

func scanProject(scanner interface{ Scan(dest ...any) error }) (*Project, error) {
	var (
		id         string
		name       string
		statusStr  string
		outputPath sql.NullString
		createdRaw string
		updatedRaw string
	)
	if err := scanner.Scan(&id, &name, &statusStr, &outputPath, &createdRaw, &updatedRaw); err != nil {
		return nil, err
	}
	proj := &Project{
		ID:         id,
		Name:       name,
		Status:     Status(statusStr),
		OutputPath: outputPath.String,
	}
	if created, err := parseTimeString(createdRaw); err == nil {
		proj.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw); err == nil {
		proj.UpdatedAt = updated
	}
	return proj, nil
}

func scanRecording(scanner interface{ Scan(dest ...any) error }) (*Recording, error) {
	var (
		id          string
		projectID   string
		filePath    string
		duration    float64
		syncOffset  sql.NullFloat64
		quality     sql.NullInt64
		uploadedRaw string
	)
	if err := scanner.Scan(&id, &projectID, &filePath, &duration, &syncOffset, &quality, &uploadedRaw); err != nil {
		return nil, err
	}
	rec := &Recording{
		ID:        id,
		ProjectID: projectID,
		FilePath:  filePath,
		Duration:  duration,
	}
	if syncOffset.Valid {
		v := syncOffset.Float64
		rec.SyncOffset = &v
	}
	if quality.Valid {
		v := int(quality.Int64)
		rec.QualityScore = &v
	}
	if uploaded, err := parseTimeString(uploadedRaw); err == nil {
		rec.UploadedAt = uploaded
	}
	return rec, nil
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02 15:04:05", value)
}
