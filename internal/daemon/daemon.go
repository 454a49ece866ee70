package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/gofrs/flock"

	"montage/internal/config"
	"montage/internal/deps"
	"montage/internal/fileutil"
	"montage/internal/logging"
	"montage/internal/media"
	"montage/internal/notifications"
	"montage/internal/project"
	"montage/internal/queue"
)

// uploadExtensions lists the clip container formats accepted for upload.
var uploadExtensions = map[string]struct{}{
	".mp4": {},
	".mov": {},
	".mkv": {},
	".avi": {},
	".webm": {},
}

// Daemon owns the background processing services and enforces
// single-instance execution through a lock file.
type Daemon struct {
	cfg       *config.Config
	logger    *slog.Logger
	jobs      *queue.Store
	projects  *project.Store
	scheduler *queue.Scheduler
	engine    media.Engine
	bus       *notifications.Bus
	forwarder *notifications.NtfyForwarder
	logPath   string

	lockPath string
	lock     *flock.Flock

	running atomic.Bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// Status represents daemon runtime information.
type Status struct {
	Running      bool
	Busy         bool
	Queue        queue.HealthSummary
	DBPath       string
	LockFilePath string
}

// New constructs a daemon with initialized dependencies.
func New(
	cfg *config.Config,
	jobs *queue.Store,
	projects *project.Store,
	scheduler *queue.Scheduler,
	engine media.Engine,
	bus *notifications.Bus,
	logger *slog.Logger,
) (*Daemon, error) {
	if cfg == nil || jobs == nil || projects == nil || scheduler == nil || logger == nil {
		return nil, errors.New("daemon requires config, stores, scheduler, and logger")
	}

	lockPath := filepath.Join(cfg.Paths.LogDir, "montaged.lock")
	return &Daemon{
		cfg:       cfg,
		logger:    logging.NewComponentLogger(logger, "daemon"),
		jobs:      jobs,
		projects:  projects,
		scheduler: scheduler,
		engine:    engine,
		bus:       bus,
		forwarder: notifications.NewNtfyForwarder(cfg, bus, logger),
		logPath:   filepath.Join(cfg.Paths.LogDir, "montage.log"),
		lockPath:  lockPath,
		lock:      flock.New(lockPath),
	}, nil
}

// Start acquires the daemon lock and launches the scheduler plus the push
// notification forwarder.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another montage daemon instance is already running")
	}

	if missing := deps.Missing(deps.Check(deps.ForConfig(d.cfg))); len(missing) > 0 {
		d.logger.Warn("required tools unavailable; media jobs will fail",
			logging.String("missing", strings.Join(missing, ", ")),
		)
	}

	runCtx, cancel := context.WithCancel(ctx)
	if err := d.scheduler.Start(runCtx); err != nil {
		_ = d.lock.Unlock()
		cancel()
		return fmt.Errorf("start scheduler: %w", err)
	}
	d.cancel = cancel

	if d.forwarder != nil {
		d.wg.Add(1)
		go func() {
			defer d.wg.Done()
			d.forwarder.Run(runCtx)
		}()
	}

	d.running.Store(true)
	d.logger.Info("montage daemon started", logging.String("lock", d.lockPath))
	return nil
}

// Stop stops background processing and releases the daemon lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}

	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.scheduler.Stop()
	d.wg.Wait()
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.running.Store(false)
	d.logger.Info("montage daemon stopped")
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	var errs []error
	if d.jobs != nil {
		errs = append(errs, d.jobs.Close())
	}
	if d.projects != nil {
		errs = append(errs, d.projects.Close())
	}
	return errors.Join(errs...)
}

// AddRecording validates and registers an uploaded clip on a project.
func (d *Daemon) AddRecording(ctx context.Context, projectID, sourcePath string) (*project.Recording, error) {
	trimmed := strings.TrimSpace(sourcePath)
	if trimmed == "" {
		return nil, errors.New("source path is required")
	}
	absPath, err := filepath.Abs(trimmed)
	if err != nil {
		return nil, fmt.Errorf("resolve source path: %w", err)
	}
	info, err := os.Stat(absPath)
	if err != nil {
		return nil, fmt.Errorf("stat source file: %w", err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("source path %q is a directory", absPath)
	}
	ext := strings.ToLower(filepath.Ext(info.Name()))
	if _, ok := uploadExtensions[ext]; !ok {
		return nil, fmt.Errorf("unsupported file extension %q", ext)
	}

	duration := 0.0
	if d.engine != nil {
		probed, err := d.engine.Probe(ctx, absPath)
		if err != nil {
			return nil, fmt.Errorf("probe recording: %w", err)
		}
		if !probed.HasVideo {
			return nil, fmt.Errorf("file %q has no video stream", absPath)
		}
		duration = probed.Duration
	}

	staged, err := d.stageUpload(projectID, absPath)
	if err != nil {
		return nil, err
	}

	rec, err := d.projects.AddRecording(ctx, projectID, staged, duration)
	if err != nil {
		_ = os.Remove(staged)
		return nil, fmt.Errorf("register recording: %w", err)
	}
	d.logger.Info("recording added",
		logging.String(logging.FieldProjectID, projectID),
		logging.String(logging.FieldRecordingID, rec.ID),
		logging.String("source", absPath),
		logging.String("staged", staged),
	)
	return rec, nil
}

// stageUpload copies an upload into the project's staging directory with
// integrity verification so later pipeline stages never read the original.
func (d *Daemon) stageUpload(projectID, sourcePath string) (string, error) {
	stagingDir := filepath.Join(d.cfg.Paths.StagingDir, projectID)
	if err := os.MkdirAll(stagingDir, 0o755); err != nil {
		return "", fmt.Errorf("create staging directory: %w", err)
	}

	base := filepath.Base(sourcePath)
	target := filepath.Join(stagingDir, base)
	for i := 1; ; i++ {
		if _, err := os.Stat(target); os.IsNotExist(err) {
			break
		}
		ext := filepath.Ext(base)
		target = filepath.Join(stagingDir, fmt.Sprintf("%s_%d%s", strings.TrimSuffix(base, ext), i, ext))
	}

	if err := fileutil.CopyFileVerified(sourcePath, target); err != nil {
		return "", fmt.Errorf("stage upload: %w", err)
	}
	return target, nil
}

// QueueHealth returns aggregate queue diagnostics.
func (d *Daemon) QueueHealth(ctx context.Context) (queue.HealthSummary, error) {
	return d.jobs.Health(ctx)
}

// DatabaseHealth returns detailed database diagnostics.
func (d *Daemon) DatabaseHealth(ctx context.Context) (queue.DatabaseHealth, error) {
	return d.jobs.CheckHealth(ctx)
}

// LogPath returns the path to the daemon log file.
func (d *Daemon) LogPath() string {
	return d.logPath
}

// Status returns the current daemon status.
func (d *Daemon) Status(ctx context.Context) Status {
	health, err := d.jobs.Health(ctx)
	if err != nil {
		d.logger.Warn("queue health unavailable", logging.Error(err))
	}
	return Status{
		Running:      d.running.Load(),
		Busy:         d.scheduler.Busy(),
		Queue:        health,
		DBPath:       d.cfg.DatabasePath(),
		LockFilePath: d.lockPath,
	}
}
