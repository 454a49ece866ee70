package main

import (
	"log/slog"
	"strings"
	"sync"
	"time"

	"montage/internal/config"
	"montage/internal/logging"
	"montage/internal/media"
	"montage/internal/notifications"
	"montage/internal/project"
	"montage/internal/quality"
	"montage/internal/queue"
	"montage/internal/stitching"
	"montage/internal/timesync"
	"montage/internal/workflow"
)

type commandContext struct {
	configFlag *string

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func newCommandContext(configFlag *string) *commandContext {
	return &commandContext{configFlag: configFlag}
}

func (c *commandContext) configPath() string {
	if c.configFlag == nil {
		return ""
	}
	return strings.TrimSpace(*c.configFlag)
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		cfg, _, _, err := config.Load(c.configPath())
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

// withQueueStore opens the job store for commands that only inspect or mutate
// the queue, closing it when the callback returns.
func (c *commandContext) withQueueStore(fn func(store *queue.Store) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	store, err := queue.Open(cfg)
	if err != nil {
		return err
	}
	defer store.Close()
	return fn(store)
}

// runtime bundles the fully wired processing stack for commands that execute
// work in-process.
type runtime struct {
	cfg          *config.Config
	logger       *slog.Logger
	jobs         *queue.Store
	projects     *project.Store
	scheduler    *queue.Scheduler
	engine       media.Engine
	bus          *notifications.Bus
	orchestrator *workflow.Orchestrator
	stitching    *stitching.Service
}

func (c *commandContext) buildRuntime() (*runtime, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	logger, err := logging.NewFromConfig(cfg)
	if err != nil {
		return nil, err
	}

	jobs, err := queue.Open(cfg)
	if err != nil {
		return nil, err
	}
	projects, err := project.Open(cfg)
	if err != nil {
		jobs.Close()
		return nil, err
	}

	engine := media.NewFFmpegEngine(cfg)
	bus := notifications.NewBus()
	tick := time.Duration(cfg.Workflow.SchedulerTickSeconds) * time.Second
	scheduler := queue.NewScheduler(jobs, bus, logger, tick)
	stitchingSvc := stitching.NewService(cfg, engine, projects, nil, logger)
	orchestrator := workflow.NewOrchestrator(
		cfg,
		engine,
		projects,
		scheduler,
		timesync.NewService(cfg, engine, projects, nil, logger),
		quality.NewService(cfg, engine, projects, logger),
		stitchingSvc,
		bus,
		logger,
	)

	return &runtime{
		cfg:          cfg,
		logger:       logger,
		jobs:         jobs,
		projects:     projects,
		scheduler:    scheduler,
		engine:       engine,
		bus:          bus,
		orchestrator: orchestrator,
		stitching:    stitchingSvc,
	}, nil
}

func (r *runtime) close() {
	if r.jobs != nil {
		_ = r.jobs.Close()
	}
	if r.projects != nil {
		_ = r.projects.Close()
	}
}
