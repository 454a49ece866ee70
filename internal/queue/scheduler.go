package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"montage/internal/logging"
	"montage/internal/notifications"
	"montage/internal/services"
)

// Handler executes one job and produces its typed outcome.
type Handler func(ctx context.Context, job *Job) (Outcome, error)

// Scheduler polls the store on a fixed tick and executes pending jobs one
// at a time, system-wide. Constructed explicitly at application start and
// passed by handle; there is no ambient shared instance.
type Scheduler struct {
	store  *Store
	bus    *notifications.Bus
	logger *slog.Logger
	tick   time.Duration

	mu       sync.RWMutex
	handlers map[Type]Handler
	running  bool
	busy     bool
	cancel   context.CancelFunc
	wg       sync.WaitGroup
}

// NewScheduler constructs a scheduler over the given store and event bus.
func NewScheduler(store *Store, bus *notifications.Bus, logger *slog.Logger, tick time.Duration) *Scheduler {
	if tick <= 0 {
		tick = time.Second
	}
	return &Scheduler{
		store:    store,
		bus:      bus,
		logger:   logging.NewComponentLogger(logger, "scheduler"),
		tick:     tick,
		handlers: make(map[Type]Handler),
	}
}

// RegisterHandler associates a job type with its handler. Registering after
// Start is allowed but jobs of an unregistered type fail when picked up.
func (s *Scheduler) RegisterHandler(jobType Type, handler Handler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers[jobType] = handler
}

// Start begins background processing.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return errors.New("scheduler already running")
	}
	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.running = true
	s.wg.Add(1)
	s.mu.Unlock()

	go s.run(runCtx)
	return nil
}

// Stop terminates background processing and waits for the in-flight job, if
// any, to return.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	cancel := s.cancel
	s.running = false
	s.cancel = nil
	s.mu.Unlock()

	cancel()
	s.wg.Wait()
}

// Busy reports whether a job is currently executing.
func (s *Scheduler) Busy() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.busy
}

func (s *Scheduler) run(ctx context.Context) {
	defer s.wg.Done()
	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		job, err := s.store.NextPending(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			s.logger.Error("failed to fetch next pending job",
				logging.Error(err),
				logging.String(logging.FieldEventType, "queue_fetch_failed"),
			)
			continue
		}
		if job == nil {
			continue
		}

		s.setBusy(true)
		s.execute(ctx, job)
		s.setBusy(false)
	}
}

func (s *Scheduler) setBusy(busy bool) {
	s.mu.Lock()
	s.busy = busy
	s.mu.Unlock()
}

func (s *Scheduler) execute(ctx context.Context, job *Job) {
	jobCtx := services.WithProjectID(ctx, job.ProjectID)
	jobCtx = services.WithJobID(jobCtx, job.ID)
	jobCtx = services.WithRequestID(jobCtx, uuid.NewString())
	logger := logging.WithContext(jobCtx, s.logger)

	s.mu.RLock()
	handler := s.handlers[job.Type]
	s.mu.RUnlock()

	now := time.Now().UTC()
	job.Status = StatusProcessing
	job.Progress = 0
	job.ErrorMessage = ""
	job.StartedAt = &now
	if err := s.store.Update(jobCtx, job); err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		logger.Error("failed to transition job to processing", logging.Error(err))
		return
	}
	s.publish(job, notifications.EventJobStarted, nil)

	start := time.Now()
	logger.Info("job started",
		logging.String(logging.FieldEventType, "job_start"),
		logging.String("job_type", string(job.Type)),
	)

	if handler == nil {
		s.finishFailed(jobCtx, logger, job, fmt.Errorf("no handler registered for job type %q", job.Type))
		return
	}

	outcome, execErr := handler(jobCtx, job)
	if errors.Is(execErr, context.Canceled) {
		logger.Debug("job interrupted by shutdown")
		return
	}

	if execErr != nil {
		s.finishFailed(jobCtx, logger, job, execErr)
		return
	}

	encoded, err := outcome.Encode()
	if err != nil {
		s.finishFailed(jobCtx, logger, job, fmt.Errorf("encode outcome: %w", err))
		return
	}

	completed := time.Now().UTC()
	job.Status = StatusCompleted
	job.Progress = 100
	job.ResultJSON = encoded
	job.CompletedAt = &completed
	finished, err := s.store.Finish(jobCtx, job)
	if err != nil {
		logger.Error("failed to persist job completion", logging.Error(err))
		return
	}
	// A user cancel may have landed while the handler ran. The job is
	// already terminal; discard whatever the handler produced.
	if !finished {
		logger.Info("discarding result for job finalized during execution")
		return
	}
	logger.Info("job completed",
		logging.String(logging.FieldEventType, "job_complete"),
		logging.Duration("job_duration", time.Since(start)),
	)
	s.publish(job, notifications.EventJobCompleted, notifications.Payload{"result": encoded})
}

func (s *Scheduler) finishFailed(ctx context.Context, logger *slog.Logger, job *Job, cause error) {
	message := services.Message(cause)
	completed := time.Now().UTC()
	job.Status = StatusFailed
	job.ErrorMessage = message
	job.CompletedAt = &completed
	finished, err := s.store.Finish(ctx, job)
	if err != nil {
		logger.Error("failed to persist job failure", logging.Error(err))
	}
	if err == nil && !finished {
		logger.Info("discarding failure for job finalized during execution")
		return
	}
	logger.Error("job failed",
		logging.String(logging.FieldEventType, "job_failure"),
		logging.String("error_message", message),
		logging.Error(cause),
	)
	s.publish(job, notifications.EventJobFailed, notifications.Payload{"error": message})
}

// AddJob creates a pending job and announces it on the bus.
func (s *Scheduler) AddJob(ctx context.Context, projectID string, jobType Type, priority int) (*Job, error) {
	job, err := s.store.Add(ctx, projectID, jobType, priority)
	if err != nil {
		return nil, err
	}
	s.publish(job, notifications.EventJobAdded, nil)
	return job, nil
}

// UpdateProgress records handler progress and announces it. Updates for
// terminal jobs are no-ops.
func (s *Scheduler) UpdateProgress(ctx context.Context, id int64, percent int) error {
	if err := s.store.UpdateProgress(ctx, id, percent); err != nil {
		return err
	}
	job, err := s.store.GetByID(ctx, id)
	if err != nil || job == nil {
		return err
	}
	if job.Status == StatusProcessing {
		s.publish(job, notifications.EventJobProgress, notifications.Payload{"progress": job.Progress})
	}
	return nil
}

// CancelJob cancels a pending or processing job.
func (s *Scheduler) CancelJob(ctx context.Context, id int64) (*Job, error) {
	job, err := s.store.Cancel(ctx, id)
	if err != nil {
		return nil, err
	}
	s.publish(job, notifications.EventJobCancelled, notifications.Payload{"error": job.ErrorMessage})
	return job, nil
}

// CancelProjectJobs cancels every pending or processing job for a project.
func (s *Scheduler) CancelProjectJobs(ctx context.Context, projectID string) ([]*Job, error) {
	jobs, err := s.store.CancelProjectJobs(ctx, projectID)
	if err != nil {
		return nil, err
	}
	for _, job := range jobs {
		s.publish(job, notifications.EventJobCancelled, notifications.Payload{"error": job.ErrorMessage})
	}
	return jobs, nil
}

// RetryJob spawns a new pending job from a failed one.
func (s *Scheduler) RetryJob(ctx context.Context, id int64) (*Job, error) {
	job, err := s.store.Retry(ctx, id)
	if err != nil {
		return nil, err
	}
	s.publish(job, notifications.EventJobRetried, notifications.Payload{"retriedFrom": id})
	return job, nil
}

// GetJob fetches a job by identifier.
func (s *Scheduler) GetJob(ctx context.Context, id int64) (*Job, error) {
	return s.store.GetByID(ctx, id)
}

// ProjectJobs returns a project's jobs ordered by creation time.
func (s *Scheduler) ProjectJobs(ctx context.Context, projectID string) ([]*Job, error) {
	return s.store.ProjectJobs(ctx, projectID)
}

// Stats returns job counts by status.
func (s *Scheduler) Stats(ctx context.Context) (map[Status]int, error) {
	return s.store.Stats(ctx)
}

func (s *Scheduler) publish(job *Job, event notifications.Event, payload notifications.Payload) {
	if s.bus == nil {
		return
	}
	if payload == nil {
		payload = notifications.Payload{}
	}
	payload["jobId"] = job.ID
	payload["type"] = string(job.Type)
	payload["status"] = string(job.Status)
	s.bus.Publish(job.ProjectID, event, payload)
}
