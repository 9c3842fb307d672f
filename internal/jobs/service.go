package jobs

import (
	"context"
	"errors"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/oulianov/audioghost-ai/internal/failure"
	"github.com/oulianov/audioghost-ai/internal/store"
	"github.com/oulianov/audioghost-ai/pkg/types"
)

// ErrAlreadySettled is returned by Cancel for tasks in a terminal state.
var ErrAlreadySettled = errors.New("task already finished")

// TaskStore is the persistence the service needs. *store.Store implements it.
type TaskStore interface {
	Sink
	Create(ctx context.Context, r store.Record) error
	Get(ctx context.Context, id string) (store.Record, error)
	Recent(ctx context.Context, limit int) ([]store.Record, error)
	Cancel(ctx context.Context, id string) (bool, error)
	Purge(ctx context.Context, cutoff time.Time) ([]store.Record, error)
	InputInUse(ctx context.Context, path string) (bool, error)
	FailUnfinished(ctx context.Context, msg string) (int64, error)
}

// SlotStatus reports the model slot. *manager.Manager implements it.
type SlotStatus interface {
	Status() types.SlotStatus
	Ready() bool
}

// ServiceConfig wires a Service.
type ServiceConfig struct {
	Store      TaskStore
	Executor   Executor
	Slots      SlotStatus
	QueueDepth int
	JobTimeout time.Duration
	Logger     zerolog.Logger
}

// Service is the submission facade used by the HTTP layer and the CLI:
// records the task, queues it and answers status queries.
type Service struct {
	store  TaskStore
	slots  SlotStatus
	worker *Worker
	log    zerolog.Logger
}

// NewService builds the worker around cfg.Executor. Call Start to begin
// executing jobs.
func NewService(cfg ServiceConfig) *Service {
	s := &Service{store: cfg.Store, slots: cfg.Slots, log: cfg.Logger}
	s.worker = NewWorker(WorkerConfig{
		Executor:   cfg.Executor,
		QueueDepth: cfg.QueueDepth,
		JobTimeout: cfg.JobTimeout,
		Logger:     cfg.Logger,
		OnDone:     s.onDone,
		OnDropped:  s.onDropped,
	})
	return s
}

// Start marks tasks left unfinished by a previous process as failed and
// launches the worker.
func (s *Service) Start(ctx context.Context) error {
	n, err := s.store.FailUnfinished(ctx, "interrupted by server restart")
	if err != nil {
		return err
	}
	if n > 0 {
		s.log.Warn().Int64("tasks", n).Msg("marked unfinished tasks as failed")
	}
	s.worker.Start()
	return nil
}

// Submit records job as pending and queues it.
func (s *Service) Submit(ctx context.Context, job Job) error {
	return s.SubmitBatch(ctx, []Job{job})
}

// SubmitBatch records and queues every job, or none of them: an invalid job
// rejects the whole batch before anything is recorded, and a queue that
// cannot take them all leaves every record failed.
func (s *Service) SubmitBatch(ctx context.Context, batch []Job) error {
	norm := make([]Job, len(batch))
	now := time.Now()
	for i, job := range batch {
		job, err := job.Normalize()
		if err != nil {
			return err
		}
		if job.SubmittedAt.IsZero() {
			job.SubmittedAt = now
		}
		norm[i] = job
	}
	for i, job := range norm {
		rec := store.Record{
			ID:          job.ID,
			Description: job.Description,
			Mode:        string(job.Mode),
			ModelSize:   job.ModelSize,
			InputPath:   job.InputPath,
			Message:     "Task submitted",
		}
		if err := s.store.Create(ctx, rec); err != nil {
			s.failRecorded(ctx, norm[:i], err)
			return err
		}
	}
	if err := s.worker.SubmitAll(norm...); err != nil {
		s.failRecorded(ctx, norm, err)
		return err
	}
	for _, job := range norm {
		s.log.Info().Str("job", job.ID).Str("model_size", job.ModelSize).Str("event", "submitted").Msg("queue")
	}
	return nil
}

func (s *Service) failRecorded(ctx context.Context, recorded []Job, cause error) {
	ctx = context.WithoutCancel(ctx)
	for _, job := range recorded {
		_ = s.store.Fail(ctx, job.ID, store.StatusFailed, cause.Error(), string(failure.KindInternal))
	}
}

// Status returns the API view of a task.
func (s *Service) Status(ctx context.Context, id string) (types.TaskStatus, error) {
	rec, err := s.store.Get(ctx, id)
	if err != nil {
		return types.TaskStatus{}, err
	}
	return rec.TaskStatus(), nil
}

// Result returns the result of a completed task.
func (s *Service) Result(ctx context.Context, id string) (*types.JobResult, error) {
	rec, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if rec.State != store.StatusCompleted || rec.Result == nil {
		return nil, nil
	}
	return rec.Result, nil
}

// Recent lists the newest tasks.
func (s *Service) Recent(ctx context.Context, limit int) ([]types.TaskStatus, error) {
	recs, err := s.store.Recent(ctx, limit)
	if err != nil {
		return nil, err
	}
	out := make([]types.TaskStatus, 0, len(recs))
	for _, r := range recs {
		out = append(out, r.TaskStatus())
	}
	return out, nil
}

// Cancel stops a queued or running task. Running tasks settle
// asynchronously once the controller observes the cancellation.
func (s *Service) Cancel(ctx context.Context, id string) error {
	switch s.worker.Cancel(id) {
	case CancelQueued, CancelRunning:
		return nil
	}
	ok, err := s.store.Cancel(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		return ErrAlreadySettled
	}
	return nil
}

// SlotStatus merges the slot report with the queue state.
func (s *Service) SlotStatus() types.SlotStatus {
	var st types.SlotStatus
	if s.slots != nil {
		st = s.slots.Status()
	}
	st.QueueLen = s.worker.QueueLen()
	st.RunningJob = s.worker.Running()
	return st
}

// Ready reports whether new jobs can be served.
func (s *Service) Ready() bool {
	return s.slots == nil || s.slots.Ready()
}

// Purge deletes settled tasks older than ttl together with their artifacts
// and returns the number of tasks removed. An upload is removed once no
// remaining task reads it.
func (s *Service) Purge(ctx context.Context, ttl time.Duration) (int, error) {
	recs, err := s.store.Purge(ctx, time.Now().Add(-ttl))
	if err != nil {
		return 0, err
	}
	inputs := make(map[string]struct{})
	for _, r := range recs {
		if r.InputPath != "" {
			inputs[r.InputPath] = struct{}{}
		}
		if r.Result == nil {
			continue
		}
		for _, p := range r.Result.Paths() {
			s.removeArtifact(p)
		}
	}
	uploads := 0
	for p := range inputs {
		used, err := s.store.InputInUse(ctx, p)
		if err != nil {
			s.log.Warn().Err(err).Str("path", p).Msg("purge upload")
			continue
		}
		if !used {
			s.removeArtifact(p)
			uploads++
		}
	}
	if len(recs) > 0 {
		s.log.Info().Int("tasks", len(recs)).Int("uploads", uploads).Msg("purged expired tasks")
	}
	return len(recs), nil
}

func (s *Service) removeArtifact(p string) {
	if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
		s.log.Warn().Err(err).Str("path", p).Msg("purge artifact")
	}
}

// Stop drains the worker.
func (s *Service) Stop(ctx context.Context) error {
	return s.worker.Stop(ctx)
}

func (s *Service) onDone(job Job, _ types.JobResult, err error) {
	if err == nil {
		return
	}
	// The controller settles its own failures; this only catches panics.
	var fe *failure.Error
	if !errors.As(err, &fe) {
		_ = s.store.Fail(context.Background(), job.ID, store.StatusFailed, err.Error(), string(failure.KindInternal))
	}
}

func (s *Service) onDropped(job Job) {
	if _, err := s.store.Cancel(context.Background(), job.ID); err != nil {
		s.log.Warn().Err(err).Str("job", job.ID).Msg("cancel dropped job")
	}
}
