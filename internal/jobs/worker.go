package jobs

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/oulianov/audioghost-ai/pkg/types"
)

var (
	// ErrQueueFull is returned by Submit when the queue is at capacity.
	ErrQueueFull = errors.New("job queue is full")
	// ErrStopped is returned by Submit after Stop.
	ErrStopped = errors.New("worker stopped")
)

// Executor runs one job to completion.
type Executor interface {
	Execute(ctx context.Context, job Job) (types.JobResult, error)
}

// CancelOutcome says what Cancel found.
type CancelOutcome int

const (
	CancelUnknown CancelOutcome = iota
	// CancelQueued: the job was removed before it started.
	CancelQueued
	// CancelRunning: the running job's context was cancelled.
	CancelRunning
)

// WorkerConfig configures the hosting queue.
type WorkerConfig struct {
	Executor Executor
	// QueueDepth bounds waiting jobs; defaults to 16.
	QueueDepth int
	// JobTimeout bounds each job's wall-clock time; defaults to 1h.
	JobTimeout time.Duration
	// OnDone is called after every executed job.
	OnDone func(job Job, res types.JobResult, err error)
	// OnDropped is called for jobs removed from the queue without running
	// (Cancel or Stop).
	OnDropped func(job Job)
	Logger    zerolog.Logger
}

type entry struct {
	job    Job
	ctx    context.Context
	cancel context.CancelFunc
}

// Worker executes queued jobs one at a time in FIFO order. A single
// goroutine runs jobs; concurrency is fixed at one because the model slot
// can only hold one model.
type Worker struct {
	cfg WorkerConfig
	log zerolog.Logger

	mu      sync.Mutex
	queue   []*entry
	running *entry
	stopped bool

	wake chan struct{}
	done chan struct{}
	once sync.Once
}

// NewWorker applies defaults to cfg.
func NewWorker(cfg WorkerConfig) *Worker {
	if cfg.QueueDepth <= 0 {
		cfg.QueueDepth = 16
	}
	if cfg.JobTimeout <= 0 {
		cfg.JobTimeout = time.Hour
	}
	return &Worker{
		cfg:  cfg,
		log:  cfg.Logger.With().Str("component", "worker").Logger(),
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
	}
}

// Start launches the worker goroutine. It is safe to call more than once.
func (w *Worker) Start() {
	w.once.Do(func() { go w.loop() })
}

// Submit enqueues job. It never blocks.
func (w *Worker) Submit(job Job) error {
	return w.SubmitAll(job)
}

// SubmitAll enqueues jobs in order, or none of them when the queue cannot
// take them all.
func (w *Worker) SubmitAll(jobs ...Job) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.stopped {
		return ErrStopped
	}
	if len(w.queue)+len(jobs) > w.cfg.QueueDepth {
		return ErrQueueFull
	}
	seen := make(map[string]struct{}, len(w.queue)+len(jobs)+1)
	if w.running != nil {
		seen[w.running.job.ID] = struct{}{}
	}
	for _, e := range w.queue {
		seen[e.job.ID] = struct{}{}
	}
	for _, job := range jobs {
		if _, dup := seen[job.ID]; dup {
			return fmt.Errorf("job %s already queued or running", job.ID)
		}
		seen[job.ID] = struct{}{}
	}
	for _, job := range jobs {
		ctx, cancel := context.WithCancel(context.Background())
		w.queue = append(w.queue, &entry{job: job, ctx: ctx, cancel: cancel})
	}
	queueDepth.Set(float64(len(w.queue)))
	w.signal()
	return nil
}

func (w *Worker) signal() {
	select {
	case w.wake <- struct{}{}:
	default:
	}
}

// Cancel cancels the job with id. Queued jobs are removed and reported to
// OnDropped; the running job has its context cancelled and settles through
// the executor.
func (w *Worker) Cancel(id string) CancelOutcome {
	w.mu.Lock()
	if w.running != nil && w.running.job.ID == id {
		w.running.cancel()
		w.mu.Unlock()
		return CancelRunning
	}
	for i, e := range w.queue {
		if e.job.ID != id {
			continue
		}
		w.queue = append(w.queue[:i], w.queue[i+1:]...)
		queueDepth.Set(float64(len(w.queue)))
		w.mu.Unlock()
		e.cancel()
		w.dropped(e.job)
		return CancelQueued
	}
	w.mu.Unlock()
	return CancelUnknown
}

// QueueLen returns the number of waiting jobs.
func (w *Worker) QueueLen() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.queue)
}

// Running returns the id of the executing job, or "".
func (w *Worker) Running() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running == nil {
		return ""
	}
	return w.running.job.ID
}

// Stop rejects new jobs, drops queued ones and cancels the running job,
// then waits for it to settle or for ctx to expire.
func (w *Worker) Stop(ctx context.Context) error {
	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		return nil
	}
	w.stopped = true
	queued := w.queue
	w.queue = nil
	queueDepth.Set(0)
	if w.running != nil {
		w.running.cancel()
	}
	w.mu.Unlock()

	for _, e := range queued {
		e.cancel()
		w.dropped(e.job)
	}
	w.signal()
	w.Start() // the loop must run to observe stopped and close done
	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (w *Worker) dropped(job Job) {
	w.log.Info().Str("job", job.ID).Str("event", "dropped").Msg("queue")
	if w.cfg.OnDropped != nil {
		w.cfg.OnDropped(job)
	}
}

func (w *Worker) loop() {
	defer close(w.done)
	for {
		e, ok := w.next()
		if !ok {
			return
		}
		if e == nil {
			<-w.wake
			continue
		}
		w.execute(e)
	}
}

// next pops the queue head. It returns (nil, true) when the queue is empty
// and (nil, false) once stopped.
func (w *Worker) next() (*entry, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.stopped {
		return nil, false
	}
	if len(w.queue) == 0 {
		return nil, true
	}
	e := w.queue[0]
	w.queue = w.queue[1:]
	queueDepth.Set(float64(len(w.queue)))
	w.running = e
	return e, true
}

func (w *Worker) execute(e *entry) {
	ctx, cancel := context.WithTimeout(e.ctx, w.cfg.JobTimeout)
	defer cancel()
	defer e.cancel()

	w.log.Info().Str("job", e.job.ID).Str("event", "start").Msg("queue")
	res, err := w.runSafe(ctx, e.job)

	w.mu.Lock()
	w.running = nil
	w.mu.Unlock()
	if w.cfg.OnDone != nil {
		w.cfg.OnDone(e.job, res, err)
	}
}

// runSafe keeps a panicking executor from taking the worker down.
func (w *Worker) runSafe(ctx context.Context, job Job) (res types.JobResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			w.log.Error().Str("job", job.ID).Interface("panic", r).Msg("executor panic")
			err = fmt.Errorf("executor panic: %v", r)
		}
	}()
	return w.cfg.Executor.Execute(ctx, job)
}
