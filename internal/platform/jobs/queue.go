// Package jobs implements an in-process job queue with a fixed concurrency
// limit. Ingestion notifications are cheap to accept but expensive to process,
// so the HTTP boundary submits work here and returns immediately; a scheduling
// goroutine drains the queue, never running more than the configured number of
// handlers at once.
package jobs

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Status is the lifecycle state of a job. Jobs move waiting -> active ->
// completed or failed, and never change after reaching a terminal state.
type Status string

const (
	StatusWaiting   Status = "waiting"
	StatusActive    Status = "active"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Terminal reports whether s is a final state.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Payload carries the work description for one job.
type Payload struct {
	InstanceID  string    `json:"instance_id"`
	RequestID   string    `json:"request_id"`
	SubmittedAt time.Time `json:"submitted_at"`
}

// Job is one unit of queued work. Values returned from queue lookups are
// copies; the queue owns the canonical record.
type Job struct {
	ID        int64   `json:"id"`
	Type      string  `json:"type"`
	Payload   Payload `json:"payload"`
	Status    Status  `json:"status"`
	Progress  int     `json:"progress"`
	Result    any     `json:"result,omitempty"`
	Error     string  `json:"error,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Handler processes one job. The progress callback records a coarse
// checkpoint (0-100); the returned value becomes the job result on success.
type Handler func(ctx context.Context, job Job, progress func(int)) (any, error)

// Options configures a Queue.
type Options struct {
	// Concurrency is the maximum number of handlers running at once.
	Concurrency int
	// PollInterval is the pause between scheduling passes.
	PollInterval time.Duration
	// EvictAfter is how long a terminal job stays in the table before being
	// dropped. Terminal outcomes are mirrored to the durable result cache by
	// the handler, so the table only needs to cover the polling window.
	// Zero means the default; negative disables eviction.
	EvictAfter time.Duration
}

const (
	defaultConcurrency  = 3
	defaultPollInterval = 100 * time.Millisecond
	defaultEvictAfter   = 15 * time.Minute
)

// Queue is a bounded-concurrency in-process scheduler. The scheduling loop
// starts lazily on the first Submit and exits once no waiting or active jobs
// remain.
type Queue struct {
	logger zerolog.Logger

	concurrency  int
	pollInterval time.Duration
	evictAfter   time.Duration

	mu       sync.Mutex
	jobs     map[int64]*Job
	order    []int64
	active   map[int64]struct{}
	handlers map[string]Handler
	nextID   int64
	running  bool
}

func NewQueue(logger zerolog.Logger, opts Options) *Queue {
	if opts.Concurrency <= 0 {
		opts.Concurrency = defaultConcurrency
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = defaultPollInterval
	}
	if opts.EvictAfter == 0 {
		opts.EvictAfter = defaultEvictAfter
	}
	return &Queue{
		logger:       logger,
		concurrency:  opts.Concurrency,
		pollInterval: opts.PollInterval,
		evictAfter:   opts.EvictAfter,
		jobs:         make(map[int64]*Job),
		active:       make(map[int64]struct{}),
		handlers:     make(map[string]Handler),
		nextID:       1,
	}
}

// Register installs the handler for a job type. Must be called before any
// Submit for that type.
func (q *Queue) Register(jobType string, h Handler) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.handlers[jobType] = h
}

// Submit enqueues a new job in the waiting state and returns a snapshot of it
// immediately. If the scheduling loop is not running it is started.
func (q *Queue) Submit(jobType string, payload Payload) (Job, error) {
	q.mu.Lock()
	if _, ok := q.handlers[jobType]; !ok {
		q.mu.Unlock()
		return Job{}, fmt.Errorf("no handler registered for job type %q", jobType)
	}

	job := &Job{
		ID:        q.nextID,
		Type:      jobType,
		Payload:   payload,
		Status:    StatusWaiting,
		CreatedAt: time.Now().UTC(),
	}
	q.nextID++
	q.jobs[job.ID] = job
	q.order = append(q.order, job.ID)

	start := !q.running
	if start {
		q.running = true
	}
	snapshot := *job
	q.mu.Unlock()

	q.logger.Debug().Int64("job_id", snapshot.ID).Str("type", jobType).
		Str("request_id", payload.RequestID).Msg("job queued")

	if start {
		go q.schedule()
	}
	return snapshot, nil
}

// schedule repeatedly starts waiting jobs while slots are free, sleeping
// between passes, and exits once the queue is drained.
func (q *Queue) schedule() {
	q.logger.Debug().Msg("queue processor started")
	for {
		q.mu.Lock()
		for len(q.active) < q.concurrency {
			job := q.nextWaitingLocked()
			if job == nil {
				break
			}
			job.Status = StatusActive
			q.active[job.ID] = struct{}{}
			go q.run(job.ID, *job)
		}

		if len(q.active) == 0 && q.nextWaitingLocked() == nil {
			q.running = false
			q.mu.Unlock()
			q.logger.Debug().Msg("queue processor stopped")
			return
		}
		q.mu.Unlock()

		time.Sleep(q.pollInterval)
	}
}

func (q *Queue) nextWaitingLocked() *Job {
	for _, id := range q.order {
		if j := q.jobs[id]; j != nil && j.Status == StatusWaiting {
			return j
		}
	}
	return nil
}

// run executes one job to completion. Handler errors and panics are recorded
// on the job and never escape to the scheduling loop.
func (q *Queue) run(id int64, snapshot Job) {
	q.mu.Lock()
	handler := q.handlers[snapshot.Type]
	q.mu.Unlock()

	progress := func(p int) { q.setProgress(id, p) }

	result, err := q.invoke(handler, snapshot, progress)

	q.mu.Lock()
	job := q.jobs[id]
	if job != nil {
		if err != nil {
			job.Status = StatusFailed
			job.Error = err.Error()
		} else {
			job.Status = StatusCompleted
			job.Result = result
		}
	}
	delete(q.active, id)
	q.mu.Unlock()

	if err != nil {
		q.logger.Error().Err(err).Int64("job_id", id).Str("type", snapshot.Type).Msg("job failed")
	} else {
		q.logger.Info().Int64("job_id", id).Str("type", snapshot.Type).Msg("job completed")
	}

	if q.evictAfter > 0 {
		time.AfterFunc(q.evictAfter, func() { q.evict(id) })
	}
}

// invoke isolates handler panics so a misbehaving handler marks its own job
// failed instead of crashing the process.
func (q *Queue) invoke(h Handler, job Job, progress func(int)) (result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job handler panic: %v", r)
		}
	}()
	return h(context.Background(), job, progress)
}

func (q *Queue) setProgress(id int64, p int) {
	if p < 0 {
		p = 0
	}
	if p > 100 {
		p = 100
	}
	q.mu.Lock()
	if job := q.jobs[id]; job != nil && !job.Status.Terminal() {
		job.Progress = p
	}
	q.mu.Unlock()
}

// evict removes a terminal job from the table. Active or waiting jobs are
// never evicted.
func (q *Queue) evict(id int64) {
	q.mu.Lock()
	defer q.mu.Unlock()
	job := q.jobs[id]
	if job == nil || !job.Status.Terminal() {
		return
	}
	delete(q.jobs, id)
	for i, oid := range q.order {
		if oid == id {
			q.order = append(q.order[:i], q.order[i+1:]...)
			break
		}
	}
}

// Job returns a snapshot of the job with the given id.
func (q *Queue) Job(id int64) (Job, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	job, ok := q.jobs[id]
	if !ok {
		return Job{}, false
	}
	return *job, true
}

// JobByRequestID returns a snapshot of the job whose payload carries the
// given caller-supplied request id. Linear scan; the table is small and
// bounded by eviction.
func (q *Queue) JobByRequestID(requestID string) (Job, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, id := range q.order {
		if job := q.jobs[id]; job != nil && job.Payload.RequestID == requestID {
			return *job, true
		}
	}
	return Job{}, false
}

// ActiveCount returns the number of jobs currently executing.
func (q *Queue) ActiveCount() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.active)
}

// Clear drops every job from the table. Used in tests to simulate loss of the
// in-memory state (e.g. a process restart).
func (q *Queue) Clear() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.jobs = make(map[int64]*Job)
	q.order = nil
}
