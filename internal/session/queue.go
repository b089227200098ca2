// Package session serializes command processing per part.
//
// The CAD engine holds mutable, order-dependent state (the feature tree),
// so commands for one part run strictly one at a time, end to end.
// Different parts never contend: each gets its own worker, not a global
// lock.
package session

import (
	"context"
	"errors"
	"log/slog"
	"sync"
)

// ErrClosed is returned when a job is submitted after Close.
var ErrClosed = errors.New("session queue closed")

// queueDepth bounds how many commands may wait per part.
const queueDepth = 16

// Job is one end-to-end command (interpret, execute, record).
type Job func(ctx context.Context) error

type task struct {
	ctx  context.Context
	job  Job
	done chan error
}

type worker struct {
	tasks chan task
}

// Queue runs jobs serialized per part id and concurrently across parts.
type Queue struct {
	mu      sync.Mutex
	workers map[string]*worker
	closed  bool

	// pending tracks jobs accepted but not yet finished so Close can
	// drain them before tearing the workers down.
	pending sync.WaitGroup
	workrun sync.WaitGroup
	logger  *slog.Logger
}

// NewQueue creates an empty queue. Workers are spawned lazily per part.
func NewQueue(logger *slog.Logger) *Queue {
	if logger == nil {
		logger = slog.Default()
	}
	return &Queue{
		workers: make(map[string]*worker),
		logger:  logger,
	}
}

// Do submits a job for a part and waits for it to finish. Jobs for the
// same part run in submission order; jobs for different parts run
// concurrently. The job's context is the caller's: cancellation applies to
// the collaborator calls inside the job, but a job that has started always
// runs to completion.
func (q *Queue) Do(ctx context.Context, partID string, job Job) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return ErrClosed
	}
	w, ok := q.workers[partID]
	if !ok {
		w = &worker{tasks: make(chan task, queueDepth)}
		q.workers[partID] = w
		q.workrun.Add(1)
		go q.run(partID, w)
	}
	q.pending.Add(1)
	q.mu.Unlock()

	t := task{ctx: ctx, job: job, done: make(chan error, 1)}
	select {
	case w.tasks <- t:
	case <-ctx.Done():
		q.pending.Done()
		return ctx.Err()
	}
	return <-t.done
}

func (q *Queue) run(partID string, w *worker) {
	defer q.workrun.Done()
	for t := range w.tasks {
		err := t.job(t.ctx)
		if err != nil {
			q.logger.Debug("command failed", "part", partID, "error", err)
		}
		t.done <- err
		q.pending.Done()
	}
}

// Close stops accepting new jobs, waits for every accepted job to finish,
// then tears the workers down. Shutdown is only honored between commands,
// never mid-operation.
func (q *Queue) Close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	q.mu.Unlock()

	q.pending.Wait()

	q.mu.Lock()
	for _, w := range q.workers {
		close(w.tasks)
	}
	q.mu.Unlock()
	q.workrun.Wait()
}
