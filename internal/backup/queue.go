// Package backup serializes deletion-backup writes against the remote
// snapshot store. A single worker drains the queue in enqueue order, so at
// most one remote write is ever in flight no matter how many deletes the
// caller issues concurrently.
package backup

import (
	"context"
	"sync"
	"time"

	"github.com/Benioh/reflection-journal/internal/logging"
	"github.com/Benioh/reflection-journal/internal/models"
	"github.com/Benioh/reflection-journal/internal/remote"
)

// Queue is a FIFO, single-consumer queue of deletion-backup jobs. Jobs
// that fail at the remote are logged and dropped, never retried.
type Queue struct {
	remote remote.Store
	log    logging.Logger

	mu     sync.Mutex
	jobs   []*models.DeletionBackup
	closed bool

	signal chan struct{}
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewQueue(rs remote.Store, log logging.Logger) *Queue {
	return &Queue{
		remote: rs,
		log:    log.With("component", "backup_queue"),
		signal: make(chan struct{}, 1),
	}
}

// Enqueue accepts a record for backup. It reports false without queuing
// when the remote is unconfigured or the queue has been stopped; otherwise
// the job is queued and will eventually be written, in enqueue order.
// The record is captured by value at call time so later local mutations
// cannot leak into the backup.
func (q *Queue) Enqueue(ctx context.Context, r *models.Reflection) bool {
	if !q.remote.IsConfigured(ctx) {
		q.log.Debug(ctx, "backup skipped, remote not configured", "id", r.ID)
		return false
	}

	job := &models.DeletionBackup{
		DeletedAt: time.Now().UTC(),
		Record:    *r.Clone(),
	}

	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return false
	}
	q.jobs = append(q.jobs, job)
	q.mu.Unlock()

	q.wake()
	return true
}

// Pending reports the number of jobs waiting for the worker.
func (q *Queue) Pending() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.jobs)
}

func (q *Queue) wake() {
	select {
	case q.signal <- struct{}{}:
	default:
	}
}

// next pops the oldest job. When the queue is empty it reports whether the
// queue has been closed, which tells the worker to exit instead of waiting.
func (q *Queue) next() (*models.DeletionBackup, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.jobs) == 0 {
		return nil, q.closed
	}
	job := q.jobs[0]
	q.jobs = q.jobs[1:]
	return job, false
}

// Start launches the worker. Stop drains whatever is already queued;
// cancelling ctx aborts immediately instead.
func (q *Queue) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)

	q.mu.Lock()
	if q.cancel != nil {
		q.mu.Unlock()
		cancel()
		return
	}
	q.cancel = cancel
	q.mu.Unlock()

	q.wg.Add(1)
	go q.run(ctx)
}

func (q *Queue) run(ctx context.Context) {
	defer q.wg.Done()

	for {
		job, done := q.next()
		if job != nil {
			q.write(ctx, job)
			continue
		}
		if done {
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-q.signal:
		}
	}
}

func (q *Queue) write(ctx context.Context, job *models.DeletionBackup) {
	if err := q.remote.AppendDeletionBackup(ctx, job); err != nil {
		// Best effort: the job is dropped, the record is already gone
		// locally.
		q.log.Error(ctx, "deletion backup failed, dropping job",
			"id", job.Record.ID, "error", err)
		return
	}
	q.log.Info(ctx, "backed up deleted record", "id", job.Record.ID)
}

// Stop closes the queue and waits for the worker to drain the remaining
// jobs. Safe to call when Start was never called.
func (q *Queue) Stop() {
	q.mu.Lock()
	q.closed = true
	cancel := q.cancel
	q.cancel = nil
	q.mu.Unlock()

	if cancel == nil {
		return
	}
	q.wake()
	q.wg.Wait()
	cancel()
}
