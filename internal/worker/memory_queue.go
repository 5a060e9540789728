package worker

import (
	"context"
	"errors"
	"sync"
	"time"
)

var ErrQueueClosed = errors.New("queue closed")

// MemoryQueue is the in-process Queue used by the CLI and tests.
type MemoryQueue struct {
	mu      sync.Mutex
	jobs    chan JobPayload
	claimed map[string]struct{}
	closed  bool
}

func NewMemoryQueue(size int) *MemoryQueue {
	return &MemoryQueue{
		jobs:    make(chan JobPayload, size),
		claimed: make(map[string]struct{}),
	}
}

func (q *MemoryQueue) Enqueue(ctx context.Context, job JobPayload) (bool, error) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return false, ErrQueueClosed
	}
	if _, ok := q.claimed[job.JobID]; ok {
		q.mu.Unlock()
		return false, nil
	}
	q.claimed[job.JobID] = struct{}{}
	q.mu.Unlock()

	if err := q.push(ctx, job); err != nil {
		q.mu.Lock()
		delete(q.claimed, job.JobID)
		q.mu.Unlock()
		return false, err
	}
	return true, nil
}

func (q *MemoryQueue) Requeue(ctx context.Context, job JobPayload) error {
	return q.push(ctx, job)
}

func (q *MemoryQueue) push(ctx context.Context, job JobPayload) error {
	if job.EnqueuedAt.IsZero() {
		job.EnqueuedAt = time.Now().UTC()
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return ErrQueueClosed
	}
	select {
	case q.jobs <- job:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (q *MemoryQueue) Dequeue(ctx context.Context, wait time.Duration) (*JobPayload, error) {
	timer := time.NewTimer(wait)
	defer timer.Stop()

	select {
	case job, ok := <-q.jobs:
		if !ok {
			return nil, ErrQueueClosed
		}
		return &job, nil
	case <-timer.C:
		return nil, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (q *MemoryQueue) Release(_ context.Context, jobID string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	delete(q.claimed, jobID)
	return nil
}

// Len returns the number of queued jobs.
func (q *MemoryQueue) Len() int {
	return len(q.jobs)
}

func (q *MemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if !q.closed {
		q.closed = true
		close(q.jobs)
	}
	return nil
}
