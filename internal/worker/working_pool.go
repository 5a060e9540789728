package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"monitoring-service/internal/metrics"

	"github.com/google/uuid"
)

const dequeueWait = 2 * time.Second

// WorkingPool pulls jobs from a Queue and runs the handler registered for their type.
type WorkingPool struct {
	NumWorkers int
	name       string
	jobTimeout time.Duration
	queue      Queue
	persistor  WorkerPersistor
	retryDelay time.Duration

	mu       sync.RWMutex
	handlers map[string]JobHandler
}

var _ Pool = (*WorkingPool)(nil)

// NewWorkingPool creates a pool. persistor may be nil when execution history is not kept.
func NewWorkingPool(numWorkers int, name string, jobTimeout time.Duration, queue Queue, persistor WorkerPersistor) *WorkingPool {
	if numWorkers < 1 {
		numWorkers = 1
	}
	return &WorkingPool{
		NumWorkers: numWorkers,
		name:       name,
		jobTimeout: jobTimeout,
		queue:      queue,
		persistor:  persistor,
		retryDelay: time.Second,
		handlers:   make(map[string]JobHandler),
	}
}

func (p *WorkingPool) GetName() string {
	return p.name
}

func (p *WorkingPool) RegisterJob(jobType string, handler JobHandler) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.handlers[jobType] = handler
}

func (p *WorkingPool) handler(jobType string) (JobHandler, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	h, ok := p.handlers[jobType]
	return h, ok
}

// SubmitJob enqueues the job. It returns false when a job with the same id is already queued or running.
func (p *WorkingPool) SubmitJob(ctx context.Context, job JobPayload) (bool, error) {
	if job.JobID == "" {
		job.JobID = uuid.NewString()
	}
	if _, ok := p.handler(job.Type); !ok {
		return false, fmt.Errorf("job handler not registered: %s", job.Type)
	}

	accepted, err := p.queue.Enqueue(ctx, job)
	if err != nil {
		return false, err
	}
	if !accepted {
		metrics.JobsDeduplicated.WithLabelValues(job.Type).Inc()
		slog.Info("[WorkingPool] Job already queued, skipping", "pool", p.name, "job_id", job.JobID)
	}
	return accepted, nil
}

func (p *WorkingPool) Start(ctx context.Context, managerWg *sync.WaitGroup) {
	defer managerWg.Done()

	var workerWg sync.WaitGroup
	for i := range p.NumWorkers {
		workerWg.Add(1)
		go p.worker(ctx, &workerWg, i+1)
	}

	<-ctx.Done()
	slog.Info("[WorkingPool] Shutdown signaled. Waiting for workers.", "pool", p.name)
	workerWg.Wait()
	slog.Info("[WorkingPool] All workers stopped.", "pool", p.name)
}

func (p *WorkingPool) worker(ctx context.Context, wg *sync.WaitGroup, id int) {
	defer wg.Done()
	slog.Info(fmt.Sprintf("[WorkingPool-Worker %d] Started and waiting for jobs.", id), "pool", p.name)

	for {
		if ctx.Err() != nil {
			slog.Info(fmt.Sprintf("[WorkingPool-Worker %d] Context canceled. Exiting.", id))
			return
		}

		job, err := p.queue.Dequeue(ctx, dequeueWait)
		if err != nil {
			if errors.Is(err, ErrQueueClosed) || ctx.Err() != nil {
				slog.Info(fmt.Sprintf("[WorkingPool-Worker %d] Queue closed. Exiting.", id))
				return
			}
			slog.Error(fmt.Sprintf("[WorkingPool-Worker %d] Dequeue failed", id), "error", err)
			time.Sleep(dequeueWait)
			continue
		}
		if job == nil {
			continue
		}

		p.process(ctx, *job, id)
	}
}

// process runs one attempt and decides between completion, retry and failure.
func (p *WorkingPool) process(ctx context.Context, job JobPayload, workerID int) {
	execution := &WorkerJobExecution{
		ID:         uuid.New(),
		JobID:      job.JobID,
		JobType:    job.Type,
		Status:     JobStatusRunning,
		RetryCount: job.RetryCount,
		MaxRetries: job.MaxRetries,
		CreatedAt:  time.Now().UTC(),
	}
	started := time.Now().UTC()
	execution.StartedAt = &started
	p.persist(ctx, execution, true)

	result, err := p.safeExecution(ctx, job, workerID)

	completed := time.Now().UTC()
	execution.CompletedAt = &completed
	execution.ResultSummary = result
	if execution.ResultSummary == nil {
		execution.ResultSummary = map[string]any{}
	}
	execution.ResultSummary["duration_ms"] = completed.Sub(started).Milliseconds()
	execution.ResultSummary["worker"] = workerID

	switch {
	case err == nil:
		execution.Status = JobStatusCompleted
	case !errors.Is(err, ErrPermanent) && job.RetryCount < job.MaxRetries && ctx.Err() == nil:
		execution.Status = JobStatusRetrying
	default:
		execution.Status = JobStatusFailed
	}
	if err != nil {
		msg := err.Error()
		execution.ErrorMessage = &msg
	}
	metrics.JobsProcessed.WithLabelValues(job.Type, string(execution.Status)).Inc()
	p.persist(ctx, execution, false)

	if execution.Status == JobStatusRetrying {
		job.RetryCount++
		slog.Warn(fmt.Sprintf("[WorkingPool-Worker %d] Job failed, retrying", workerID),
			"job_id", job.JobID,
			"attempt", job.RetryCount,
			"max_retries", job.MaxRetries,
			"error", err)
		time.Sleep(p.retryDelay * time.Duration(1<<(job.RetryCount-1)))
		if rqErr := p.queue.Requeue(context.WithoutCancel(ctx), job); rqErr != nil {
			slog.Error("[WorkingPool] Failed to requeue job", "job_id", job.JobID, "error", rqErr)
			p.release(ctx, job.JobID)
		}
		return
	}
	p.release(ctx, job.JobID)
}

func (p *WorkingPool) safeExecution(ctx context.Context, job JobPayload, workerID int) (result map[string]any, err error) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error(fmt.Sprintf("[WorkingPool-Worker %d] FATAL: Panic recovered in job", workerID),
				"job_id", job.JobID, "panic", r)
			err = fmt.Errorf("%w: panic: %v", ErrPermanent, r)
		}
	}()

	handler, ok := p.handler(job.Type)
	if !ok {
		return nil, fmt.Errorf("%w: no handler for job type %s", ErrPermanent, job.Type)
	}

	jobCtx := ctx
	if p.jobTimeout > 0 {
		var cancel context.CancelFunc
		jobCtx, cancel = context.WithTimeout(ctx, p.jobTimeout)
		defer cancel()
	}

	slog.Info(fmt.Sprintf("[WorkingPool-Worker %d] Picked up a job.", workerID), "job_id", job.JobID, "type", job.Type)
	result, err = handler(jobCtx, job.Params)
	if err != nil {
		slog.Error(fmt.Sprintf("[WorkingPool-Worker %d] Error executing job.", workerID), "job_id", job.JobID, "error", err)
		return result, err
	}
	slog.Info(fmt.Sprintf("[WorkingPool-Worker %d] Finished job.", workerID), "job_id", job.JobID)
	return result, nil
}

func (p *WorkingPool) persist(ctx context.Context, execution *WorkerJobExecution, create bool) {
	if p.persistor == nil {
		return
	}
	ctx = context.WithoutCancel(ctx)
	var err error
	if create {
		err = p.persistor.CreateJobExecution(ctx, execution)
	} else {
		err = p.persistor.UpdateJobExecution(ctx, execution)
	}
	if err != nil {
		slog.Error("[WorkingPool] Failed to persist job execution", "job_id", execution.JobID, "error", err)
	}
}

func (p *WorkingPool) release(ctx context.Context, jobID string) {
	if err := p.queue.Release(context.WithoutCancel(ctx), jobID); err != nil {
		slog.Error("[WorkingPool] Failed to release job id", "job_id", jobID, "error", err)
	}
}
