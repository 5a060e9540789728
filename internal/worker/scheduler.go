package worker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// ScheduledJob is a job template submitted every time its cron spec fires.
type ScheduledJob struct {
	Spec string
	Job  JobPayload
}

// CronScheduler submits job templates to a pool on cron schedules.
// Each firing gets the id <type>:<minute>, so replicas firing the same minute dedupe in the queue.
type CronScheduler struct {
	Name string
	Pool Pool

	cron *cron.Cron
	mu   sync.RWMutex
	jobs []ScheduledJob
	now  func() time.Time
}

func NewCronScheduler(name string, pool Pool) *CronScheduler {
	return &CronScheduler{
		Name: name,
		Pool: pool,
		cron: cron.New(cron.WithLocation(time.UTC)),
		now:  time.Now,
	}
}

// AddJob registers a template. The spec uses the standard five-field cron syntax.
func (s *CronScheduler) AddJob(ctx context.Context, spec string, job JobPayload) error {
	_, err := s.cron.AddFunc(spec, func() {
		s.submit(ctx, job)
	})
	if err != nil {
		return fmt.Errorf("invalid cron spec %q for %s: %w", spec, job.Type, err)
	}

	s.mu.Lock()
	s.jobs = append(s.jobs, ScheduledJob{Spec: spec, Job: job})
	s.mu.Unlock()
	slog.Info("[Scheduler] Job scheduled", "scheduler", s.Name, "type", job.Type, "spec", spec)
	return nil
}

// Jobs returns the registered templates.
func (s *CronScheduler) Jobs() []ScheduledJob {
	s.mu.RLock()
	defer s.mu.RUnlock()
	jobs := make([]ScheduledJob, len(s.jobs))
	copy(jobs, s.jobs)
	return jobs
}

// Run starts the cron loop and blocks until ctx is done.
func (s *CronScheduler) Run(ctx context.Context) {
	slog.Info("[Scheduler] Running.", "scheduler", s.Name)
	s.cron.Start()

	<-ctx.Done()
	slog.Info("[Scheduler] Shutting down.", "scheduler", s.Name)
	<-s.cron.Stop().Done()
}

func (s *CronScheduler) submit(ctx context.Context, template JobPayload) {
	job := template
	job.JobID = fmt.Sprintf("%s:%s", template.Type, s.now().UTC().Truncate(time.Minute).Format(time.RFC3339))
	job.RetryCount = 0
	job.Params = make(map[string]any, len(template.Params))
	for k, v := range template.Params {
		job.Params[k] = v
	}

	submitCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if _, err := s.Pool.SubmitJob(submitCtx, job); err != nil {
		slog.Error("[Scheduler] FAILED to submit job", "scheduler", s.Name, "job_id", job.JobID, "error", err)
	}
}
