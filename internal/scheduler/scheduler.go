// Package scheduler runs recurring scans on cron schedules. It keeps the
// live view fresh without an operator re-invoking the scan command.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"github.com/edgerunner0x01/violette/internal/logging"
	"github.com/edgerunner0x01/violette/internal/scan"
)

// Runner executes one scan run. Satisfied by *scan.Orchestrator.
type Runner interface {
	Run(ctx context.Context, req scan.Request) (*scan.Summary, error)
}

// Job is one recurring scan entry.
type Job struct {
	ID      uuid.UUID
	Name    string
	Expr    string
	Request scan.Request
	cronID  cron.EntryID
	LastRun time.Time
	NextRun time.Time
	running bool
}

// Scheduler manages recurring scan jobs over a single orchestrator. A job
// that is still running when its schedule fires again is skipped, not
// queued.
type Scheduler struct {
	runner Runner
	cron   *cron.Cron
	logger *logging.Logger

	jobs    map[uuid.UUID]*Job
	mu      sync.RWMutex
	running bool
	ctx     context.Context
	cancel  context.CancelFunc
}

// New creates a scheduler driving the given runner.
func New(runner Runner) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		runner: runner,
		cron:   cron.New(),
		logger: logging.Default().WithComponent("scheduler"),
		jobs:   make(map[uuid.UUID]*Job),
		ctx:    ctx,
		cancel: cancel,
	}
}

// AddRescanJob registers a recurring scan. The expression uses the standard
// five-field cron format.
func (s *Scheduler) AddRescanJob(name, cronExpr string, req scan.Request) (uuid.UUID, error) {
	schedule, err := cron.ParseStandard(cronExpr)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid cron expression %q: %w", cronExpr, err)
	}

	job := &Job{
		ID:      uuid.New(),
		Name:    name,
		Expr:    cronExpr,
		Request: req,
		NextRun: schedule.Next(time.Now()),
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cronID, err := s.cron.AddFunc(cronExpr, func() {
		s.execute(job.ID)
	})
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to register cron job: %w", err)
	}
	job.cronID = cronID
	s.jobs[job.ID] = job

	s.logger.Info("Added rescan job",
		"job", name, "schedule", cronExpr, "range", req.CIDR)
	return job.ID, nil
}

// RemoveJob unregisters a recurring scan.
func (s *Scheduler) RemoveJob(jobID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[jobID]
	if !ok {
		return fmt.Errorf("job %s not found", jobID)
	}
	s.cron.Remove(job.cronID)
	delete(s.jobs, jobID)

	s.logger.Info("Removed rescan job", "job", job.Name)
	return nil
}

// Jobs returns a copy of the registered jobs.
func (s *Scheduler) Jobs() []Job {
	s.mu.RLock()
	defer s.mu.RUnlock()

	jobs := make([]Job, 0, len(s.jobs))
	for _, j := range s.jobs {
		jobs = append(jobs, *j)
	}
	return jobs
}

// Start begins firing registered jobs.
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return fmt.Errorf("scheduler is already running")
	}
	s.cron.Start()
	s.running = true

	s.logger.Info("Scheduler started", "jobs", len(s.jobs))
	return nil
}

// Stop halts the schedule and cancels any in-flight run.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return
	}
	s.cron.Stop()
	s.cancel()
	s.running = false

	s.logger.Info("Scheduler stopped")
}

func (s *Scheduler) execute(jobID uuid.UUID) {
	s.mu.Lock()
	job, ok := s.jobs[jobID]
	if !ok {
		s.mu.Unlock()
		return
	}
	if job.running {
		s.mu.Unlock()
		s.logger.Warn("Previous run still in progress, skipping", "job", job.Name)
		return
	}
	job.running = true
	job.LastRun = time.Now()
	req := job.Request
	name := job.Name
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		if j, ok := s.jobs[jobID]; ok {
			j.running = false
			if schedule, err := cron.ParseStandard(j.Expr); err == nil {
				j.NextRun = schedule.Next(time.Now())
			}
		}
		s.mu.Unlock()
	}()

	s.logger.Info("Executing rescan job", "job", name, "range", req.CIDR)

	summary, err := s.runner.Run(s.ctx, req)
	if err != nil {
		s.logger.Error("Rescan job failed", "job", name, "error", err)
		return
	}

	s.logger.Info("Rescan job completed",
		"job", name, "run_id", summary.RunID,
		"completed", summary.Completed, "skipped", summary.Skipped,
		"failed", summary.Failed, "elapsed", summary.Elapsed)
}
