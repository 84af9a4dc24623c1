// Package cron runs periodic housekeeping jobs (dedup pruning, knowledge-base
// reloads) on robfig/cron schedules.
package cron

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// Job represents a scheduled task.
type Job struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Schedule string `json:"schedule"` // cron expression, optional seconds field, or @every/@hourly
}

// RunRecord tracks a cron job execution.
type RunRecord struct {
	JobID     string    `json:"jobId"`
	StartedAt time.Time `json:"startedAt"`
	Duration  string    `json:"duration"`
	Success   bool      `json:"success"`
	Error     string    `json:"error,omitempty"`
}

// TaskFunc is called when a job fires.
type TaskFunc func(ctx context.Context) error

const (
	jobTimeout = 5 * time.Minute
	maxRuns    = 1000
)

var parser = cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

type entry struct {
	job     *Job
	task    TaskFunc
	entryID cron.EntryID
}

// Scheduler manages housekeeping jobs.
type Scheduler struct {
	mu     sync.RWMutex
	cron   *cron.Cron
	jobs   map[string]*entry
	runs   []RunRecord
	logger *slog.Logger
}

func NewScheduler(logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		cron:   cron.New(cron.WithParser(parser)),
		jobs:   make(map[string]*entry),
		logger: logger,
	}
}

// Start begins the cron scheduler.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.mu.RLock()
	n := len(s.jobs)
	s.mu.RUnlock()
	s.logger.Info("cron scheduler started", "jobs", n)
}

// Stop stops the scheduler and waits for running jobs to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}

// Add registers a job. The name doubles as its id and must be unique.
func (s *Scheduler) Add(name, schedule string, task TaskFunc) (*Job, error) {
	if _, err := parser.Parse(schedule); err != nil {
		return nil, fmt.Errorf("invalid cron schedule %q: %w", schedule, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, dup := s.jobs[name]; dup {
		return nil, fmt.Errorf("job %s already exists", name)
	}

	e := &entry{
		job:  &Job{ID: name, Name: name, Schedule: schedule},
		task: task,
	}
	id, err := s.cron.AddFunc(schedule, func() { s.executeJob(e) })
	if err != nil {
		return nil, fmt.Errorf("schedule job %s: %w", name, err)
	}
	e.entryID = id
	s.jobs[name] = e
	return e.job, nil
}

// Remove deletes a job.
func (s *Scheduler) Remove(jobID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.jobs[jobID]
	if !ok {
		return fmt.Errorf("job %s not found", jobID)
	}
	s.cron.Remove(e.entryID)
	delete(s.jobs, jobID)
	return nil
}

// List returns all jobs sorted by id.
func (s *Scheduler) List() []*Job {
	s.mu.RLock()
	defer s.mu.RUnlock()
	jobs := make([]*Job, 0, len(s.jobs))
	for _, e := range s.jobs {
		jobs = append(jobs, e.job)
	}
	sort.Slice(jobs, func(i, j int) bool { return jobs[i].ID < jobs[j].ID })
	return jobs
}

// RunNow executes a job immediately and waits for it.
func (s *Scheduler) RunNow(jobID string) error {
	s.mu.RLock()
	e, ok := s.jobs[jobID]
	s.mu.RUnlock()
	if !ok {
		return fmt.Errorf("job %s not found", jobID)
	}
	return s.executeJob(e)
}

// Runs returns the most recent execution records, oldest first.
func (s *Scheduler) Runs() []RunRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]RunRecord(nil), s.runs...)
}

func (s *Scheduler) executeJob(e *entry) error {
	start := time.Now()
	s.logger.Debug("cron job executing", "job", e.job.Name)

	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	err := s.safeRun(ctx, e)
	duration := time.Since(start)

	record := RunRecord{
		JobID:     e.job.ID,
		StartedAt: start,
		Duration:  duration.String(),
		Success:   err == nil,
	}
	if err != nil {
		record.Error = err.Error()
		s.logger.Error("cron job failed", "job", e.job.Name, "error", err, "duration", duration)
	} else {
		s.logger.Debug("cron job completed", "job", e.job.Name, "duration", duration)
	}

	s.mu.Lock()
	s.runs = append(s.runs, record)
	if len(s.runs) > maxRuns {
		s.runs = s.runs[len(s.runs)-maxRuns/2:]
	}
	s.mu.Unlock()
	return err
}

func (s *Scheduler) safeRun(ctx context.Context, e *entry) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job %s panicked: %v", e.job.Name, r)
		}
	}()
	return e.task(ctx)
}
