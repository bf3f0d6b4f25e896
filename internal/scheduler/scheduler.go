package scheduler

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/cryptouniverse/discovery/pkg/logger"
)

// Scheduler drives the background jobs of the discovery service.
// ⭐ SSOT: 스케줄 관리는 이 스케줄러에서만
type Scheduler struct {
	cron    *cron.Cron
	logger  *logger.Logger
	mu      sync.RWMutex
	entries map[string]*entry

	maxRetries int
	retryDelay time.Duration
	runTimeout time.Duration
}

type entry struct {
	job Job
	id  cron.EntryID
	log runLog
}

// New builds a scheduler with second-granularity cron expressions.
func New(log *logger.Logger) *Scheduler {
	return &Scheduler{
		cron:       cron.New(cron.WithSeconds()),
		logger:     log,
		entries:    make(map[string]*entry),
		maxRetries: 2,
		retryDelay: 30 * time.Second,
		runTimeout: 5 * time.Minute,
	}
}

// AddJob registers a job under its cron schedule. Job names must be unique.
func (s *Scheduler) AddJob(job Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	name := job.Name()
	if _, exists := s.entries[name]; exists {
		return fmt.Errorf("job %s already registered", name)
	}

	e := &entry{job: job}
	id, err := s.cron.AddFunc(job.Schedule(), func() {
		s.runCycle(e)
	})
	if err != nil {
		return fmt.Errorf("failed to schedule job %s: %w", name, err)
	}
	e.id = id
	s.entries[name] = e

	s.logger.WithFields(map[string]interface{}{
		"job":      name,
		"schedule": job.Schedule(),
	}).Info("Job registered")

	return nil
}

// RemoveJob unschedules a job and drops its run log.
func (s *Scheduler) RemoveJob(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, exists := s.entries[name]
	if !exists {
		return fmt.Errorf("job %s not found", name)
	}

	s.cron.Remove(e.id)
	delete(s.entries, name)
	s.logger.WithField("job", name).Info("Job removed")

	return nil
}

// Start begins firing jobs on their schedules.
func (s *Scheduler) Start() {
	s.logger.Info("Starting scheduler")
	s.cron.Start()
}

// Stop halts scheduling and waits for in-flight cycles to finish.
func (s *Scheduler) Stop() {
	s.logger.Info("Stopping scheduler")
	<-s.cron.Stop().Done()
	s.logger.Info("Scheduler stopped")
}

// RunJob triggers one cycle of a job immediately, outside its schedule.
func (s *Scheduler) RunJob(name string) error {
	s.mu.RLock()
	e, exists := s.entries[name]
	s.mu.RUnlock()

	if !exists {
		return fmt.Errorf("job %s not found", name)
	}

	go s.runCycle(e)
	return nil
}

// runCycle executes one job cycle with bounded retries. Each attempt
// gets a fresh timeout so a hung attempt cannot eat the retry window.
func (s *Scheduler) runCycle(e *entry) {
	name := e.job.Name()
	started := time.Now()

	s.logger.WithField("job", name).Info("Job cycle started")

	var lastErr error
	attempts := 0
	for attempts <= s.maxRetries {
		attempts++

		ctx, cancel := context.WithTimeout(context.Background(), s.runTimeout)
		lastErr = e.job.Run(ctx)
		cancel()

		if lastErr == nil {
			break
		}
		s.logger.WithFields(map[string]interface{}{
			"job":     name,
			"attempt": attempts,
			"error":   lastErr.Error(),
		}).Warn("Job cycle failed")

		if attempts <= s.maxRetries {
			time.Sleep(s.retryDelay)
		}
	}

	finished := time.Now()
	record := RunRecord{
		Job:        name,
		StartedAt:  started,
		FinishedAt: finished,
		Duration:   finished.Sub(started),
		Attempts:   attempts,
	}
	if lastErr != nil {
		record.Error = lastErr.Error()
	}

	s.mu.Lock()
	e.log.add(record)
	s.mu.Unlock()

	if lastErr == nil {
		s.logger.WithFields(map[string]interface{}{
			"job":      name,
			"duration": record.Duration,
		}).Info("Job cycle completed")
		return
	}
	s.logger.WithFields(map[string]interface{}{
		"job":      name,
		"duration": record.Duration,
		"error":    lastErr.Error(),
	}).Error("Job cycle gave up after retries")
}

// GetAllJobs lists registered job names in stable order.
func (s *Scheduler) GetAllJobs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, 0, len(s.entries))
	for name := range s.entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// JobStats summarizes a job's recent cycles.
type JobStats struct {
	Job         string     `json:"job"`
	Schedule    string     `json:"schedule"`
	TotalRuns   int        `json:"total_runs"`
	SuccessRate float64    `json:"success_rate"`
	LastRun     *time.Time `json:"last_run,omitempty"`
	LastError   string     `json:"last_error,omitempty"`
}

// GetJobStats reports per-job run statistics.
func (s *Scheduler) GetJobStats() map[string]JobStats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := make(map[string]JobStats, len(s.entries))
	for name, e := range s.entries {
		st := JobStats{
			Job:         name,
			Schedule:    e.job.Schedule(),
			TotalRuns:   len(e.log.records),
			SuccessRate: e.log.successRate(),
		}
		if last, ok := e.log.last(); ok {
			started := last.StartedAt
			st.LastRun = &started
			st.LastError = last.Error
		}
		stats[name] = st
	}
	return stats
}
