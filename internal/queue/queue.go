package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/sevigo/merge-warden/internal/core"
)

// staleGrace is added on top of the job timeout before the reaper force-fails
// a processing job, so the executor's own deadline always gets to fire first.
const staleGrace = 30 * time.Second

// ErrQueueStopped is returned by Submit after shutdown has begun.
var ErrQueueStopped = errors.New("job queue is shutting down")

// Config holds the queue's tuning knobs. Zero values fall back to defaults.
type Config struct {
	MaxConcurrentJobs int
	MaxRetries        int
	RetryDelay        time.Duration
	JobTimeout        time.Duration
	PollInterval      time.Duration
	// ErrorPollInterval is the longer backoff used after a tick-level error.
	ErrorPollInterval time.Duration
	CleanupInterval   time.Duration
	Retention         time.Duration
}

func (c Config) withDefaults() Config {
	if c.MaxConcurrentJobs <= 0 {
		c.MaxConcurrentJobs = 3
	}
	if c.MaxRetries < 0 {
		c.MaxRetries = 0
	}
	if c.RetryDelay <= 0 {
		c.RetryDelay = 30 * time.Second
	}
	if c.JobTimeout <= 0 {
		c.JobTimeout = 10 * time.Minute
	}
	if c.PollInterval <= 0 {
		c.PollInterval = 5 * time.Second
	}
	if c.ErrorPollInterval <= 0 {
		c.ErrorPollInterval = 2 * c.PollInterval
	}
	if c.CleanupInterval <= 0 {
		c.CleanupInterval = time.Hour
	}
	if c.Retention <= 0 {
		c.Retention = 24 * time.Hour
	}
	return c
}

// Service is the in-process job queue: a scheduling loop that dispatches
// eligible pending jobs up to a concurrency ceiling, per-attempt executors
// with a hard timeout, a retry policy, and a cleanup sweeper that reclaims
// terminal jobs past the retention window.
type Service struct {
	cfg      Config
	store    *Store
	analyzer core.Analyzer
	notifier *Notifier
	logger   *slog.Logger

	loopCtx    context.Context
	cancelLoop context.CancelFunc
	loopWG     sync.WaitGroup
	execWG     sync.WaitGroup
	stopped    atomic.Bool
	stopOnce   sync.Once
}

var _ core.JobQueue = (*Service)(nil)

// NewService creates the queue and starts its scheduling and cleanup loops.
func NewService(cfg Config, analyzer core.Analyzer, notifier *Notifier, logger *slog.Logger) *Service {
	if analyzer == nil {
		panic("analyzer cannot be nil")
	}
	if logger == nil {
		panic("logger cannot be nil")
	}
	if notifier == nil {
		notifier = NewNotifier(logger)
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Service{
		cfg:        cfg.withDefaults(),
		store:      NewStore(),
		analyzer:   analyzer,
		notifier:   notifier,
		logger:     logger,
		loopCtx:    ctx,
		cancelLoop: cancel,
	}

	s.loopWG.Add(2)
	go s.schedulerLoop()
	go s.cleanupLoop()

	s.logger.Info("job queue started",
		"max_concurrent", s.cfg.MaxConcurrentJobs,
		"max_retries", s.cfg.MaxRetries,
		"job_timeout", s.cfg.JobTimeout,
		"poll_interval", s.cfg.PollInterval,
	)
	return s
}

// Subscribe exposes the lifecycle event stream.
func (s *Service) Subscribe() (<-chan Event, func()) {
	return s.notifier.Subscribe()
}

// Submit enqueues a PR-analysis job, deduplicating on the PR's natural key.
func (s *Service) Submit(_ context.Context, pr *core.PRData) (*core.Job, bool, error) {
	if s.stopped.Load() {
		return nil, false, ErrQueueStopped
	}
	if err := pr.Validate(); err != nil {
		return nil, false, err
	}

	job := &core.Job{
		ID:         uuid.NewString(),
		Type:       core.JobTypePRAnalysis,
		Payload:    pr,
		Status:     core.JobStatusPending,
		CreatedAt:  time.Now(),
		MaxRetries: s.cfg.MaxRetries,
	}

	stored, created := s.store.GetOrPut(job)
	if !created {
		s.logger.Info("analysis already in flight, returning existing job",
			"job_id", stored.ID, "repo", pr.RepoFullName, "pr", pr.PRNumber)
		return stored, false, nil
	}

	s.logger.Info("analysis job queued",
		"job_id", stored.ID, "repo", pr.RepoFullName, "pr", pr.PRNumber)
	s.notifier.Publish(Event{Type: EventJobAdded, Job: stored, Timestamp: time.Now()})
	return stored, true, nil
}

// GetJob returns a copy of the job with the given id.
func (s *Service) GetJob(id string) (*core.Job, error) {
	job, ok := s.store.Get(id)
	if !ok {
		return nil, core.ErrJobNotFound
	}
	return job, nil
}

// CancelJob cancels a pending job. Processing jobs cannot be interrupted and
// terminal jobs cannot change state, so both return ErrJobNotCancellable.
func (s *Service) CancelJob(id string) error {
	var cancelErr error
	job, ok := s.store.Update(id, func(j *core.Job) {
		if j.Status != core.JobStatusPending {
			cancelErr = fmt.Errorf("%w: job is %s", core.ErrJobNotCancellable, j.Status)
			return
		}
		now := time.Now()
		j.Status = core.JobStatusFailed
		j.CompletedAt = &now
		j.Error = "Job cancelled"
	})
	if !ok {
		return core.ErrJobNotFound
	}
	if cancelErr != nil {
		return cancelErr
	}

	s.logger.Info("job cancelled", "job_id", id)
	s.notifier.Publish(Event{Type: EventJobFailed, Job: job, Timestamp: time.Now()})
	return nil
}

// ListJobsForPR returns every job recorded for the PR, newest first.
func (s *Service) ListJobsForPR(key core.JobKey) []*core.Job {
	return s.store.ListByKey(key)
}

// Stats returns the per-status job counts.
func (s *Service) Stats() core.QueueStats {
	return s.store.Stats()
}

// ActiveCount returns the number of jobs currently processing.
func (s *Service) ActiveCount() int {
	return s.store.Stats().Processing
}

// Stop halts dispatching and waits for processing jobs to drain, bounded by
// the context deadline. In-flight analysis calls are not cancelled.
func (s *Service) Stop(ctx context.Context) error {
	s.stopOnce.Do(func() {
		s.stopped.Store(true)
		s.cancelLoop()
		s.loopWG.Wait()
	})

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		active := s.ActiveCount()
		if active == 0 {
			s.logger.Info("job queue stopped, all jobs drained")
			return nil
		}
		select {
		case <-ctx.Done():
			s.logger.Warn("job queue stopped with jobs still processing", "active", active)
			return fmt.Errorf("shutdown deadline reached with %d jobs still processing", active)
		case <-ticker.C:
		}
	}
}

// schedulerLoop re-evaluates the pending pool on a fixed interval. A tick that
// panics is logged, never propagated, and pushes the next tick out to the
// error interval; the loop itself only exits on shutdown.
func (s *Service) schedulerLoop() {
	defer s.loopWG.Done()

	interval := s.cfg.PollInterval
	for {
		select {
		case <-s.loopCtx.Done():
			return
		case <-time.After(interval):
		}

		if err := s.tick(); err != nil {
			s.logger.Error("scheduler tick failed", "error", err)
			interval = s.cfg.ErrorPollInterval
		} else {
			interval = s.cfg.PollInterval
		}
	}
}

// tick reaps stale processing jobs, then fills free executor slots with the
// oldest eligible pending jobs. Dispatch is fire-and-forget: the loop never
// waits on an executor.
func (s *Service) tick() (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("scheduler panic: %v", r)
		}
	}()

	now := time.Now()

	for _, job := range s.store.ReapStale(now, s.cfg.JobTimeout+staleGrace) {
		s.logger.Error("reaped stale processing job",
			"job_id", job.ID, "repo", job.Payload.RepoFullName, "started_at", job.StartedAt)
		s.notifier.Publish(Event{Type: EventJobFailed, Job: job, Timestamp: now})
	}

	free := s.cfg.MaxConcurrentJobs - s.store.Stats().Processing
	if free <= 0 {
		return nil
	}

	for _, job := range s.store.ClaimPending(now, free) {
		s.logger.Info("dispatching job",
			"job_id", job.ID, "repo", job.Payload.RepoFullName, "pr", job.Payload.PRNumber,
			"attempt", job.RetryCount+1)
		s.notifier.Publish(Event{Type: EventJobStarted, Job: job, Timestamp: now})

		s.execWG.Add(1)
		go s.execute(job)
	}
	return nil
}

// execute runs exactly one analysis attempt for a claimed job. The attempt
// races a hard deadline; the deadline is propagated into the analyzer call, so
// a timed-out attempt is cancelled rather than left running unobserved.
func (s *Service) execute(job *core.Job) {
	defer s.execWG.Done()

	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.JobTimeout)
	defer cancel()

	result, err := s.runAnalysis(ctx, job.Payload)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			err = fmt.Errorf("analysis timeout after %s", s.cfg.JobTimeout)
		}
		s.settleFailure(job.ID, err)
		return
	}
	s.settleSuccess(job.ID, result)
}

// runAnalysis shields the queue from analyzer panics, converting them into
// ordinary retryable errors.
func (s *Service) runAnalysis(ctx context.Context, pr *core.PRData) (result *core.ReviewResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("analyzer panic: %v", r)
		}
	}()
	result, err = s.analyzer.Analyze(ctx, pr)
	if err == nil && result == nil {
		err = errors.New("analyzer returned no result")
	}
	return result, err
}

func (s *Service) settleSuccess(id string, result *core.ReviewResult) {
	settled := false
	job, ok := s.store.Update(id, func(j *core.Job) {
		if j.Status != core.JobStatusProcessing {
			// Reaped or cancelled while we were running; discard the outcome.
			return
		}
		now := time.Now()
		j.Status = core.JobStatusCompleted
		j.CompletedAt = &now
		j.Result = result
		j.Error = ""
		settled = true
	})
	if !ok || !settled {
		s.logger.Warn("discarding result for job no longer processing", "job_id", id)
		return
	}

	s.logger.Info("job completed",
		"job_id", id, "repo", job.Payload.RepoFullName, "pr", job.Payload.PRNumber,
		"merge_score", result.MergeScore)
	s.notifier.Publish(Event{Type: EventJobCompleted, Job: job, Timestamp: time.Now()})
}

func (s *Service) settleFailure(id string, attemptErr error) {
	var retried, settled bool
	job, ok := s.store.Update(id, func(j *core.Job) {
		if j.Status != core.JobStatusProcessing {
			return
		}
		settled = true
		now := time.Now()

		if ShouldRetry(attemptErr, j.RetryCount, j.MaxRetries) {
			j.RetryCount++
			j.Error = fmt.Sprintf("Retry %d/%d: %v", j.RetryCount, j.MaxRetries, attemptErr)
			j.Status = core.JobStatusPending
			j.StartedAt = nil
			j.NotBefore = now.Add(s.cfg.RetryDelay)
			retried = true
			return
		}

		j.Status = core.JobStatusFailed
		j.CompletedAt = &now
		j.Error = attemptErr.Error()
	})
	if !ok || !settled {
		s.logger.Warn("discarding failure for job no longer processing", "job_id", id, "error", attemptErr)
		return
	}

	if retried {
		s.logger.Warn("job failed, retry scheduled",
			"job_id", id, "retry", job.RetryCount, "max_retries", job.MaxRetries,
			"not_before", job.NotBefore, "error", attemptErr)
		return
	}

	s.logger.Error("job failed permanently",
		"job_id", id, "repo", job.Payload.RepoFullName, "pr", job.Payload.PRNumber,
		"retries", job.RetryCount, "error", attemptErr)
	s.notifier.Publish(Event{Type: EventJobFailed, Job: job, Timestamp: time.Now()})
}

// cleanupLoop periodically removes terminal jobs older than the retention
// window. Pending and processing jobs are never touched.
func (s *Service) cleanupLoop() {
	defer s.loopWG.Done()

	ticker := time.NewTicker(s.cfg.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.loopCtx.Done():
			return
		case <-ticker.C:
			if removed := s.store.RemoveTerminalBefore(time.Now().Add(-s.cfg.Retention)); removed > 0 {
				s.logger.Info("cleaned up terminal jobs", "removed", removed, "retention", s.cfg.Retention)
			}
		}
	}
}
