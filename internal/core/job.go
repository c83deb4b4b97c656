// Package core defines the essential interfaces and data structures that form the
// backbone of the application. These components are designed to be abstract,
// allowing for flexible and decoupled implementations of the application's logic.
package core

import (
	"context"
	"time"
)

// JobType identifies the kind of work a job carries. Only PR analysis exists
// today, but the queue is agnostic to the variant.
type JobType string

// JobTypePRAnalysis is a full AI merge-readiness analysis of a pull request.
const JobTypePRAnalysis JobType = "pr-analysis"

// JobStatus is the lifecycle state of a queued job.
type JobStatus string

const (
	// JobStatusPending means the job is waiting for a free executor slot.
	JobStatusPending JobStatus = "pending"
	// JobStatusProcessing means an executor is running the analysis.
	JobStatusProcessing JobStatus = "processing"
	// JobStatusCompleted means the analysis finished and a result is stored.
	JobStatusCompleted JobStatus = "completed"
	// JobStatusFailed means the job was cancelled, exhausted its retries, or
	// hit a non-retryable error.
	JobStatusFailed JobStatus = "failed"
)

// JobKey is the natural identity of a PR-analysis job. At most one job per key
// may be pending or processing at any time; resubmission while one is in
// flight returns the existing job instead of creating a duplicate.
type JobKey struct {
	InstallationID int64
	RepoFullName   string
	PRNumber       int
}

// Job is one queued unit of PR-analysis work.
//
// The record is owned by the queue: only the scheduler and its executors
// mutate it after submission, and every mutation happens while holding the
// store's lock. Reads from outside the queue receive copies.
type Job struct {
	ID          string     `json:"id"`
	Type        JobType    `json:"type"`
	Payload     *PRData    `json:"payload"`
	Status      JobStatus  `json:"status"`
	CreatedAt   time.Time  `json:"created_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	// NotBefore gates re-dispatch after a retryable failure. A zero value
	// means the job is immediately eligible for the next scheduling pass.
	NotBefore time.Time `json:"not_before,omitzero"`

	Result     *ReviewResult `json:"result,omitempty"`
	Error      string        `json:"error,omitempty"`
	RetryCount int           `json:"retry_count"`
	MaxRetries int           `json:"max_retries"`
}

// Key returns the job's dedup identity.
func (j *Job) Key() JobKey {
	return JobKey{
		InstallationID: j.Payload.InstallationID,
		RepoFullName:   j.Payload.RepoFullName,
		PRNumber:       j.Payload.PRNumber,
	}
}

// Terminal reports whether the job has reached a final state.
func (j *Job) Terminal() bool {
	return j.Status == JobStatusCompleted || j.Status == JobStatusFailed
}

// Eligible reports whether a pending job may be dispatched at time now,
// honoring the retry not-before gate.
func (j *Job) Eligible(now time.Time) bool {
	return j.Status == JobStatusPending && (j.NotBefore.IsZero() || !now.Before(j.NotBefore))
}

// Clone returns a deep copy safe to hand outside the queue's lock.
func (j *Job) Clone() *Job {
	c := *j
	if j.Payload != nil {
		p := *j.Payload
		p.ChangedFiles = append([]ChangedFile(nil), j.Payload.ChangedFiles...)
		p.LinkedIssues = append([]int(nil), j.Payload.LinkedIssues...)
		c.Payload = &p
	}
	if j.StartedAt != nil {
		t := *j.StartedAt
		c.StartedAt = &t
	}
	if j.CompletedAt != nil {
		t := *j.CompletedAt
		c.CompletedAt = &t
	}
	if j.Result != nil {
		r := *j.Result
		r.Suggestions = append([]Suggestion(nil), j.Result.Suggestions...)
		r.ViolatedRules = append([]string(nil), j.Result.ViolatedRules...)
		c.Result = &r
	}
	return &c
}

// QueueStats is a point-in-time count of jobs per lifecycle state.
type QueueStats struct {
	Pending    int `json:"pending"`
	Processing int `json:"processing"`
	Completed  int `json:"completed"`
	Failed     int `json:"failed"`
	Total      int `json:"total"`
}

// JobQueue defines the contract for the in-process queue that accepts
// PR-analysis work and exposes its query surface. It decouples the HTTP
// layer and the workflow orchestrator from the scheduler implementation.
type JobQueue interface {
	// Submit enqueues an analysis job for the given PR data. If a job for the
	// same JobKey is already pending or processing, the existing job is
	// returned and created is false.
	Submit(ctx context.Context, pr *PRData) (job *Job, created bool, err error)

	// GetJob returns a copy of the job, or ErrJobNotFound.
	GetJob(id string) (*Job, error)

	// CancelJob cancels a job that is still pending. Cancelling a processing
	// job returns ErrJobNotCancellable; in-flight work is never interrupted.
	CancelJob(id string) error

	// ListJobsForPR returns all known jobs for the key, newest first.
	ListJobsForPR(key JobKey) []*Job

	Stats() QueueStats
	ActiveCount() int

	// Stop prevents new dispatches and waits for processing jobs to drain,
	// bounded by the context deadline.
	Stop(ctx context.Context) error
}

// Analyzer is the external analysis collaborator. The queue treats the call
// as opaque: it must tolerate any error and honors context cancellation for
// timeout enforcement.
type Analyzer interface {
	Analyze(ctx context.Context, pr *PRData) (*ReviewResult, error)
}
