// Package workflow implements the orchestrator that turns inbound webhook
// events and manual triggers into validated job submissions, and aggregates
// status across the queue and its collaborators.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	gogithub "github.com/google/go-github/v73/github"

	"github.com/sevigo/merge-warden/internal/core"
	"github.com/sevigo/merge-warden/internal/github"
	"github.com/sevigo/merge-warden/internal/queue"
	"github.com/sevigo/merge-warden/internal/storage"
)

// shutdownTimeout bounds the drain wait when the caller's context carries no
// deadline of its own.
const shutdownTimeout = 30 * time.Second

// Queue is the job-queue surface the orchestrator drives: the submission and
// query interface plus the lifecycle event stream.
type Queue interface {
	core.JobQueue
	Subscribe() (<-chan queue.Event, func())
}

// Result is the synchronous outcome of a submission. Skipped results are not
// errors: they mean the PR was correctly judged ineligible for analysis.
type Result struct {
	Skipped       bool         `json:"skipped"`
	Reason        string       `json:"reason,omitempty"`
	JobID         string       `json:"job_id,omitempty"`
	AlreadyQueued bool         `json:"already_queued,omitempty"`
	PR            *core.PRData `json:"pr,omitempty"`
}

// TriggerRequest is a manual analysis request arriving over the API.
type TriggerRequest struct {
	InstallationID int64  `json:"installation_id" validate:"required,gt=0"`
	RepoOwner      string `json:"repo_owner" validate:"required"`
	RepoName       string `json:"repo_name" validate:"required"`
	PRNumber       int    `json:"pr_number" validate:"required,gt=0"`
}

// Status aggregates queue stats and service availability.
type Status struct {
	Queue      core.QueueStats `json:"queue"`
	ActiveJobs int             `json:"active_jobs"`
	Services   map[string]bool `json:"services"`
}

// Health is the composite health report. Healthy is the logical AND of the
// constituent service flags; Details carries diagnostics on partial failure.
type Health struct {
	Healthy  bool            `json:"healthy"`
	Services map[string]bool `json:"services"`
	Details  map[string]any  `json:"details,omitempty"`
}

// Service is the workflow orchestrator. It owns no job state of its own:
// the queue remains the single source of truth, and the orchestrator's event
// consumer only produces side effects (audit persistence, GitHub comments).
type Service struct {
	queue   Queue
	clients github.ClientFactory
	reviews storage.Store
	logger  *slog.Logger

	unsub      func()
	consumerWG sync.WaitGroup

	checkMu   sync.Mutex
	checkRuns map[string]int64 // job id -> check run id, webhook path only
}

// NewService creates the orchestrator and starts its lifecycle-event consumer.
// clients and reviews may be nil; the corresponding side effects are skipped
// and reported as unavailable in Status and Health.
func NewService(q Queue, clients github.ClientFactory, reviews storage.Store, logger *slog.Logger) *Service {
	s := &Service{
		queue:     q,
		clients:   clients,
		reviews:   reviews,
		logger:    logger,
		checkRuns: make(map[string]int64),
	}

	events, unsub := q.Subscribe()
	s.unsub = unsub
	s.consumerWG.Add(1)
	go s.consumeEvents(events)

	return s
}

// ProcessWebhook turns a pull-request webhook event into a job submission.
// Ineligible PRs yield a Skipped result, not an error.
func (s *Service) ProcessWebhook(ctx context.Context, event *gogithub.PullRequestEvent) (*Result, error) {
	pr, err := core.PRDataFromPullRequestEvent(event)
	if err != nil {
		return nil, err
	}
	return s.submit(ctx, pr)
}

// ProcessTrigger handles a manual analysis request by fetching the PR from
// GitHub and submitting it through the same eligibility gate as webhooks.
func (s *Service) ProcessTrigger(ctx context.Context, req *TriggerRequest) (*Result, error) {
	if s.clients == nil {
		return nil, errors.New("manual triggers are unavailable: GitHub integration is not configured")
	}

	client, err := s.clients.InstallationClient(ctx, req.InstallationID)
	if err != nil {
		return nil, err
	}

	details, err := client.GetPullRequest(ctx, req.RepoOwner, req.RepoName, req.PRNumber)
	if err != nil {
		return nil, fmt.Errorf("PR not found: %s/%s#%d: %w", req.RepoOwner, req.RepoName, req.PRNumber, err)
	}

	pr := &core.PRData{
		InstallationID: req.InstallationID,
		RepoOwner:      req.RepoOwner,
		RepoName:       req.RepoName,
		RepoFullName:   req.RepoOwner + "/" + req.RepoName,
		PRNumber:       req.PRNumber,
		PRURL:          details.GetHTMLURL(),
		Title:          details.GetTitle(),
		Body:           details.GetBody(),
		Author:         details.GetUser().GetLogin(),
		Draft:          details.GetDraft(),
		HeadSHA:        details.GetHead().GetSHA(),
		LinkedIssues:   core.LinkedIssuesFromBody(details.GetBody()),
	}
	return s.submit(ctx, pr)
}

func (s *Service) submit(ctx context.Context, pr *core.PRData) (*Result, error) {
	if err := checkEligibility(pr); err != nil {
		var inel *core.IneligibleError
		if errors.As(err, &inel) {
			s.logger.Info("skipping ineligible PR",
				"repo", pr.RepoFullName, "pr", pr.PRNumber, "reason", inel.Reason)
			return &Result{Skipped: true, Reason: inel.Reason, PR: pr}, nil
		}
		return nil, err
	}

	job, created, err := s.queue.Submit(ctx, pr)
	if err != nil {
		return nil, err
	}
	return &Result{JobID: job.ID, AlreadyQueued: !created, PR: pr}, nil
}

// checkEligibility applies the business rules a PR must satisfy before an
// analysis job is created.
func checkEligibility(pr *core.PRData) error {
	if pr.Draft {
		return &core.IneligibleError{Reason: "draft pull requests are not analyzed"}
	}
	if len(pr.LinkedIssues) == 0 {
		return &core.IneligibleError{Reason: "no linked issue referenced in the description"}
	}
	return nil
}

// Status aggregates queue stats, active-processing count, and service flags.
func (s *Service) Status() *Status {
	return &Status{
		Queue:      s.queue.Stats(),
		ActiveJobs: s.queue.ActiveCount(),
		Services:   s.serviceFlags(),
	}
}

// Health reports composite health with diagnostics on partial failure.
func (s *Service) Health() *Health {
	flags := s.serviceFlags()
	healthy := true
	for _, up := range flags {
		healthy = healthy && up
	}

	h := &Health{Healthy: healthy, Services: flags}
	if !healthy {
		h.Details = map[string]any{
			"queue_stats": s.queue.Stats(),
			"active_jobs": s.queue.ActiveCount(),
		}
	}
	return h
}

func (s *Service) serviceFlags() map[string]bool {
	return map[string]bool{
		"queue":   s.queue != nil,
		"github":  s.clients != nil,
		"storage": s.reviews != nil,
	}
}

// Shutdown stops the queue from dispatching new work and waits for in-flight
// jobs to drain, then tears down the event consumer.
func (s *Service) Shutdown(ctx context.Context) error {
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, shutdownTimeout)
		defer cancel()
	}

	err := s.queue.Stop(ctx)

	s.unsub()
	s.consumerWG.Wait()
	return err
}

// consumeEvents applies side effects to terminal lifecycle events: audit
// persistence and a GitHub result comment. Events are best-effort; failures
// are logged and never affect queue state.
func (s *Service) consumeEvents(events <-chan queue.Event) {
	defer s.consumerWG.Done()

	for event := range events {
		switch event.Type {
		case queue.EventJobStarted:
			s.handleStarted(event.Job)
		case queue.EventJobCompleted:
			s.handleCompleted(event.Job)
		case queue.EventJobFailed:
			s.handleFailed(event.Job)
		case queue.EventJobAdded:
			// Logged by the queue already.
		}
	}
}

// handleStarted opens an in-progress check run on the PR head. Retried
// attempts reuse the check run created for the first one.
func (s *Service) handleStarted(job *core.Job) {
	if s.clients == nil || job.Payload.HeadSHA == "" {
		return
	}
	s.checkMu.Lock()
	_, exists := s.checkRuns[job.ID]
	s.checkMu.Unlock()
	if exists {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := s.clients.InstallationClient(ctx, job.Payload.InstallationID)
	if err != nil {
		s.logger.Error("cannot open check run", "job_id", job.ID, "error", err)
		return
	}
	checkRunID, err := github.NewStatusReporter(client).InProgress(ctx, job.Payload)
	if err != nil {
		s.logger.Error("failed to open check run",
			"job_id", job.ID, "repo", job.Payload.RepoFullName, "error", err)
		return
	}

	s.checkMu.Lock()
	s.checkRuns[job.ID] = checkRunID
	s.checkMu.Unlock()
}

// takeCheckRun returns the check run opened for the job, if any, and forgets
// it so terminal handling resolves it exactly once.
func (s *Service) takeCheckRun(jobID string) (int64, bool) {
	s.checkMu.Lock()
	defer s.checkMu.Unlock()
	id, ok := s.checkRuns[jobID]
	if ok {
		delete(s.checkRuns, jobID)
	}
	return id, ok
}

func (s *Service) handleCompleted(job *core.Job) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	s.persistOutcome(ctx, job)

	if s.clients == nil || job.Result == nil {
		return
	}
	client, err := s.clients.InstallationClient(ctx, job.Payload.InstallationID)
	if err != nil {
		s.logger.Error("cannot report completed analysis", "job_id", job.ID, "error", err)
		return
	}
	reporter := github.NewStatusReporter(client)
	if checkRunID, ok := s.takeCheckRun(job.ID); ok {
		if err := reporter.Completed(ctx, job.Payload, checkRunID, job.Result); err != nil {
			s.logger.Error("failed to finish check run", "job_id", job.ID, "error", err)
		}
	}
	if err := reporter.PostResultComment(ctx, job.Payload, job.Result); err != nil {
		s.logger.Error("failed to post result comment",
			"job_id", job.ID, "repo", job.Payload.RepoFullName, "error", err)
	}
}

func (s *Service) handleFailed(job *core.Job) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	s.persistOutcome(ctx, job)

	checkRunID, ok := s.takeCheckRun(job.ID)
	if !ok || s.clients == nil {
		return
	}
	client, err := s.clients.InstallationClient(ctx, job.Payload.InstallationID)
	if err != nil {
		s.logger.Error("cannot report failed analysis", "job_id", job.ID, "error", err)
		return
	}
	if err := github.NewStatusReporter(client).Failed(ctx, job.Payload, checkRunID, job.Error); err != nil {
		s.logger.Error("failed to finish check run", "job_id", job.ID, "error", err)
	}
}

func (s *Service) persistOutcome(ctx context.Context, job *core.Job) {
	if s.reviews == nil {
		return
	}
	if err := s.reviews.SaveReview(ctx, storage.RecordFromJob(job)); err != nil {
		s.logger.Error("failed to persist review outcome", "job_id", job.ID, "error", err)
	}
}
