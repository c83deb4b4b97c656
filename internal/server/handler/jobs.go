package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/sevigo/merge-warden/internal/core"
	"github.com/sevigo/merge-warden/internal/workflow"
)

// JobsHandler exposes the queue's query surface: job lookup, cancellation,
// stats, manual triggers, and the composite workflow status.
type JobsHandler struct {
	queue    core.JobQueue
	workflow *workflow.Service
	validate *validator.Validate
	logger   *slog.Logger
}

// NewJobsHandler creates a handler bound to the queue and orchestrator.
func NewJobsHandler(queue core.JobQueue, wf *workflow.Service, logger *slog.Logger) *JobsHandler {
	return &JobsHandler{
		queue:    queue,
		workflow: wf,
		validate: validator.New(),
		logger:   logger,
	}
}

// GetJob returns a single job by id.
func (h *JobsHandler) GetJob(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	job, err := h.queue.GetJob(id)
	if err != nil {
		if errors.Is(err, core.ErrJobNotFound) {
			writeError(w, http.StatusNotFound, "job not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, job)
}

// ListJobs returns the job history for one PR, identified by query
// parameters: installation_id, repo (full name), and pr.
func (h *JobsHandler) ListJobs(w http.ResponseWriter, r *http.Request) {
	installationID, err := strconv.ParseInt(r.URL.Query().Get("installation_id"), 10, 64)
	if err != nil || installationID <= 0 {
		writeError(w, http.StatusBadRequest, "installation_id must be a positive integer")
		return
	}
	repo := r.URL.Query().Get("repo")
	if repo == "" {
		writeError(w, http.StatusBadRequest, "repo is required")
		return
	}
	prNumber, err := strconv.Atoi(r.URL.Query().Get("pr"))
	if err != nil || prNumber <= 0 {
		writeError(w, http.StatusBadRequest, "pr must be a positive integer")
		return
	}

	jobs := h.queue.ListJobsForPR(core.JobKey{
		InstallationID: installationID,
		RepoFullName:   repo,
		PRNumber:       prNumber,
	})
	if jobs == nil {
		jobs = []*core.Job{}
	}
	writeJSON(w, http.StatusOK, jobs)
}

// CancelJob cancels a pending job.
func (h *JobsHandler) CancelJob(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	switch err := h.queue.CancelJob(id); {
	case err == nil:
		writeJSON(w, http.StatusOK, map[string]string{"status": "cancelled", "job_id": id})
	case errors.Is(err, core.ErrJobNotFound):
		writeError(w, http.StatusNotFound, "job not found")
	case errors.Is(err, core.ErrJobNotCancellable):
		writeError(w, http.StatusConflict, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

// QueueStats returns the per-status job counts.
func (h *JobsHandler) QueueStats(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.queue.Stats())
}

// WorkflowStatus returns the aggregated orchestrator status.
func (h *JobsHandler) WorkflowStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.workflow.Status())
}

// Health reports composite service health.
func (h *JobsHandler) Health(w http.ResponseWriter, _ *http.Request) {
	health := h.workflow.Health()
	status := http.StatusOK
	if !health.Healthy {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, health)
}

// Trigger submits a manual analysis request.
func (h *JobsHandler) Trigger(w http.ResponseWriter, r *http.Request) {
	var req workflow.TriggerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := h.workflow.ProcessTrigger(r.Context(), &req)
	if err != nil {
		h.logger.Error("manual trigger failed",
			"repo", req.RepoOwner+"/"+req.RepoName, "pr", req.PRNumber, "error", err)
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}

	if result.Skipped {
		writeJSON(w, http.StatusOK, result)
		return
	}
	writeJSON(w, http.StatusAccepted, result)
}
