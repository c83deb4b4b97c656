package handler

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/google/go-github/v73/github"

	"github.com/sevigo/merge-warden/internal/config"
	"github.com/sevigo/merge-warden/internal/core"
	"github.com/sevigo/merge-warden/internal/workflow"
)

// WebhookHandler processes incoming webhooks from GitHub.
type WebhookHandler struct {
	cfg      *config.Config
	workflow *workflow.Service
	logger   *slog.Logger
}

// NewWebhookHandler creates a new webhook handler with the given configuration and orchestrator.
func NewWebhookHandler(cfg *config.Config, wf *workflow.Service, logger *slog.Logger) *WebhookHandler {
	return &WebhookHandler{
		cfg:      cfg,
		workflow: wf,
		logger:   logger,
	}
}

// Handle processes GitHub webhook requests.
func (h *WebhookHandler) Handle(w http.ResponseWriter, r *http.Request) {
	payload, err := github.ValidatePayload(r, []byte(h.cfg.GitHub.WebhookSecret))
	if err != nil {
		h.logger.Error("invalid webhook payload signature", "error", err)
		http.Error(w, "Invalid signature", http.StatusUnauthorized)
		return
	}

	event, err := github.ParseWebHook(github.WebHookType(r), payload)
	if err != nil {
		h.logger.Error("could not parse webhook", "error", err)
		http.Error(w, "Could not parse webhook", http.StatusBadRequest)
		return
	}

	switch e := event.(type) {
	case *github.PullRequestEvent:
		h.handlePullRequest(w, r, e)
	default:
		h.logger.Debug("ignoring unhandled webhook event type", "type", github.WebHookType(r))
		_, _ = fmt.Fprint(w, "Event type not handled")
	}
}

// handlePullRequest turns a pull request event into an analysis submission.
func (h *WebhookHandler) handlePullRequest(w http.ResponseWriter, r *http.Request, event *github.PullRequestEvent) {
	result, err := h.workflow.ProcessWebhook(r.Context(), event)
	if err != nil {
		switch {
		case errors.Is(err, core.ErrIgnoredEvent):
			h.logger.Debug("ignoring pull request event",
				"reason", err.Error(), "repo", event.GetRepo().GetFullName())
			_, _ = fmt.Fprint(w, "Event ignored")
		case errors.Is(err, core.ErrInvalidPayload):
			h.logger.Warn("rejecting malformed pull request event", "error", err)
			writeError(w, http.StatusBadRequest, err.Error())
		default:
			h.logger.Error("failed to process pull request event",
				"error", err, "repo", event.GetRepo().GetFullName())
			writeError(w, http.StatusInternalServerError, "failed to process event")
		}
		return
	}

	if result.Skipped {
		h.logger.Info("pull request skipped",
			"repo", result.PR.RepoFullName, "pr", result.PR.PRNumber, "reason", result.Reason)
		writeJSON(w, http.StatusOK, result)
		return
	}

	h.logger.Info("analysis job accepted",
		"job_id", result.JobID, "repo", result.PR.RepoFullName, "pr", result.PR.PRNumber,
		"already_queued", result.AlreadyQueued)
	writeJSON(w, http.StatusAccepted, result)
}
