// Package analyzer implements the PR-analysis collaborator: it gathers pull
// request context from GitHub, renders a review prompt, calls the configured
// LLM, and parses the response into a ReviewResult.
package analyzer

import (
	"bytes"
	"context"
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"text/template"

	gogithub "github.com/google/go-github/v73/github"
	"github.com/sevigo/goframe/llms"
	"golang.org/x/sync/errgroup"

	"github.com/sevigo/merge-warden/internal/core"
	"github.com/sevigo/merge-warden/internal/github"
)

//go:embed prompts/*.prompt
var promptFiles embed.FS

// maxPatchChars bounds how much diff text a single file contributes to the
// prompt, keeping the context window in check on large changes.
const maxPatchChars = 6000

// LLMAnalyzer implements core.Analyzer on top of a goframe LLM model plus the
// GitHub API for context enrichment.
type LLMAnalyzer struct {
	model   llms.Model
	clients github.ClientFactory
	rules   *core.RepoRules
	tmpl    *template.Template
	logger  *slog.Logger
}

var _ core.Analyzer = (*LLMAnalyzer)(nil)

// New creates an analyzer using the embedded review prompt.
func New(model llms.Model, clients github.ClientFactory, rules *core.RepoRules, logger *slog.Logger) (*LLMAnalyzer, error) {
	content, err := promptFiles.ReadFile("prompts/merge_review_default.prompt")
	if err != nil {
		return nil, fmt.Errorf("failed to read embedded review prompt: %w", err)
	}
	tmpl, err := template.New("merge_review").Parse(string(content))
	if err != nil {
		return nil, fmt.Errorf("failed to parse review prompt template: %w", err)
	}
	if rules == nil {
		rules = core.DefaultRepoRules()
	}
	return &LLMAnalyzer{
		model:   model,
		clients: clients,
		rules:   rules,
		tmpl:    tmpl,
		logger:  logger,
	}, nil
}

// Analyze runs one full analysis of the pull request. The call honors context
// cancellation at every stage, so the queue's per-attempt timeout actually
// stops the work.
func (a *LLMAnalyzer) Analyze(ctx context.Context, pr *core.PRData) (*core.ReviewResult, error) {
	enriched, err := a.enrich(ctx, pr)
	if err != nil {
		return nil, err
	}

	prompt, err := a.renderPrompt(enriched)
	if err != nil {
		return nil, fmt.Errorf("failed to render review prompt: %w", err)
	}

	a.logger.Debug("calling LLM for merge analysis",
		"repo", pr.RepoFullName, "pr", pr.PRNumber, "prompt_chars", len(prompt))

	response, err := llms.GenerateFromSinglePrompt(ctx, a.model, prompt)
	if err != nil {
		return nil, fmt.Errorf("LLM generation failed: %w", err)
	}

	result, err := parseReviewResponse(response, a.rules)
	if err != nil {
		return nil, fmt.Errorf("failed to parse LLM response: %w", err)
	}
	return result, nil
}

// enrich fetches the PR head and changed files from GitHub when the payload
// does not already carry them. Missing repositories and PRs are reported with
// messages the retry classifier treats as permanent.
func (a *LLMAnalyzer) enrich(ctx context.Context, pr *core.PRData) (*core.PRData, error) {
	if len(pr.ChangedFiles) > 0 {
		return pr, nil
	}

	client, err := a.clients.InstallationClient(ctx, pr.InstallationID)
	if err != nil {
		return nil, err
	}

	var (
		details *gogithub.PullRequest
		files   []core.ChangedFile
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		details, err = client.GetPullRequest(gctx, pr.RepoOwner, pr.RepoName, pr.PRNumber)
		if err != nil {
			if isNotFound(err) {
				return fmt.Errorf("PR not found: %s#%d", pr.RepoFullName, pr.PRNumber)
			}
			return fmt.Errorf("failed to fetch PR details: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		files, err = client.GetChangedFiles(gctx, pr.RepoOwner, pr.RepoName, pr.PRNumber)
		if err != nil {
			if isNotFound(err) {
				return fmt.Errorf("repository not found: %s", pr.RepoFullName)
			}
			return fmt.Errorf("failed to fetch changed files: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	enriched := *pr
	enriched.HeadSHA = details.GetHead().GetSHA()
	enriched.ChangedFiles = files
	return &enriched, nil
}

func isNotFound(err error) bool {
	var ghErr *gogithub.ErrorResponse
	return errors.As(err, &ghErr) && ghErr.Response != nil && ghErr.Response.StatusCode == http.StatusNotFound
}

type promptData struct {
	PR    *core.PRData
	Rules []core.CustomRule
	Files []promptFile
}

type promptFile struct {
	Filename string
	Status   string
	Patch    string
}

func (a *LLMAnalyzer) renderPrompt(pr *core.PRData) (string, error) {
	data := promptData{PR: pr, Rules: a.rules.Rules}
	for _, f := range pr.ChangedFiles {
		patch := f.Patch
		if len(patch) > maxPatchChars {
			patch = patch[:maxPatchChars] + "\n... (patch truncated)"
		}
		data.Files = append(data.Files, promptFile{
			Filename: f.Filename,
			Status:   f.Status,
			Patch:    patch,
		})
	}

	var buf bytes.Buffer
	if err := a.tmpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return strings.TrimSpace(buf.String()), nil
}
