// Package github provides functionality for interacting with the GitHub API.
package github

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/go-github/v73/github"

	"github.com/sevigo/merge-warden/internal/core"
)

const checkRunName = "Merge-Warden Analysis"

// StatusReporter publishes analysis lifecycle information back to GitHub as
// check runs and PR comments. All of this is observational: the queue never
// depends on a report having been delivered.
type StatusReporter interface {
	InProgress(ctx context.Context, pr *core.PRData) (int64, error)
	Completed(ctx context.Context, pr *core.PRData, checkRunID int64, result *core.ReviewResult) error
	Failed(ctx context.Context, pr *core.PRData, checkRunID int64, reason string) error
	PostResultComment(ctx context.Context, pr *core.PRData, result *core.ReviewResult) error
}

type statusReporter struct {
	client Client
}

// NewStatusReporter creates a StatusReporter backed by the given client.
func NewStatusReporter(client Client) StatusReporter {
	return &statusReporter{client: client}
}

// InProgress creates a check run marking the analysis as running.
func (s *statusReporter) InProgress(ctx context.Context, pr *core.PRData) (int64, error) {
	opts := github.CreateCheckRunOptions{
		Name:    checkRunName,
		HeadSHA: pr.HeadSHA,
		Status:  github.Ptr("in_progress"),
		Output: &github.CheckRunOutput{
			Title:   github.Ptr("Merge analysis"),
			Summary: github.Ptr("AI merge-readiness analysis in progress..."),
		},
	}
	checkRun, err := s.client.CreateCheckRun(ctx, pr.RepoOwner, pr.RepoName, opts)
	if err != nil {
		return 0, fmt.Errorf("failed to create check run: %w", err)
	}
	return checkRun.GetID(), nil
}

// Completed finishes the check run with a conclusion derived from the verdict.
func (s *statusReporter) Completed(ctx context.Context, pr *core.PRData, checkRunID int64, result *core.ReviewResult) error {
	conclusion := "success"
	if result.Status == core.ReviewStatusRejected {
		conclusion = "failure"
	}
	return s.finish(ctx, pr, checkRunID, conclusion, "Analysis complete",
		fmt.Sprintf("Merge score %d/100 (%s)", result.MergeScore, result.Status))
}

// Failed finishes the check run with a failure conclusion.
func (s *statusReporter) Failed(ctx context.Context, pr *core.PRData, checkRunID int64, reason string) error {
	return s.finish(ctx, pr, checkRunID, "failure", "Analysis failed", reason)
}

func (s *statusReporter) finish(ctx context.Context, pr *core.PRData, checkRunID int64, conclusion, title, summary string) error {
	opts := github.UpdateCheckRunOptions{
		Name:        checkRunName,
		Status:      github.Ptr("completed"),
		Conclusion:  &conclusion,
		CompletedAt: &github.Timestamp{Time: time.Now()},
		Output: &github.CheckRunOutput{
			Title:   &title,
			Summary: &summary,
		},
	}
	_, err := s.client.UpdateCheckRun(ctx, pr.RepoOwner, pr.RepoName, checkRunID, opts)
	return err
}

// PostResultComment posts the formatted analysis result as a PR comment.
func (s *statusReporter) PostResultComment(ctx context.Context, pr *core.PRData, result *core.ReviewResult) error {
	return s.client.CreateComment(ctx, pr.RepoOwner, pr.RepoName, pr.PRNumber, FormatResultComment(result))
}

// FormatResultComment renders a ReviewResult as a Markdown PR comment with
// the score, verdict, violated rules, and per-finding details.
func FormatResultComment(result *core.ReviewResult) string {
	var sb strings.Builder

	sb.WriteString("## Merge-Warden Analysis\n\n")
	fmt.Fprintf(&sb, "**Merge score:** %d/100 %s\n\n", result.MergeScore, scoreBadge(result.MergeScore))
	fmt.Fprintf(&sb, "**Verdict:** %s\n\n", result.Status)

	if result.Summary != "" {
		sb.WriteString(result.Summary)
		sb.WriteString("\n\n")
	}

	if len(result.ViolatedRules) > 0 {
		sb.WriteString("### Violated rules\n\n")
		for _, rule := range result.ViolatedRules {
			fmt.Fprintf(&sb, "- `%s`\n", rule)
		}
		sb.WriteString("\n")
	}

	if len(result.Suggestions) > 0 {
		sb.WriteString("### Suggestions\n\n")
		for _, sug := range result.Suggestions {
			location := sug.FilePath
			if sug.LineNumber > 0 {
				location = fmt.Sprintf("%s:%d", sug.FilePath, sug.LineNumber)
			}
			fmt.Fprintf(&sb, "- **[%s/%s]** `%s` — %s\n", sug.Severity, sug.Category, location, sug.Comment)
		}
	}

	return strings.TrimRight(sb.String(), "\n") + "\n"
}

func scoreBadge(score int) string {
	switch {
	case score >= 80:
		return "🟢"
	case score >= 50:
		return "🟡"
	default:
		return "🔴"
	}
}
