package core

import (
	"fmt"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"github.com/google/go-github/v73/github"
)

// Pull request actions that trigger an analysis.
var analyzedActions = []string{"opened", "synchronize", "reopened", "ready_for_review"}

var issueRefRegex = regexp.MustCompile(`(?i)\b(?:close[sd]?|fix(?:e[sd])?|resolve[sd]?)\s*:?\s+#(\d+)`)

// PRDataFromPullRequestEvent transforms a raw GitHub PullRequestEvent into the
// application's internal PRData representation. It acts as an anti-corruption
// layer, ensuring the incoming webhook payload is valid and contains all the
// data an analysis job needs before anything is queued.
func PRDataFromPullRequestEvent(event *github.PullRequestEvent) (*PRData, error) {
	if !slices.Contains(analyzedActions, event.GetAction()) {
		return nil, fmt.Errorf("%w: action %q", ErrIgnoredEvent, event.GetAction())
	}

	repo := event.GetRepo()
	if repo == nil || repo.GetOwner() == nil || repo.GetOwner().GetLogin() == "" || repo.GetName() == "" {
		return nil, fmt.Errorf("%w: repository or owner information is missing", ErrInvalidPayload)
	}

	pr := event.GetPullRequest()
	if pr == nil {
		return nil, fmt.Errorf("%w: pull request is missing from the event", ErrInvalidPayload)
	}
	if pr.GetNumber() <= 0 {
		return nil, fmt.Errorf("%w: invalid pull request number: %d", ErrInvalidPayload, pr.GetNumber())
	}
	if pr.GetUser() == nil || pr.GetUser().GetLogin() == "" {
		return nil, fmt.Errorf("%w: pull request author is missing", ErrInvalidPayload)
	}

	if event.GetInstallation() == nil || event.GetInstallation().GetID() == 0 {
		return nil, fmt.Errorf("%w: installation ID is missing from the event", ErrInvalidPayload)
	}

	return &PRData{
		InstallationID: event.GetInstallation().GetID(),
		RepoOwner:      repo.GetOwner().GetLogin(),
		RepoName:       repo.GetName(),
		RepoFullName:   repo.GetFullName(),
		PRNumber:       pr.GetNumber(),
		PRURL:          pr.GetHTMLURL(),
		Title:          pr.GetTitle(),
		Body:           pr.GetBody(),
		Author:         pr.GetUser().GetLogin(),
		Draft:          pr.GetDraft(),
		HeadSHA:        pr.GetHead().GetSHA(),
		LinkedIssues:   LinkedIssuesFromBody(pr.GetBody()),
	}, nil
}

// LinkedIssuesFromBody extracts issue numbers referenced with closing keywords
// ("closes #12", "Fixes: #3", ...) from a pull request description.
func LinkedIssuesFromBody(body string) []int {
	if strings.TrimSpace(body) == "" {
		return nil
	}

	var issues []int
	for _, m := range issueRefRegex.FindAllStringSubmatch(body, -1) {
		n, err := strconv.Atoi(m[1])
		if err != nil || n <= 0 {
			continue
		}
		if !slices.Contains(issues, n) {
			issues = append(issues, n)
		}
	}
	return issues
}
