package core

import "fmt"

// ChangedFile holds the filename and patch data for a single file included in
// a pull request. This keeps the analysis focused on what actually changed.
type ChangedFile struct {
	Filename  string `json:"filename"`
	Status    string `json:"status"`
	Additions int    `json:"additions"`
	Deletions int    `json:"deletions"`
	Patch     string `json:"patch,omitempty"`
}

// PRData is the structured pull-request payload an analysis job carries. It is
// assembled from the webhook event and enriched from the GitHub API before the
// job is submitted, so executors never touch raw webhook payloads.
type PRData struct {
	InstallationID int64         `json:"installation_id"`
	RepoOwner      string        `json:"repo_owner"`
	RepoName       string        `json:"repo_name"`
	RepoFullName   string        `json:"repo_full_name"`
	PRNumber       int           `json:"pr_number"`
	PRURL          string        `json:"pr_url"`
	Title          string        `json:"title"`
	Body           string        `json:"body"`
	Author         string        `json:"author"`
	Draft          bool          `json:"draft"`
	HeadSHA        string        `json:"head_sha,omitempty"`
	ChangedFiles   []ChangedFile `json:"changed_files,omitempty"`
	LinkedIssues   []int         `json:"linked_issues,omitempty"`
}

// Validate ensures the payload carries everything an analysis attempt needs.
func (p *PRData) Validate() error {
	if p == nil {
		return fmt.Errorf("%w: PR data is nil", ErrInvalidPayload)
	}
	if p.InstallationID <= 0 {
		return fmt.Errorf("%w: installation ID must be positive, got %d", ErrInvalidPayload, p.InstallationID)
	}
	if p.RepoOwner == "" || p.RepoName == "" || p.RepoFullName == "" {
		return fmt.Errorf("%w: repository identification is incomplete", ErrInvalidPayload)
	}
	if p.PRNumber <= 0 {
		return fmt.Errorf("%w: pull request number must be positive, got %d", ErrInvalidPayload, p.PRNumber)
	}
	if p.Author == "" {
		return fmt.Errorf("%w: author is missing", ErrInvalidPayload)
	}
	return nil
}

// Key returns the dedup identity for this payload.
func (p *PRData) Key() JobKey {
	return JobKey{
		InstallationID: p.InstallationID,
		RepoFullName:   p.RepoFullName,
		PRNumber:       p.PRNumber,
	}
}
