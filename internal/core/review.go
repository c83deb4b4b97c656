package core

// Suggestion represents a single piece of feedback for a specific part of the change.
type Suggestion struct {
	FilePath   string `json:"file_path"`
	LineNumber int    `json:"line_number,omitempty"`
	Severity   string `json:"severity"` // e.g., "Low", "Medium", "High", "Critical"
	Category   string `json:"category"` // e.g., "Best Practice", "Bug", "Style", "Security"
	Comment    string `json:"comment"`
}

// Review status values produced by the analyzer.
const (
	ReviewStatusApproved  = "approved"
	ReviewStatusNeedsWork = "needs_work"
	ReviewStatusRejected  = "rejected"
)

// ReviewResult is the outcome of one PR analysis: a merge-readiness score in
// [0,100], an overall verdict, per-finding suggestions, the identifiers of any
// violated custom rules, and a prose summary.
type ReviewResult struct {
	MergeScore    int          `json:"merge_score"`
	Status        string       `json:"status"`
	Suggestions   []Suggestion `json:"suggestions"`
	ViolatedRules []string     `json:"violated_rules"`
	Summary       string       `json:"summary"`
}

// CustomRule is a repository-specific review rule the analyzer checks the
// change against. Violations are reported by rule ID in the ReviewResult.
type CustomRule struct {
	ID          string `yaml:"id" json:"id"`
	Description string `yaml:"description" json:"description"`
	Severity    string `yaml:"severity" json:"severity"`
}

// RepoRules is the per-repository review configuration, typically loaded from
// a merge-warden rules file.
type RepoRules struct {
	Rules []CustomRule `yaml:"rules" json:"rules"`
}

// DefaultRepoRules returns the configuration used when a repository has no
// rules file of its own.
func DefaultRepoRules() *RepoRules {
	return &RepoRules{}
}
