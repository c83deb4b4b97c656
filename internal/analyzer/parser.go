package analyzer

import (
	"encoding/json"
	"fmt"
	"slices"
	"strings"

	"github.com/sevigo/merge-warden/internal/core"
)

// rawReview mirrors the JSON shape the prompt asks the LLM to produce.
type rawReview struct {
	MergeScore    int               `json:"merge_score"`
	Status        string            `json:"status"`
	Summary       string            `json:"summary"`
	Suggestions   []core.Suggestion `json:"suggestions"`
	ViolatedRules []string          `json:"violated_rules"`
}

// parseReviewResponse extracts a ReviewResult from the LLM's output. It
// tolerates the usual quirks: a ```json fence around the payload, leading
// prose before the object, out-of-range scores, and rule ids that were never
// configured.
func parseReviewResponse(response string, rules *core.RepoRules) (*core.ReviewResult, error) {
	payload := extractJSON(response)
	if payload == "" {
		return nil, fmt.Errorf("no JSON object found in LLM response")
	}

	var raw rawReview
	if err := json.Unmarshal([]byte(payload), &raw); err != nil {
		return nil, fmt.Errorf("invalid review JSON: %w", err)
	}
	if strings.TrimSpace(raw.Summary) == "" {
		return nil, fmt.Errorf("review JSON is missing a summary")
	}

	result := &core.ReviewResult{
		MergeScore:    clampScore(raw.MergeScore),
		Status:        normalizeStatus(raw.Status),
		Summary:       strings.TrimSpace(raw.Summary),
		Suggestions:   raw.Suggestions,
		ViolatedRules: filterKnownRules(raw.ViolatedRules, rules),
	}
	return result, nil
}

// extractJSON strips a wrapping code fence if present and falls back to the
// outermost braces otherwise.
func extractJSON(s string) string {
	trimmed := strings.TrimSpace(s)

	if strings.HasPrefix(trimmed, "```") {
		if idx := strings.Index(trimmed, "\n"); idx >= 0 {
			inner := trimmed[idx+1:]
			if lastFence := strings.LastIndex(inner, "```"); lastFence >= 0 {
				inner = inner[:lastFence]
			}
			trimmed = strings.TrimSpace(inner)
		}
	}

	start := strings.Index(trimmed, "{")
	end := strings.LastIndex(trimmed, "}")
	if start < 0 || end <= start {
		return ""
	}
	return trimmed[start : end+1]
}

func clampScore(score int) int {
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}

func normalizeStatus(status string) string {
	switch strings.ToLower(strings.TrimSpace(status)) {
	case core.ReviewStatusApproved, "approve":
		return core.ReviewStatusApproved
	case core.ReviewStatusRejected, "reject":
		return core.ReviewStatusRejected
	default:
		return core.ReviewStatusNeedsWork
	}
}

// filterKnownRules drops rule ids the repository never configured, so a
// hallucinated rule can not show up as violated.
func filterKnownRules(violated []string, rules *core.RepoRules) []string {
	if len(violated) == 0 {
		return nil
	}
	if rules == nil || len(rules.Rules) == 0 {
		return nil
	}

	known := make(map[string]struct{}, len(rules.Rules))
	for _, r := range rules.Rules {
		known[strings.ToLower(r.ID)] = struct{}{}
	}

	var out []string
	for _, id := range violated {
		normalized := strings.TrimSpace(id)
		if _, ok := known[strings.ToLower(normalized)]; !ok {
			continue
		}
		if !slices.Contains(out, normalized) {
			out = append(out, normalized)
		}
	}
	return out
}
