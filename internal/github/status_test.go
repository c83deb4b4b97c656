package github

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sevigo/merge-warden/internal/core"
)

func TestFormatResultComment(t *testing.T) {
	result := &core.ReviewResult{
		MergeScore: 85,
		Status:     core.ReviewStatusApproved,
		Summary:    "Well-structured change with tests.",
		ViolatedRules: []string{
			"error-wrapping",
		},
		Suggestions: []core.Suggestion{
			{FilePath: "main.go", LineNumber: 12, Severity: "High", Category: "Bug", Comment: "Unchecked error."},
			{FilePath: "README.md", Severity: "Low", Category: "Style", Comment: "Typo."},
		},
	}

	comment := FormatResultComment(result)

	assert.True(t, strings.HasPrefix(comment, "## Merge-Warden Analysis"))
	assert.Contains(t, comment, "**Merge score:** 85/100 🟢")
	assert.Contains(t, comment, "**Verdict:** approved")
	assert.Contains(t, comment, "Well-structured change with tests.")
	assert.Contains(t, comment, "### Violated rules")
	assert.Contains(t, comment, "- `error-wrapping`")
	assert.Contains(t, comment, "### Suggestions")
	assert.Contains(t, comment, "`main.go:12`")
	// Suggestions without a line number keep a bare file path.
	assert.Contains(t, comment, "`README.md`")
	assert.True(t, strings.HasSuffix(comment, "\n"))
}

func TestFormatResultCommentMinimal(t *testing.T) {
	result := &core.ReviewResult{
		MergeScore: 30,
		Status:     core.ReviewStatusRejected,
		Summary:    "Too many issues.",
	}

	comment := FormatResultComment(result)

	assert.Contains(t, comment, "**Merge score:** 30/100 🔴")
	assert.NotContains(t, comment, "### Violated rules")
	assert.NotContains(t, comment, "### Suggestions")
}

func TestScoreBadge(t *testing.T) {
	tests := []struct {
		score int
		want  string
	}{
		{100, "🟢"},
		{80, "🟢"},
		{79, "🟡"},
		{50, "🟡"},
		{49, "🔴"},
		{0, "🔴"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, scoreBadge(tt.score))
	}
}
