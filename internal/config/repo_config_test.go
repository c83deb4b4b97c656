package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeRulesFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "merge-warden-rules.yml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadReviewRules(t *testing.T) {
	path := writeRulesFile(t, `
rules:
  - id: no-fmt-println
    description: No fmt.Println in production code
    severity: medium
  - id: error-wrapping
    description: Wrap errors with context
    severity: high
`)

	rules, err := LoadReviewRules(path)
	require.NoError(t, err)
	require.Len(t, rules.Rules, 2)
	assert.Equal(t, "no-fmt-println", rules.Rules[0].ID)
	assert.Equal(t, "high", rules.Rules[1].Severity)
}

func TestLoadReviewRulesMissingFile(t *testing.T) {
	rules, err := LoadReviewRules(filepath.Join(t.TempDir(), "does-not-exist.yml"))

	// Missing file yields the default rule set and a sentinel the caller may ignore.
	require.ErrorIs(t, err, ErrRulesNotFound)
	require.NotNil(t, rules)
	assert.Empty(t, rules.Rules)
}

func TestLoadReviewRulesInvalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{
			name:    "Malformed YAML",
			content: "rules: [}",
		},
		{
			name: "Rule without id",
			content: `
rules:
  - description: orphaned rule
`,
		},
		{
			name: "Rule without description",
			content: `
rules:
  - id: nameless
`,
		},
		{
			name: "Duplicate rule ids",
			content: `
rules:
  - id: twice
    description: first
  - id: twice
    description: second
`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadReviewRules(writeRulesFile(t, tt.content))
			assert.ErrorIs(t, err, ErrRulesParsing)
		})
	}
}
