package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/sevigo/merge-warden/internal/core"
)

var (
	ErrRulesNotFound = errors.New("rules file not found")
	ErrRulesParsing  = errors.New("rules parsing failed")
)

// LoadReviewRules loads and parses the custom review rules file. A missing
// file is not fatal: the default (empty) rule set is returned alongside
// ErrRulesNotFound so the caller can decide whether to log it.
func LoadReviewRules(path string) (*core.RepoRules, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return core.DefaultRepoRules(), ErrRulesNotFound
		}
		return nil, fmt.Errorf("failed to read rules file %s: %w", path, err)
	}

	rules := core.DefaultRepoRules()
	if err := yaml.Unmarshal(data, rules); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRulesParsing, err)
	}

	if err := validateRules(rules); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRulesParsing, err)
	}
	return rules, nil
}

func validateRules(rules *core.RepoRules) error {
	seen := make(map[string]struct{}, len(rules.Rules))
	for i, rule := range rules.Rules {
		if rule.ID == "" {
			return fmt.Errorf("rule %d has no id", i)
		}
		if rule.Description == "" {
			return fmt.Errorf("rule %q has no description", rule.ID)
		}
		if _, dup := seen[rule.ID]; dup {
			return fmt.Errorf("duplicate rule id %q", rule.ID)
		}
		seen[rule.ID] = struct{}{}
	}
	return nil
}
