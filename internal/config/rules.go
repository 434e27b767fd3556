// ABOUTME: Loader for the optional JSON rules file appended to the system prompt
// ABOUTME: A missing file is fine; a present but malformed one is a hard error

package config

import (
	"encoding/json"
	"fmt"
	"os"
)

// SystemPrompt returns the effective system prompt: the configured base
// prompt with the rules file appended when one is present and enabled.
func (c *Config) SystemPrompt() (string, error) {
	rules, err := loadRulesPrompt(c.LLM.RulesPath)
	if err != nil {
		return "", err
	}
	if rules == "" {
		return c.LLM.SystemPrompt, nil
	}
	if c.LLM.SystemPrompt == "" {
		return rules, nil
	}
	return c.LLM.SystemPrompt + "\n\n" + rules, nil
}

// loadRulesPrompt reads the rules file at path and renders it as a prompt
// fragment. An empty path or a missing file yields the empty string. The
// file must contain a JSON object; an object with "enabled": false is
// treated as absent.
func loadRulesPrompt(path string) (string, error) {
	if path == "" {
		return "", nil
	}

	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("reading rules file %s: %w", path, err)
	}

	var rules map[string]any
	if err := json.Unmarshal(raw, &rules); err != nil {
		return "", fmt.Errorf("parsing rules file %s: %w", path, err)
	}

	if enabled, ok := rules["enabled"].(bool); ok && !enabled {
		return "", nil
	}

	serialized, err := json.MarshalIndent(rules, "", "  ")
	if err != nil {
		return "", fmt.Errorf("serializing rules from %s: %w", path, err)
	}

	return "You must follow these extra system rules loaded from JSON.\n" +
		"If response_form exists, obey it exactly.\n" +
		"Rules source: " + path + "\n" +
		"Rules JSON:\n" +
		string(serialized), nil
}
