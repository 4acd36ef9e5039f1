package config

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// Get returns the value at a dotted config path formatted for display.
// Passwords are masked.
func (c *Config) Get(path string) (string, error) {
	if !isKnownPath(path) {
		return "", fmt.Errorf("unknown config key: %s", path)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return "", fmt.Errorf("marshal config: %w", err)
	}
	var tree map[string]any
	if err := yaml.Unmarshal(data, &tree); err != nil {
		return "", fmt.Errorf("parse config: %w", err)
	}

	var cur any = tree
	for _, part := range strings.Split(path, ".") {
		m, ok := cur.(map[string]any)
		if !ok {
			return "", nil
		}
		cur = m[part]
	}
	if cur == nil {
		return "", nil
	}
	if strings.HasSuffix(path, "password") {
		return "****", nil
	}
	if list, ok := cur.([]any); ok {
		parts := make([]string, len(list))
		for i, v := range list {
			parts[i] = fmt.Sprint(v)
		}
		return strings.Join(parts, ","), nil
	}
	return fmt.Sprint(cur), nil
}
