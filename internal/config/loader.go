package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"
)

// LoadWithSources loads configuration for the current directory.
func LoadWithSources() (*TrackedConfig, error) {
	return LoadWithSourcesFrom(".")
}

// LoadWithSourcesFrom loads configuration with source tracking.
// Load order (later sources override earlier):
//  1. Built-in defaults
//  2. User config (~/.bcf/config.yaml) - optional
//  3. Project config ({dir}/.bcf/config.yaml) - optional
//  4. Environment variables (BCF_*)
func LoadWithSourcesFrom(dir string) (*TrackedConfig, error) {
	tc := NewTrackedConfig()

	if home, err := os.UserHomeDir(); err == nil {
		userPath := filepath.Join(home, BcfDir, ConfigFileName)
		if _, err := os.Stat(userPath); err == nil {
			if err := MergeFile(tc, userPath, SourceUser); err != nil {
				slog.Warn("failed to load user config", "path", userPath, "error", err)
			}
		}
	}

	projectPath := filepath.Join(dir, BcfDir, ConfigFileName)
	if _, err := os.Stat(projectPath); err == nil {
		if err := MergeFile(tc, projectPath, SourceProject); err != nil {
			return nil, err // Project config errors are fatal
		}
	}

	ApplyEnvVars(tc)

	return tc, nil
}

// MergeFile merges configuration from a file into tc. Only keys present in
// the file override earlier values.
func MergeFile(tc *TrackedConfig, path string, source ConfigSource) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}

	// The raw map tells which keys the file actually sets.
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}

	// Decoding onto the merged config leaves absent keys untouched.
	if err := yaml.Unmarshal(data, tc.Config); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}

	for _, key := range leafPaths("", raw) {
		if !isKnownPath(key) {
			slog.Warn("unknown config key", "path", path, "key", key)
			continue
		}
		tc.SetSourceWithPath(key, source, path)
	}
	return nil
}

// leafPaths flattens nested maps into sorted dotted paths.
func leafPaths(prefix string, m map[string]any) []string {
	var out []string
	for k, v := range m {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		if nested, ok := v.(map[string]any); ok {
			out = append(out, leafPaths(key, nested)...)
			continue
		}
		out = append(out, key)
	}
	sort.Strings(out)
	return out
}
