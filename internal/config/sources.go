package config

import (
	"fmt"
	"sort"
)

// ConfigSource indicates where a configuration value came from.
type ConfigSource string

const (
	// SourceDefault indicates a built-in default value.
	SourceDefault ConfigSource = "default"
	// SourceUser indicates the user config (~/.bcf/config.yaml).
	SourceUser ConfigSource = "user"
	// SourceProject indicates the project config (.bcf/config.yaml).
	SourceProject ConfigSource = "project"
	// SourceFile indicates a file passed with --config.
	SourceFile ConfigSource = "file"
	// SourceEnv indicates an environment variable override.
	SourceEnv ConfigSource = "env"
	// SourceFlag indicates a CLI flag override.
	SourceFlag ConfigSource = "flag"
)

// TrackedSource contains both the source type and the file path.
type TrackedSource struct {
	Source ConfigSource
	Path   string // File path or empty for defaults/env/flags
}

// String returns a human-readable source description.
func (ts TrackedSource) String() string {
	if ts.Path == "" {
		return string(ts.Source)
	}
	return fmt.Sprintf("%s: %s", ts.Source, ts.Path)
}

// TrackedConfig wraps a Config with source tracking.
type TrackedConfig struct {
	// Config is the merged configuration.
	Config *Config

	// Sources maps config paths ("import.concurrency") to where they were set.
	Sources map[string]TrackedSource
}

// NewTrackedConfig creates a TrackedConfig holding the defaults, every path
// marked SourceDefault.
func NewTrackedConfig() *TrackedConfig {
	tc := &TrackedConfig{
		Config:  Default(),
		Sources: make(map[string]TrackedSource, len(knownPaths)),
	}
	for _, path := range knownPaths {
		tc.Sources[path] = TrackedSource{Source: SourceDefault}
	}
	return tc
}

// SetSource records the source for a config path.
func (tc *TrackedConfig) SetSource(path string, source ConfigSource) {
	tc.Sources[path] = TrackedSource{Source: source}
}

// SetSourceWithPath records the source and file path for a config path.
func (tc *TrackedConfig) SetSourceWithPath(path string, source ConfigSource, filePath string) {
	tc.Sources[path] = TrackedSource{Source: source, Path: filePath}
}

// GetSource returns the source for a config path.
// Returns SourceDefault if no source is recorded.
func (tc *TrackedConfig) GetSource(path string) ConfigSource {
	return tc.GetTrackedSource(path).Source
}

// GetTrackedSource returns the full source info for a config path.
func (tc *TrackedConfig) GetTrackedSource(path string) TrackedSource {
	if ts, ok := tc.Sources[path]; ok {
		return ts
	}
	return TrackedSource{Source: SourceDefault}
}

// Paths returns every known config path in sorted order.
func Paths() []string {
	out := append([]string(nil), knownPaths...)
	sort.Strings(out)
	return out
}

var knownPaths = []string{
	"project.namespace", "project.model", "project.federated",
	"export.unit", "export.concurrency",
	"import.concurrency", "import.max_entry_size", "import.user", "import.ignore",
	"database.driver", "database.path",
	"database.postgres.host", "database.postgres.port", "database.postgres.database",
	"database.postgres.user", "database.postgres.password", "database.postgres.ssl_mode",
	"log.level", "log.format",
}

func isKnownPath(path string) bool {
	for _, p := range knownPaths {
		if p == path {
			return true
		}
	}
	return false
}
