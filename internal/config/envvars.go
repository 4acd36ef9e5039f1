package config

import (
	"os"
	"strconv"
	"strings"
)

// EnvVarMapping defines the mapping between environment variables and config paths.
var EnvVarMapping = map[string]string{
	"BCF_NAMESPACE": "project.namespace",
	"BCF_MODEL":     "project.model",
	"BCF_FEDERATED": "project.federated",
	// Export / import
	"BCF_UNIT":               "export.unit",
	"BCF_EXPORT_CONCURRENCY": "export.concurrency",
	"BCF_IMPORT_CONCURRENCY": "import.concurrency",
	"BCF_MAX_ENTRY_SIZE":     "import.max_entry_size",
	"BCF_USER":               "import.user",
	"BCF_IGNORE":             "import.ignore",
	// Database settings
	"BCF_DB_DRIVER":   "database.driver",
	"BCF_DB_PATH":     "database.path",
	"BCF_DB_HOST":     "database.postgres.host",
	"BCF_DB_PORT":     "database.postgres.port",
	"BCF_DB_NAME":     "database.postgres.database",
	"BCF_DB_USER":     "database.postgres.user",
	"BCF_DB_PASSWORD": "database.postgres.password",
	"BCF_DB_SSL_MODE": "database.postgres.ssl_mode",
	// Logging
	"BCF_LOG_LEVEL":  "log.level",
	"BCF_LOG_FORMAT": "log.format",
}

// ApplyEnvVars applies environment variable overrides to a TrackedConfig.
// Returns a list of paths that were overridden.
func ApplyEnvVars(tc *TrackedConfig) []string {
	var overridden []string

	for envVar, configPath := range EnvVarMapping {
		value := os.Getenv(envVar)
		if value == "" {
			continue
		}

		if Set(tc.Config, configPath, value) {
			tc.SetSource(configPath, SourceEnv)
			overridden = append(overridden, configPath)
		}
	}

	return overridden
}

// Set assigns a string value to a config path, converting it to the field's
// type. Returns false for unknown paths and unparseable numbers.
func Set(cfg *Config, path string, value string) bool {
	switch path {
	case "project.namespace":
		cfg.Project.Namespace = value
	case "project.model":
		cfg.Project.Model = value
	case "project.federated":
		cfg.Project.Federated = parseBool(value)
	case "export.unit":
		cfg.Export.Unit = strings.ToLower(value)
	case "export.concurrency":
		return setInt(&cfg.Export.Concurrency, value)
	case "import.concurrency":
		return setInt(&cfg.Import.Concurrency, value)
	case "import.max_entry_size":
		v, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return false
		}
		cfg.Import.MaxEntrySize = v
	case "import.user":
		cfg.Import.User = value
	case "import.ignore":
		cfg.Import.Ignore = splitList(value)
	case "database.driver":
		cfg.Database.Driver = value
	case "database.path":
		cfg.Database.Path = value
	case "database.postgres.host":
		cfg.Database.Postgres.Host = value
	case "database.postgres.port":
		return setInt(&cfg.Database.Postgres.Port, value)
	case "database.postgres.database":
		cfg.Database.Postgres.Database = value
	case "database.postgres.user":
		cfg.Database.Postgres.User = value
	case "database.postgres.password":
		cfg.Database.Postgres.Password = value
	case "database.postgres.ssl_mode":
		cfg.Database.Postgres.SSLMode = value
	case "log.level":
		cfg.Log.Level = strings.ToLower(value)
	case "log.format":
		cfg.Log.Format = strings.ToLower(value)
	default:
		return false
	}
	return true
}

func setInt(dst *int, value string) bool {
	v, err := strconv.Atoi(value)
	if err != nil {
		return false
	}
	*dst = v
	return true
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// parseBool parses a boolean string (case-insensitive).
func parseBool(s string) bool {
	s = strings.ToLower(s)
	return s == "true" || s == "1" || s == "yes" || s == "on"
}
