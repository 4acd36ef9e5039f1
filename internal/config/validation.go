package config

import (
	"fmt"
	"slices"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/randalmurphal/bimcollab/internal/bcf"
	bcferrors "github.com/randalmurphal/bimcollab/internal/errors"
)

var (
	validDrivers    = []string{"sqlite", "postgres"}
	validLogLevels  = []string{"debug", "info", "warn", "error"}
	validLogFormats = []string{"auto", "text", "json"}
)

// Validate checks the configuration and returns the first problem found.
func (c *Config) Validate() error {
	if _, ok := bcf.Units[strings.ToLower(c.Export.Unit)]; !ok {
		return bcferrors.ErrConfigInvalid("export.unit",
			fmt.Sprintf("unknown unit %q (valid: mm, cm, dm, m, ft)", c.Export.Unit))
	}
	if c.Export.Concurrency < 0 {
		return bcferrors.ErrConfigInvalid("export.concurrency", "must not be negative")
	}
	if c.Import.Concurrency < 0 {
		return bcferrors.ErrConfigInvalid("import.concurrency", "must not be negative")
	}
	if c.Import.MaxEntrySize <= 0 {
		return bcferrors.ErrConfigInvalid("import.max_entry_size", "must be positive")
	}
	for _, p := range c.Import.Ignore {
		if !doublestar.ValidatePattern(p) {
			return bcferrors.ErrConfigInvalid("import.ignore", fmt.Sprintf("bad pattern %q", p))
		}
	}
	if c.Project.Federated && c.Project.Model == "" {
		return bcferrors.ErrConfigMissing("project.model")
	}

	if !slices.Contains(validDrivers, c.Database.Driver) {
		return bcferrors.ErrConfigInvalid("database.driver",
			fmt.Sprintf("unknown driver %q (valid: %s)", c.Database.Driver, strings.Join(validDrivers, ", ")))
	}
	switch c.Database.Driver {
	case "sqlite":
		if c.Database.Path == "" {
			return bcferrors.ErrConfigMissing("database.path")
		}
	case "postgres":
		if c.Database.Postgres.Host == "" {
			return bcferrors.ErrConfigMissing("database.postgres.host")
		}
		if c.Database.Postgres.Port <= 0 || c.Database.Postgres.Port > 65535 {
			return bcferrors.ErrConfigInvalid("database.postgres.port", "must be between 1 and 65535")
		}
	}

	if !slices.Contains(validLogLevels, c.Log.Level) {
		return bcferrors.ErrConfigInvalid("log.level",
			fmt.Sprintf("unknown level %q (valid: %s)", c.Log.Level, strings.Join(validLogLevels, ", ")))
	}
	if !slices.Contains(validLogFormats, c.Log.Format) {
		return bcferrors.ErrConfigInvalid("log.format",
			fmt.Sprintf("unknown format %q (valid: %s)", c.Log.Format, strings.Join(validLogFormats, ", ")))
	}
	return nil
}
