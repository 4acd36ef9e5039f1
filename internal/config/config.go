// Package config provides configuration management for bcf.
package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/randalmurphal/bimcollab/internal/util"
)

const (
	// ConfigFileName is the default config file name
	ConfigFileName = "config.yaml"
	// BcfDir is the bcf configuration directory
	BcfDir = ".bcf"
	// DBFileName is the default SQLite database file name
	DBFileName = "bcf.db"
)

// Config is the merged bcf configuration.
type Config struct {
	Project  ProjectConfig  `yaml:"project"`
	Export   ExportConfig   `yaml:"export"`
	Import   ImportConfig   `yaml:"import"`
	Database DatabaseConfig `yaml:"database"`
	Log      LogConfig      `yaml:"log"`
}

// ProjectConfig names the model issues belong to.
type ProjectConfig struct {
	// Namespace is the account or team owning the model.
	Namespace string `yaml:"namespace"`
	// Model is the default model id issues are attached to.
	Model string `yaml:"model"`
	// Federated marks Model as a federation: imported component ids are
	// resolved to sub-models through the IFC index.
	Federated bool `yaml:"federated"`
}

// ExportConfig defines export behavior.
type ExportConfig struct {
	// Unit is the model display unit: mm, cm, dm, m or ft (default: m)
	Unit string `yaml:"unit"`
	// Concurrency bounds how many issues are encoded at once (0 = GOMAXPROCS)
	Concurrency int `yaml:"concurrency"`
}

// ImportConfig defines import behavior.
type ImportConfig struct {
	// Concurrency bounds how many topic folders are parsed at once (0 = GOMAXPROCS)
	Concurrency int `yaml:"concurrency"`
	// MaxEntrySize is the largest uncompressed archive entry accepted, in bytes.
	MaxEntrySize int64 `yaml:"max_entry_size"`
	// User is recorded as the author of import marker comments.
	// Empty uses $USER.
	User string `yaml:"user"`
	// Ignore lists glob patterns of archive entries to skip.
	Ignore []string `yaml:"ignore,omitempty"`
}

// DatabaseConfig defines database connection settings.
type DatabaseConfig struct {
	// Driver is the database type: "sqlite" or "postgres"
	Driver string `yaml:"driver"`

	// Path is the SQLite database file
	Path string `yaml:"path"`

	// Postgres settings
	Postgres PostgresConfig `yaml:"postgres"`
}

// PostgresConfig defines PostgreSQL connection settings.
type PostgresConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Database string `yaml:"database"`
	User     string `yaml:"user"`
	Password string `yaml:"password,omitempty"`
	SSLMode  string `yaml:"ssl_mode"`
}

// LogConfig defines logging output.
type LogConfig struct {
	// Level is debug, info, warn or error (default: info)
	Level string `yaml:"level"`
	// Format is text, json or auto (text on a terminal, json otherwise)
	Format string `yaml:"format"`
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Project: ProjectConfig{
			Namespace: "default",
		},
		Export: ExportConfig{
			Unit: "m",
		},
		Import: ImportConfig{
			MaxEntrySize: 100 << 20,
		},
		Database: DatabaseConfig{
			Driver: "sqlite",
			Path:   filepath.Join(BcfDir, DBFileName),
			Postgres: PostgresConfig{
				Host:     "localhost",
				Port:     5432,
				Database: "bcf",
				User:     "bcf",
				SSLMode:  "disable",
			},
		},
		Log: LogConfig{
			Level:  "info",
			Format: "auto",
		},
	}
}

// DSN returns the connection string for the configured driver.
func (c *Config) DSN() string {
	if c.Database.Driver != "postgres" {
		return c.Database.Path
	}
	pg := c.Database.Postgres
	u := url.URL{
		Scheme:   "postgres",
		Host:     pg.Host + ":" + strconv.Itoa(pg.Port),
		Path:     "/" + pg.Database,
		RawQuery: "sslmode=" + url.QueryEscape(pg.SSLMode),
	}
	if pg.Password != "" {
		u.User = url.UserPassword(pg.User, pg.Password)
	} else {
		u.User = url.User(pg.User)
	}
	return u.String()
}

// Importer returns the name recorded on import marker comments.
func (c *Config) Importer() string {
	if c.Import.User != "" {
		return c.Import.User
	}
	if u := os.Getenv("USER"); u != "" {
		return u
	}
	return "bcf"
}

// LoadFrom loads the config from a specific path on top of the defaults.
func LoadFrom(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	return cfg, nil
}

// SaveTo saves the config to a specific path.
func (c *Config) SaveTo(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := util.AtomicWriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}

	return nil
}

// Init creates the project config directory with a default config.
func Init(dir string, force bool) error {
	bcfDir := filepath.Join(dir, BcfDir)
	if !force {
		if _, err := os.Stat(bcfDir); err == nil {
			return fmt.Errorf("bcf already initialized (use --force to overwrite)")
		}
	}
	return Default().SaveTo(filepath.Join(bcfDir, ConfigFileName))
}
