package storage

import (
	"fmt"

	"github.com/randalmurphal/bimcollab/internal/config"
	"github.com/randalmurphal/bimcollab/internal/db"
	"github.com/randalmurphal/bimcollab/internal/db/driver"
)

// NewBackend opens the database the configuration points at.
func NewBackend(cfg *config.Config) (*DatabaseBackend, error) {
	dialect, err := driver.ParseDialect(cfg.Database.Driver)
	if err != nil {
		return nil, err
	}
	d, err := db.OpenWithDialect(cfg.DSN(), dialect)
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", dialect, err)
	}
	return NewDatabaseBackend(d), nil
}

// NewInMemoryBackend creates a backend over an in-memory SQLite database.
func NewInMemoryBackend() (*DatabaseBackend, error) {
	d, err := db.OpenInMemory()
	if err != nil {
		return nil, err
	}
	return NewDatabaseBackend(d), nil
}
