// Package db provides database persistence for bcf.
//
// Issues and groups are stored as JSON documents next to a few indexed
// columns (name, status) extracted from the document on save. The IFC index
// maps component GUIDs of a federated model to the sub-model that owns them.
package db

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/randalmurphal/bimcollab/internal/db/driver"
)

//go:embed schema/*.sql schema/postgres/*.sql
var schemaFS embed.FS

// SchemaType is the migration prefix of the bcf schema.
const SchemaType = "bcf"

// embedFSAdapter wraps embed.FS to implement driver.SchemaFS.
type embedFSAdapter struct {
	fs embed.FS
}

func (e *embedFSAdapter) ReadDir(name string) ([]driver.DirEntry, error) {
	entries, err := e.fs.ReadDir(name)
	if err != nil {
		return nil, err
	}
	result := make([]driver.DirEntry, len(entries))
	for i, entry := range entries {
		result[i] = entry
	}
	return result, nil
}

func (e *embedFSAdapter) ReadFile(name string) ([]byte, error) {
	return fs.ReadFile(e.fs, name)
}

// DB wraps a database connection with driver abstraction.
type DB struct {
	driver driver.Driver
	path   string
	now    func() time.Time
}

// Open opens and migrates a SQLite database at the given path.
// Creates the parent directory if it doesn't exist.
func Open(path string) (*DB, error) {
	return OpenWithDialect(path, driver.DialectSQLite)
}

// OpenInMemory opens a migrated in-memory SQLite database.
// Each call creates a new isolated database.
func OpenInMemory() (*DB, error) {
	return open(":memory:", driver.DialectSQLite)
}

// OpenWithDialect opens and migrates a database. For SQLite, dsn is the file
// path. For PostgreSQL, dsn is the connection string.
func OpenWithDialect(dsn string, dialect driver.Dialect) (*DB, error) {
	if dialect == driver.DialectSQLite {
		if err := os.MkdirAll(filepath.Dir(dsn), 0755); err != nil {
			return nil, fmt.Errorf("create db directory: %w", err)
		}
	}
	return open(dsn, dialect)
}

func open(dsn string, dialect driver.Dialect) (*DB, error) {
	drv, err := driver.New(dialect)
	if err != nil {
		return nil, err
	}
	if err := drv.Open(dsn); err != nil {
		return nil, err
	}

	d := &DB{driver: drv, path: dsn, now: time.Now}
	if err := d.Migrate(context.Background()); err != nil {
		_ = drv.Close()
		return nil, fmt.Errorf("migrate %s db: %w", dialect, err)
	}
	return d, nil
}

// Close closes the database connection.
func (d *DB) Close() error {
	return d.driver.Close()
}

// Path returns the database DSN/path.
func (d *DB) Path() string {
	return d.path
}

// Dialect returns the database dialect.
func (d *DB) Dialect() driver.Dialect {
	return d.driver.Dialect()
}

// Migrate applies pending schema migrations.
func (d *DB) Migrate(ctx context.Context) error {
	return d.driver.Migrate(ctx, &embedFSAdapter{fs: schemaFS}, SchemaType)
}

// querier is the part of a driver or transaction the record operations need.
type querier interface {
	Exec(ctx context.Context, query string, args ...any) (sql.Result, error)
	Query(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRow(ctx context.Context, query string, args ...any) *sql.Row
}

// TxOps runs record operations inside a transaction.
type TxOps struct {
	db *DB
	tx driver.Tx
}

// RunInTx executes fn within a database transaction.
// If fn returns an error, the transaction is rolled back.
func (d *DB) RunInTx(ctx context.Context, fn func(tx *TxOps) error) error {
	tx, err := d.driver.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(&TxOps{db: d, tx: tx}); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("%w (rollback: %v)", err, rbErr)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func (d *DB) rebind(query string) string {
	return driver.Rebind(d.driver, query)
}

// timeLayout is fixed width so stored timestamps sort as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(time.RFC3339Nano, s)
	return t
}
