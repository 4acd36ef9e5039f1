package db

import (
	"testing"
	"time"
)

// NewTestDB creates a migrated in-memory database for testing.
// The database is automatically closed when the test completes.
//
// Usage:
//
//	func TestSomething(t *testing.T) {
//	    t.Parallel()
//	    d := db.NewTestDB(t)
//	    // use d...
//	}
func NewTestDB(t testing.TB) *DB {
	t.Helper()

	d, err := OpenInMemory()
	if err != nil {
		t.Fatalf("create test db: %v", err)
	}
	t.Cleanup(func() {
		_ = d.Close()
	})
	return d
}

// SetClock replaces the time source used for created/updated timestamps.
func (d *DB) SetClock(now func() time.Time) {
	d.now = now
}
