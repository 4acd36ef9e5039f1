package db

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/randalmurphal/bimcollab/internal/db/driver"
)

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestOpen_FileCreatesDirectoryAndMigrates(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), ".bcf", "bcf.db")

	d, err := Open(path)
	require.NoError(t, err)
	assert.Equal(t, path, d.Path())
	assert.Equal(t, driver.DialectSQLite, d.Dialect())
	require.NoError(t, d.Close())

	// Reopening an already migrated database is fine.
	d, err = Open(path)
	require.NoError(t, err)
	require.NoError(t, d.Close())
}

func TestOpenWithDialect_Unsupported(t *testing.T) {
	t.Parallel()
	_, err := OpenWithDialect("x", driver.Dialect("oracle"))
	assert.Error(t, err)
}

func TestIssues_SaveGetList(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	d := NewTestDB(t)
	d.SetClock(fixedClock(time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)))

	rec := &IssueRecord{
		Namespace: "acme",
		Model:     "tower",
		Doc:       []byte(`{"id":"b1","name":"Leak in roof","status":"open","created":"2024-03-01T10:00:00Z"}`),
	}
	require.NoError(t, d.SaveIssue(ctx, rec))
	assert.Equal(t, "b1", rec.ID)
	assert.Equal(t, "Leak in roof", rec.Name)
	assert.Equal(t, "open", rec.Status)
	assert.Equal(t, time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC), rec.CreatedAt.UTC())

	second := &IssueRecord{
		Namespace: "acme",
		Model:     "tower",
		Doc:       []byte(`{"id":"a2","name":"Crack","status":"closed","created":"2024-04-01T10:00:00Z"}`),
	}
	require.NoError(t, d.SaveIssue(ctx, second))
	other := &IssueRecord{Namespace: "acme", Model: "bridge", Doc: []byte(`{"id":"c3","name":"x"}`)}
	require.NoError(t, d.SaveIssue(ctx, other))

	got, err := d.GetIssue(ctx, "acme", "tower", "b1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.JSONEq(t, string(rec.Doc), string(got.Doc))
	assert.Equal(t, rec.CreatedAt.UTC(), got.CreatedAt)
	assert.Equal(t, time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC), got.UpdatedAt)

	list, err := d.ListIssues(ctx, "acme", "tower", IssueFilter{})
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "b1", list[0].ID, "oldest first")
	assert.Equal(t, "a2", list[1].ID)

	closed, err := d.ListIssues(ctx, "acme", "tower", IssueFilter{Status: "closed"})
	require.NoError(t, err)
	require.Len(t, closed, 1)
	assert.Equal(t, "a2", closed[0].ID)

	missing, err := d.GetIssue(ctx, "acme", "bridge", "b1")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestIssues_SaveReplacesAndKeepsCreated(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	d := NewTestDB(t)

	first := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	d.SetClock(fixedClock(first))
	require.NoError(t, d.SaveIssue(ctx, &IssueRecord{
		Namespace: "ns", Model: "m", Doc: []byte(`{"id":"i","name":"old","status":"open"}`),
	}))

	later := first.Add(time.Hour)
	d.SetClock(fixedClock(later))
	require.NoError(t, d.SaveIssue(ctx, &IssueRecord{
		Namespace: "ns", Model: "m", Doc: []byte(`{"id":"i","name":"new","status":"closed"}`),
	}))

	got, err := d.GetIssue(ctx, "ns", "m", "i")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "new", got.Name)
	assert.Equal(t, "closed", got.Status)
	assert.Equal(t, first, got.CreatedAt)
	assert.Equal(t, later, got.UpdatedAt)
}

func TestIssues_SaveRejectsBadDocuments(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	d := NewTestDB(t)

	assert.Error(t, d.SaveIssue(ctx, &IssueRecord{Namespace: "ns", Model: "m", Doc: []byte(`{"id":`)}))
	assert.Error(t, d.SaveIssue(ctx, &IssueRecord{Namespace: "ns", Model: "m", Doc: []byte(`{"name":"no id"}`)}))
}

func TestIssues_Delete(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	d := NewTestDB(t)

	require.NoError(t, d.SaveIssue(ctx, &IssueRecord{Namespace: "ns", Model: "m", Doc: []byte(`{"id":"i"}`)}))

	deleted, err := d.DeleteIssue(ctx, "ns", "m", "i")
	require.NoError(t, err)
	assert.True(t, deleted)

	deleted, err = d.DeleteIssue(ctx, "ns", "m", "i")
	require.NoError(t, err)
	assert.False(t, deleted)
}

func TestGroups_SaveAssignsID(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	d := NewTestDB(t)

	rec := &GroupRecord{Namespace: "ns", Model: "m", Doc: []byte(`{"name":"Leak (hidden)","objects":[]}`)}
	require.NoError(t, d.SaveGroup(ctx, rec))
	assert.NotEmpty(t, rec.ID)
	assert.Equal(t, "Leak (hidden)", rec.Name)

	got, err := d.GetGroup(ctx, "ns", "m", rec.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, rec.Name, got.Name)
	assert.JSONEq(t, string(rec.Doc), string(got.Doc))

	// Groups are scoped to their model.
	got, err = d.GetGroup(ctx, "ns", "other", rec.ID)
	require.NoError(t, err)
	assert.Nil(t, got)

	n, err := d.CountGroups(ctx, "ns", "m")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestGroups_DeleteInTx(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	d := NewTestDB(t)

	a := &GroupRecord{Namespace: "ns", Model: "m", Doc: []byte(`{"name":"a"}`)}
	b := &GroupRecord{Namespace: "ns", Model: "m", Doc: []byte(`{"name":"b"}`)}
	require.NoError(t, d.SaveGroup(ctx, a))
	require.NoError(t, d.SaveGroup(ctx, b))

	err := d.RunInTx(ctx, func(tx *TxOps) error {
		require.NoError(t, tx.SaveIssue(ctx, &IssueRecord{Namespace: "ns", Model: "m", Doc: []byte(`{"id":"i","name":"x"}`)}))
		got, err := tx.GetIssue(ctx, "ns", "m", "i")
		require.NoError(t, err)
		require.NotNil(t, got, "reads see the transaction's own writes")

		// Unknown ids and other models are not counted.
		n, err := tx.DeleteGroups(ctx, "ns", "m", []string{a.ID, "missing"})
		require.NoError(t, err)
		assert.Equal(t, 1, n)
		n, err = tx.DeleteGroups(ctx, "ns", "other", []string{b.ID})
		require.NoError(t, err)
		assert.Zero(t, n)
		return nil
	})
	require.NoError(t, err)

	n, err := d.CountGroups(ctx, "ns", "m")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	got, err := d.GetGroup(ctx, "ns", "m", b.ID)
	require.NoError(t, err)
	assert.NotNil(t, got)
}

func TestRunInTx_RollsBack(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	d := NewTestDB(t)

	boom := errors.New("boom")
	err := d.RunInTx(ctx, func(tx *TxOps) error {
		require.NoError(t, tx.SaveGroup(ctx, &GroupRecord{Namespace: "ns", Model: "m", Doc: []byte(`{}`)}))
		require.NoError(t, tx.SaveIssue(ctx, &IssueRecord{Namespace: "ns", Model: "m", Doc: []byte(`{"id":"i"}`)}))
		return boom
	})
	require.ErrorIs(t, err, boom)

	n, err := d.CountGroups(ctx, "ns", "m")
	require.NoError(t, err)
	assert.Zero(t, n)
	got, err := d.GetIssue(ctx, "ns", "m", "i")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestIFCIndex_ReplaceAndLookup(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	d := NewTestDB(t)

	entries := make(map[string]string)
	for i := range 450 {
		entries[fmt.Sprintf("guid-%03d", i)] = fmt.Sprintf("sub-%d", i%3)
	}
	entries[""] = "ignored"
	entries["no-model"] = ""

	n, err := d.ReplaceIFCIndex(ctx, "ns", "fed", entries)
	require.NoError(t, err)
	assert.Equal(t, 450, n)

	got, err := d.IFCLookup(ctx, "ns", "fed")
	require.NoError(t, err)
	assert.Len(t, got, 450)
	assert.Equal(t, "sub-1", got["guid-001"])

	// Replacing drops old entries.
	n, err = d.ReplaceIFCIndex(ctx, "ns", "fed", map[string]string{"only": "sub-9"})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	got, err = d.IFCLookup(ctx, "ns", "fed")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"only": "sub-9"}, got)

	empty, err := d.IFCLookup(ctx, "ns", "unknown")
	require.NoError(t, err)
	assert.Empty(t, empty)
}
