package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/tidwall/gjson"
)

// IssueRecord is a stored issue document.
type IssueRecord struct {
	Namespace string
	Model     string
	ID        string
	Name      string
	Status    string
	Doc       []byte
	CreatedAt time.Time
	UpdatedAt time.Time
}

// IssueFilter narrows ListIssues. Empty fields match everything.
type IssueFilter struct {
	Status string
}

// SaveIssue inserts or replaces an issue. ID, Name, Status and CreatedAt are
// taken from the document ("id", "name", "status", "created") when unset.
func (d *DB) SaveIssue(ctx context.Context, rec *IssueRecord) error {
	return d.saveIssue(ctx, d.driver, rec)
}

// SaveIssue inserts or replaces an issue within the transaction.
func (t *TxOps) SaveIssue(ctx context.Context, rec *IssueRecord) error {
	return t.db.saveIssue(ctx, t.tx, rec)
}

func (d *DB) saveIssue(ctx context.Context, q querier, rec *IssueRecord) error {
	if !gjson.ValidBytes(rec.Doc) {
		return fmt.Errorf("save issue %s: document is not valid JSON", rec.ID)
	}
	fields := gjson.GetManyBytes(rec.Doc, "id", "name", "status", "created")
	if rec.ID == "" {
		rec.ID = fields[0].String()
	}
	if rec.ID == "" {
		return fmt.Errorf("save issue: missing id")
	}
	if rec.Name == "" {
		rec.Name = fields[1].String()
	}
	if rec.Status == "" {
		rec.Status = fields[2].String()
	}
	now := d.now()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = fields[3].Time()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	rec.UpdatedAt = now

	_, err := q.Exec(ctx, d.rebind(`
		INSERT INTO issues (namespace, model, id, name, status, doc, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (namespace, model, id) DO UPDATE SET
			name = excluded.name,
			status = excluded.status,
			doc = excluded.doc,
			updated_at = excluded.updated_at
	`), rec.Namespace, rec.Model, rec.ID, rec.Name, rec.Status, string(rec.Doc),
		formatTime(rec.CreatedAt), formatTime(rec.UpdatedAt))
	if err != nil {
		return fmt.Errorf("save issue %s: %w", rec.ID, err)
	}
	return nil
}

// GetIssue returns an issue, or nil if it does not exist.
func (d *DB) GetIssue(ctx context.Context, namespace, model, id string) (*IssueRecord, error) {
	return d.getIssue(ctx, d.driver, namespace, model, id)
}

// GetIssue returns an issue within the transaction, or nil if it does not exist.
func (t *TxOps) GetIssue(ctx context.Context, namespace, model, id string) (*IssueRecord, error) {
	return t.db.getIssue(ctx, t.tx, namespace, model, id)
}

func (d *DB) getIssue(ctx context.Context, q querier, namespace, model, id string) (*IssueRecord, error) {
	row := q.QueryRow(ctx, d.rebind(`
		SELECT namespace, model, id, name, status, doc, created_at, updated_at
		FROM issues WHERE namespace = ? AND model = ? AND id = ?
	`), namespace, model, id)
	rec, err := scanIssue(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get issue %s: %w", id, err)
	}
	return rec, nil
}

// ListIssues returns the issues of a model, oldest first.
func (d *DB) ListIssues(ctx context.Context, namespace, model string, filter IssueFilter) ([]IssueRecord, error) {
	query := `
		SELECT namespace, model, id, name, status, doc, created_at, updated_at
		FROM issues WHERE namespace = ? AND model = ?`
	args := []any{namespace, model}
	if filter.Status != "" {
		query += " AND status = ?"
		args = append(args, filter.Status)
	}
	query += " ORDER BY created_at, id"

	rows, err := d.driver.Query(ctx, d.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("list issues: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []IssueRecord
	for rows.Next() {
		rec, err := scanIssue(rows)
		if err != nil {
			return nil, fmt.Errorf("scan issue: %w", err)
		}
		out = append(out, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate issues: %w", err)
	}
	return out, nil
}

// DeleteIssue removes an issue and reports whether it existed.
func (d *DB) DeleteIssue(ctx context.Context, namespace, model, id string) (bool, error) {
	res, err := d.driver.Exec(ctx, d.rebind(
		"DELETE FROM issues WHERE namespace = ? AND model = ? AND id = ?"), namespace, model, id)
	if err != nil {
		return false, fmt.Errorf("delete issue %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete issue %s: %w", id, err)
	}
	return n > 0, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanIssue(s scanner) (*IssueRecord, error) {
	var rec IssueRecord
	var doc, created, updated string
	if err := s.Scan(&rec.Namespace, &rec.Model, &rec.ID, &rec.Name, &rec.Status, &doc, &created, &updated); err != nil {
		return nil, err
	}
	rec.Doc = []byte(doc)
	rec.CreatedAt = parseTime(created)
	rec.UpdatedAt = parseTime(updated)
	return &rec, nil
}
