package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/tidwall/gjson"
)

// GroupRecord is a stored object group document.
type GroupRecord struct {
	ID        string
	Namespace string
	Model     string
	Name      string
	Doc       []byte
	CreatedAt time.Time
}

// SaveGroup inserts a group, assigning a new ID when it has none. Saving a
// group whose ID already exists replaces its document.
func (d *DB) SaveGroup(ctx context.Context, rec *GroupRecord) error {
	return d.saveGroup(ctx, d.driver, rec)
}

// SaveGroup inserts a group within the transaction.
func (t *TxOps) SaveGroup(ctx context.Context, rec *GroupRecord) error {
	return t.db.saveGroup(ctx, t.tx, rec)
}

func (d *DB) saveGroup(ctx context.Context, q querier, rec *GroupRecord) error {
	if !gjson.ValidBytes(rec.Doc) {
		return fmt.Errorf("save group %s: document is not valid JSON", rec.Name)
	}
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.Name == "" {
		rec.Name = gjson.GetBytes(rec.Doc, "name").String()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = d.now()
	}

	_, err := q.Exec(ctx, d.rebind(`
		INSERT INTO object_groups (id, namespace, model, name, doc, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			name = excluded.name,
			doc = excluded.doc
	`), rec.ID, rec.Namespace, rec.Model, rec.Name, string(rec.Doc), formatTime(rec.CreatedAt))
	if err != nil {
		return fmt.Errorf("save group %s: %w", rec.ID, err)
	}
	return nil
}

// GetGroup returns a group of a model, or nil if it does not exist.
func (d *DB) GetGroup(ctx context.Context, namespace, model, id string) (*GroupRecord, error) {
	var rec GroupRecord
	var doc, created string
	err := d.driver.QueryRow(ctx, d.rebind(`
		SELECT id, namespace, model, name, doc, created_at
		FROM object_groups WHERE namespace = ? AND model = ? AND id = ?
	`), namespace, model, id).Scan(&rec.ID, &rec.Namespace, &rec.Model, &rec.Name, &doc, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get group %s: %w", id, err)
	}
	rec.Doc = []byte(doc)
	rec.CreatedAt = parseTime(created)
	return &rec, nil
}

// DeleteGroups removes groups of a model and returns how many existed.
func (d *DB) DeleteGroups(ctx context.Context, namespace, model string, ids []string) (int, error) {
	return d.deleteGroups(ctx, d.driver, namespace, model, ids)
}

// DeleteGroups removes groups within the transaction.
func (t *TxOps) DeleteGroups(ctx context.Context, namespace, model string, ids []string) (int, error) {
	return t.db.deleteGroups(ctx, t.tx, namespace, model, ids)
}

func (d *DB) deleteGroups(ctx context.Context, q querier, namespace, model string, ids []string) (int, error) {
	query := d.rebind("DELETE FROM object_groups WHERE namespace = ? AND model = ? AND id = ?")
	deleted := 0
	for _, id := range ids {
		res, err := q.Exec(ctx, query, namespace, model, id)
		if err != nil {
			return deleted, fmt.Errorf("delete group %s: %w", id, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return deleted, fmt.Errorf("delete group %s: %w", id, err)
		}
		deleted += int(n)
	}
	return deleted, nil
}

// CountGroups returns how many groups a model has.
func (d *DB) CountGroups(ctx context.Context, namespace, model string) (int, error) {
	var n int
	err := d.driver.QueryRow(ctx, d.rebind(
		"SELECT COUNT(*) FROM object_groups WHERE namespace = ? AND model = ?"), namespace, model).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count groups: %w", err)
	}
	return n, nil
}
