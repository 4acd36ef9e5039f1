package db

import (
	"context"
	"fmt"
	"sort"
	"strings"
)

// indexBatch bounds rows per INSERT; SQLite caps bound parameters per
// statement.
const indexBatch = 200

// ReplaceIFCIndex replaces the IFC GUID to sub-model index of a federated
// model. It returns the number of entries stored.
func (d *DB) ReplaceIFCIndex(ctx context.Context, namespace, model string, entries map[string]string) (int, error) {
	guids := make([]string, 0, len(entries))
	for guid := range entries {
		if guid != "" && entries[guid] != "" {
			guids = append(guids, guid)
		}
	}
	sort.Strings(guids)

	err := d.RunInTx(ctx, func(tx *TxOps) error {
		if _, err := tx.tx.Exec(ctx, d.rebind(
			"DELETE FROM ifc_index WHERE namespace = ? AND model = ?"), namespace, model); err != nil {
			return fmt.Errorf("clear ifc index: %w", err)
		}
		for start := 0; start < len(guids); start += indexBatch {
			batch := guids[start:min(start+indexBatch, len(guids))]
			values := make([]string, len(batch))
			args := make([]any, 0, len(batch)*4)
			for i, guid := range batch {
				values[i] = "(?, ?, ?, ?)"
				args = append(args, namespace, model, guid, entries[guid])
			}
			query := "INSERT INTO ifc_index (namespace, model, ifc_guid, sub_model) VALUES " +
				strings.Join(values, ", ")
			if _, err := tx.tx.Exec(ctx, d.rebind(query), args...); err != nil {
				return fmt.Errorf("insert ifc index: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return len(guids), nil
}

// IFCLookup returns the IFC GUID to sub-model index of a federated model.
func (d *DB) IFCLookup(ctx context.Context, namespace, model string) (map[string]string, error) {
	rows, err := d.driver.Query(ctx, d.rebind(
		"SELECT ifc_guid, sub_model FROM ifc_index WHERE namespace = ? AND model = ?"), namespace, model)
	if err != nil {
		return nil, fmt.Errorf("query ifc index: %w", err)
	}
	defer func() { _ = rows.Close() }()

	out := make(map[string]string)
	for rows.Next() {
		var guid, sub string
		if err := rows.Scan(&guid, &sub); err != nil {
			return nil, fmt.Errorf("scan ifc index: %w", err)
		}
		out[guid] = sub
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate ifc index: %w", err)
	}
	return out, nil
}
