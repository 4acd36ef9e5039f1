package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/randalmurphal/bimcollab/internal/bcf"
	"github.com/randalmurphal/bimcollab/internal/db"
	bcferrors "github.com/randalmurphal/bimcollab/internal/errors"
	"github.com/randalmurphal/bimcollab/internal/issue"
)

// DatabaseBackend stores issues and groups as JSON documents in SQLite or
// PostgreSQL.
type DatabaseBackend struct {
	db     *db.DB
	logger *slog.Logger
}

var (
	_ Backend         = (*DatabaseBackend)(nil)
	_ bcf.GroupSource = (*DatabaseBackend)(nil)
)

// NewDatabaseBackend wraps an open database.
func NewDatabaseBackend(d *db.DB) *DatabaseBackend {
	return &DatabaseBackend{db: d, logger: slog.Default()}
}

// SetLogger sets the logger for debug messages.
func (b *DatabaseBackend) SetLogger(l *slog.Logger) {
	b.logger = l
}

// DB returns the underlying database for direct access.
func (b *DatabaseBackend) DB() *db.DB {
	return b.db
}

// Close releases the database.
func (b *DatabaseBackend) Close() error {
	return b.db.Close()
}

// SaveIssue validates and stores an issue.
func (b *DatabaseBackend) SaveIssue(ctx context.Context, namespace, model string, iss *issue.Issue) error {
	rec, err := issueRecord(namespace, model, iss)
	if err != nil {
		return err
	}
	return b.db.SaveIssue(ctx, rec)
}

// LoadIssue returns an issue or an ISSUE_NOT_FOUND error.
func (b *DatabaseBackend) LoadIssue(ctx context.Context, namespace, model string, id uuid.UUID) (*issue.Issue, error) {
	rec, err := b.db.GetIssue(ctx, namespace, model, id.String())
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, bcferrors.ErrIssueNotFound(id.String())
	}
	return decodeIssue(rec.Doc)
}

// LoadIssues returns the issues of a model, oldest first. An empty status
// returns every issue.
func (b *DatabaseBackend) LoadIssues(ctx context.Context, namespace, model string, status issue.Status) ([]*issue.Issue, error) {
	recs, err := b.db.ListIssues(ctx, namespace, model, db.IssueFilter{Status: string(status)})
	if err != nil {
		return nil, err
	}
	out := make([]*issue.Issue, 0, len(recs))
	for _, rec := range recs {
		iss, err := decodeIssue(rec.Doc)
		if err != nil {
			return nil, err
		}
		out = append(out, iss)
	}
	return out, nil
}

// DeleteIssue removes an issue or returns ISSUE_NOT_FOUND.
func (b *DatabaseBackend) DeleteIssue(ctx context.Context, namespace, model string, id uuid.UUID) error {
	deleted, err := b.db.DeleteIssue(ctx, namespace, model, id.String())
	if err != nil {
		return err
	}
	if !deleted {
		return bcferrors.ErrIssueNotFound(id.String())
	}
	return nil
}

// SaveGroup stores a group and returns its id, assigning one when the group
// has none.
func (b *DatabaseBackend) SaveGroup(ctx context.Context, namespace, model string, g *issue.Group) (string, error) {
	rec, err := groupRecord(namespace, model, g)
	if err != nil {
		return "", err
	}
	if err := b.db.SaveGroup(ctx, rec); err != nil {
		return "", err
	}
	g.ID = rec.ID
	return rec.ID, nil
}

// GetGroup returns a group or a GROUP_NOT_FOUND error.
func (b *DatabaseBackend) GetGroup(ctx context.Context, namespace, model, id string) (*issue.Group, error) {
	rec, err := b.db.GetGroup(ctx, namespace, model, id)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, bcferrors.ErrGroupNotFound(id)
	}
	var g issue.Group
	if err := json.Unmarshal(rec.Doc, &g); err != nil {
		return nil, fmt.Errorf("decode group %s: %w", id, err)
	}
	g.ID = rec.ID
	return &g, nil
}

// ReplaceIFCIndex replaces the IFC GUID to sub-model index of a model.
func (b *DatabaseBackend) ReplaceIFCIndex(ctx context.Context, namespace, model string, entries map[string]string) (int, error) {
	return b.db.ReplaceIFCIndex(ctx, namespace, model, entries)
}

// IFCLookup returns the IFC GUID to sub-model index of a model.
func (b *DatabaseBackend) IFCLookup(ctx context.Context, namespace, model string) (map[string]string, error) {
	return b.db.IFCLookup(ctx, namespace, model)
}

// PersistImported stores imported issues in one transaction. Each resolved
// group is saved, its id written to the viewpoint's group reference and the
// group payload cleared from the viewpoint before the issue is stored. Groups
// of a replaced issue that the new version no longer references are deleted.
// The caller's viewpoints are relinked only once the transaction commits.
func (b *DatabaseBackend) PersistImported(ctx context.Context, namespace, model string, issues []*issue.Issue) error {
	linked := make([]*issue.Issue, len(issues))
	var groups, stale int
	err := b.db.RunInTx(ctx, func(tx *db.TxOps) error {
		groups, stale = 0, 0
		for i, iss := range issues {
			cp, n, err := linkGroups(ctx, tx, namespace, model, iss)
			if err != nil {
				return err
			}
			groups += n
			rec, err := issueRecord(namespace, model, cp)
			if err != nil {
				return err
			}
			old, err := staleGroups(ctx, tx, namespace, model, cp)
			if err != nil {
				return err
			}
			if len(old) > 0 {
				n, err := tx.DeleteGroups(ctx, namespace, model, old)
				if err != nil {
					return err
				}
				stale += n
			}
			if err := tx.SaveIssue(ctx, rec); err != nil {
				return err
			}
			linked[i] = cp
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("persist imported issues: %w", err)
	}
	for i, iss := range issues {
		for j, vp := range iss.Viewpoints {
			if vp != nil {
				*vp = *linked[i].Viewpoints[j]
			}
		}
	}
	b.logger.Debug("persisted imported issues", "namespace", namespace, "model", model,
		"issues", len(issues), "groups", groups, "replaced_groups", stale)
	return nil
}

// linkGroups saves the inline groups of iss and returns a copy whose
// viewpoints reference them by id. iss itself is left untouched.
func linkGroups(ctx context.Context, tx *db.TxOps, namespace, model string, iss *issue.Issue) (*issue.Issue, int, error) {
	cp := *iss
	cp.Viewpoints = make([]*issue.Viewpoint, len(iss.Viewpoints))
	saved := 0
	for j, vp := range iss.Viewpoints {
		if vp == nil {
			continue
		}
		v := *vp
		slots := []struct {
			group **issue.Group
			ref   *string
		}{
			{&v.HighlightedGroup, &v.HighlightedGroupID},
			{&v.HiddenGroup, &v.HiddenGroupID},
			{&v.ShownGroup, &v.ShownGroupID},
		}
		for _, slot := range slots {
			if *slot.group == nil {
				continue
			}
			rec, err := groupRecord(namespace, model, *slot.group)
			if err != nil {
				return nil, 0, err
			}
			if err := tx.SaveGroup(ctx, rec); err != nil {
				return nil, 0, err
			}
			*slot.ref = rec.ID
			*slot.group = nil
			saved++
		}
		cp.Viewpoints[j] = &v
	}
	return &cp, saved, nil
}

// staleGroups returns the group ids of the stored version of iss that iss no
// longer references.
func staleGroups(ctx context.Context, tx *db.TxOps, namespace, model string, iss *issue.Issue) ([]string, error) {
	rec, err := tx.GetIssue(ctx, namespace, model, iss.ID.String())
	if err != nil || rec == nil {
		return nil, err
	}
	prev, err := decodeIssue(rec.Doc)
	if err != nil {
		return nil, err
	}
	keep := map[string]bool{}
	for _, vp := range iss.Viewpoints {
		for _, id := range groupIDs(vp) {
			keep[id] = true
		}
	}
	var out []string
	for _, vp := range prev.Viewpoints {
		for _, id := range groupIDs(vp) {
			if !keep[id] {
				keep[id] = true
				out = append(out, id)
			}
		}
	}
	return out, nil
}

func groupIDs(vp *issue.Viewpoint) []string {
	if vp == nil {
		return nil
	}
	var ids []string
	for _, id := range []string{vp.HighlightedGroupID, vp.HiddenGroupID, vp.ShownGroupID} {
		if id != "" {
			ids = append(ids, id)
		}
	}
	return ids
}

func issueRecord(namespace, model string, iss *issue.Issue) (*db.IssueRecord, error) {
	if err := iss.Validate().ToError(); err != nil {
		return nil, fmt.Errorf("issue %s: %w", iss.ID, err)
	}
	doc, err := json.Marshal(iss)
	if err != nil {
		return nil, fmt.Errorf("encode issue %s: %w", iss.ID, err)
	}
	return &db.IssueRecord{
		Namespace: namespace,
		Model:     model,
		ID:        iss.ID.String(),
		Name:      iss.Name,
		Status:    string(iss.Status),
		Doc:       doc,
		CreatedAt: iss.Created,
	}, nil
}

func groupRecord(namespace, model string, g *issue.Group) (*db.GroupRecord, error) {
	doc, err := json.Marshal(g)
	if err != nil {
		return nil, fmt.Errorf("encode group %s: %w", g.Name, err)
	}
	return &db.GroupRecord{ID: g.ID, Namespace: namespace, Model: model, Name: g.Name, Doc: doc}, nil
}

func decodeIssue(doc []byte) (*issue.Issue, error) {
	var iss issue.Issue
	if err := json.Unmarshal(doc, &iss); err != nil {
		return nil, fmt.Errorf("decode issue: %w", err)
	}
	return &iss, nil
}
