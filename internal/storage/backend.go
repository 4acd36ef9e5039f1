// Package storage provides storage backend abstraction for bcf issues,
// viewpoint object groups and the IFC index of federated models.
package storage

import (
	"context"

	"github.com/google/uuid"

	"github.com/randalmurphal/bimcollab/internal/issue"
)

// Backend defines the storage operations for bcf.
// All implementations must be safe for concurrent access.
type Backend interface {
	// Issue operations
	SaveIssue(ctx context.Context, namespace, model string, iss *issue.Issue) error
	LoadIssue(ctx context.Context, namespace, model string, id uuid.UUID) (*issue.Issue, error)
	LoadIssues(ctx context.Context, namespace, model string, status issue.Status) ([]*issue.Issue, error)
	DeleteIssue(ctx context.Context, namespace, model string, id uuid.UUID) error

	// Group operations. GetGroup makes a Backend usable as the group source
	// of a BCF export.
	SaveGroup(ctx context.Context, namespace, model string, g *issue.Group) (string, error)
	GetGroup(ctx context.Context, namespace, model, id string) (*issue.Group, error)

	// IFC index operations
	ReplaceIFCIndex(ctx context.Context, namespace, model string, entries map[string]string) (int, error)
	IFCLookup(ctx context.Context, namespace, model string) (map[string]string, error)

	// PersistImported stores the groups resolved by an import, links their
	// ids onto the viewpoints and stores the issues, atomically.
	PersistImported(ctx context.Context, namespace, model string, issues []*issue.Issue) error

	// Lifecycle
	Close() error
}
