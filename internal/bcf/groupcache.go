package bcf

import (
	"context"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/randalmurphal/bimcollab/internal/issue"
)

// GroupSource loads stored groups referenced by viewpoints during export.
type GroupSource interface {
	GetGroup(ctx context.Context, namespace, model, id string) (*issue.Group, error)
}

// groupCache memoizes group lookups for the lifetime of one export.
// Viewpoints of many issues often share a group, and concurrent builders
// share a single load via singleflight.
type groupCache struct {
	src    GroupSource
	mu     sync.RWMutex
	groups map[string]*issue.Group
	flight singleflight.Group
}

func newGroupCache(src GroupSource) *groupCache {
	return &groupCache{src: src, groups: make(map[string]*issue.Group)}
}

// Get returns the group or an error; errors are not cached.
func (c *groupCache) Get(ctx context.Context, namespace, model, id string) (*issue.Group, error) {
	key := namespace + "/" + model + "/" + id

	c.mu.RLock()
	g, ok := c.groups[key]
	c.mu.RUnlock()
	if ok {
		return g, nil
	}

	v, err, _ := c.flight.Do(key, func() (any, error) {
		c.mu.RLock()
		g, ok := c.groups[key]
		c.mu.RUnlock()
		if ok {
			return g, nil
		}

		g, err := c.src.GetGroup(ctx, namespace, model, id)
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.groups[key] = g
		c.mu.Unlock()
		return g, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*issue.Group), nil
}
