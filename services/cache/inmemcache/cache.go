package inmemcache

import (
	"context"
	"sync"
	"time"

	"github.com/trezcool/gradebook/core"
	"github.com/trezcool/gradebook/core/assignment"
)

type entry struct {
	assignments []assignment.Assignment
	expiresAt   time.Time
}

type cache struct {
	mu      sync.RWMutex
	ttl     time.Duration
	entries map[string]entry
}

var _ assignment.Cache = (*cache)(nil)

// NewAssignmentCache returns an in-process assignment cache. Entries expire after ttl.
func NewAssignmentCache(ttl time.Duration) assignment.Cache {
	return &cache{ttl: ttl, entries: make(map[string]entry)}
}

func copyAssignments(as []assignment.Assignment) []assignment.Assignment {
	return append(make([]assignment.Assignment, 0, len(as)), as...)
}

func (c *cache) Get(_ context.Context, courseID string) ([]assignment.Assignment, bool, error) {
	c.mu.RLock()
	e, ok := c.entries[courseID]
	c.mu.RUnlock()

	if !ok {
		return nil, false, nil
	}
	if !core.NowFunc().Before(e.expiresAt) {
		c.mu.Lock()
		delete(c.entries, courseID)
		c.mu.Unlock()
		return nil, false, nil
	}
	return copyAssignments(e.assignments), true, nil
}

func (c *cache) Set(_ context.Context, courseID string, as []assignment.Assignment) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[courseID] = entry{assignments: copyAssignments(as), expiresAt: core.NowFunc().Add(c.ttl)}
	return nil
}

func (c *cache) Invalidate(_ context.Context, courseIDs ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, id := range courseIDs {
		delete(c.entries, id)
	}
	return nil
}
