package inmemcache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/gradebook/core"
	"github.com/trezcool/gradebook/core/assignment"
)

func TestCache(t *testing.T) {
	ctx := context.Background()
	now := time.Now().UTC()
	orig := core.NowFunc
	core.NowFunc = func() time.Time { return now }
	t.Cleanup(func() { core.NowFunc = orig })

	c := NewAssignmentCache(time.Minute)

	_, ok, err := c.Get(ctx, "c1")
	require.NoError(t, err)
	assert.False(t, ok)

	as := []assignment.Assignment{{ID: "a1", Title: "Fractions"}}
	require.NoError(t, c.Set(ctx, "c1", as))
	as[0].Title = "changed"

	got, ok, err := c.Get(ctx, "c1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "Fractions", got[0].Title, "stored a copy")

	require.NoError(t, c.Set(ctx, "c2", nil))
	got, ok, _ = c.Get(ctx, "c2")
	assert.True(t, ok)
	assert.NotNil(t, got)

	require.NoError(t, c.Invalidate(ctx, "c1", "unknown"))
	_, ok, _ = c.Get(ctx, "c1")
	assert.False(t, ok)

	now = now.Add(time.Minute)
	_, ok, _ = c.Get(ctx, "c2")
	assert.False(t, ok, "expired")
}
