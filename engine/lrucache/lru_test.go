package lrucache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetGetRoundTrip(t *testing.T) {
	c := New[string, int](4, time.Minute)
	c.Set("a", 1, 0)
	v, ok := c.Get("a")
	require.True(t, ok)
	assert.Equal(t, 1, v)
}

func TestGetExpiresEntry(t *testing.T) {
	c := New[string, int](4, time.Millisecond)
	c.Set("a", 1, time.Millisecond)
	time.Sleep(5 * time.Millisecond)
	_, ok := c.Get("a")
	assert.False(t, ok)
	assert.Equal(t, 0, c.Size())
}

func TestEvictsOldestAtCapacity(t *testing.T) {
	c := New[string, int](2, time.Minute)
	c.Set("a", 1, 0)
	c.Set("b", 2, 0)
	c.Set("c", 3, 0)
	assert.Equal(t, 2, c.Size())
	_, ok := c.Get("a")
	assert.False(t, ok, "oldest entry should have been evicted")
}

func TestInvalidateWildcard(t *testing.T) {
	c := New[string, int](10, time.Minute)
	c.Set("user:1:clusters", 1, 0)
	c.Set("user:1:topics", 2, 0)
	c.Set("user:2:clusters", 3, 0)

	n := c.Invalidate("user:1:*")
	assert.Equal(t, 2, n)
	_, ok := c.Get("user:2:clusters")
	assert.True(t, ok)
}

func TestInvalidateExactMatch(t *testing.T) {
	c := New[string, int](10, time.Minute)
	c.Set("k", 1, 0)
	assert.Equal(t, 1, c.Invalidate("k"))
	assert.Equal(t, 0, c.Size())
}

func TestCleanupExpiredRemovesOnlyExpired(t *testing.T) {
	c := New[string, int](10, time.Minute)
	c.Set("fresh", 1, time.Minute)
	c.Set("stale", 2, time.Nanosecond)
	time.Sleep(2 * time.Millisecond)

	n := c.CleanupExpired()
	assert.Equal(t, 1, n)
	assert.Equal(t, 1, c.Size())
}

func TestMoveToFrontOnGetProtectsFromEviction(t *testing.T) {
	c := New[string, int](2, time.Minute)
	c.Set("a", 1, 0)
	c.Set("b", 2, 0)
	_, _ = c.Get("a")
	c.Set("c", 3, 0)

	_, ok := c.Get("b")
	assert.False(t, ok, "b was least-recently-used and should be evicted")
	_, ok = c.Get("a")
	assert.True(t, ok)
}
