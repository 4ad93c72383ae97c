package resilience

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/llmjudge/evalengine/internal/domain"
)

func key(s string) domain.CacheKey { return domain.CacheKey{Fingerprint: s} }

func TestCacheGetMissOnEmpty(t *testing.T) {
	c := NewResponseCache(time.Minute, 10, nil)
	_, ok := c.Get(key("a"))
	assert.False(t, ok)
}

func TestCachePutThenGet(t *testing.T) {
	c := NewResponseCache(time.Minute, 10, nil)
	c.Put(key("a"), "value-a")
	v, ok := c.Get(key("a"))
	require.True(t, ok)
	assert.Equal(t, "value-a", v)
}

func TestCacheExpiresOnAccess(t *testing.T) {
	c := NewResponseCache(5*time.Millisecond, 10, nil)
	c.Put(key("a"), "value-a")
	time.Sleep(15 * time.Millisecond)
	_, ok := c.Get(key("a"))
	assert.False(t, ok)
	assert.Equal(t, 0, c.Stats().Size)
}

func TestCacheEvictsLeastRecentlyAccessed(t *testing.T) {
	c := NewResponseCache(time.Minute, 2, nil)
	c.Put(key("a"), "value-a")
	time.Sleep(time.Millisecond)
	c.Put(key("b"), "value-b")

	// Access "a" so "b" becomes the least-recently-accessed entry.
	time.Sleep(time.Millisecond)
	_, _ = c.Get(key("a"))

	c.Put(key("c"), "value-c")

	_, okA := c.Get(key("a"))
	_, okB := c.Get(key("b"))
	_, okC := c.Get(key("c"))
	assert.True(t, okA)
	assert.False(t, okB)
	assert.True(t, okC)
}

func TestCacheClear(t *testing.T) {
	c := NewResponseCache(time.Minute, 10, nil)
	c.Put(key("a"), "value-a")
	c.Clear()
	assert.Equal(t, 0, c.Stats().Size)
	_, ok := c.Get(key("a"))
	assert.False(t, ok)
}

func TestCacheStats(t *testing.T) {
	c := NewResponseCache(time.Minute, 5, nil)
	c.Put(key("a"), "value-a")
	c.Put(key("b"), "value-b")
	stats := c.Stats()
	assert.Equal(t, 2, stats.Size)
	assert.Equal(t, 5, stats.MaxSize)
}

func TestNewCacheKeyDeterministic(t *testing.T) {
	req := domain.EvaluationRequest{
		Prompt:        "  What is 2+2?  ",
		Response:      "4",
		Operation:     domain.OperationEvaluate,
		CriteriaLabel: "accuracy",
	}
	k1 := domain.NewCacheKey(req)
	req.Prompt = "what is 2+2?"
	k2 := domain.NewCacheKey(req)
	assert.Equal(t, k1.Fingerprint, k2.Fingerprint, "normalization should make these equivalent")
}
