package review

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResultCache(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	cache := NewResultCache(time.Hour, clock)

	hash := ContentHash("x = 1\n")
	state := PipelineState{Subject: "a.py", Report: "Code looks clean! No issues found."}

	t.Run("Miss before put", func(t *testing.T) {
		_, ok := cache.Get(hash)
		assert.False(t, ok)
	})

	cache.Put(hash, state)

	t.Run("Hit within TTL", func(t *testing.T) {
		now = now.Add(59 * time.Minute)
		got, ok := cache.Get(hash)
		require.True(t, ok)
		assert.Equal(t, state, got)
	})

	t.Run("Expired entry treated as absent", func(t *testing.T) {
		now = now.Add(2 * time.Minute)
		_, ok := cache.Get(hash)
		assert.False(t, ok)
	})
}

func TestContentHash(t *testing.T) {
	a := ContentHash("def f():\n    pass\n")
	b := ContentHash("def f():\n    pass\n")
	c := ContentHash("def g():\n    pass\n")

	assert.Equal(t, a, b, "identical text always yields the same key")
	assert.NotEqual(t, a, c)
	assert.Len(t, a, 64)
}
