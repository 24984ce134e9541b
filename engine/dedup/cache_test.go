package dedup

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsDuplicate(t *testing.T) {
	t.Run("Should return false then true for the same (deliveryId, payload) within ttl", func(t *testing.T) {
		c := New(10, time.Minute)
		dup, err := c.IsDuplicate("d1", map[string]any{"x": 1})
		require.NoError(t, err)
		assert.False(t, dup)

		dup, err = c.IsDuplicate("d1", map[string]any{"x": 1})
		require.NoError(t, err)
		assert.True(t, dup)
	})

	t.Run("Should treat a changed deliveryId or payload as not a duplicate", func(t *testing.T) {
		c := New(10, time.Minute)
		_, err := c.IsDuplicate("d1", map[string]any{"x": 1})
		require.NoError(t, err)

		dup, err := c.IsDuplicate("d2", map[string]any{"x": 1})
		require.NoError(t, err)
		assert.False(t, dup)

		dup, err = c.IsDuplicate("d1", map[string]any{"x": 2})
		require.NoError(t, err)
		assert.False(t, dup)
	})

	t.Run("Should expire entries after the ttl window", func(t *testing.T) {
		c := New(10, 20*time.Millisecond)
		_, err := c.IsDuplicate("d1", map[string]any{"x": 1})
		require.NoError(t, err)
		time.Sleep(50 * time.Millisecond)
		dup, err := c.IsDuplicate("d1", map[string]any{"x": 1})
		require.NoError(t, err)
		assert.False(t, dup)
	})
}
