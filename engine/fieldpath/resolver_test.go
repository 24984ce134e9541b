package fieldpath

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolve(t *testing.T) {
	t.Run("Should resolve a nested property path", func(t *testing.T) {
		data := map[string]any{"pull_request": map[string]any{"number": float64(42)}}
		v, err := Resolve(data, "pull_request.number", DefaultOptions())
		require.NoError(t, err)
		assert.Equal(t, float64(42), v)
	})

	t.Run("Should resolve a negative array index from the end", func(t *testing.T) {
		data := map[string]any{"items": []any{"a", "b", "c"}}
		v, err := Resolve(data, "items[-1]", DefaultOptions())
		require.NoError(t, err)
		assert.Equal(t, "c", v)
	})

	t.Run("Should return default value for a missing path when graceful", func(t *testing.T) {
		data := map[string]any{"a": 1}
		opts := DefaultOptions()
		opts.DefaultValue = "fallback"
		v, err := Resolve(data, "a.b.c", opts)
		require.NoError(t, err)
		assert.Equal(t, "fallback", v)
	})

	t.Run("Should error on a missing path when not graceful", func(t *testing.T) {
		data := map[string]any{"a": 1}
		opts := DefaultOptions()
		opts.Graceful = false
		_, err := Resolve(data, "a.b", opts)
		assert.Error(t, err)
	})

	t.Run("Should expand [*] across a sequence applying the remainder element-wise", func(t *testing.T) {
		data := map[string]any{
			"items": []any{
				map[string]any{"name": "a"},
				map[string]any{"name": "b"},
				map[string]any{"other": "c"},
			},
		}
		v, err := Resolve(data, "items[*].name", DefaultOptions())
		require.NoError(t, err)
		assert.Equal(t, []any{"a", "b"}, v)
	})

	t.Run("Should return the sequence as-is when [*] is terminal", func(t *testing.T) {
		data := map[string]any{"items": []any{1, 2, 3}}
		v, err := Resolve(data, "items[*]", DefaultOptions())
		require.NoError(t, err)
		assert.Equal(t, []any{1, 2, 3}, v)
	})

	t.Run("Should filter array elements by key=value", func(t *testing.T) {
		data := map[string]any{
			"labels": []any{
				map[string]any{"name": "bug"},
				map[string]any{"name": "feature"},
			},
		}
		v, err := Resolve(data, `labels[name="bug"]`, DefaultOptions())
		require.NoError(t, err)
		assert.Equal(t, []any{map[string]any{"name": "bug"}}, v)
	})

	t.Run("Should treat a present null as missing only when configured", func(t *testing.T) {
		data := map[string]any{"a": nil}
		v, err := Resolve(data, "a", DefaultOptions())
		require.NoError(t, err)
		assert.Nil(t, v)

		opts := DefaultOptions()
		opts.TreatNullAsMissing = true
		opts.DefaultValue = "was null"
		v, err = Resolve(data, "a", opts)
		require.NoError(t, err)
		assert.Equal(t, "was null", v)
	})

	t.Run("Should cap recursion at maxDepth", func(t *testing.T) {
		opts := DefaultOptions()
		opts.MaxDepth = 1
		opts.Graceful = false
		data := map[string]any{"items": []any{map[string]any{"items": []any{map[string]any{"v": 1}}}}}
		_, err := Resolve(data, "items[*].items[*].v", opts)
		assert.Error(t, err)
	})

	t.Run("Should never mutate the input data", func(t *testing.T) {
		data := map[string]any{"items": []any{1, 2, 3}}
		snapshot := map[string]any{"items": []any{1, 2, 3}}
		_, err := Resolve(data, "items[0]", DefaultOptions())
		require.NoError(t, err)
		assert.Equal(t, snapshot, data)
	})
}
