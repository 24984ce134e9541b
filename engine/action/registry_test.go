package action

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDelayExecutor(t *testing.T) {
	t.Run("Should report zero wait when seconds is absent", func(t *testing.T) {
		r := NewRegistry()
		val, err := r.Execute(context.Background(), "delay", map[string]any{}, Context{})
		require.NoError(t, err)
		assert.Equal(t, map[string]any{"waited": 0}, val)
	})
}

func TestConditionalExecutor(t *testing.T) {
	t.Run("Should evaluate its condition instead of always returning true", func(t *testing.T) {
		r := NewRegistry()
		params := map[string]any{
			"if": map[string]any{
				"operator": "AND",
				"rules": []any{
					map[string]any{"field": "trigger.payload.x", "operator": "equals", "value": float64(1)},
				},
			},
		}
		execCtx := Context{Payload: map[string]any{"x": float64(2)}}
		val, err := r.Execute(context.Background(), "conditional", params, execCtx)
		require.NoError(t, err)
		assert.Equal(t, map[string]any{"matched": false}, val)
	})
}

func TestLoopExecutor(t *testing.T) {
	t.Run("Should recurse into the registry for each resolved item", func(t *testing.T) {
		r := NewRegistry()
		var seen []any
		r.Register("record", func(_ context.Context, params map[string]any, execCtx Context) (any, error) {
			seen = append(seen, execCtx.Variables["item"])
			return params, nil
		})
		params := map[string]any{
			"items":  "trigger.payload.list",
			"action": map[string]any{"type": "record", "params": map[string]any{}},
		}
		execCtx := Context{Payload: map[string]any{"list": []any{"a", "b", "c"}}}
		val, err := r.Execute(context.Background(), "loop", params, execCtx)
		require.NoError(t, err)
		result := val.(map[string]any)
		assert.Equal(t, 3, result["count"])
		assert.Equal(t, []any{"a", "b", "c"}, seen)
	})

	t.Run("Should cap iterations at the hard ceiling", func(t *testing.T) {
		r := NewRegistry()
		r.Register("noop", func(_ context.Context, _ map[string]any, _ Context) (any, error) { return nil, nil })
		items := make([]any, 2000)
		for i := range items {
			items[i] = i
		}
		params := map[string]any{
			"items":         "trigger.payload.list",
			"action":        map[string]any{"type": "noop"},
			"maxIterations": float64(5000),
		}
		execCtx := Context{Payload: map[string]any{"list": items}}
		val, err := r.Execute(context.Background(), "loop", params, execCtx)
		require.NoError(t, err)
		result := val.(map[string]any)
		assert.Equal(t, maxLoopIterations, result["count"])
	})
}

func TestNamespacedPassthrough(t *testing.T) {
	t.Run("Should refuse to run until a real implementation is registered", func(t *testing.T) {
		r := NewRegistry()
		_, err := r.Execute(context.Background(), "github_", map[string]any{}, Context{})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "not implemented in this deployment")
	})
}

func TestUnknownActionType(t *testing.T) {
	t.Run("Should error for an unregistered action type", func(t *testing.T) {
		r := NewRegistry()
		_, err := r.Execute(context.Background(), "nonexistent", nil, Context{})
		require.Error(t, err)
	})
}
