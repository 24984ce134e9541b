package workflow

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSchemaValidate(t *testing.T) {
	t.Run("Should accept a structurally well-formed definition", func(t *testing.T) {
		def := &Definition{
			Name:    "wf",
			Version: "1.0.0",
			Enabled: true,
			Trigger: Trigger{Type: TriggerWebhook, Event: "push"},
			Actions: []ActionConfig{{ID: "a", Type: "delay"}},
		}

		res, err := SchemaValidate(def)

		require.NoError(t, err)
		assert.True(t, res.OK())
	})

	t.Run("Should compile the same schema across repeated calls", func(t *testing.T) {
		def := &Definition{
			Name:    "wf",
			Trigger: Trigger{Type: TriggerWebhook, Event: "push"},
			Actions: []ActionConfig{{ID: "a", Type: "delay"}},
		}

		res1, err1 := SchemaValidate(def)
		res2, err2 := SchemaValidate(def)

		require.NoError(t, err1)
		require.NoError(t, err2)
		assert.Equal(t, res1.OK(), res2.OK())
	})
}
