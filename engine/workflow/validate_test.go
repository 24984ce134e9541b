package workflow

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAssignActionIDs(t *testing.T) {
	t.Run("Should derive an id from the action name when absent", func(t *testing.T) {
		def := &Definition{Actions: []ActionConfig{{Name: "Send Slack Message"}}}
		AssignActionIDs(def)
		assert.Equal(t, "send-slack-message", def.Actions[0].ID)
	})

	t.Run("Should disambiguate colliding slugs", func(t *testing.T) {
		def := &Definition{Actions: []ActionConfig{
			{ID: "notify"},
			{Name: "Notify"},
		}}
		AssignActionIDs(def)
		assert.NotEqual(t, def.Actions[0].ID, def.Actions[1].ID)
	})
}

func TestValidate(t *testing.T) {
	t.Run("Should require name, trigger type, and at least one action", func(t *testing.T) {
		res := Validate(&Definition{})
		require.False(t, res.OK())
		assert.GreaterOrEqual(t, len(res.Errors), 3)
	})

	t.Run("Should reject a malformed version", func(t *testing.T) {
		res := Validate(&Definition{
			Name: "wf", Version: "v1", Trigger: Trigger{Type: TriggerWebhook},
			Actions: []ActionConfig{{ID: "a", Type: "delay"}},
		})
		found := false
		for _, e := range res.Errors {
			if e.Code == "pattern" {
				found = true
			}
		}
		assert.True(t, found)
	})

	t.Run("Should accept a valid minimal workflow with no warnings triggered", func(t *testing.T) {
		res := Validate(&Definition{
			Name: "wf", Version: "1.0.0", Trigger: Trigger{Type: TriggerWebhook, Event: "pull_request.opened"},
			Actions:       []ActionConfig{{ID: "a", Type: "delay"}},
			ErrorHandling: &ErrorHandling{OnFailure: "stop"},
		})
		assert.True(t, res.OK())
		assert.Empty(t, res.Warnings)
	})

	t.Run("Should reject a cyclic dependency at registration time", func(t *testing.T) {
		res := Validate(&Definition{
			Name: "wf", Trigger: Trigger{Type: TriggerWebhook},
			Actions: []ActionConfig{
				{ID: "x", Type: "delay", DependsOn: []string{"y"}},
				{ID: "y", Type: "delay", DependsOn: []string{"x"}},
			},
		})
		require.False(t, res.OK())
	})

	t.Run("Should warn when more than 20 actions are declared", func(t *testing.T) {
		actions := make([]ActionConfig, 21)
		for i := range actions {
			actions[i] = ActionConfig{ID: string(rune('a' + i)), Type: "delay"}
		}
		res := Validate(&Definition{Name: "wf", Trigger: Trigger{Type: TriggerWebhook}, Actions: actions})
		found := false
		for _, w := range res.Warnings {
			if w.Code == "large_workflow" {
				found = true
			}
		}
		assert.True(t, found)
	})
}
