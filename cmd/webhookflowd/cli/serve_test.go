package cli

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/compozy/webhookflow/engine/action"
	"github.com/compozy/webhookflow/engine/condition"
	"github.com/compozy/webhookflow/engine/history"
	"github.com/compozy/webhookflow/engine/queue"
	"github.com/compozy/webhookflow/engine/retry"
	"github.com/compozy/webhookflow/engine/schedule"
	"github.com/compozy/webhookflow/engine/workflow"
	"github.com/compozy/webhookflow/engine/workflow/executor"
	"github.com/compozy/webhookflow/pkg/config"
	"github.com/compozy/webhookflow/pkg/logger"
	"github.com/compozy/webhookflow/pkg/tplengine"
)

func newTestServeEngine() *executor.Engine {
	registry := action.NewRegistry()
	hist := history.NewManager(10, history.NewMemoryStore())
	breakers := retry.NewBreakerRegistry()
	tpl := tplengine.New(tplengine.Strict, "")
	return executor.New(registry, hist, breakers, executor.NewBus(), tpl)
}

func TestRegisterWorkflows(t *testing.T) {
	t.Run("Should register a webhook-triggered definition as a queue processor", func(t *testing.T) {
		q := queue.New(10)
		sched := schedule.New(context.Background())
		engine := newTestServeEngine()
		log := logger.NewLogger(logger.TestConfig())

		def := &workflow.Definition{
			Name:    "deploy-on-push",
			Enabled: true,
			Trigger: workflow.Trigger{Type: workflow.TriggerWebhook, Event: "push"},
		}

		registerWorkflows(q, sched, engine, []*workflow.Definition{def}, log)

		assert.Equal(t, 1, q.ProcessorCount())
	})

	t.Run("Should register a schedule-triggered definition with the cron scheduler", func(t *testing.T) {
		q := queue.New(10)
		sched := schedule.New(context.Background())
		engine := newTestServeEngine()
		log := logger.NewLogger(logger.TestConfig())

		def := &workflow.Definition{
			Name:    "nightly-cleanup",
			Enabled: true,
			Trigger: workflow.Trigger{Type: workflow.TriggerSchedule, Cron: "0 0 * * *"},
		}

		registerWorkflows(q, sched, engine, []*workflow.Definition{def}, log)

		assert.Equal(t, 0, q.ProcessorCount())
	})

	t.Run("Should skip disabled definitions", func(t *testing.T) {
		q := queue.New(10)
		sched := schedule.New(context.Background())
		engine := newTestServeEngine()
		log := logger.NewLogger(logger.TestConfig())

		def := &workflow.Definition{
			Name:    "disabled-workflow",
			Enabled: false,
			Trigger: workflow.Trigger{Type: workflow.TriggerWebhook, Event: "push"},
		}

		registerWorkflows(q, sched, engine, []*workflow.Definition{def}, log)

		assert.Equal(t, 0, q.ProcessorCount())
	})

	t.Run("Should share one processor across definitions with the same trigger event", func(t *testing.T) {
		q := queue.New(10)
		sched := schedule.New(context.Background())
		engine := newTestServeEngine()
		log := logger.NewLogger(logger.TestConfig())

		defA := &workflow.Definition{
			Name:    "deploy-on-push-a",
			Enabled: true,
			Trigger: workflow.Trigger{Type: workflow.TriggerWebhook, Event: "push"},
		}
		defB := &workflow.Definition{
			Name:    "deploy-on-push-b",
			Enabled: true,
			Trigger: workflow.Trigger{Type: workflow.TriggerWebhook, Event: "push"},
		}

		registerWorkflows(q, sched, engine, []*workflow.Definition{defA, defB}, log)

		assert.Equal(t, 1, q.ProcessorCount())
	})

	t.Run("Should dispatch a delivery through the group's single processor and drain the queue", func(t *testing.T) {
		q := queue.New(10)
		engine := newTestServeEngine()
		log := logger.NewLogger(logger.TestConfig())

		matching := &workflow.Definition{
			Name:    "matches-main",
			Enabled: true,
			Trigger: workflow.Trigger{
				Type:  workflow.TriggerWebhook,
				Event: "push",
				Filters: []condition.FilterRule{
					{Field: "ref", Operator: condition.OpEquals, Value: "refs/heads/main"},
				},
			},
		}
		nonMatching := &workflow.Definition{
			Name:    "matches-release",
			Enabled: true,
			Trigger: workflow.Trigger{
				Type:  workflow.TriggerWebhook,
				Event: "push",
				Filters: []condition.FilterRule{
					{Field: "ref", Operator: condition.OpEquals, Value: "refs/heads/release"},
				},
			},
		}

		registerWebhookGroup(q, engine, "push", []*workflow.Definition{matching, nonMatching}, log)
		require.Equal(t, 1, q.ProcessorCount())

		ctx := context.Background()
		id, err := q.Enqueue("push", map[string]any{"ref": "refs/heads/main"}, nil, nil, "d1", 0)
		require.NoError(t, err)
		assert.NotEmpty(t, id)

		go q.Run(ctx)
		require.Eventually(t, func() bool { return q.Depth() == 0 }, time.Second, 10*time.Millisecond)
	})
}

func TestNewHistoryStore(t *testing.T) {
	t.Run("Should fall back to the in-memory store when postgres cannot be reached", func(t *testing.T) {
		cfg := config.Default()
		cfg.Mode = config.ModeDistributed
		cfg.History.Driver = ""
		log := logger.NewLogger(logger.TestConfig())

		store, err := newHistoryStore(context.Background(), cfg, log)

		require.NoError(t, err)
		require.NotNil(t, store)
		_, ok := store.(*history.MemoryStore)
		assert.True(t, ok)
	})
}
