// Package schedule implements the in-process cron dispatcher for
// schedule-type triggers (spec.md §3's TriggerSchedule, elaborated in
// SPEC_FULL.md §4.11): no distributed scheduling, no persistence of missed
// fires across restart — a single robfig/cron/v3 scheduler per process.
package schedule

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/compozy/webhookflow/engine/workflow"
	"github.com/compozy/webhookflow/engine/workflow/executor"
	"github.com/compozy/webhookflow/pkg/logger"
)

// Runner executes a workflow when its schedule fires.
type Runner interface {
	Execute(ctx context.Context, def *workflow.Definition, trigger executor.TriggerContext, executionID string) (workflow.ExecutionResult, error)
}

// Scheduler dispatches schedule-triggered workflow executions.
type Scheduler struct {
	cron *cron.Cron
	ctx  context.Context
}

// New constructs a Scheduler bound to ctx. Every execution it dispatches
// runs under ctx, so cancelling ctx also cancels in-flight executions;
// entries keep firing until Stop is called.
func New(ctx context.Context) *Scheduler {
	return &Scheduler{cron: cron.New(), ctx: ctx}
}

// Register adds def to the schedule if its trigger is of type schedule,
// returning the cron entry id. Workflows with any other trigger type are a
// no-op.
func (s *Scheduler) Register(runner Runner, def *workflow.Definition) (cron.EntryID, error) {
	if def.Trigger.Type != workflow.TriggerSchedule {
		return 0, nil
	}
	spec := def.Trigger.Cron
	if spec == "" {
		return 0, fmt.Errorf("schedule: workflow %q has trigger type schedule but no cron expression", def.Name)
	}
	log := logger.FromContext(s.ctx).With("workflow", def.Name)
	return s.cron.AddFunc(spec, func() {
		now := time.Now().UTC()
		trigger := executor.TriggerContext{
			Event:     "schedule",
			Timestamp: now.Format(time.RFC3339),
			Payload:   map[string]any{"scheduled_at": now.Format(time.RFC3339)},
		}
		if _, err := runner.Execute(s.ctx, def, trigger, ""); err != nil {
			log.Error("schedule: execution failed", "error", err)
		}
	})
}

// Start begins dispatching registered schedules in the background.
func (s *Scheduler) Start() { s.cron.Start() }

// Stop halts dispatch without waiting; the returned context is done once
// any running job functions have returned.
func (s *Scheduler) Stop() context.Context { return s.cron.Stop() }
