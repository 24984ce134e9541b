// Package executor implements the per-execution orchestrator (C6): trigger
// context construction, stage scheduling via engine/dag, per-action
// condition gating via engine/condition, parameter resolution via
// pkg/tplengine, the retry loop via engine/retry, and history recording via
// engine/history.
package executor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/compozy/webhookflow/engine/action"
	"github.com/compozy/webhookflow/engine/condition"
	"github.com/compozy/webhookflow/engine/dag"
	"github.com/compozy/webhookflow/engine/errs"
	"github.com/compozy/webhookflow/engine/history"
	"github.com/compozy/webhookflow/engine/idgen"
	inframetrics "github.com/compozy/webhookflow/engine/infra/metrics"
	"github.com/compozy/webhookflow/engine/retry"
	"github.com/compozy/webhookflow/engine/workflow"
	"github.com/compozy/webhookflow/pkg/logger"
	"github.com/compozy/webhookflow/pkg/tplengine"
)

const (
	defaultExecutionTimeout = 300 * time.Second
	defaultActionTimeout    = 300 * time.Second
)

var tracer = otel.Tracer("github.com/compozy/webhookflow/engine/workflow/executor")

// Engine runs workflow executions end to end.
type Engine struct {
	registry *action.Registry
	history  *history.Manager
	breakers *retry.BreakerRegistry
	bus      *Bus
	tpl      *tplengine.Engine
	metrics  *inframetrics.Registry
}

// SetMetrics attaches a metrics registry recording execution outcomes and
// durations. Passing nil keeps metric recording a no-op.
func (e *Engine) SetMetrics(reg *inframetrics.Registry) {
	e.metrics = reg
}

// New constructs an Engine. tpl is shared across executions; its Mode
// determines strict/lenient unresolved-path behavior for all parameter
// resolution (spec.md §4.3).
func New(registry *action.Registry, historyMgr *history.Manager, breakers *retry.BreakerRegistry, bus *Bus, tpl *tplengine.Engine) *Engine {
	if breakers == nil {
		breakers = retry.NewBreakerRegistry()
	}
	if bus == nil {
		bus = NewBus()
	}
	return &Engine{registry: registry, history: historyMgr, breakers: breakers, bus: bus, tpl: tpl}
}

// TriggerContext is the caller-supplied input to one execution: the
// matched event payload and any repository metadata lifted from it.
type TriggerContext struct {
	Event      string
	Timestamp  string
	Payload    map[string]any
	Repository map[string]any
}

// Execute runs def end to end, returning the terminal ExecutionResult.
// executionID may be empty to auto-generate one.
func (e *Engine) Execute(ctx context.Context, def *workflow.Definition, trigger TriggerContext, executionID string) (workflow.ExecutionResult, error) {
	if executionID == "" {
		executionID = idgen.NewExecutionID().String()
	}
	ctx, span := tracer.Start(ctx, "workflow.execute", trace.WithAttributes(
		attribute.String("workflow.name", def.Name),
		attribute.String("execution.id", executionID),
	))
	defer span.End()
	log := logger.FromContext(ctx).With("execution_id", executionID, "workflow", def.Name)

	execCtx := workflow.ExecutionContext{
		WorkflowName:     def.Name,
		ExecutionID:      executionID,
		StartTime:        time.Now(),
		TriggerEvent:     trigger.Event,
		TriggerTimestamp: trigger.Timestamp,
		Payload:          trigger.Payload,
		Repository:       trigger.Repository,
		Variables:        map[string]any{},
		PreviousActions:  nil,
	}

	total := len(def.Actions)
	e.history.Start(ctx, workflow.ExecutionSnapshot{
		ExecutionID:  executionID,
		WorkflowName: def.Name,
		Status:       workflow.ExecRunning,
		StartTime:    execCtx.StartTime,
		Progress:     workflow.Progress{Total: total},
		Context:      execCtx,
	})
	e.bus.Publish(Event{Kind: EventStarted, ExecutionID: executionID, WorkflowName: def.Name})

	if def.Condition != nil {
		rootCtx := map[string]any{
			"trigger": map[string]any{
				"event":     trigger.Event,
				"timestamp": trigger.Timestamp,
				"payload":   trigger.Payload,
			},
			"repository": trigger.Repository,
			"variables":  execCtx.Variables,
		}
		matched, condErr := condition.Evaluate(def.Condition, rootCtx)
		if condErr != nil || !matched {
			msg := "root condition did not match"
			if condErr != nil {
				msg = fmt.Sprintf("root condition evaluation failed: %v", condErr)
			}
			result := e.finalize(ctx, executionID, def.Name, execCtx, workflow.ExecFailed, nil, msg)
			e.bus.Publish(Event{Kind: EventFailed, ExecutionID: executionID, WorkflowName: def.Name})
			return result, nil
		}
	}

	timeoutSecs := def.TimeoutSecs
	if timeoutSecs <= 0 {
		timeoutSecs = defaultExecutionTimeout.Seconds()
	}
	runCtx, cancel := context.WithTimeout(ctx, time.Duration(timeoutSecs*float64(time.Second)))
	defer cancel()

	plan, err := dag.Resolve(actionsToNodes(def.Actions))
	if err != nil {
		result := e.finalize(ctx, executionID, def.Name, execCtx, workflow.ExecFailed, nil, err.Error())
		return result, nil
	}

	run := &executionRun{
		engine:  e,
		ctx:     runCtx,
		def:     def,
		execCtx: &execCtx,
		log:     log,
		total:   total,
	}
	status, runErr := run.runStages(plan)

	results := run.snapshotResults()
	errStr := ""
	if runErr != nil {
		errStr = runErr.Error()
	}
	if runCtx.Err() == context.DeadlineExceeded && status != workflow.ExecCancelled {
		status = workflow.ExecTimeout
		errStr = "execution timeout exceeded"
	} else if ctx.Err() == context.Canceled {
		status = workflow.ExecCancelled
	}

	result := e.finalize(ctx, executionID, def.Name, execCtx, status, results, errStr)
	switch status {
	case workflow.ExecCompleted:
		e.bus.Publish(Event{Kind: EventCompleted, ExecutionID: executionID, WorkflowName: def.Name})
	case workflow.ExecFailed:
		e.bus.Publish(Event{Kind: EventFailed, ExecutionID: executionID, WorkflowName: def.Name})
	case workflow.ExecTimeout:
		e.bus.Publish(Event{Kind: EventTimeout, ExecutionID: executionID, WorkflowName: def.Name})
	case workflow.ExecCancelled:
		e.bus.Publish(Event{Kind: EventCancelled, ExecutionID: executionID, WorkflowName: def.Name})
	}
	return result, nil
}

func (e *Engine) finalize(
	ctx context.Context, executionID, workflowName string, execCtx workflow.ExecutionContext,
	status workflow.ExecutionStatus, results []workflow.ActionResult, errStr string,
) workflow.ExecutionResult {
	endTime := time.Now()
	retried, totalRetries := countRetries(results)
	metrics := workflow.ComputeMetrics(results, retried, totalRetries)
	result := workflow.ExecutionResult{
		ExecutionID:   executionID,
		WorkflowName:  workflowName,
		Status:        status,
		StartTime:     execCtx.StartTime,
		EndTime:       endTime,
		Duration:      endTime.Sub(execCtx.StartTime),
		ActionResults: results,
		Error:         errStr,
		Metrics:       metrics,
	}
	e.history.Complete(ctx, executionID, status, result)
	e.metrics.ObserveExecution(workflowName, string(status), result.Duration)
	return result
}

func countRetries(results []workflow.ActionResult) (retriedActions, totalRetries int) {
	for _, r := range results {
		if r.RetryCount > 0 {
			retriedActions++
			totalRetries += r.RetryCount
		}
	}
	return
}

func actionsToNodes(actions []workflow.ActionConfig) []dag.Node {
	nodes := make([]dag.Node, len(actions))
	for i, a := range actions {
		nodes[i] = dag.Node{ID: a.ID, DependsOn: a.DependsOn}
	}
	return nodes
}

// executionRun carries per-execution mutable state through the stage loop.
type executionRun struct {
	engine  *Engine
	ctx     context.Context
	def     *workflow.Definition
	execCtx *workflow.ExecutionContext
	log     logger.Logger
	total   int

	mu      sync.Mutex
	results []workflow.ActionResult
	byID    map[string]*workflow.ActionConfig
}

func (r *executionRun) runStages(plan *dag.Plan) (workflow.ExecutionStatus, error) {
	r.byID = make(map[string]*workflow.ActionConfig, len(r.def.Actions))
	for i := range r.def.Actions {
		r.byID[r.def.Actions[i].ID] = &r.def.Actions[i]
	}

	retryMgr := retry.NewManager(r.engine.breakers)
	stopped := false
	anyFailed := false

	for _, stageIDs := range plan.Stages {
		if r.ctx.Err() != nil {
			break
		}
		var sync, async []*workflow.ActionConfig
		for _, id := range stageIDs {
			a := r.byID[id]
			if a.RunAsync {
				async = append(async, a)
			} else {
				sync = append(sync, a)
			}
		}

		for _, a := range sync {
			res := r.runAction(a, retryMgr)
			r.appendResult(res)
			if res.Status == workflow.ActionFailed {
				anyFailed = true
				if a.OnError == workflow.OnErrorStop {
					stopped = true
				}
			}
		}

		if len(async) > 0 {
			g, _ := errgroup.WithContext(r.ctx)
			resCh := make(chan workflow.ActionResult, len(async))
			for _, a := range async {
				a := a
				g.Go(func() error {
					resCh <- r.runAction(a, retryMgr)
					return nil
				})
			}
			_ = g.Wait()
			close(resCh)
			for res := range resCh {
				r.appendResult(res)
				if res.Status == workflow.ActionFailed {
					anyFailed = true
					if r.byID[res.ActionID].OnError == workflow.OnErrorStop {
						stopped = true
					}
				}
			}
		}

		if stopped {
			break
		}
	}

	status := workflow.ExecCompleted
	if anyFailed {
		onFailure := ""
		if r.def.ErrorHandling != nil {
			onFailure = r.def.ErrorHandling.OnFailure
		}
		if onFailure == "" || onFailure == "stop" {
			status = workflow.ExecFailed
		}
	}
	return status, nil
}

func (r *executionRun) appendResult(res workflow.ActionResult) {
	r.mu.Lock()
	r.results = append(r.results, res)
	snapshot := make([]workflow.ActionResult, len(r.results))
	copy(snapshot, r.results)
	r.mu.Unlock()
	r.engine.history.UpdateActionResults(r.ctx, r.execCtx.ExecutionID, res.ActionID, snapshot, r.total)
}

func (r *executionRun) snapshotResults() []workflow.ActionResult {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]workflow.ActionResult, len(r.results))
	copy(out, r.results)
	return out
}

func (r *executionRun) previousActions() []workflow.ActionResult {
	return r.snapshotResults()
}

func (r *executionRun) runAction(a *workflow.ActionConfig, retryMgr *retry.Manager) workflow.ActionResult {
	start := time.Now()
	result := workflow.ActionResult{ActionID: a.ID, ActionType: a.Type, Status: workflow.ActionRunning, StartTime: start}

	evalCtx := r.buildEvalContext()
	if a.Condition != nil {
		matched, err := condition.Evaluate(a.Condition, evalCtx)
		if err != nil || !matched {
			result.Status = workflow.ActionSkipped
			result.EndTime = time.Now()
			return result
		}
	}

	params, err := r.resolveParams(a.Params, evalCtx)
	if err != nil {
		result.Status = workflow.ActionFailed
		result.Error = err.Error()
		result.EndTime = time.Now()
		return result
	}

	policy := toRetryPolicy(a.Retry)
	retryMgr.Begin(a.ID)

	actionTimeout := defaultActionTimeout
	if a.Timeout > 0 {
		actionTimeout = time.Duration(a.Timeout * float64(time.Second))
	}

	execCtxValue := action.Context{
		ExecutionID: r.execCtx.ExecutionID, WorkflowName: r.execCtx.WorkflowName,
		Payload: r.execCtx.Payload, Variables: r.execCtx.Variables,
	}

	attempt := 0
	for {
		actionCtx, cancel := context.WithTimeout(r.ctx, actionTimeout)
		value, execErr := r.engine.registry.Execute(actionCtx, a.Type, params, execCtxValue)
		cancel()

		if execErr == nil {
			result.Status = workflow.ActionCompleted
			result.Value = value
			result.EndTime = time.Now()
			result.RetryCount = attempt
			retryMgr.Succeed(a.ID, a.Type)
			return result
		}

		errKind := string(errs.KindOf(execErr))
		// retryMgr.Evaluate/retry.Decide take the 1-based count of the
		// attempt that just failed, so the first failure (attempt==0) must
		// be reported as 1, or a MaxAttempts=1 policy would retry once.
		decision := retryMgr.Evaluate(a.ID, a.Type, policy, errKind, attempt+1)
		if !decision.Retry {
			result.Status = workflow.ActionFailed
			result.Error = execErr.Error()
			result.EndTime = time.Now()
			result.RetryCount = attempt
			return result
		}

		select {
		case <-time.After(decision.Delay):
		case <-r.ctx.Done():
			result.Status = workflow.ActionFailed
			result.Error = fmt.Sprintf("execution cancelled during retry backoff: %v", r.ctx.Err())
			result.EndTime = time.Now()
			result.RetryCount = attempt
			return result
		}
		attempt++
	}
}

// buildEvalContext assembles the template/condition variable bundle
// (spec.md §4.4): workflow, trigger, repository, execution (with a live
// duration), variables, previousActions, and a now snapshot broken into
// its ISO string, epoch milliseconds, and calendar components.
func (r *executionRun) buildEvalContext() map[string]any {
	now := time.Now().UTC()
	return map[string]any{
		"workflow": map[string]any{
			"name":    r.def.Name,
			"version": r.def.Version,
		},
		"trigger": map[string]any{
			"event":     r.execCtx.TriggerEvent,
			"timestamp": r.execCtx.TriggerTimestamp,
			"payload":   r.execCtx.Payload,
		},
		"repository": r.execCtx.Repository,
		"execution": map[string]any{
			"id":        r.execCtx.ExecutionID,
			"startTime": r.execCtx.StartTime.UTC().Format(time.RFC3339),
			"duration":  now.Sub(r.execCtx.StartTime).Seconds(),
		},
		"variables":       r.execCtx.Variables,
		"previousActions": r.previousActions(),
		"now": map[string]any{
			"iso":     now.Format(time.RFC3339),
			"epochMs": now.UnixMilli(),
			"year":    now.Year(),
			"month":   int(now.Month()),
			"day":     now.Day(),
			"hour":    now.Hour(),
			"minute":  now.Minute(),
			"second":  now.Second(),
		},
	}
}

func (r *executionRun) resolveParams(params map[string]any, evalCtx map[string]any) (map[string]any, error) {
	if len(params) == 0 {
		return params, nil
	}
	resolved, err := r.engine.tpl.Resolve(map[string]any(params), evalCtx)
	if err != nil {
		return nil, err
	}
	out, _ := resolved.(map[string]any)
	return out, nil
}

func toRetryPolicy(p *workflow.RetryPolicy) *retry.Policy {
	if p == nil {
		return nil
	}
	return &retry.Policy{
		MaxAttempts: p.MaxAttempts,
		Delay:       time.Duration(p.Delay * float64(time.Second)),
		Backoff:     retry.BackoffStrategy(p.Backoff),
		RetryOn:     p.RetryOn,
	}
}
