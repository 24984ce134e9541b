package action

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/slok/goresilience"
	"github.com/slok/goresilience/retry"
	"github.com/slok/goresilience/timeout"
	"github.com/tidwall/pretty"

	"github.com/compozy/webhookflow/engine/condition"
	"github.com/compozy/webhookflow/engine/errs"
	"github.com/compozy/webhookflow/engine/fieldpath"
	"github.com/compozy/webhookflow/pkg/logger"
)

const (
	defaultLoopIterations = 100
	maxLoopIterations     = 1000
)

func delayExecutor(ctx context.Context, params map[string]any, _ Context) (any, error) {
	seconds, _ := params["seconds"].(float64)
	if seconds <= 0 {
		return map[string]any{"waited": 0}, nil
	}
	select {
	case <-time.After(time.Duration(seconds * float64(time.Second))):
		return map[string]any{"waited": seconds}, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func conditionalExecutor(_ context.Context, params map[string]any, execCtx Context) (any, error) {
	raw, ok := params["if"]
	if !ok {
		return nil, errs.New(errs.KindValidation, "action: conditional requires params.if")
	}
	group, err := decodeConditionGroup(raw)
	if err != nil {
		return nil, err
	}
	matched, err := condition.Evaluate(group, evalContext(execCtx))
	if err != nil {
		return nil, errs.Wrap(errs.KindInternal, "action: conditional evaluation failed", err)
	}
	return map[string]any{"matched": matched}, nil
}

func decodeConditionGroup(raw any) (*condition.ConditionGroup, error) {
	if group, ok := raw.(*condition.ConditionGroup); ok {
		return group, nil
	}
	body, err := json.Marshal(raw)
	if err != nil {
		return nil, errs.Wrap(errs.KindValidation, "action: invalid params.if", err)
	}
	var group condition.ConditionGroup
	if err := json.Unmarshal(body, &group); err != nil {
		return nil, errs.Wrap(errs.KindValidation, "action: invalid params.if", err)
	}
	return &group, nil
}

func evalContext(execCtx Context) map[string]any {
	return map[string]any{
		"trigger":   map[string]any{"payload": execCtx.Payload},
		"variables": execCtx.Variables,
	}
}

// loopExecutor recurses into the registry's own Execute path for each
// element of params.items, bounded by params.maxIterations (default 100,
// hard ceiling 1000) to keep iteration non-Turing-complete.
func loopExecutor(r *Registry) Executor {
	return func(ctx context.Context, params map[string]any, execCtx Context) (any, error) {
		itemsPath, _ := params["items"].(string)
		nestedAction, ok := params["action"].(map[string]any)
		if !ok {
			return nil, errs.New(errs.KindValidation, "action: loop requires params.action")
		}
		actionType, _ := nestedAction["type"].(string)
		nestedParams, _ := nestedAction["params"].(map[string]any)
		if actionType == "" {
			return nil, errs.New(errs.KindValidation, "action: loop's params.action requires a type")
		}

		maxIter := defaultLoopIterations
		if v, ok := params["maxIterations"].(float64); ok && v > 0 {
			maxIter = int(v)
		}
		if maxIter > maxLoopIterations {
			maxIter = maxLoopIterations
		}

		items, err := resolveLoopItems(itemsPath, execCtx)
		if err != nil {
			return nil, err
		}
		if len(items) > maxIter {
			items = items[:maxIter]
		}

		results := make([]any, 0, len(items))
		for i, item := range items {
			iterVars := cloneVariables(execCtx.Variables)
			iterVars["item"] = item
			iterVars["index"] = i
			iterCtx := Context{
				ExecutionID: execCtx.ExecutionID, WorkflowName: execCtx.WorkflowName,
				Payload: execCtx.Payload, Variables: iterVars,
			}
			value, err := r.Execute(ctx, actionType, nestedParams, iterCtx)
			if err != nil {
				return nil, errs.Wrap(errs.KindInternal, fmt.Sprintf("action: loop iteration %d failed", i), err)
			}
			results = append(results, value)
		}
		return map[string]any{"results": results, "count": len(results)}, nil
	}
}

func resolveLoopItems(path string, execCtx Context) ([]any, error) {
	if path == "" {
		return nil, errs.New(errs.KindValidation, "action: loop requires params.items")
	}
	data := evalContext(execCtx)
	resolved, err := fieldpath.Resolve(data, path, fieldpath.Options{Graceful: false})
	if err != nil {
		return nil, errs.Wrap(errs.KindValidation, "action: loop failed to resolve items", err)
	}
	items, ok := resolved.([]any)
	if !ok {
		return nil, errs.New(errs.KindValidation, "action: loop's params.items did not resolve to an array")
	}
	return items, nil
}

func cloneVariables(vars map[string]any) map[string]any {
	out := make(map[string]any, len(vars)+2)
	for k, v := range vars {
		out[k] = v
	}
	return out
}

// httpRequestExecutor wraps resty in a goresilience timeout+retry runner,
// a transport-level resiliency layer distinct from C5's application-level
// retry decision.
func httpRequestExecutor() Executor {
	client := resty.New()
	runner := goresilience.RunnerChain(
		timeout.NewMiddleware(timeout.Config{Timeout: 30 * time.Second}),
		retry.NewMiddleware(retry.Config{Times: 2}),
	)
	return func(ctx context.Context, params map[string]any, _ Context) (any, error) {
		url, _ := params["url"].(string)
		if url == "" {
			return nil, errs.New(errs.KindValidation, "action: http_request requires params.url")
		}
		method, _ := params["method"].(string)
		if method == "" {
			method = "GET"
		}
		headers, _ := params["headers"].(map[string]any)
		body := params["body"]

		var resp *resty.Response
		err := runner.Run(ctx, func(ctx context.Context) error {
			req := client.R().SetContext(ctx)
			for k, v := range headers {
				req.SetHeader(k, fmt.Sprintf("%v", v))
			}
			if body != nil {
				req.SetBody(body)
			}
			r, err := req.Execute(method, url)
			if err != nil {
				return err
			}
			resp = r
			return nil
		})
		if err != nil {
			return nil, errs.Wrap(errs.KindRetryable, "action: http_request failed", err)
		}
		return map[string]any{"statusCode": resp.StatusCode(), "body": string(resp.Body())}, nil
	}
}

func auditLogExecutor(ctx context.Context, params map[string]any, execCtx Context) (any, error) {
	log := logger.FromContext(ctx)
	message, _ := params["message"].(string)
	value := params["value"]

	display := ""
	if value != nil {
		if raw, err := json.Marshal(value); err == nil {
			display = string(pretty.Pretty(raw))
		}
	}
	log.Info("audit_log", "execution_id", execCtx.ExecutionID, "workflow", execCtx.WorkflowName,
		"message", message, "value", display)
	return map[string]any{"logged": true}, nil
}
