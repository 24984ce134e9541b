// Package action implements the ActionExecutor capability (spec.md §6): a
// type-tagged registry mapping an action-type enum to a handler, plus the
// built-in executors the engine must recognize operationally (spec.md
// §4.12): delay, conditional, loop, http_request, audit_log, and
// namespaced provider pass-throughs.
package action

import (
	"context"
	"strings"
	"sync"

	"github.com/compozy/webhookflow/engine/errs"
)

// Context is the subset of the execution context an executor needs: the
// resolved parameters live alongside it so executors that recurse (loop)
// can re-invoke Execute with an enriched variable scope.
type Context struct {
	ExecutionID  string
	WorkflowName string
	Payload      map[string]any
	Variables    map[string]any
}

// Executor performs one action's side effect.
type Executor func(ctx context.Context, params map[string]any, execCtx Context) (any, error)

// Registry is the ActionExecutor capability: execute, availableTypes,
// register.
type Registry struct {
	mu    sync.RWMutex
	execs map[string]Executor
}

// NewRegistry constructs a Registry with the built-in executors
// (delay, conditional, loop, http_request, audit_log) pre-registered.
func NewRegistry() *Registry {
	r := &Registry{execs: make(map[string]Executor)}
	r.Register("delay", delayExecutor)
	r.Register("conditional", conditionalExecutor)
	r.Register("loop", loopExecutor(r))
	r.Register("http_request", httpRequestExecutor())
	r.Register("audit_log", auditLogExecutor)
	for _, ns := range []string{"github_", "slack_", "email_send", "jira_"} {
		registerPassthroughFamily(r, ns)
	}
	return r
}

// Register installs or replaces the executor for actionType.
func (r *Registry) Register(actionType string, exec Executor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.execs[actionType] = exec
}

// AvailableTypes returns the set of currently registered action types.
func (r *Registry) AvailableTypes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.execs))
	for t := range r.execs {
		out = append(out, t)
	}
	return out
}

// Execute dispatches to the registered executor for actionType. An exact
// registration wins; otherwise a registered family prefix ending in "_"
// (such as "slack_") that actionType starts with is used.
func (r *Registry) Execute(ctx context.Context, actionType string, params map[string]any, execCtx Context) (any, error) {
	r.mu.RLock()
	exec, ok := r.execs[actionType]
	if !ok {
		for prefix, family := range r.execs {
			if strings.HasSuffix(prefix, "_") && strings.HasPrefix(actionType, prefix) {
				exec, ok = family, true
				break
			}
		}
	}
	r.mu.RUnlock()
	if !ok {
		return nil, errs.New(errs.KindValidation, "action: unknown action type: "+actionType)
	}
	return exec(ctx, params, execCtx)
}

// registerPassthroughFamily registers a namespaced stub under prefix that
// refuses to run until a real implementation is registered in its place.
func registerPassthroughFamily(r *Registry, typeOrPrefix string) {
	r.Register(typeOrPrefix, func(_ context.Context, _ map[string]any, _ Context) (any, error) {
		return nil, errs.New(errs.KindInternal, "action: "+typeOrPrefix+" is not implemented in this deployment")
	})
}
