// Package workflow defines the declarative workflow data model
// (WorkflowDefinition, Trigger, ActionConfig, RetryPolicy,
// ExecutionContext, ActionResult, ExecutionSnapshot) per spec.md §3.
package workflow

import (
	"time"

	"github.com/compozy/webhookflow/engine/condition"
)

// TriggerType enumerates how a workflow can be started.
type TriggerType string

const (
	TriggerWebhook  TriggerType = "webhook"
	TriggerSchedule TriggerType = "schedule"
	TriggerManual   TriggerType = "manual"
	TriggerAPI      TriggerType = "api"
)

// Trigger declares how an incoming event is matched to a workflow.
type Trigger struct {
	Type       TriggerType             `json:"type" yaml:"type"`
	Event      string                  `json:"event" yaml:"event"`
	Repository string                  `json:"repository,omitempty" yaml:"repository,omitempty"`
	Filters    []condition.FilterRule  `json:"filters,omitempty" yaml:"filters,omitempty"`
	Cron       string                  `json:"cron,omitempty" yaml:"cron,omitempty"`
	Timezone   string                  `json:"timezone,omitempty" yaml:"timezone,omitempty"`
}

// OnErrorPolicy is the per-action failure-handling directive.
type OnErrorPolicy string

const (
	OnErrorStop      OnErrorPolicy = "stop"
	OnErrorContinue  OnErrorPolicy = "continue"
	OnErrorRetry     OnErrorPolicy = "retry"
	OnErrorRollback  OnErrorPolicy = "rollback"
	OnErrorEscalate  OnErrorPolicy = "escalate"
)

// RetryPolicy mirrors engine/retry.Policy with wire-friendly field types
// (duration expressed in seconds, json/yaml tags on every field).
type RetryPolicy struct {
	MaxAttempts int      `json:"maxAttempts" yaml:"maxAttempts"`
	Delay       float64  `json:"delay" yaml:"delay"` // seconds
	Backoff     string   `json:"backoff" yaml:"backoff"`
	RetryOn     []string `json:"retryOn,omitempty" yaml:"retryOn,omitempty"`
}

// ActionConfig is one node in a workflow's DAG.
type ActionConfig struct {
	ID         string                    `json:"id,omitempty" yaml:"id,omitempty"`
	Type       string                    `json:"type" yaml:"type"`
	Name       string                    `json:"name,omitempty" yaml:"name,omitempty"`
	Params     map[string]any            `json:"params,omitempty" yaml:"params,omitempty"`
	Condition  *condition.ConditionGroup `json:"condition,omitempty" yaml:"condition,omitempty"`
	Timeout    float64                   `json:"timeout,omitempty" yaml:"timeout,omitempty"` // seconds
	Retry      *RetryPolicy              `json:"retry,omitempty" yaml:"retry,omitempty"`
	OnError    OnErrorPolicy             `json:"onError,omitempty" yaml:"onError,omitempty"`
	RunAsync   bool                      `json:"runAsync,omitempty" yaml:"runAsync,omitempty"`
	DependsOn  []string                  `json:"dependsOn,omitempty" yaml:"dependsOn,omitempty"`
}

// ErrorHandling is the workflow-level failure directive.
type ErrorHandling struct {
	OnFailure string `json:"onFailure,omitempty" yaml:"onFailure,omitempty"` // "stop" | "continue"
}

// Definition is the top-level, immutable-once-registered workflow document.
type Definition struct {
	Name          string                    `json:"name" yaml:"name"`
	Version       string                    `json:"version,omitempty" yaml:"version,omitempty"`
	Description   string                    `json:"description,omitempty" yaml:"description,omitempty"`
	Enabled       bool                      `json:"enabled" yaml:"enabled"`
	Trigger       Trigger                   `json:"trigger" yaml:"trigger"`
	Condition     *condition.ConditionGroup `json:"condition,omitempty" yaml:"condition,omitempty"`
	Actions       []ActionConfig            `json:"actions" yaml:"actions"`
	ErrorHandling *ErrorHandling            `json:"errorHandling,omitempty" yaml:"errorHandling,omitempty"`
	TimeoutSecs   float64                   `json:"timeout,omitempty" yaml:"timeout,omitempty"`
}

// ActionStatus is the lifecycle state of one action's result.
type ActionStatus string

const (
	ActionPending   ActionStatus = "pending"
	ActionRunning   ActionStatus = "running"
	ActionCompleted ActionStatus = "completed"
	ActionFailed    ActionStatus = "failed"
	ActionSkipped   ActionStatus = "skipped"
)

// ActionResult is the outcome of one action invocation.
type ActionResult struct {
	ActionID   string       `json:"actionId"`
	ActionType string       `json:"actionType"`
	Status     ActionStatus `json:"status"`
	StartTime  time.Time    `json:"startTime"`
	EndTime    time.Time    `json:"endTime,omitempty"`
	Value      any          `json:"value,omitempty"`
	Error      string       `json:"error,omitempty"`
	RetryCount int          `json:"retryCount"`
}

// ExecutionContext is the per-execution mutable state the engine owns
// exclusively while running.
type ExecutionContext struct {
	WorkflowName     string         `json:"workflowName"`
	ExecutionID      string         `json:"executionId"`
	StartTime        time.Time      `json:"startTime"`
	TriggerEvent      string        `json:"triggerEvent"`
	TriggerTimestamp  string        `json:"triggerTimestamp"`
	Payload          map[string]any `json:"payload"`
	Repository       map[string]any `json:"repository,omitempty"`
	Variables        map[string]any `json:"variables,omitempty"`
	Secrets          map[string]string `json:"-"` // never exposed to templates or snapshots
	PreviousActions  []ActionResult `json:"previousActions"`
}

// ExecutionStatus is the terminal/in-progress state of one execution.
type ExecutionStatus string

const (
	ExecRunning   ExecutionStatus = "running"
	ExecCompleted ExecutionStatus = "completed"
	ExecFailed    ExecutionStatus = "failed"
	ExecCancelled ExecutionStatus = "cancelled"
	ExecTimeout   ExecutionStatus = "timeout"
)

// Progress is the derived completed/failed/skipped/total counters.
type Progress struct {
	Completed  int     `json:"completed"`
	Failed     int     `json:"failed"`
	Skipped    int     `json:"skipped"`
	Total      int     `json:"total"`
	Percentage float64 `json:"percentage"`
}

// Metrics summarizes one execution's action outcomes.
type Metrics struct {
	TotalActions      int           `json:"totalActions"`
	Successful        int           `json:"successful"`
	Failed            int           `json:"failed"`
	Skipped           int           `json:"skipped"`
	Retried           int           `json:"retried"`
	TotalRetries      int           `json:"totalRetries"`
	AverageDuration   time.Duration `json:"averageDuration"`
	LongestDuration   time.Duration `json:"longestDuration"`
	ShortestDuration  time.Duration `json:"shortestDuration"`
}

// ExecutionResult is the user-visible outcome of one executeWorkflow call.
type ExecutionResult struct {
	ExecutionID   string          `json:"executionId"`
	WorkflowName  string          `json:"workflowName"`
	Status        ExecutionStatus `json:"status"`
	StartTime     time.Time       `json:"startTime"`
	EndTime       time.Time       `json:"endTime"`
	Duration      time.Duration   `json:"duration"`
	ActionResults []ActionResult  `json:"actionResults"`
	Error         string          `json:"error,omitempty"`
	Metrics       Metrics         `json:"metrics"`
}

// ExecutionSnapshot (C10) is the engine's materialized view of an
// execution's progress, updated as actions complete.
type ExecutionSnapshot struct {
	ExecutionID    string          `json:"executionId"`
	WorkflowName   string          `json:"workflowName"`
	Status         ExecutionStatus `json:"status"`
	StartTime      time.Time       `json:"startTime"`
	EndTime        time.Time       `json:"endTime,omitempty"`
	DurationMs     int64           `json:"durationMs"`
	CurrentAction  string          `json:"currentAction,omitempty"`
	Progress       Progress        `json:"progress"`
	Context        ExecutionContext `json:"context"`
	ActionResults  []ActionResult  `json:"actionResults"`
	Error          string          `json:"error,omitempty"`
	Metrics        Metrics         `json:"metrics"`
}
