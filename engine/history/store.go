// Package history implements execution history tracking (C10): an active
// map of running executions plus a bounded LRU of completed snapshots,
// write-behind to a pluggable HistoryStore. HistoryStore failures are
// logged and never propagated to the caller (spec.md §9 "best-effort").
package history

import (
	"context"
	"time"

	"github.com/compozy/webhookflow/engine/workflow"
)

// StatusFilter narrows a Query to a set of execution statuses.
type StatusFilter []workflow.ExecutionStatus

// Filter selects executions for Query/Aggregate.
type Filter struct {
	WorkflowName string
	Statuses     StatusFilter
	From, To     time.Time
}

// Page is pagination input for Query.
type Page struct {
	Limit  int
	Offset int
}

// QueryResult is one page of execution snapshots.
type QueryResult struct {
	Snapshots []workflow.ExecutionSnapshot
	Total     int
}

// Aggregate summarizes executions matching a Filter.
type Aggregate struct {
	Total           int
	SuccessRate     float64
	AverageDuration time.Duration
	TopErrors       []ErrorFrequency
	PerHour         map[string]int
	PerDay          map[string]int
}

// ErrorFrequency is one entry of the top-10 most frequent error strings.
type ErrorFrequency struct {
	Error string
	Count int
}

// Patch is a partial update applied to an active snapshot.
type Patch struct {
	Status        *workflow.ExecutionStatus
	CurrentAction *string
	ActionResults []workflow.ActionResult
	Error         *string
	EndTime       *time.Time
}

// Store is the external, pluggable persistence capability. Implementations
// are free to be relational, document, or in-memory; failures are logged
// by callers and must never fail the execution.
type Store interface {
	Create(ctx context.Context, snapshot workflow.ExecutionSnapshot) error
	Update(ctx context.Context, executionID string, patch Patch) error
	Query(ctx context.Context, filter Filter, page Page) (QueryResult, error)
	AggregateQuery(ctx context.Context, filter Filter) (Aggregate, error)
	DeleteOlderThan(ctx context.Context, cutoff time.Time) error
}
