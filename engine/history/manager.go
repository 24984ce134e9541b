package history

import (
	"context"
	"sort"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/compozy/webhookflow/engine/workflow"
	"github.com/compozy/webhookflow/pkg/logger"
)

// Manager owns the in-process view of execution history: an active map of
// running executions and a bounded LRU of completed snapshots, with
// write-behind persistence to a Store.
type Manager struct {
	mu        sync.RWMutex
	active    map[string]*workflow.ExecutionSnapshot
	completed *lru.Cache[string, workflow.ExecutionSnapshot]
	store     Store
}

// NewManager constructs a Manager. completedCapacity defaults to 1000
// (spec.md §6's history cache capacity knob). store may be nil to run
// purely in-memory (e.g. in tests).
func NewManager(completedCapacity int, store Store) *Manager {
	if completedCapacity <= 0 {
		completedCapacity = 1000
	}
	cache, _ := lru.New[string, workflow.ExecutionSnapshot](completedCapacity)
	return &Manager{active: make(map[string]*workflow.ExecutionSnapshot), completed: cache, store: store}
}

// Start registers a new running execution and write-behinds its initial
// snapshot to Store.
func (m *Manager) Start(ctx context.Context, snapshot workflow.ExecutionSnapshot) {
	snapshot.Status = workflow.ExecRunning
	m.mu.Lock()
	m.active[snapshot.ExecutionID] = &snapshot
	m.mu.Unlock()
	if m.store != nil {
		if err := m.store.Create(ctx, snapshot); err != nil {
			logger.FromContext(ctx).Error("history: create failed", "execution_id", snapshot.ExecutionID, "error", err)
		}
	}
}

// UpdateActionResults recomputes progress from results and updates the
// active snapshot in place, write-behinding the patch. Safe to call
// repeatedly; progress recomputation is idempotent.
func (m *Manager) UpdateActionResults(ctx context.Context, executionID, currentAction string, results []workflow.ActionResult, total int) {
	m.mu.Lock()
	snap, ok := m.active[executionID]
	if !ok {
		m.mu.Unlock()
		return
	}
	snap.ActionResults = results
	snap.CurrentAction = currentAction
	snap.Progress = workflow.RecomputeProgress(results, total)
	m.mu.Unlock()

	if m.store != nil {
		patch := Patch{CurrentAction: &currentAction, ActionResults: results}
		if err := m.store.Update(ctx, executionID, patch); err != nil {
			logger.FromContext(ctx).Error("history: update failed", "execution_id", executionID, "error", err)
		}
	}
}

// Complete finalizes executionID with status/result, moving it from the
// active map to the completed LRU. Per spec.md §9, already-finalized
// action results are always preserved even when status is timeout.
func (m *Manager) Complete(ctx context.Context, executionID string, status workflow.ExecutionStatus, result workflow.ExecutionResult) {
	m.mu.Lock()
	snap, ok := m.active[executionID]
	if !ok {
		m.mu.Unlock()
		return
	}
	snap.Status = status
	snap.EndTime = result.EndTime
	snap.DurationMs = result.Duration.Milliseconds()
	snap.ActionResults = result.ActionResults
	snap.Metrics = result.Metrics
	snap.Error = result.Error
	snap.Progress = workflow.RecomputeProgress(result.ActionResults, snap.Progress.Total)
	final := *snap
	delete(m.active, executionID)
	m.completed.Add(executionID, final)
	m.mu.Unlock()

	if m.store != nil {
		endTime := result.EndTime
		errStr := result.Error
		patch := Patch{Status: &status, ActionResults: result.ActionResults, EndTime: &endTime, Error: &errStr}
		if err := m.store.Update(ctx, executionID, patch); err != nil {
			logger.FromContext(ctx).Error("history: complete failed", "execution_id", executionID, "error", err)
		}
	}
}

// Cancel marks executionID cancelled and removes it from the active map.
func (m *Manager) Cancel(ctx context.Context, executionID string) {
	m.mu.Lock()
	snap, ok := m.active[executionID]
	if !ok {
		m.mu.Unlock()
		return
	}
	snap.Status = workflow.ExecCancelled
	snap.EndTime = time.Now()
	final := *snap
	delete(m.active, executionID)
	m.completed.Add(executionID, final)
	m.mu.Unlock()

	if m.store != nil {
		status := workflow.ExecCancelled
		patch := Patch{Status: &status}
		if err := m.store.Update(ctx, executionID, patch); err != nil {
			logger.FromContext(ctx).Error("history: cancel failed", "execution_id", executionID, "error", err)
		}
	}
}

// Get returns the current snapshot for executionID, checking the active
// map first and falling back to the completed cache.
func (m *Manager) Get(executionID string) (workflow.ExecutionSnapshot, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if snap, ok := m.active[executionID]; ok {
		return *snap, true
	}
	return m.completed.Get(executionID)
}

// ListActive returns a snapshot of all currently running executions.
func (m *Manager) ListActive() []workflow.ExecutionSnapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]workflow.ExecutionSnapshot, 0, len(m.active))
	for _, s := range m.active {
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartTime.Before(out[j].StartTime) })
	return out
}
