package history

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/compozy/webhookflow/engine/workflow"
)

// MemoryStore is an in-process Store implementation for tests and
// single-node deployments without a database. It is safe for concurrent use.
type MemoryStore struct {
	mu         sync.RWMutex
	snapshots  map[string]workflow.ExecutionSnapshot
}

// NewMemoryStore constructs an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{snapshots: make(map[string]workflow.ExecutionSnapshot)}
}

func (s *MemoryStore) Create(_ context.Context, snapshot workflow.ExecutionSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshots[snapshot.ExecutionID] = snapshot
	return nil
}

func (s *MemoryStore) Update(_ context.Context, executionID string, patch Patch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap, ok := s.snapshots[executionID]
	if !ok {
		return nil
	}
	if patch.Status != nil {
		snap.Status = *patch.Status
	}
	if patch.CurrentAction != nil {
		snap.CurrentAction = *patch.CurrentAction
	}
	if patch.ActionResults != nil {
		snap.ActionResults = patch.ActionResults
	}
	if patch.Error != nil {
		snap.Error = *patch.Error
	}
	if patch.EndTime != nil {
		snap.EndTime = *patch.EndTime
	}
	s.snapshots[executionID] = snap
	return nil
}

func (s *MemoryStore) Query(_ context.Context, filter Filter, page Page) (QueryResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	matched := s.matchLocked(filter)
	sort.Slice(matched, func(i, j int) bool { return matched[i].StartTime.After(matched[j].StartTime) })
	total := len(matched)
	if page.Limit <= 0 {
		page.Limit = total
	}
	start := page.Offset
	if start > total {
		start = total
	}
	end := start + page.Limit
	if end > total {
		end = total
	}
	return QueryResult{Snapshots: matched[start:end], Total: total}, nil
}

func (s *MemoryStore) AggregateQuery(_ context.Context, filter Filter) (Aggregate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	matched := s.matchLocked(filter)
	agg := Aggregate{Total: len(matched), PerHour: map[string]int{}, PerDay: map[string]int{}}
	if len(matched) == 0 {
		return agg, nil
	}
	var succeeded int
	var totalDur time.Duration
	errCounts := map[string]int{}
	for _, snap := range matched {
		if snap.Status == workflow.ExecCompleted {
			succeeded++
		}
		if !snap.EndTime.IsZero() {
			totalDur += snap.EndTime.Sub(snap.StartTime)
		}
		if snap.Error != "" {
			errCounts[snap.Error]++
		}
		agg.PerHour[snap.StartTime.Format("2006-01-02T15")]++
		agg.PerDay[snap.StartTime.Format("2006-01-02")]++
	}
	agg.SuccessRate = float64(succeeded) / float64(len(matched))
	agg.AverageDuration = totalDur / time.Duration(len(matched))
	agg.TopErrors = topErrors(errCounts, 10)
	return agg, nil
}

func (s *MemoryStore) DeleteOlderThan(_ context.Context, cutoff time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, snap := range s.snapshots {
		if snap.StartTime.Before(cutoff) {
			delete(s.snapshots, id)
		}
	}
	return nil
}

func (s *MemoryStore) matchLocked(filter Filter) []workflow.ExecutionSnapshot {
	out := make([]workflow.ExecutionSnapshot, 0, len(s.snapshots))
	for _, snap := range s.snapshots {
		if filter.WorkflowName != "" && snap.WorkflowName != filter.WorkflowName {
			continue
		}
		if len(filter.Statuses) > 0 && !statusIn(filter.Statuses, snap.Status) {
			continue
		}
		if !filter.From.IsZero() && snap.StartTime.Before(filter.From) {
			continue
		}
		if !filter.To.IsZero() && snap.StartTime.After(filter.To) {
			continue
		}
		out = append(out, snap)
	}
	return out
}

func statusIn(statuses StatusFilter, s workflow.ExecutionStatus) bool {
	for _, st := range statuses {
		if st == s {
			return true
		}
	}
	return false
}

func topErrors(counts map[string]int, n int) []ErrorFrequency {
	out := make([]ErrorFrequency, 0, len(counts))
	for errStr, count := range counts {
		out = append(out, ErrorFrequency{Error: errStr, Count: count})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Error < out[j].Error
	})
	if len(out) > n {
		out = out[:n]
	}
	return out
}
