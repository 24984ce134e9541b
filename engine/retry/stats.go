package retry

import (
	"sync"
	"time"
)

// AttemptRecord is one retry decision recorded during an execution, kept
// append-only for the execution's lifetime.
type AttemptRecord struct {
	ActionID   string
	ActionType string
	Attempt    int
	ErrorKind  string
	Decision   Decision
	At         time.Time
}

// ActiveContext tracks the in-flight retry state of one action instance.
type ActiveContext struct {
	ActionID          string
	Attempt           int
	StartTime         time.Time
	CumulativeRetryMs int64
	LastError         string
}

// Stats is a running snapshot of retry activity across all executions.
type Stats struct {
	TotalDecisions  int
	TotalRetries    int
	TotalDelay      time.Duration
	MaxDelay        time.Duration
	MostRetriedType string
	SuccessCount    int
	FailureCount    int
}

// Manager is the stateful wrapper around the pure Decide function and the
// per-action-type BreakerRegistry: it records per-action active context,
// per-execution retry history, and running statistics, per spec.md §4.5's
// "only recording is stateful" contract.
type Manager struct {
	mu         sync.Mutex
	breakers   *BreakerRegistry
	active     map[string]*ActiveContext // keyed by actionID within one execution
	history    []AttemptRecord
	retryCount map[string]int // action type -> retry count, for MostRetriedType
	stats      Stats
	completed  map[string]bool // action ids that completed without retry in this run, for the success predicate
}

// NewManager constructs a retry Manager scoped to a single execution.
func NewManager(breakers *BreakerRegistry) *Manager {
	if breakers == nil {
		breakers = NewBreakerRegistry()
	}
	return &Manager{
		breakers:   breakers,
		active:     make(map[string]*ActiveContext),
		retryCount: make(map[string]int),
		completed:  make(map[string]bool),
	}
}

// Begin records that actionID has started its first attempt.
func (m *Manager) Begin(actionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.active[actionID] = &ActiveContext{ActionID: actionID, Attempt: 0, StartTime: time.Now()}
}

// Evaluate decides whether to retry a failed attempt and records the
// decision in the execution's retry history and running statistics.
func (m *Manager) Evaluate(actionID, actionType string, policy *Policy, errKind string, attempt int) Decision {
	breakerOpen := m.breakers.IsOpen(actionType)
	decision := Decide(policy, errKind, attempt, breakerOpen)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.stats.TotalDecisions++
	if ctx, ok := m.active[actionID]; ok {
		ctx.Attempt = attempt
		ctx.LastError = errKind
		if decision.Retry {
			ctx.CumulativeRetryMs += decision.Delay.Milliseconds()
		}
	}
	m.history = append(m.history, AttemptRecord{
		ActionID: actionID, ActionType: actionType, Attempt: attempt,
		ErrorKind: errKind, Decision: decision, At: time.Now(),
	})
	m.breakers.RecordFailure(actionType)
	m.stats.FailureCount++
	if decision.Retry {
		m.stats.TotalRetries++
		m.stats.TotalDelay += decision.Delay
		if decision.Delay > m.stats.MaxDelay {
			m.stats.MaxDelay = decision.Delay
		}
		m.retryCount[actionType]++
		m.updateMostRetriedLocked()
	}
	return decision
}

// Succeed records that actionID finalized as a non-retry completion, which
// is this spec's definition of retry-manager "success" (spec.md §9,
// replacing the source's placeholder predicate).
func (m *Manager) Succeed(actionID, actionType string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.completed[actionID] = true
	m.stats.SuccessCount++
	delete(m.active, actionID)
	m.breakers.RecordSuccess(actionType)
}

func (m *Manager) updateMostRetriedLocked() {
	best := ""
	bestCount := 0
	for t, c := range m.retryCount {
		if c > bestCount {
			best, bestCount = t, c
		}
	}
	m.stats.MostRetriedType = best
}

// History returns a copy of the execution's append-only retry history.
func (m *Manager) History() []AttemptRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]AttemptRecord, len(m.history))
	copy(out, m.history)
	return out
}

// Snapshot returns the current statistics bundle, including the
// derived success rate.
func (m *Manager) Snapshot() (Stats, float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	total := m.stats.SuccessCount + m.stats.FailureCount
	rate := 0.0
	if total > 0 {
		rate = float64(m.stats.SuccessCount) / float64(total)
	}
	return m.stats, rate
}
