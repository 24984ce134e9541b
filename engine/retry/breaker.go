package retry

import (
	"sync"
	"time"

	"github.com/sony/gobreaker"
)

const breakerWindow = 5 * time.Minute
const breakerFailureThreshold = 5

// BreakerRegistry holds one gobreaker.CircuitBreaker per action type,
// implementing the "≥5 failures in a 5-minute window" rule from spec.md
// §4.5 via gobreaker's Counts/Interval rolling window.
type BreakerRegistry struct {
	mu       sync.Mutex
	breakers map[string]*gobreaker.CircuitBreaker
}

// NewBreakerRegistry constructs an empty registry; breakers are created
// lazily per action type on first use.
func NewBreakerRegistry() *BreakerRegistry {
	return &BreakerRegistry{breakers: make(map[string]*gobreaker.CircuitBreaker)}
}

func (r *BreakerRegistry) breakerFor(actionType string) *gobreaker.CircuitBreaker {
	r.mu.Lock()
	defer r.mu.Unlock()
	if b, ok := r.breakers[actionType]; ok {
		return b
	}
	b := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:     actionType,
		Interval: breakerWindow,
		Timeout:  breakerWindow,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= breakerFailureThreshold ||
				counts.TotalFailures >= breakerFailureThreshold
		},
	})
	r.breakers[actionType] = b
	return b
}

// IsOpen reports whether the breaker for actionType currently denies retries.
func (r *BreakerRegistry) IsOpen(actionType string) bool {
	return r.breakerFor(actionType).State() == gobreaker.StateOpen
}

// RecordSuccess notifies the breaker for actionType of a successful attempt.
func (r *BreakerRegistry) RecordSuccess(actionType string) {
	b := r.breakerFor(actionType)
	_, _ = b.Execute(func() (any, error) { return nil, nil })
}

// RecordFailure notifies the breaker for actionType of a failed attempt.
func (r *BreakerRegistry) RecordFailure(actionType string) {
	b := r.breakerFor(actionType)
	_, _ = b.Execute(func() (any, error) { return nil, errAlwaysFail })
}

type sentinelErr string

func (e sentinelErr) Error() string { return string(e) }

const errAlwaysFail = sentinelErr("retry: recorded failure")
