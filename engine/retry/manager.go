// Package retry implements the retry decision (C5): pure backoff math
// layered with a per-action-type circuit breaker. Decisions are a pure
// function of (policy, error, attempt, recent-failure history); only
// recording advances state, per spec.md §4.5's "decider" contract.
package retry

import (
	"math/rand"
	"time"
)

// BackoffStrategy is the delay-growth shape between attempts.
type BackoffStrategy string

const (
	BackoffFixed       BackoffStrategy = "fixed"
	BackoffLinear      BackoffStrategy = "linear"
	BackoffExponential BackoffStrategy = "exponential"
)

const (
	floorDelay   = 100 * time.Millisecond
	ceilingDelay = 5 * time.Minute
)

// Policy mirrors the workflow definition's RetryPolicy.
type Policy struct {
	MaxAttempts int
	Delay       time.Duration // base delay
	Backoff     BackoffStrategy
	RetryOn     []string // allow-list of error kinds; empty means "any"
}

// Decision is the outcome of evaluating whether a failed attempt may retry.
type Decision struct {
	Retry bool
	Delay time.Duration
	// Reason explains a deny; empty when Retry is true.
	Reason string
}

// Decide is a pure function: given policy, the failed attempt's error kind,
// the 1-based attempt number that just failed, and breakerOpen (computed
// separately from recent-failure history), it returns whether to retry and
// the delay before the next attempt.
func Decide(policy *Policy, errKind string, attempt int, breakerOpen bool) Decision {
	if policy == nil {
		return Decision{Retry: false, Reason: "no retry policy configured"}
	}
	if attempt >= policy.MaxAttempts {
		return Decision{Retry: false, Reason: "max attempts reached"}
	}
	if len(policy.RetryOn) > 0 && !containsKind(policy.RetryOn, errKind) {
		return Decision{Retry: false, Reason: "error kind not retryable"}
	}
	if breakerOpen {
		return Decision{Retry: false, Reason: "circuit breaker open"}
	}
	delay := computeDelay(policy, attempt)
	if delay > ceilingDelay {
		return Decision{Retry: false, Reason: "computed delay exceeds ceiling"}
	}
	if delay < floorDelay {
		delay = floorDelay
	}
	return Decision{Retry: true, Delay: delay}
}

func computeDelay(policy *Policy, attempt int) time.Duration {
	base := policy.Delay
	if base <= 0 {
		base = time.Second
	}
	switch policy.Backoff {
	case BackoffLinear:
		return base * time.Duration(attempt+1)
	case BackoffExponential:
		exp := base * time.Duration(1<<uint(attempt))
		jitterRange := float64(exp) * 0.25
		jitter := (rand.Float64()*2 - 1) * jitterRange
		return exp + time.Duration(jitter)
	case BackoffFixed:
		fallthrough
	default:
		return base
	}
}

func containsKind(kinds []string, kind string) bool {
	for _, k := range kinds {
		if k == kind {
			return true
		}
	}
	return false
}
