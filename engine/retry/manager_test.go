package retry

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDecide(t *testing.T) {
	t.Run("Should deny retry when no policy is configured", func(t *testing.T) {
		d := Decide(nil, "", 0, false)
		assert.False(t, d.Retry)
	})

	t.Run("Should deny retry once max attempts is reached", func(t *testing.T) {
		policy := &Policy{MaxAttempts: 3, Delay: time.Second, Backoff: BackoffFixed}
		d := Decide(policy, "", 3, false)
		assert.False(t, d.Retry)
		assert.Equal(t, "max attempts reached", d.Reason)
	})

	t.Run("Should deny retry when error kind is not in the allow-list", func(t *testing.T) {
		policy := &Policy{MaxAttempts: 3, Delay: time.Second, RetryOn: []string{"timeout"}}
		d := Decide(policy, "validation", 0, false)
		assert.False(t, d.Retry)
	})

	t.Run("Should deny retry when the circuit breaker is open", func(t *testing.T) {
		policy := &Policy{MaxAttempts: 3, Delay: time.Second}
		d := Decide(policy, "", 0, true)
		assert.False(t, d.Retry)
		assert.Equal(t, "circuit breaker open", d.Reason)
	})

	t.Run("Should compute fixed backoff as the base delay", func(t *testing.T) {
		policy := &Policy{MaxAttempts: 5, Delay: 2 * time.Second, Backoff: BackoffFixed}
		d := Decide(policy, "", 0, false)
		assert.True(t, d.Retry)
		assert.Equal(t, 2*time.Second, d.Delay)
	})

	t.Run("Should compute linear backoff scaling with attempt", func(t *testing.T) {
		policy := &Policy{MaxAttempts: 5, Delay: time.Second, Backoff: BackoffLinear}
		d := Decide(policy, "", 2, false)
		assert.True(t, d.Retry)
		assert.Equal(t, 3*time.Second, d.Delay)
	})

	t.Run("Should compute exponential backoff within 25 percent jitter", func(t *testing.T) {
		policy := &Policy{MaxAttempts: 5, Delay: time.Second, Backoff: BackoffExponential}
		d := Decide(policy, "", 1, false)
		assert.True(t, d.Retry)
		assert.InDelta(t, float64(2*time.Second), float64(d.Delay), float64(500*time.Millisecond))
	})

	t.Run("Should deny retry when computed delay exceeds the 5 minute ceiling", func(t *testing.T) {
		policy := &Policy{MaxAttempts: 20, Delay: time.Minute, Backoff: BackoffExponential}
		d := Decide(policy, "", 10, false)
		assert.False(t, d.Retry)
		assert.Equal(t, "computed delay exceeds ceiling", d.Reason)
	})

	t.Run("Should floor delay at 100ms", func(t *testing.T) {
		policy := &Policy{MaxAttempts: 5, Delay: time.Millisecond, Backoff: BackoffFixed}
		d := Decide(policy, "", 0, false)
		assert.True(t, d.Retry)
		assert.Equal(t, 100*time.Millisecond, d.Delay)
	})
}

func TestManager(t *testing.T) {
	t.Run("Should trip the breaker after five failures for the same action type", func(t *testing.T) {
		m := NewManager(nil)
		policy := &Policy{MaxAttempts: 100, Delay: time.Millisecond, Backoff: BackoffFixed}
		var last Decision
		for i := 0; i < 6; i++ {
			last = m.Evaluate("a1", "http_request", policy, "action_error", i)
		}
		assert.False(t, last.Retry)
	})

	t.Run("Should record history in append-only order", func(t *testing.T) {
		m := NewManager(nil)
		policy := &Policy{MaxAttempts: 5, Delay: time.Millisecond, Backoff: BackoffFixed}
		m.Evaluate("a1", "http_request", policy, "action_error", 0)
		m.Evaluate("a1", "http_request", policy, "action_error", 1)
		assert.Len(t, m.History(), 2)
	})

	t.Run("Should compute a success rate from recorded outcomes", func(t *testing.T) {
		m := NewManager(nil)
		policy := &Policy{MaxAttempts: 5, Delay: time.Millisecond, Backoff: BackoffFixed}
		m.Evaluate("a1", "http_request", policy, "action_error", 0)
		m.Succeed("a1", "http_request")
		_, rate := m.Snapshot()
		assert.Greater(t, rate, 0.0)
	})
}
