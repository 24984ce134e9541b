package queue

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnqueue(t *testing.T) {
	t.Run("Should fail when the queue is at capacity", func(t *testing.T) {
		q := New(1)
		_, err := q.Enqueue("ping", nil, nil, nil, "d1", 0)
		require.NoError(t, err)
		_, err = q.Enqueue("ping", nil, nil, nil, "d2", 0)
		assert.Error(t, err)
	})

	t.Run("Should track depth as items are enqueued", func(t *testing.T) {
		q := New(10)
		_, err := q.Enqueue("ping", nil, nil, nil, "d1", 0)
		require.NoError(t, err)
		assert.Equal(t, 1, q.Depth())
	})
}

func TestRun(t *testing.T) {
	t.Run("Should dispatch enqueued events to the registered processor in FIFO order", func(t *testing.T) {
		q := New(10)
		var order []string
		done := make(chan struct{}, 3)
		q.RegisterProcessor("ping", func(_ context.Context, e QueuedEvent) error {
			order = append(order, e.DeliveryID)
			done <- struct{}{}
			return nil
		})
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		go q.Run(ctx)

		_, err := q.Enqueue("ping", nil, nil, nil, "d1", 0)
		require.NoError(t, err)
		_, err = q.Enqueue("ping", nil, nil, nil, "d2", 0)
		require.NoError(t, err)

		for i := 0; i < 2; i++ {
			select {
			case <-done:
			case <-time.After(time.Second):
				t.Fatal("timed out waiting for dispatch")
			}
		}
		assert.Equal(t, []string{"d1", "d2"}, order)
	})

	t.Run("Should requeue a failed event at the head up to maxRetries", func(t *testing.T) {
		q := New(10)
		var attempts int32
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		q.RegisterProcessor("ping", func(_ context.Context, _ QueuedEvent) error {
			atomic.AddInt32(&attempts, 1)
			return assert.AnError
		})
		go q.Run(ctx)
		_, err := q.Enqueue("ping", nil, nil, nil, "d1", 1)
		require.NoError(t, err)
		require.Eventually(t, func() bool {
			return atomic.LoadInt32(&attempts) >= 2
		}, 2*time.Second, 10*time.Millisecond)
	})
}
