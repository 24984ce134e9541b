// Package queue implements the bounded FIFO event queue (C7): a
// container/list-backed deque protected by a mutex, matching the teacher's
// preference for explicit synchronization over lock-free structures, with
// retried events promoted to the head so a single bad delivery cannot
// starve the rest of the queue except for its own redelivery.
package queue

import (
	"container/list"
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/compozy/webhookflow/engine/errs"
	"github.com/compozy/webhookflow/engine/idgen"
	"github.com/compozy/webhookflow/engine/infra/metrics"
	"github.com/compozy/webhookflow/pkg/logger"
)

// QueuedEvent is one unit of work moving through the queue.
type QueuedEvent struct {
	ID         idgen.ID
	Type       string
	Payload    map[string]any
	RawPayload []byte
	Headers    map[string]string
	DeliveryID string
	EnqueuedAt time.Time
	RetryCount int
	MaxRetries int
}

// Processor handles one QueuedEvent. A returned error triggers the retry
// policy described in spec.md §4.7.
type Processor func(ctx context.Context, event QueuedEvent) error

// Queue is a bounded FIFO of QueuedEvent with a processor registry keyed by
// event type and a single draining worker goroutine.
type Queue struct {
	mu         sync.Mutex
	items      *list.List
	capacity   int
	processors map[string]Processor
	notify     chan struct{}
	processing bool
	metrics    *metrics.Registry
}

// SetMetrics attaches a metrics registry for queue depth and retry
// counters. Passing nil (the zero value) keeps metric recording a no-op.
func (q *Queue) SetMetrics(reg *metrics.Registry) {
	q.metrics = reg
}

// New constructs a Queue with the given bound on in-flight items.
func New(capacity int) *Queue {
	if capacity <= 0 {
		capacity = 1000
	}
	return &Queue{
		items:      list.New(),
		capacity:   capacity,
		processors: make(map[string]Processor),
		notify:     make(chan struct{}, 1),
	}
}

// RegisterProcessor assigns the single processor for eventType. Registering
// twice for the same type replaces the previous processor.
func (q *Queue) RegisterProcessor(eventType string, p Processor) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.processors[eventType] = p
}

// Enqueue appends event to the tail of the queue. It fails with a
// KindUnavailable error when the queue is at capacity. rawPayload is the
// undecoded request body, kept alongside the parsed Payload map so a
// processor can pull an ad hoc field out of it with gjson instead of
// paying for a full decode.
func (q *Queue) Enqueue(
	eventType string, payload map[string]any, rawPayload []byte,
	headers map[string]string, deliveryID string, maxRetries int,
) (idgen.ID, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.items.Len() >= q.capacity {
		return "", errs.New(errs.KindUnavailable, "queue: at capacity")
	}
	event := QueuedEvent{
		ID: idgen.New(), Type: eventType, Payload: payload, RawPayload: rawPayload, Headers: headers,
		DeliveryID: deliveryID, EnqueuedAt: time.Now(), MaxRetries: maxRetries,
	}
	q.items.PushBack(event)
	q.metrics.SetQueueDepth(q.items.Len())
	q.wake()
	return event.ID, nil
}

func (q *Queue) wake() {
	select {
	case q.notify <- struct{}{}:
	default:
	}
}

// requeueAfter promotes event back to the front of the queue, for retry,
// after waiting delay.
func (q *Queue) requeueAfter(event QueuedEvent, delay time.Duration) {
	time.AfterFunc(delay, func() {
		q.mu.Lock()
		q.items.PushFront(event)
		q.wake()
		q.mu.Unlock()
	})
}

// Depth returns the current number of items waiting; an event already
// popped for dispatch, or waiting out a retry delay, is not counted.
func (q *Queue) Depth() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.items.Len()
}

// Capacity returns the configured bound.
func (q *Queue) Capacity() int { return q.capacity }

// ProcessorCount returns the number of registered processors.
func (q *Queue) ProcessorCount() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.processors)
}

// Run drains the queue on a single goroutine until ctx is cancelled. Call
// once; it blocks until ctx.Done().
func (q *Queue) Run(ctx context.Context) {
	log := logger.FromContext(ctx)
	for {
		event, ok := q.pop()
		if !ok {
			select {
			case <-ctx.Done():
				return
			case <-q.notify:
				continue
			}
		}
		q.dispatch(ctx, event, log)
		select {
		case <-ctx.Done():
			return
		default:
		}
	}
}

func (q *Queue) pop() (QueuedEvent, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	front := q.items.Front()
	if front == nil {
		return QueuedEvent{}, false
	}
	q.items.Remove(front)
	q.metrics.SetQueueDepth(q.items.Len())
	return front.Value.(QueuedEvent), true
}

func (q *Queue) dispatch(ctx context.Context, event QueuedEvent, log logger.Logger) {
	q.mu.Lock()
	processor, ok := q.processors[event.Type]
	q.mu.Unlock()
	if !ok {
		log.Warn("queue: no processor registered", "event_type", event.Type, "delivery_id", event.DeliveryID)
		return
	}
	if err := processor(ctx, event); err != nil {
		q.handleFailure(ctx, event, err, log)
	}
}

func (q *Queue) handleFailure(ctx context.Context, event QueuedEvent, err error, log logger.Logger) {
	event.RetryCount++
	if event.RetryCount <= event.MaxRetries {
		delayMs := 1000 * (1 << uint(event.RetryCount-1))
		if delayMs > 30000 {
			delayMs = 30000
		}
		log.Warn("queue: processor failed, requeueing",
			"event_type", event.Type, "delivery_id", event.DeliveryID,
			"retry_count", event.RetryCount, "delay_ms", delayMs, "error", err)
		q.metrics.RecordRetry(event.Type)
		q.requeueAfter(event, time.Duration(delayMs)*time.Millisecond)
		return
	}
	log.Error("queue: processor failed permanently",
		"event_type", event.Type, "delivery_id", event.DeliveryID, "error", err,
		"detail", fmt.Sprintf("exceeded max retries (%d)", event.MaxRetries))
}
