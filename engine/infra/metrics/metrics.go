// Package metrics exposes the Prometheus counters and histograms that
// webhookflowd's /metrics endpoint serves: webhook deliveries accepted or
// rejected, queue depth and retries, and workflow execution outcomes.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Registry bundles every metric webhookflowd records, constructed once at
// startup and threaded through the webhook ingress, queue, and executor.
type Registry struct {
	WebhookDeliveries  *prometheus.CounterVec
	QueueDepth         prometheus.Gauge
	QueueRetries       *prometheus.CounterVec
	ExecutionsTotal    *prometheus.CounterVec
	ExecutionDuration  *prometheus.HistogramVec
}

// NewRegistry registers every metric against the default Prometheus
// registerer (promhttp.Handler serves it directly). Calling this more than
// once per process panics on the duplicate registration, matching
// client_golang's own behavior.
func NewRegistry() *Registry {
	return &Registry{
		WebhookDeliveries: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "webhookflow_webhook_deliveries_total",
			Help: "Webhook deliveries received, partitioned by event type and outcome.",
		}, []string{"event", "outcome"}),
		QueueDepth: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "webhookflow_queue_depth",
			Help: "Number of events currently buffered in the processing queue.",
		}),
		QueueRetries: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "webhookflow_queue_retries_total",
			Help: "Queued events retried after a processor error, partitioned by event type.",
		}, []string{"event"}),
		ExecutionsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "webhookflow_executions_total",
			Help: "Workflow executions completed, partitioned by workflow name and final status.",
		}, []string{"workflow", "status"}),
		ExecutionDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "webhookflow_execution_duration_seconds",
			Help:    "Workflow execution duration in seconds, partitioned by workflow name.",
			Buckets: prometheus.DefBuckets,
		}, []string{"workflow"}),
	}
}

// ObserveExecution records the outcome and duration of a finished execution.
func (r *Registry) ObserveExecution(workflowName, status string, duration time.Duration) {
	if r == nil {
		return
	}
	r.ExecutionsTotal.WithLabelValues(workflowName, status).Inc()
	r.ExecutionDuration.WithLabelValues(workflowName).Observe(duration.Seconds())
}

// RecordDelivery records a webhook delivery outcome ("accepted", "rejected",
// "duplicate").
func (r *Registry) RecordDelivery(event, outcome string) {
	if r == nil {
		return
	}
	r.WebhookDeliveries.WithLabelValues(event, outcome).Inc()
}

// RecordRetry records a queue processor retry for event.
func (r *Registry) RecordRetry(event string) {
	if r == nil {
		return
	}
	r.QueueRetries.WithLabelValues(event).Inc()
}

// SetQueueDepth reports the queue's current buffered length.
func (r *Registry) SetQueueDepth(depth int) {
	if r == nil {
		return
	}
	r.QueueDepth.Set(float64(depth))
}
