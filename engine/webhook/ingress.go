// Package webhook implements the HTTP ingress surface (C9): signature
// verification, deduplication, and handoff to the event queue.
package webhook

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/compozy/webhookflow/engine/dedup"
	"github.com/compozy/webhookflow/engine/infra/metrics"
	"github.com/compozy/webhookflow/engine/queue"
	"github.com/compozy/webhookflow/engine/webhook/verify"
	"github.com/compozy/webhookflow/pkg/logger"
)

// ErrorResponse is the standardized error body for ingress failures.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// Ingress wires signature verification, dedup, and enqueueing behind the
// webhook HTTP surface.
type Ingress struct {
	verifier   verify.Verifier
	dedup      *dedup.Cache
	queue      *queue.Queue
	maxRetries int
	metrics    *metrics.Registry
}

// New constructs an Ingress. verifier may be verify.noneVerifier-equivalent
// (Config{Strategy:"none"}) to disable signature checking. reg may be nil,
// in which case metric recording is a no-op.
func New(verifier verify.Verifier, dedupCache *dedup.Cache, q *queue.Queue, maxRetries int, reg *metrics.Registry) *Ingress {
	if maxRetries <= 0 {
		maxRetries = 3
	}
	return &Ingress{verifier: verifier, dedup: dedupCache, queue: q, maxRetries: maxRetries, metrics: reg}
}

// RegisterRoutes attaches the webhook surface to a gin router group.
func (in *Ingress) RegisterRoutes(r gin.IRouter) {
	r.POST("/webhook", in.handleWebhook)
	r.GET("/webhook/stats", in.handleStats)
	r.GET("/webhook/health", in.handleHealth)
}

func (in *Ingress) handleWebhook(c *gin.Context) {
	log := logger.FromContext(c.Request.Context())

	event := c.GetHeader("X-GitHub-Event")
	deliveryID := c.GetHeader("X-GitHub-Delivery")
	if event == "" || deliveryID == "" {
		sendError(c, http.StatusBadRequest, "missing required header", "X-GitHub-Event and X-GitHub-Delivery are required")
		return
	}

	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		sendError(c, http.StatusBadRequest, "failed to read request body", err.Error())
		return
	}

	if err := in.verifier.Verify(c.Request.Context(), c.Request, body); err != nil {
		log.Warn("webhook: signature verification failed", "delivery_id", deliveryID, "error", err)
		in.metrics.RecordDelivery(event, "rejected")
		sendError(c, http.StatusUnauthorized, "signature verification failed", "")
		return
	}

	var payload map[string]any
	if len(body) > 0 {
		if err := decodeJSON(body, &payload); err != nil {
			sendError(c, http.StatusBadRequest, "invalid JSON payload", err.Error())
			return
		}
	}

	dup, err := in.dedup.IsDuplicate(deliveryID, payload)
	if err != nil {
		sendError(c, http.StatusInternalServerError, "deduplication check failed", "")
		return
	}
	if dup {
		in.metrics.RecordDelivery(event, "duplicate")
		c.JSON(http.StatusOK, gin.H{"message": "Duplicate delivery ignored", "deliveryId": deliveryID})
		return
	}

	headers := map[string]string{"X-GitHub-Event": event, "X-GitHub-Delivery": deliveryID}
	id, err := in.queue.Enqueue(event, payload, body, headers, deliveryID, in.maxRetries)
	if err != nil {
		log.Error("webhook: enqueue failed", "delivery_id", deliveryID, "error", err)
		in.metrics.RecordDelivery(event, "rejected")
		sendError(c, http.StatusInternalServerError, "failed to enqueue event", "")
		return
	}

	in.metrics.RecordDelivery(event, "accepted")
	in.metrics.SetQueueDepth(in.queue.Depth())
	c.JSON(http.StatusOK, gin.H{"message": "accepted", "eventId": id.String(), "deliveryId": deliveryID})
}

func (in *Ingress) handleStats(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"queue": gin.H{
			"size":           in.queue.Depth(),
			"maxSize":        in.queue.Capacity(),
			"processing":     in.queue.Depth() > 0,
			"processorCount": in.queue.ProcessorCount(),
		},
		"deduplication": gin.H{
			"size":       in.dedup.Size(),
			"maxEntries": in.dedup.Capacity(),
			"ttlMs":      in.dedup.TTL().Milliseconds(),
		},
		"timestamp": nowRFC3339(),
	})
}

func (in *Ingress) handleHealth(c *gin.Context) {
	threshold := int(float64(in.queue.Capacity()) * 0.9)
	if in.queue.Depth() >= threshold {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy", "queueDepth": in.queue.Depth()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "healthy", "queueDepth": in.queue.Depth()})
}

func sendError(c *gin.Context, statusCode int, errorMsg, details string) {
	resp := ErrorResponse{Error: errorMsg}
	if details != "" {
		resp.Details = details
	}
	c.JSON(statusCode, resp)
	c.Abort()
}
