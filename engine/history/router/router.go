// Package router exposes C10's execution history surface over HTTP:
// listing active executions, fetching one snapshot, and cancelling one,
// mirroring the teacher's convention of a thin gin-handler package per
// capability (engine/workflow/router in the teacher repo) rather than
// folding routes into the webhook ingress package.
package router

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/compozy/webhookflow/engine/history"
)

// Router exposes execution-history read and cancel routes.
type Router struct {
	history *history.Manager
}

// New constructs a Router backed by mgr.
func New(mgr *history.Manager) *Router {
	return &Router{history: mgr}
}

// RegisterRoutes attaches the history surface to a gin router group.
func (rt *Router) RegisterRoutes(r gin.IRouter) {
	r.GET("/executions", rt.listActive)
	r.GET("/executions/:id", rt.getExecution)
	r.DELETE("/executions/:id", rt.cancelExecution)
}

func (rt *Router) listActive(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"executions": rt.history.ListActive()})
}

func (rt *Router) getExecution(c *gin.Context) {
	id := c.Param("id")
	snap, ok := rt.history.Get(id)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "execution not found", "executionId": id})
		return
	}
	c.JSON(http.StatusOK, snap)
}

// cancelExecution marks an execution cancelled (spec.md's cancel(executionId)
// capability): the snapshot moves to the completed cache as status
// cancelled and is removed from the active map, but any in-flight action
// call is not forcibly aborted — its result is simply ignored once the
// engine later tries to finalize an execution id no longer active.
func (rt *Router) cancelExecution(c *gin.Context) {
	id := c.Param("id")
	if _, ok := rt.history.Get(id); !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "execution not found", "executionId": id})
		return
	}
	rt.history.Cancel(c.Request.Context(), id)
	snap, _ := rt.history.Get(id)
	c.JSON(http.StatusOK, snap)
}
