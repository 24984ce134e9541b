package router

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/compozy/webhookflow/engine/history"
	"github.com/compozy/webhookflow/engine/workflow"
)

func TestRouter(t *testing.T) {
	gin.SetMode(gin.TestMode)

	t.Run("Should list active executions", func(t *testing.T) {
		mgr := history.NewManager(10, nil)
		mgr.Start(context.Background(), workflow.ExecutionSnapshot{ExecutionID: "e1", StartTime: time.Now()})
		r := gin.New()
		New(mgr).RegisterRoutes(r)

		req := httptest.NewRequest(http.MethodGet, "/executions", nil)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), "e1")
	})

	t.Run("Should fetch a single execution by id", func(t *testing.T) {
		mgr := history.NewManager(10, nil)
		mgr.Start(context.Background(), workflow.ExecutionSnapshot{ExecutionID: "e2", StartTime: time.Now()})
		r := gin.New()
		New(mgr).RegisterRoutes(r)

		req := httptest.NewRequest(http.MethodGet, "/executions/e2", nil)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), "e2")
	})

	t.Run("Should 404 for an unknown execution id", func(t *testing.T) {
		mgr := history.NewManager(10, nil)
		r := gin.New()
		New(mgr).RegisterRoutes(r)

		req := httptest.NewRequest(http.MethodGet, "/executions/missing", nil)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("Should cancel a running execution and remove it from the active list", func(t *testing.T) {
		mgr := history.NewManager(10, nil)
		mgr.Start(context.Background(), workflow.ExecutionSnapshot{ExecutionID: "e3", StartTime: time.Now()})
		r := gin.New()
		New(mgr).RegisterRoutes(r)

		req := httptest.NewRequest(http.MethodDelete, "/executions/e3", nil)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), "cancelled")
		assert.Empty(t, mgr.ListActive())
	})

	t.Run("Should 404 cancelling an unknown execution id", func(t *testing.T) {
		mgr := history.NewManager(10, nil)
		r := gin.New()
		New(mgr).RegisterRoutes(r)

		req := httptest.NewRequest(http.MethodDelete, "/executions/missing", nil)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}
