package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/compozy/webhookflow/engine/dedup"
	"github.com/compozy/webhookflow/engine/queue"
	"github.com/compozy/webhookflow/engine/webhook/verify"
)

func signGitHub(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

func TestWebhookIngress(t *testing.T) {
	t.Run("Should accept a new delivery then short-circuit a repeat within the dedup window", func(t *testing.T) {
		gin.SetMode(gin.TestMode)
		v, err := verify.New(verify.Config{Strategy: "github", Secret: "s"})
		require.NoError(t, err)
		cache := dedup.New(100, 5*time.Minute)
		q := queue.New(100)
		ing := New(v, cache, q, 3, nil)
		r := gin.New()
		ing.RegisterRoutes(r)

		body := []byte(`{"x":1}`)
		sig := signGitHub("s", body)

		req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(string(body)))
		req.Header.Set("X-GitHub-Event", "ping")
		req.Header.Set("X-GitHub-Delivery", "d1")
		req.Header.Set("X-Hub-Signature-256", sig)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, 1, q.Depth())

		req2 := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(string(body)))
		req2.Header.Set("X-GitHub-Event", "ping")
		req2.Header.Set("X-GitHub-Delivery", "d1")
		req2.Header.Set("X-Hub-Signature-256", sig)
		w2 := httptest.NewRecorder()
		r.ServeHTTP(w2, req2)
		assert.Equal(t, http.StatusOK, w2.Code)
		assert.Contains(t, w2.Body.String(), "Duplicate delivery ignored")
		assert.Equal(t, 1, q.Depth())
	})

	t.Run("Should reject a bad signature with 401 and leave the queue untouched", func(t *testing.T) {
		gin.SetMode(gin.TestMode)
		v, err := verify.New(verify.Config{Strategy: "github", Secret: "s"})
		require.NoError(t, err)
		cache := dedup.New(100, 5*time.Minute)
		q := queue.New(100)
		ing := New(v, cache, q, 3, nil)
		r := gin.New()
		ing.RegisterRoutes(r)

		body := []byte(`{"x":1}`)
		req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(string(body)))
		req.Header.Set("X-GitHub-Event", "ping")
		req.Header.Set("X-GitHub-Delivery", "d1")
		req.Header.Set("X-Hub-Signature-256", "sha256="+strings.Repeat("0", 64))
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Equal(t, 0, q.Depth())
	})

	t.Run("Should reject a request missing required headers", func(t *testing.T) {
		gin.SetMode(gin.TestMode)
		v, err := verify.New(verify.Config{Strategy: "none"})
		require.NoError(t, err)
		cache := dedup.New(100, 5*time.Minute)
		q := queue.New(100)
		ing := New(v, cache, q, 3, nil)
		r := gin.New()
		ing.RegisterRoutes(r)

		req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(`{}`))
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("Should report unhealthy once queue depth crosses 90 percent capacity", func(t *testing.T) {
		gin.SetMode(gin.TestMode)
		v, err := verify.New(verify.Config{Strategy: "none"})
		require.NoError(t, err)
		cache := dedup.New(100, 5*time.Minute)
		q := queue.New(2)
		ing := New(v, cache, q, 3, nil)
		r := gin.New()
		ing.RegisterRoutes(r)

		_, err = q.Enqueue("ping", nil, nil, nil, "d1", 0)
		require.NoError(t, err)
		_, err = q.Enqueue("ping", nil, nil, nil, "d2", 0)
		require.NoError(t, err)

		req := httptest.NewRequest(http.MethodGet, "/webhook/health", nil)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	})
}
