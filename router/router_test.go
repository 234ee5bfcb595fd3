package router

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"zapihook/config"
	"zapihook/middleware"
	"zapihook/pipeline"

	"github.com/gin-gonic/gin"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type okHandler struct{ calls int }

func (h *okHandler) Handle(ctx context.Context, ev pipeline.MessageEvent) pipeline.Result {
	h.calls++
	return pipeline.Result{OK: true}
}

func newTestEngine(t *testing.T, perMinute int) (*gin.Engine, *okHandler) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg, err := config.Load("")
	require.NoError(t, err)

	handler := &okHandler{}
	r := gin.New()
	require.NoError(t, Initialize(r, cfg, Dependencies{
		Guard:   middleware.NewIngressGuard(perMinute, cfg.Webhook.BodyLimitBytes, clockwork.NewFakeClock()),
		Handler: handler,
	}))
	return r, handler
}

func do(r http.Handler, method, path string, body []byte) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRoutes(t *testing.T) {
	r, handler := newTestEngine(t, 100)

	w := do(r, http.MethodPost, "/api/webhooks/zapi/received", []byte(`{"phone":"5546999999999"}`))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))

	w = do(r, http.MethodPost, "/webhook", []byte(`{"phone":"5546999999999"}`))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 2, handler.calls)

	w = do(r, http.MethodGet, "/api/webhooks/zapi/received", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
	assert.JSONEq(t, `{"error":"method_not_allowed"}`, w.Body.String())

	w = do(r, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = do(r, http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "zapi_webhook_requests_total")
}

func TestWebhookRateLimited(t *testing.T) {
	r, handler := newTestEngine(t, 1)

	w := do(r, http.MethodPost, "/api/webhooks/zapi/received", []byte(`{}`))
	assert.Equal(t, http.StatusOK, w.Code)

	w = do(r, http.MethodPost, "/api/webhooks/zapi/received", []byte(`{}`))
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.NotEmpty(t, w.Header().Get("Retry-After"))
	assert.Equal(t, 1, handler.calls)
}
