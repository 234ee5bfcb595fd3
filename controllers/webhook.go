package controllers

import (
	"context"
	"errors"
	"net/http"

	"zapihook/logger"
	"zapihook/metrics"
	"zapihook/middleware"
	"zapihook/pipeline"
	"zapihook/tools"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

var logHeaders = []string{"User-Agent", "X-Forwarded-For", "CF-Connecting-IP", "X-Real-IP", "Content-Type"}

// MessageHandler processa um evento normalizado. *pipeline.Pipeline satisfaz.
type MessageHandler interface {
	Handle(ctx context.Context, ev pipeline.MessageEvent) pipeline.Result
}

// POST /api/webhooks/zapi/received
//
// Z-API reenvia quando não recebe 2xx, então erros de leitura ou de payload
// respondem {"ok": true} e ficam só no log.
func WebhookReceived(handler MessageHandler) gin.HandlerFunc {
	return func(c *gin.Context) {
		correlationID := uuid.NewString()

		raw, ok := readWebhookBody(c, correlationID)
		if !ok {
			return
		}

		switch res := pipeline.Normalize(raw, correlationID).(type) {
		case pipeline.Malformed:
			metrics.WebhookRequests.WithLabelValues("malformed").Inc()
			logger.Warn("webhook received: invalid payload",
				zap.String("correlation_id", correlationID),
				zap.String("reason", res.Reason),
				zap.String("payload", pipeline.PayloadPreview(raw)))
			RespondSuccess(c, gin.H{"ok": true})

		case pipeline.Ok:
			metrics.WebhookRequests.WithLabelValues("accepted").Inc()
			ev := res.Event
			logger.Info("webhook received",
				zap.String("correlation_id", correlationID),
				zap.String("request_id", c.GetString(middleware.REQUEST_ID_KEY)),
				zap.Any("headers", collectHeaders(c)),
				zap.String("phone", tools.MaskPhone(ev.Phone)),
				zap.String("message_type", ev.MessageType),
				zap.String("instance_id", ev.InstanceID),
				zap.String("preview", ev.LogPreview()))

			RespondSuccess(c, handler.Handle(c.Request.Context(), ev))
		}
	}
}

// POST /api/webhooks/zapi/disconnected
//
// Só registra a queda da instância.
func WebhookDisconnected() gin.HandlerFunc {
	return func(c *gin.Context) {
		correlationID := uuid.NewString()

		raw, ok := readWebhookBody(c, correlationID)
		if !ok {
			return
		}

		fields := []zap.Field{
			zap.String("correlation_id", correlationID),
			zap.Any("headers", collectHeaders(c)),
			zap.String("payload", pipeline.PayloadPreview(raw)),
		}
		if res, isOk := pipeline.Normalize(raw, correlationID).(pipeline.Ok); isOk {
			fields = append(fields, zap.String("instance_id", res.Event.InstanceID))
		}
		metrics.WebhookRequests.WithLabelValues("disconnected").Inc()
		logger.Warn("webhook disconnected", fields...)

		RespondSuccess(c, gin.H{"ok": true})
	}
}

// readWebhookBody lê o corpo já limitado pelo IngressGuard. Quando retorna
// false a resposta já foi escrita.
func readWebhookBody(c *gin.Context, correlationID string) ([]byte, bool) {
	raw, err := c.GetRawData()
	if err == nil {
		return raw, true
	}

	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		metrics.WebhookRequests.WithLabelValues("payload_too_large").Inc()
		RespondError(c, middleware.ErrPayloadTooLarge.Error(), http.StatusRequestEntityTooLarge)
		return nil, false
	}

	metrics.WebhookRequests.WithLabelValues("malformed").Inc()
	logger.Warn("webhook: failed to read body",
		zap.String("correlation_id", correlationID),
		zap.Error(err))
	RespondSuccess(c, gin.H{"ok": true})
	return nil, false
}

func collectHeaders(c *gin.Context) map[string]string {
	out := map[string]string{}
	for _, h := range logHeaders {
		if v := c.GetHeader(h); v != "" {
			out[h] = v
		}
	}
	return out
}

// MethodNotAllowed responde 405 no formato dos webhooks.
func MethodNotAllowed(c *gin.Context) {
	RespondError(c, "method_not_allowed", http.StatusMethodNotAllowed)
}

// GET /health
func Health(c *gin.Context) {
	RespondSuccess(c, gin.H{"status": "ok"})
}
