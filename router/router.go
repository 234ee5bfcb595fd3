package router

import (
	"fmt"

	"zapihook/config"
	"zapihook/controllers"
	"zapihook/logger"
	"zapihook/middleware"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Dependencies struct {
	Guard   *middleware.IngressGuard
	Handler controllers.MessageHandler
}

// Initialize wires all routes and middlewares.
// Webhook routes pass through the IngressGuard before anything reads the body.
func Initialize(r *gin.Engine, cfg config.Configuration, deps Dependencies) error {
	if err := r.SetTrustedProxies(cfg.Webhook.TrustedProxies); err != nil {
		return fmt.Errorf("trusted proxies: %w", err)
	}

	r.HandleMethodNotAllowed = true
	r.NoMethod(controllers.MethodNotAllowed)

	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())

	r.GET("/health", controllers.Health)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Z-API: configure "Ao receber" e "Ao desconectar" com estas URLs
	zapi := r.Group("/api/webhooks/zapi")
	zapi.Use(Logger(), deps.Guard.Handler())
	zapi.POST("/received", controllers.WebhookReceived(deps.Handler))
	zapi.POST("/disconnected", controllers.WebhookDisconnected())

	// alias curto
	r.POST("/webhook", Logger(), deps.Guard.Handler(), controllers.WebhookReceived(deps.Handler))

	logger.Info("Routes initialized")
	return nil
}
