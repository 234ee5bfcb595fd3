package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"zapihook/config"
	"zapihook/db"
	"zapihook/logger"
	"zapihook/middleware"
	"zapihook/pipeline"
	"zapihook/router"
	"zapihook/storehours"
	"zapihook/tools"

	"github.com/gin-gonic/gin"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
)

func main() {
	configPath := flag.String("config", "config.json", "path to the JSON configuration file")
	flag.Parse()

	cfg := config.Get(*configPath)

	if err := logger.Init(cfg.LogPath, cfg.LogLevel); err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	srv, state, err := setupServer(cfg)
	if err != nil {
		logger.Fatal("failed to set up server", zap.Error(err))
	}

	if err := startServer(srv, state); err != nil {
		logger.Fatal("server error", zap.Error(err))
	}
}

// setupServer monta banco, clientes, pipeline e rotas.
func setupServer(cfg config.Configuration) (*http.Server, *pipeline.State, error) {
	loc, err := time.LoadLocation(cfg.Pipeline.TimeZone)
	if err != nil {
		return nil, nil, fmt.Errorf("load time zone %s: %w", cfg.Pipeline.TimeZone, err)
	}

	db.SetConfigurations(cfg)
	database, err := db.Connect()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	customers := db.NewCustomerRepository(database)
	settings := db.NewSettingRepository(database)
	trafficLogs := db.NewTrafficLogRepository(database)

	clock := clockwork.NewRealClock()
	state := pipeline.NewState(clock, cfg.Pipeline.CacheMaxEntries)

	zapi := tools.NewZApiClient(cfg.ZApi.BaseURL, cfg.ZApi.InstanceID, cfg.ZApi.InstanceToken, cfg.ZApi.ClientToken, cfg.ZApiTimeout())
	if cfg.ZApi.InstanceID == "" || cfg.ZApi.InstanceToken == "" {
		logger.Warn("Z-API instance not configured, auto replies will fail")
	}
	hours := storehours.NewProvider(settings, clock, loc)

	echo := pipeline.NewEchoDetector(customers, clock, cfg.EchoWindow(), cfg.Pipeline.EchoLookback)
	recorder := pipeline.NewRecorder(customers, state, echo, cfg.ProfileSyncTTL())
	traffic := pipeline.NewTrafficResponder(settings, zapi, recorder, trafficLogs, state, cfg.TrafficCooldown())
	offHours := pipeline.NewOffHoursResponder(hours, zapi, recorder, state, cfg.ExternalTimeout())
	p := pipeline.New(recorder, traffic, offHours, cfg.ExternalTimeout())

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	if err := router.Initialize(r, cfg, router.Dependencies{
		Guard:   middleware.NewIngressGuard(cfg.Webhook.RateLimitPerMinute, cfg.Webhook.BodyLimitBytes, clock),
		Handler: p,
	}); err != nil {
		return nil, nil, err
	}

	srv := &http.Server{
		Addr:              ":" + cfg.ApiPort,
		Handler:           r,
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return srv, state, nil
}

// startServer sobe o HTTP e, no SIGINT/SIGTERM, encerra o servidor e cancela
// as respostas agendadas que ainda não dispararam.
func startServer(srv *http.Server, state *pipeline.State) error {
	go func() {
		logger.Info("Starting server", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Server error", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	ctxShutdown, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()

	if err := srv.Shutdown(ctxShutdown); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	canceled := state.Scheduler.Stop()
	logger.Info("Server stopped", zap.Int("canceled_scheduled_replies", canceled))
	return nil
}
