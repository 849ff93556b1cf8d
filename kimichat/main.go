package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"kimichat/kimichat/config"
	"kimichat/kimichat/controllers"
	"kimichat/kimichat/routes"
	"kimichat/kimichat/services/llm"
	"kimichat/kimichat/utils/logging"
	"kimichat/kimichat/utils/telemetry"

	"go.uber.org/zap"
)

func main() {
	cfg := config.LoadConfig()
	logging.InitLogger(cfg.LogDir)
	defer logging.Sync()

	if cfg.TelemetryEnabled {
		_, _, cleanup, err := telemetry.Init(context.Background(), cfg.LogDir)
		if err != nil {
			logging.ErrorLogger.Error("telemetry init error", zap.Error(err))
		} else {
			defer cleanup()
		}
	}

	if !cfg.Configured() {
		logging.AppLogger.Warn("OPENROUTER_API_KEY not set, relay running in demo mode")
	}

	provider := llm.NewOpenRouterClient(cfg, nil)
	chatCtrl := controllers.NewChatController(cfg, provider)
	authCtrl := controllers.NewAuthController(cfg)
	healthCtrl := controllers.NewHealthController()

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           routes.NewRouter(cfg, chatCtrl, authCtrl, healthCtrl),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logging.AppLogger.Info("relay listening", zap.String("addr", srv.Addr), zap.String("model", cfg.Model))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logging.ErrorLogger.Error("server listen error", zap.Error(err))
			os.Exit(1)
		}
	}()
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logging.ErrorLogger.Error("server shutdown error", zap.Error(err))
	}
	logging.AppLogger.Info("server shutdown complete")
}
