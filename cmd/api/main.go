package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/kitaverein/recon-backend/internal/api"
	"github.com/kitaverein/recon-backend/internal/application/recon"
	"github.com/kitaverein/recon-backend/internal/infrastructure/config"
	"github.com/kitaverein/recon-backend/internal/infrastructure/logging"
	"github.com/kitaverein/recon-backend/internal/infrastructure/storage"
)

func main() {
	cfg := config.LoadOrEnv()
	logger := logging.NewLogger(cfg.Observability.Logging)

	store, err := storage.NewStore(cfg.Storage.DatabasePath)
	if err != nil {
		logger.Error("failed to open ledger store", "path", cfg.Storage.DatabasePath, "error", err)
		os.Exit(1)
	}
	defer func() { _ = store.Close() }()

	service := recon.NewService(store, cfg,
		logging.NewLoggerWithSystem(cfg.Observability.Logging, "recon"))

	gin.SetMode(gin.ReleaseMode)
	server := api.NewServer(service, store,
		logging.NewLoggerWithSystem(cfg.Observability.Logging, "api"))
	router := server.Router(cfg.Server)

	httpServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info("starting api server", "port", cfg.Server.Port, "db", cfg.Storage.DatabasePath)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
	}
}
