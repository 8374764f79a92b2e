// predictor/main.go
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"sberauto/predictor/artifact"
	"sberauto/predictor/config"
	"sberauto/predictor/database"
	"sberauto/predictor/handlers"
	"sberauto/predictor/store"
)

func main() {
	bootLog, _ := zap.NewProduction()
	config.LoadDotEnv(bootLog)

	cfg, err := config.LoadServer()
	if err != nil {
		bootLog.Fatal("failed to load config", zap.Error(err))
	}
	log, err := config.NewLogger(cfg.LogLevel)
	if err != nil {
		bootLog.Fatal("failed to build logger", zap.Error(err))
	}
	defer log.Sync()

	if cfg.GinMode == gin.ReleaseMode {
		gin.SetMode(gin.ReleaseMode)
	}

	// --- Load the model artifact; the service does not start without it ---
	art, err := artifact.Load(cfg.ModelPath)
	if err != nil {
		log.Fatal("failed to load model artifact", zap.String("path", cfg.ModelPath), zap.Error(err))
	}
	log.Info("model loaded",
		zap.String("name", art.Metadata.Name),
		zap.Int("version", art.Metadata.Version),
		zap.Time("trained_at", art.Metadata.Date),
		zap.Int("known_clients", len(art.Model.FirstMonths)))

	ctx := context.Background()

	// --- Optional PostgreSQL first-month lookup shared across instances ---
	if cfg.DatabaseURL != "" {
		dbClient, err := database.NewPostgresDB(ctx, cfg.DatabaseURL, log)
		if err != nil {
			log.Fatal("failed to initialize PostgreSQL database", zap.Error(err))
		}
		defer dbClient.Close()
		art.Model.WithHistory(store.NewClientStore(dbClient.DB))
	}

	// --- Optional ClickHouse prediction log ---
	var predLog handlers.PredictionLogger
	if cfg.PredictionLog {
		chClient, err := database.NewClickHouseDB(ctx, cfg.ClickHouse, log)
		if err != nil {
			log.Fatal("failed to initialize ClickHouse database", zap.Error(err))
		}
		defer chClient.Close()

		predictions := store.NewPredictionStore(chClient, log)
		if err := predictions.EnsureSchema(ctx); err != nil {
			log.Fatal("failed to prepare prediction log", zap.Error(err))
		}
		predLog = predictions
	}

	predictionHandlers := handlers.NewPredictionHandlers(art.Model, art.Metadata, predLog, log)
	r := handlers.NewRouter(predictionHandlers, cfg.FrontendOrigin, log)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: r,
	}

	go func() {
		log.Info("prediction service starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("prediction service failed to start", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatal("server forced to shutdown", zap.Error(err))
	}

	log.Info("server exiting")
}
