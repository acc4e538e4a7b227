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

	"taskmind-sync/internal/api"
	"taskmind-sync/internal/clerk"
	"taskmind-sync/internal/config"
	"taskmind-sync/internal/db"
	"taskmind-sync/internal/logging"
	"taskmind-sync/internal/processor"
	"taskmind-sync/internal/redis"
	"taskmind-sync/internal/store"
	"taskmind-sync/internal/telemetry"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := logging.New(cfg.LogLevel)
	logger.Info("starting_api", "service", "taskmind-sync-api", "http_addr", cfg.HTTPAddr)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	dbConn, err := db.New(ctx, cfg.DBDSN)
	if err != nil {
		logger.Error("db_connect_failed", "error", err)
		os.Exit(1)
	}
	defer dbConn.Close()

	// redis is an optimization layer; the API stays up without it
	redisClient, err := redis.New(cfg.RedisDSN)
	if err != nil {
		logger.Warn("redis_connect_failed", "error", err)
		redisClient = nil
	} else {
		defer redisClient.Close()
	}

	tel := telemetry.New(logger, telemetry.Config{
		Endpoint: cfg.AxiomEndpoint,
		Token:    cfg.AxiomToken,
		OrgID:    cfg.AxiomOrgID,
		Dataset:  cfg.AxiomDataset,
		Workers:  cfg.TelemetryWorkerCount,
	})

	verifier, err := clerk.NewVerifier(cfg.WebhookSecret, cfg.WebhookTestMode)
	if err != nil {
		logger.Error("verifier_init_failed", "error", err)
		os.Exit(1)
	}
	if cfg.WebhookTestMode {
		logger.Warn("webhook_test_mode_enabled", "signature_proof", "relaxed")
	}
	logger.Info("webhook_verifier_ready", "secret", logging.MaskSecret(cfg.WebhookSecret), "test_mode", cfg.WebhookTestMode)

	st := store.NewPostgres(dbConn)

	// explicit nil keeps the interface nil when redis is down
	var cache processor.Cache
	if redisClient != nil {
		cache = redisClient
	}
	rec := processor.NewReconciler(logger, st, cache, tel)

	gin.SetMode(gin.ReleaseMode)
	srv := api.NewServer(logger, dbConn, redisClient, st, rec, verifier, tel, cfg)

	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http_listen_failed", "error", err)
			os.Exit(1)
		}
	}()

	logger.Info("api_started", "addr", cfg.HTTPAddr)

	// graceful shutdown
	stop := make(chan os.Signal, 2)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info("shutting_down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("http_shutdown_failed", "error", err)
	} else {
		logger.Info("http_server_stopped")
	}

	// flush buffered telemetry before the connections go away
	tel.Close()
	logger.Info("telemetry_flushed")

	if redisClient != nil {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis_close_error", "error", err)
		} else {
			logger.Info("redis_closed")
		}
	}

	dbConn.Close()
	logger.Info("db_closed")

	logger.Info("api_stopped")
}
