package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"taskmind-sync/internal/config"
	"taskmind-sync/internal/db"
	"taskmind-sync/internal/logging"
	"taskmind-sync/internal/redis"
	"taskmind-sync/internal/storage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := logging.New(cfg.LogLevel)
	logger.Info("starting_worker", "service", "taskmind-sync-worker")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Connect to PostgreSQL (with retry)
	var dbConn *db.DB
	for i := 0; i < 5; i++ {
		dbConn, err = db.New(ctx, cfg.DBDSN)
		if err == nil {
			break
		}
		logger.Warn("db_connect_retry", "attempt", i+1, "error", err)
		time.Sleep(2 * time.Second)
	}
	if err != nil {
		logger.Error("db_connect_failed", "error", err)
		os.Exit(1)
	}
	defer dbConn.Close()

	redisClient, err := redis.New(cfg.RedisDSN)
	if err != nil {
		logger.Warn("redis_connect_failed", "error", err)
		redisClient = nil
	} else {
		defer redisClient.Close()
	}

	archive := newArchiveClient(logger, cfg)

	job := storage.NewRetentionJob(logger, dbConn, redisClient, archive, cfg.AuditRetentionDays, cfg.AuditRetentionInterval)
	go job.Run(ctx)

	logger.Info("worker_started")

	// graceful shutdown
	stop := make(chan os.Signal, 2)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info("shutting_down")
	cancel()

	if redisClient != nil {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis_close_error", "error", err)
		} else {
			logger.Info("redis_closed")
		}
	}

	dbConn.Close()
	logger.Info("db_closed")

	logger.Info("worker_stopped")
}

// newArchiveClient returns the S3 client when the bucket and credentials are
// configured, otherwise the simulator.
func newArchiveClient(logger *slog.Logger, cfg config.Config) storage.ArchiveClient {
	if cfg.ArchiveEndpoint != "" && cfg.ArchiveBucket != "" && cfg.ArchiveKeysRaw != "" {
		accessKeyID, secretAccessKey, err := storage.ParseArchiveKeys(cfg.ArchiveKeysRaw)
		if err != nil {
			logger.Warn("archive_keys_invalid", "error", err)
		} else {
			client, err := storage.NewS3Client(storage.S3Config{
				Endpoint:        cfg.ArchiveEndpoint,
				AccessKeyID:     accessKeyID,
				SecretAccessKey: secretAccessKey,
				Bucket:          cfg.ArchiveBucket,
				Region:          "auto",
			})
			if err != nil {
				logger.Warn("archive_client_init_failed", "error", err)
			} else {
				logger.Info("using_s3_archive", "endpoint", cfg.ArchiveEndpoint)
				return client
			}
		}
	}

	logger.Info("using_archive_simulator")
	return storage.NewSimulator(cfg.ArchiveBucket, cfg.ArchiveEndpoint)
}
