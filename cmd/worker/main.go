// Package main runs the background workers: notification delivery and audit archiving.
package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/campuspass/backend/config"
	"github.com/campuspass/backend/internal/audit"
	"github.com/campuspass/backend/internal/metrics"
	"github.com/campuspass/backend/internal/notifications"
	"github.com/campuspass/backend/internal/server"
	"github.com/campuspass/backend/pkg/database"
	"github.com/campuspass/backend/pkg/logging"
	"github.com/campuspass/backend/pkg/queue"
	"github.com/campuspass/backend/pkg/redis"
	"github.com/campuspass/backend/pkg/storage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}
	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	if cfg.Store != config.StorePostgres {
		logger.Fatal("worker requires the postgres store", zap.String("store", cfg.Store))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := database.NewPostgresPool(ctx, cfg.Database.DSN(), database.PoolOptions{
		MaxConns:       int32(cfg.Database.MaxConns),
		ConnectRetries: cfg.Database.ConnectRetries,
	}, logger)
	if err != nil {
		logger.Fatal("database", zap.Error(err))
	}
	defer pool.Close()
	backend := server.PostgresBackend(pool)

	rdb, err := redis.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, logger)
	if err != nil {
		logger.Fatal("redis", zap.Error(err))
	}
	defer rdb.Close()

	m := metrics.New(prometheus.DefaultRegisterer)
	jobQueue := queue.NewQueue(rdb.Client, queueOptions(cfg.Notifications), logger)
	processor := notifications.NewProcessor(jobQueue, notifications.Stores{
		Registrations: backend.Registrations,
		Events:        backend.Events,
		Users:         backend.Users,
		EmailLogs:     backend.EmailLogs,
	}, notifications.NewLogSender(logger), m, logger).
		WithBackoff(time.Duration(cfg.Notifications.RetryBackoffSeconds) * time.Second)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return processor.Run(gctx) })
	logger.Info("notification worker started", zap.String("queue", cfg.Notifications.QueueName))

	if cfg.AWS.Enabled() {
		s3Client, err := storage.NewS3(ctx, storage.S3Config{
			Region:               cfg.AWS.Region,
			AccessKeyID:          cfg.AWS.AccessKeyID,
			SecretAccessKey:      cfg.AWS.SecretAccessKey,
			Endpoint:             cfg.AWS.Endpoint,
			ArchiveBucket:        cfg.AWS.ArchiveBucket,
			PresignExpireMinutes: cfg.AWS.PresignExpireMinutes,
		}, logger)
		if err != nil {
			logger.Fatal("s3", zap.Error(err))
		}
		archiver := audit.NewArchiver(backend.Audit, s3Client, cfg.Archive.BatchSize, cfg.Archive.Interval(), logger)
		g.Go(func() error { return archiver.Run(gctx) })
		logger.Info("audit archiver started", zap.String("bucket", s3Client.Bucket()))
	} else {
		logger.Info("audit archiver disabled: no archive bucket configured")
	}

	if err := g.Wait(); err != nil {
		logger.Error("worker exited with error", zap.Error(err))
	}
	logger.Info("worker stopped")
}

func queueOptions(c config.NotificationsConfig) queue.Options {
	return queue.Options{
		Name:        c.QueueName,
		MaxRetries:  c.MaxRetries,
		PollTimeout: time.Duration(c.PollTimeoutSeconds) * time.Second,
	}
}
