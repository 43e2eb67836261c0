// Package main runs the registration and credential HTTP server with graceful shutdown.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/campuspass/backend/config"
	"github.com/campuspass/backend/internal/auth"
	"github.com/campuspass/backend/internal/credentials"
	"github.com/campuspass/backend/internal/metrics"
	"github.com/campuspass/backend/internal/notifications"
	"github.com/campuspass/backend/internal/server"
	"github.com/campuspass/backend/internal/store/memory"
	"github.com/campuspass/backend/pkg/database"
	"github.com/campuspass/backend/pkg/logging"
	"github.com/campuspass/backend/pkg/queue"
	"github.com/campuspass/backend/pkg/redis"
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

	ctx := context.Background()

	var backend server.Backend
	switch cfg.Store {
	case config.StoreMemory:
		logger.Warn("using in-memory store; data is lost on restart")
		backend = server.MemoryBackend(memory.New())
	default:
		pool, err := database.NewPostgresPool(ctx, cfg.Database.DSN(), database.PoolOptions{
			MaxConns:       int32(cfg.Database.MaxConns),
			ConnectRetries: cfg.Database.ConnectRetries,
		}, logger)
		if err != nil {
			logger.Fatal("database", zap.Error(err))
		}
		defer pool.Close()

		applied, err := database.Migrate(ctx, pool)
		if err != nil {
			logger.Fatal("migrate", zap.Error(err))
		}
		logger.Info("migrations applied", zap.Strings("files", applied))
		backend = server.PostgresBackend(pool)
	}

	m := metrics.New(prometheus.DefaultRegisterer)

	var notifier notifications.Notifier = notifications.NewLogNotifier(logger)
	rdb, err := redis.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, logger)
	if err != nil {
		logger.Warn("redis unavailable, notifications will only be logged", zap.Error(err))
	} else {
		defer rdb.Close()
		q := queue.NewQueue(rdb.Client, queue.Options{
			Name:       cfg.Notifications.QueueName,
			MaxRetries: cfg.Notifications.MaxRetries,
		}, logger)
		notifier = notifications.NewQueueNotifier(q, cfg.Notifications.EnqueueTimeout(), m, logger)
	}

	loc, err := cfg.Credentials.Location()
	if err != nil {
		logger.Fatal("credentials time zone", zap.Error(err))
	}
	renderer := credentials.NewRenderer(credentials.RenderOptions{
		Location:        loc,
		CollegeFallback: cfg.Credentials.CollegeFallback,
		IssuerName:      cfg.Credentials.IssuerName,
		QRSize:          cfg.Credentials.QRSize,
	})

	jwtService := auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.Issuer, time.Duration(cfg.JWT.ExpireHours)*time.Hour)

	router := server.NewRouter(server.Deps{
		Backend:     backend,
		Tokens:      jwtService,
		Notifier:    notifier,
		Renderer:    renderer,
		Metrics:     m,
		Gatherer:    prometheus.DefaultGatherer,
		CORSOrigins: cfg.Server.CORSAllowedOrigins,
		Logger:      logger,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	go func() {
		logger.Info("server listening", zap.String("port", cfg.Server.Port), zap.String("store", cfg.Store))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Server.ShutdownTimeout)*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}
	logger.Info("server stopped")
}
