// Package main runs the background worker: email delivery and event reminders.
package main

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/aura-events/backend/config"
	"github.com/aura-events/backend/internal/attendees"
	"github.com/aura-events/backend/internal/auth"
	"github.com/aura-events/backend/internal/events"
	"github.com/aura-events/backend/internal/mailer"
	"github.com/aura-events/backend/internal/worker"
	"github.com/aura-events/backend/pkg/database"
	"github.com/aura-events/backend/pkg/queue"
	"github.com/aura-events/backend/pkg/redis"
)

func main() {
	logger := newLogger()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}

	ctx := context.Background()
	pool, err := database.NewPostgresPool(ctx, cfg.Database.DSN(), cfg.Database.MaxConns, logger)
	if err != nil {
		logger.Fatal("database", zap.Error(err))
	}
	defer pool.Close()

	rdb, err := redis.NewClient(ctx, redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
		PoolSize: cfg.Redis.PoolSize,
	}, logger)
	if err != nil {
		logger.Fatal("redis", zap.Error(err))
	}
	defer rdb.Close()

	jobQueue := queue.NewQueue(rdb.Client, logger)
	authRepo := auth.NewRepository(pool)
	attendeeRepo := attendees.NewRepository(pool, authRepo)
	eventRepo := events.NewRepository(pool, events.Loaders{Users: authRepo, Attendees: attendeeRepo})

	processor := worker.NewEmailProcessor(jobQueue, mailer.New(cfg.Email, logger), logger)
	reminders := worker.NewReminderScheduler(eventRepo, attendeeRepo, jobQueue,
		cfg.Worker.ReminderInterval, cfg.Worker.ReminderLookahead, logger)

	workerCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(2)
	go func() { defer wg.Done(); processor.Run(workerCtx) }()
	go func() { defer wg.Done(); reminders.Run(workerCtx) }()
	logger.Info("worker started", zap.Duration("reminder_interval", cfg.Worker.ReminderInterval))

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	cancel()
	wg.Wait()
	logger.Info("worker stopped")
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}
