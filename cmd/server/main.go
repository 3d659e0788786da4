// Package main runs the events API HTTP server with graceful shutdown.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/aura-events/backend/config"
	"github.com/aura-events/backend/internal/attendees"
	"github.com/aura-events/backend/internal/auth"
	"github.com/aura-events/backend/internal/events"
	"github.com/aura-events/backend/internal/middleware"
	"github.com/aura-events/backend/internal/notify"
	"github.com/aura-events/backend/internal/policy"
	"github.com/aura-events/backend/pkg/database"
	"github.com/aura-events/backend/pkg/pagination"
	"github.com/aura-events/backend/pkg/queue"
	"github.com/aura-events/backend/pkg/redis"
	"github.com/aura-events/backend/pkg/response"
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

	if err := database.Migrate(ctx, pool, logger); err != nil {
		logger.Fatal("migrate", zap.Error(err))
	}

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

	pages := pagination.Config{Default: cfg.Pagination.DefaultPerPage, Max: cfg.Pagination.MaxPerPage}
	jwtService := auth.NewJWTService(cfg.JWT)

	// Auth
	authRepo := auth.NewRepository(pool)
	authHandler := auth.NewHandler(authRepo, jwtService, auth.NewHasher(0), logger)

	// Attendees load their users directly; the event comes from the route.
	attendeeRepo := attendees.NewRepository(pool, authRepo)
	notifier := notify.New(jobQueue, authRepo, logger)
	attendeePolicy := policy.NewAttendeePolicy(attendeeRepo)
	attendeeHandler := attendees.NewHandler(attendeeRepo, attendeePolicy, notifier, pages, logger)

	// Events
	eventRepo := events.NewRepository(pool, events.Loaders{Users: authRepo, Attendees: attendeeRepo})
	eventHandler := events.NewHandler(eventRepo, policy.NewEventPolicy(), attendeePolicy, pages, logger)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORS(cfg.Server.CORSAllowedOrigins))
	router.Use(middleware.Logger(logger))

	if cfg.Server.MetricsEnabled {
		metrics, err := middleware.NewMetrics(prometheus.DefaultRegisterer)
		if err != nil {
			logger.Fatal("metrics", zap.Error(err))
		}
		router.Use(metrics.Handler())
		router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	}

	// Health
	router.GET("/health", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		checks := gin.H{"database": "ok", "redis": "ok"}
		healthy := true
		if err := pool.Ping(ctx); err != nil {
			checks["database"], healthy = err.Error(), false
		}
		if err := rdb.Healthy(ctx); err != nil {
			checks["redis"], healthy = err.Error(), false
		}
		if !healthy {
			response.ServiceUnavailable(c, checks, "dependency unavailable")
			return
		}
		response.OK(c, gin.H{"status": "ok", "checks": checks})
	})

	// Auth (public)
	authGroup := router.Group("/auth")
	{
		authGroup.POST("/register", authHandler.Register)
		authGroup.POST("/login", authHandler.Login)
	}

	// Protected API (JWT required)
	api := router.Group("")
	api.Use(middleware.JWT(jwtService.Validator()))
	{
		api.GET("/auth/me", authHandler.Me)

		api.GET("/events", eventHandler.List)
		api.POST("/events", eventHandler.Create)

		event := api.Group("/events/:" + events.ParamEvent)
		event.Use(events.Resolve(eventRepo, logger))
		{
			event.GET("", eventHandler.Show)
			event.PUT("", eventHandler.Update)
			event.DELETE("", eventHandler.Delete)

			event.GET("/attendees", attendeeHandler.Index)
			event.POST("/attendees", attendeeHandler.Create)
			event.GET("/attendees/:"+attendees.ParamAttendee, attendeeHandler.Show)
			event.DELETE("/attendees/:"+attendees.ParamAttendee, attendeeHandler.Destroy)
		}
	}

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	go func() {
		logger.Info("server listening", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}
	logger.Info("server stopped")
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}
