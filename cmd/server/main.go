package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/GoPolymarket/apilogs/internal/channel"
	"github.com/GoPolymarket/apilogs/internal/config"
	"github.com/GoPolymarket/apilogs/internal/handler"
	"github.com/GoPolymarket/apilogs/internal/middleware"
	"github.com/GoPolymarket/apilogs/internal/pkg/logger"
	"github.com/GoPolymarket/apilogs/internal/redact"
	"github.com/GoPolymarket/apilogs/internal/repository"
	"github.com/GoPolymarket/apilogs/internal/service"
	"github.com/GoPolymarket/apilogs/internal/sink"
	"github.com/GoPolymarket/apilogs/internal/tracker"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type callStore interface {
	service.CallStore
	handler.CallReader
	service.Pruner
}

func main() {
	// 1. Load Configuration
	cfg, err := config.Load(os.Getenv("APILOGS_CONFIG"))
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	logger.Init(cfg.Log.Level)

	// 2. Initialize Persistence
	var store callStore
	entities := repository.NewEntityRegistry()
	if cfg.Database.DSN != "" {
		db, err := repository.NewDB(cfg)
		if err != nil {
			log.Fatalf("Failed to connect to DB: %v", err)
		}
		if err := repository.RunMigrations(db); err != nil {
			log.Fatalf("Failed to run migrations: %v", err)
		}
		logger.Info("Connected to PostgreSQL")
		store = repository.NewPostgresCallStore(db)
		entities = repository.NewEntityRegistryFromConfig(db, cfg.Entities)
	} else {
		logger.Warn("No database configured, call summaries are kept in memory and entity links are skipped")
		store = repository.NewMemoryCallStore()
	}

	var deps sink.Deps
	if cfg.Redis.Addr != "" {
		redisClient, err := repository.NewRedisClient(cfg)
		if err != nil {
			log.Fatalf("Failed to connect to Redis: %v", err)
		}
		logger.Info("Connected to Redis")
		deps.Redis = redisClient
		defer redisClient.Close()
	}
	if len(cfg.Kafka.Brokers) > 0 {
		deps.Producer = sink.NewKafkaProducer(cfg.Kafka.Brokers)
		defer deps.Producer.Close()
	}

	// 3. Channels
	var managerOpts []channel.Option
	if cfg.CallLog.Dispatch.Concurrent {
		managerOpts = append(managerOpts, channel.WithConcurrency(len(cfg.Channels)))
	}
	channels := channel.NewManager(managerOpts...)
	err = channels.Load(cfg.Channels, redact.NewRegistry(), func(name string, sc config.SinkConfig) (channel.Sink, error) {
		return sink.FromConfig(name, sc, deps)
	})
	if err != nil {
		log.Fatalf("Failed to build channels: %v", err)
	}

	// 4. Call log service
	opts := []service.Option{service.WithRetry(cfg.CallLog.Completion.RetryMaxElapsed)}
	if cfg.CallLog.Completion.Async() {
		opts = append(opts, service.WithWorkers(cfg.CallLog.Completion.Workers, cfg.CallLog.Completion.QueueSize))
	}
	callLog := service.NewCallLogService(tracker.New(), store, entities, channels, opts...)

	retention := service.NewRetentionJob(store, time.Duration(cfg.CallLog.Retention.TTLHours)*time.Hour, nil)
	if err := retention.Start(cfg.CallLog.Retention.Schedule); err != nil {
		log.Fatalf("Failed to start retention: %v", err)
	}

	// 5. Setup Router
	callHandler := handler.NewCallHandler(store)
	channelHandler := handler.NewChannelHandler(channels)

	r := gin.Default()
	r.Use(middleware.ErrorHandler())
	r.Use(middleware.MetricsMiddleware())
	r.Use(middleware.CallLog(callLog, cfg.CallLog))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": "apilogs"})
	})
	if cfg.Metrics.Enabled {
		r.GET(cfg.Metrics.Path, gin.WrapH(promhttp.Handler()))
	}

	admin := r.Group("/v1")
	admin.Use(middleware.AdminMiddleware(cfg))
	{
		admin.GET("/calls", callHandler.List)
		admin.GET("/calls/:id", callHandler.Get)
		admin.GET("/channels", channelHandler.List)
		admin.GET("/channels/:name/recent", channelHandler.Recent)
		admin.GET("/channels/:name/tail", channelHandler.Tail)
		admin.POST("/channels/:name/preview", channelHandler.Preview)
	}

	// 6. Start Server with Graceful Shutdown
	srv := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: r,
	}

	go func() {
		logger.Info("apilogs started", "port", cfg.Server.Port, "channels", channels.Channels())
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server listen failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("Server forced to shutdown", "error", err)
	}
	retention.Stop(ctx)
	if err := callLog.Close(ctx); err != nil {
		logger.Error("Pending call logs not finalized", "error", err)
	}
	if err := channels.Close(); err != nil {
		logger.Error("Closing channels failed", "error", err)
	}

	logger.Info("Server exiting")
}
