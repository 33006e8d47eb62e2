package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Rohit-kaushik45/bullreckon/internal/api/handler"
	"github.com/Rohit-kaushik45/bullreckon/internal/api/router"
	"github.com/Rohit-kaushik45/bullreckon/internal/config"
	"github.com/Rohit-kaushik45/bullreckon/internal/jobqueue"
	"github.com/Rohit-kaushik45/bullreckon/internal/realtime"
	"github.com/Rohit-kaushik45/bullreckon/shared/logger"
	"github.com/Rohit-kaushik45/bullreckon/shared/redis"
	"github.com/Rohit-kaushik45/bullreckon/shared/ws"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables or flags")
	}

	// Parse command-line flags
	defaultConfigPath := os.Getenv("REALTIME_SERVICE_CONFIG_PATH")
	if defaultConfigPath == "" {
		defaultConfigPath = "configs/realtime-service/config.yaml"
	}
	configPath := flag.String("config", defaultConfigPath, "Path to configuration file")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if err := cfg.ValidateRealtimeConfig(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	// Initialize logger
	appLogger, err := logger.New(&logger.Config{
		Level:        cfg.Logging.Level,
		Format:       cfg.Logging.Format,
		Output:       cfg.Logging.Output,
		EnableSource: cfg.Logging.EnableCaller,
		TimeFormat:   time.RFC3339,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	appLogger.Info("Starting realtime service",
		slog.String("app", cfg.App.Name),
		slog.String("version", cfg.App.Version),
		slog.String("environment", cfg.App.Environment),
	)

	if cfg.App.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	// Initialize Redis client (shared store)
	redisClient, err := redis.NewClient(&redis.Config{
		Host:     cfg.Redis.Host,
		Port:     cfg.Redis.Port,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	}, appLogger.Logger)
	if err != nil {
		return fmt.Errorf("failed to initialize Redis: %w", err)
	}
	defer redisClient.Close()

	appLogger.Info("Redis connection established")

	// Connection hub with cross-instance broadcast relay
	hub := realtime.NewHub(&realtime.HubConfig{
		Broker:  realtime.NewRedisBroker(redisClient),
		Channel: cfg.Realtime.BroadcastChannel,
		Logger:  appLogger.Logger,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := hub.StartRelay(ctx); err != nil {
		return fmt.Errorf("failed to start broadcast relay: %w", err)
	}

	// Queue manager for the job endpoints
	manager := jobqueue.NewManager(&jobqueue.Config{
		Store:  redisClient,
		Logger: appLogger.Logger,
	})

	upgrader := ws.NewUpgrader(&ws.Config{
		ReadBufferSize:  cfg.Realtime.ReadBufferSize,
		WriteBufferSize: cfg.Realtime.WriteBufferSize,
		AllowAnyOrigin:  true,
	}, appLogger.Logger)

	r := router.SetupRouter(&handler.Dependencies{
		Logger:   appLogger.Logger,
		Queue:    manager,
		Hub:      hub,
		Upgrader: upgrader,
		Channel:  cfg.Realtime.BroadcastChannel,
	})

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start server in goroutine
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			appLogger.Error("Server failed to start",
				slog.Any("error", err),
			)
			os.Exit(1)
		}
	}()

	appLogger.Info("Realtime service is running",
		slog.String("address", addr),
	)

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	appLogger.Info("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		appLogger.Error("Server forced to shutdown",
			slog.Any("error", err),
		)
	}

	// Tear down the hub last: disconnect clients, stop and join the relay.
	cancel()
	hub.Shutdown()

	appLogger.Info("Server shutdown complete")
	return nil
}
