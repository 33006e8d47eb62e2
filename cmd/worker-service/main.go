package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/Rohit-kaushik45/bullreckon/internal/config"
	"github.com/Rohit-kaushik45/bullreckon/internal/jobqueue"
	"github.com/Rohit-kaushik45/bullreckon/shared/email"
	"github.com/Rohit-kaushik45/bullreckon/shared/logger"
	"github.com/Rohit-kaushik45/bullreckon/shared/redis"
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
	defaultConfigPath := os.Getenv("WORKER_SERVICE_CONFIG_PATH")
	if defaultConfigPath == "" {
		defaultConfigPath = "configs/worker-service/config.yaml"
	}
	configPath := flag.String("config", defaultConfigPath, "Path to configuration file")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if err := cfg.ValidateWorkerConfig(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	// Initialize logger
	appLogger, err := initLogger(&cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	appLogger.Info("Starting worker service",
		slog.String("app", cfg.App.Name),
		slog.String("version", cfg.App.Version),
		slog.String("environment", cfg.App.Environment),
	)

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

	// Queue manager and handler registry
	manager := jobqueue.NewManager(&jobqueue.Config{
		Store:  redisClient,
		Logger: appLogger.Logger,
	})

	handlers := jobqueue.NewHandlerRegistry(appLogger.Logger)
	registerHandlers(handlers, appLogger.Logger)

	// Start one worker loop per configured queue
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var wg sync.WaitGroup
	for _, queue := range cfg.Worker.Queues {
		worker := jobqueue.NewWorker(&jobqueue.WorkerConfig{
			Queue:        queue,
			Manager:      manager,
			Handlers:     handlers,
			Logger:       appLogger.Logger,
			IdleInterval: cfg.Worker.IdleInterval,
			ErrorBackoff: cfg.Worker.ErrorBackoff,
			BlockingPop:  cfg.Worker.BlockingPop,
		})

		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := worker.Run(ctx); err != nil {
				appLogger.Error("Worker error",
					slog.Any("error", err),
				)
			}
		}()
	}

	appLogger.Info("Worker service started successfully",
		slog.Any("queues", cfg.Worker.Queues),
	)

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	appLogger.Info("Received signal, shutting down gracefully",
		slog.String("signal", sig.String()),
	)

	// Cancel context to stop workers
	cancel()

	shutdownTimeout := cfg.Worker.ShutdownTimeout
	if shutdownTimeout <= 0 {
		shutdownTimeout = 30 * time.Second
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		appLogger.Info("Workers stopped gracefully")
	case <-time.After(shutdownTimeout):
		appLogger.Warn("Worker shutdown timeout exceeded, forcing exit")
	}

	appLogger.Info("Worker service shutdown complete")
	return nil
}

// registerHandlers installs the handlers this service processes
func registerHandlers(handlers *jobqueue.HandlerRegistry, logger *slog.Logger) {
	emailService := email.NewService(email.FromEnv(), logger)

	// Queue "email": payload {to, subject, body, html?}
	handlers.Register("email", func(ctx context.Context, data json.RawMessage) (json.RawMessage, error) {
		var payload struct {
			To      string   `json:"to"`
			CC      []string `json:"cc"`
			Subject string   `json:"subject"`
			Body    string   `json:"body"`
			HTML    string   `json:"html"`
		}
		if err := json.Unmarshal(data, &payload); err != nil {
			return nil, fmt.Errorf("invalid email payload: %w", err)
		}

		if err := emailService.Send(&email.Message{
			To:      payload.To,
			CC:      payload.CC,
			Subject: payload.Subject,
			Body:    payload.Body,
			HTML:    payload.HTML,
		}); err != nil {
			return nil, err
		}

		return json.Marshal(map[string]any{"sent": true, "to": payload.To})
	})
}

// initLogger initializes and configures the application logger
func initLogger(cfg *config.LoggingConfig) (*logger.Logger, error) {
	return logger.New(&logger.Config{
		Level:        cfg.Level,
		Format:       cfg.Format,
		Output:       cfg.Output,
		EnableSource: cfg.EnableCaller,
		TimeFormat:   time.RFC3339,
	})
}
