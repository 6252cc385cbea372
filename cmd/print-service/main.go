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

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"github.com/openspool/printtrack/internal/api/handler"
	"github.com/openspool/printtrack/internal/api/middleware"
	"github.com/openspool/printtrack/internal/api/router"
	"github.com/openspool/printtrack/internal/config"
	"github.com/openspool/printtrack/internal/events"
	"github.com/openspool/printtrack/internal/notify"
	"github.com/openspool/printtrack/internal/provider"
	"github.com/openspool/printtrack/internal/reconcile"
	"github.com/openspool/printtrack/internal/storage"
	"github.com/openspool/printtrack/shared/logger"
	"github.com/openspool/printtrack/shared/postgresql"
	"github.com/openspool/printtrack/shared/rabbitmq"
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
	defaultConfigPath := os.Getenv("PRINT_SERVICE_CONFIG_PATH")
	if defaultConfigPath == "" {
		defaultConfigPath = "configs/print-service/config.yaml"
	}
	configPath := flag.String("config", defaultConfigPath, "Path to configuration file")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	// Initialize logger
	appLogger, err := initLogger(&cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	appLogger.Info("Starting print service",
		slog.String("app", cfg.App.Name),
		slog.String("version", cfg.App.Version),
		slog.String("environment", cfg.App.Environment),
	)

	// Initialize PostgreSQL client
	dbClient, err := initPostgreSQL(&cfg.Database, appLogger.Logger)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}

	appLogger.Info("Database connection established")

	if err := os.MkdirAll(cfg.Uploads.Dir, 0o755); err != nil {
		return fmt.Errorf("failed to create upload directory: %w", err)
	}

	store := storage.NewStorage(dbClient)
	hub := notify.NewHub(appLogger.Logger)

	providers := provider.NewFactory(provider.Config{
		Host:     cfg.CUPS.Host,
		Port:     cfg.CUPS.Port,
		Username: cfg.CUPS.Username,
		Password: cfg.CUPS.Password,
		UseTLS:   cfg.CUPS.UseTLS,
	})

	// Optional RabbitMQ relay of committed job changes
	var (
		rabbitClient *rabbitmq.Client
		publisher    *events.Publisher
	)
	notifiers := []reconcile.Notifier{hub}
	if cfg.Events.Enabled {
		rabbitClient, err = initRabbitMQ(&cfg.Events, appLogger.Logger)
		if err != nil {
			return fmt.Errorf("failed to initialize RabbitMQ: %w", err)
		}
		publisher = events.NewPublisher(rabbitClient, appLogger.Logger)
		notifiers = append(notifiers, publisher)

		appLogger.Info("RabbitMQ connection established",
			slog.String("exchange", cfg.Events.Exchange),
		)
	}

	reconciler := reconcile.New(reconcile.Config{
		Logger:    appLogger.Logger,
		Store:     store,
		Providers: providers,
		Notifiers: notifiers,
		Timeout:   cfg.Jobs.TimeoutThreshold,
		Interval:  cfg.Jobs.SyncInterval,
	})
	reconciler.Start()

	appLogger.Info("Reconciliation loop started",
		slog.Duration("interval", cfg.Jobs.SyncInterval),
		slog.Duration("timeout_threshold", cfg.Jobs.TimeoutThreshold),
	)

	// Initialize router
	r := initRouter(cfg, appLogger.Logger, store, dbClient, providers, reconciler, hub)

	// Create HTTP server
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

	appLogger.Info("Print service is running",
		slog.String("address", addr),
	)

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	appLogger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)

	cleanup := func() {
		cancel()
		reconciler.Stop()
		if publisher != nil {
			publisher.Close()
		}
		if rabbitClient != nil {
			rabbitClient.Close()
		}
		if dbClient != nil {
			dbClient.Close()
		}
	}
	defer cleanup()

	if err := srv.Shutdown(ctx); err != nil {
		appLogger.Error("Server forced to shutdown",
			slog.Any("error", err),
		)
		return err
	}

	appLogger.Info("Server shutdown complete")
	return nil
}

// initLogger initializes and configures the application logger
func initLogger(cfg *config.LoggingConfig) (*logger.Logger, error) {
	loggerCfg := &logger.Config{
		Level:        cfg.Level,
		Format:       cfg.Format,
		Output:       cfg.Output,
		EnableSource: cfg.EnableCaller,
		TimeFormat:   time.RFC3339,
	}

	return logger.New(loggerCfg)
}

// initPostgreSQL initializes the PostgreSQL database client
func initPostgreSQL(cfg *config.DatabaseConfig, logger *slog.Logger) (*postgresql.Client, error) {
	dbConfig := &postgresql.Config{
		Host:            cfg.Host,
		Port:            cfg.Port,
		User:            cfg.User,
		Password:        cfg.Password,
		Database:        cfg.Database,
		SSLMode:         cfg.SSLMode,
		MaxOpenConns:    cfg.MaxOpenConns,
		MaxIdleConns:    cfg.MaxIdleConns,
		ConnMaxLifetime: cfg.ConnMaxLifetime,
		ConnMaxIdleTime: cfg.ConnMaxIdleTime,
	}

	return postgresql.NewClient(dbConfig, logger)
}

// initRabbitMQ initializes the RabbitMQ client for the job-event relay
func initRabbitMQ(cfg *config.EventsConfig, logger *slog.Logger) (*rabbitmq.Client, error) {
	rabbitConfig := &rabbitmq.Config{
		Host:              cfg.Host,
		Port:              cfg.Port,
		User:              cfg.User,
		Password:          cfg.Password,
		VHost:             cfg.VHost,
		ExchangeName:      cfg.Exchange,
		ExchangeType:      "topic",
		ExchangeDurable:   true,
		RetryAttempts:     cfg.RetryAttempts,
		RetryInterval:     cfg.RetryInterval,
		Heartbeat:         cfg.Heartbeat,
		PublishRetries:    cfg.PublishRetries,
		PublishRetryDelay: cfg.PublishRetryDelay,
	}

	return rabbitmq.NewClient(rabbitConfig, logger)
}

// initRouter initializes the Gin router with all routes and middleware
func initRouter(
	cfg *config.Config,
	logger *slog.Logger,
	store *storage.Storage,
	dbClient *postgresql.Client,
	providers provider.Factory,
	reconciler *reconcile.Reconciler,
	hub *notify.Hub,
) *gin.Engine {
	if cfg.App.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	handlerDeps := &handler.Dependencies{
		Logger:         logger,
		Storage:        store,
		Health:         dbClient,
		Providers:      providers,
		Reconciler:     reconciler,
		Hub:            hub,
		UploadDir:      cfg.Uploads.Dir,
		MaxUploadBytes: cfg.Uploads.MaxSizeBytes,
	}

	auth := middleware.NewAuthMiddleware(cfg.Auth.JWTSecret)

	return router.SetupRouter(handlerDeps, auth)
}
