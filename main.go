package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"github.com/streadway/amqp"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"fontbox/internal/config"
	"fontbox/internal/database"
	"fontbox/internal/handlers"
	applogger "fontbox/internal/logger"
	"fontbox/internal/repositories"
	"fontbox/internal/services"
	"fontbox/internal/storage"
	"fontbox/pkg/rabbitmq"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	logger, err := applogger.New(applogger.Options{Level: cfg.LogLevel, File: cfg.LogFile})
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()
	zap.ReplaceGlobals(logger)

	application, err := newApplication(context.Background(), cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize application", zap.Error(err))
	}
	if err := application.startBackground(); err != nil {
		logger.Fatal("Failed to start background workers", zap.Error(err))
	}

	// Graceful shutdown handling
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		logger.Info("Starting server", zap.String("port", cfg.AppPort))
		if err := application.app.Listen(cfg.AppPort); err != nil {
			logger.Fatal("Server failed to start", zap.Error(err))
		}
	}()

	<-quit
	logger.Info("Shutting down server...")
	application.shutdown()
	logger.Info("Server gracefully stopped")
}

// application owns every long-lived resource so shutdown can release them in order.
type application struct {
	cfg     *config.Config
	logger  *zap.Logger
	app     *fiber.App
	db      *gorm.DB
	mq      *rabbitmq.Client
	sweeper *services.OrphanSweeper
}

func newApplication(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*application, error) {
	a := &application{cfg: cfg, logger: logger}

	// --- Metadata store ---
	var fontRepo repositories.FontRepository
	var groupRepo repositories.FontGroupRepository
	if cfg.DatabaseDriver == config.DatabaseMemory {
		logger.Warn("Using the in-memory store, data is lost on restart")
		store := repositories.NewMemoryStore()
		fontRepo = repositories.NewMockFontRepository(store)
		groupRepo = repositories.NewMockFontGroupRepository(store)
	} else {
		db, err := database.Open(cfg.DatabaseDriver, cfg.DatabaseDSN, logger)
		if err != nil {
			return nil, err
		}
		a.db = db
		fontRepo = repositories.NewGORMFontRepository(db)
		groupRepo = repositories.NewGORMFontGroupRepository(db)
	}

	// --- Storage backend ---
	var backend storage.Backend
	switch cfg.StorageDriver {
	case config.StorageMinio:
		minioBackend, err := storage.NewMinioBackend(ctx, storage.MinioConfig{
			Endpoint:  cfg.Minio.Endpoint,
			AccessKey: cfg.Minio.AccessKey,
			SecretKey: cfg.Minio.SecretKey,
			Bucket:    cfg.Minio.Bucket,
			Prefix:    cfg.Minio.Prefix,
			UseSSL:    cfg.Minio.UseSSL,
		})
		if err != nil {
			a.closeStore()
			return nil, err
		}
		backend = minioBackend
	default:
		localBackend, err := storage.NewLocalBackend(cfg.StorageDestination)
		if err != nil {
			a.closeStore()
			return nil, err
		}
		backend = localBackend
	}
	logger.Info("Storage backend ready", zap.String("driver", cfg.StorageDriver), zap.String("location", backend.UploadPath()))

	// --- Events ---
	// Events are optional; a broker outage must not take the API down.
	var events services.EventPublisher
	if cfg.RabbitMQURL != "" {
		mqClient, err := rabbitmq.NewClient(rabbitmq.DefaultConfig(cfg.RabbitMQURL), logger)
		if err != nil {
			logger.Warn("RabbitMQ unavailable, lifecycle events disabled", zap.Error(err))
		} else {
			a.mq = mqClient
			events = mqClient
		}
	}

	// --- Services ---
	opts := services.Options{
		BaseURL:          cfg.BaseURL,
		MaxFileSize:      cfg.UploadMaxFileSize,
		OperationTimeout: cfg.OperationTimeout,
	}
	fontService := services.NewFontService(fontRepo, backend, events, logger, opts)
	groupService := services.NewFontGroupService(groupRepo, fontRepo, events, logger, opts)
	if cfg.OrphanSweepEnabled {
		a.sweeper = services.NewOrphanSweeper(fontRepo, backend, cfg.OrphanMinAge, cfg.OperationTimeout, logger)
	}

	// --- HTTP ---
	a.app = handlers.NewApp(
		handlers.NewFontHandler(fontService, logger),
		handlers.NewFontGroupHandler(groupService, logger),
		handlers.AppOptions{
			BodyLimit: int(cfg.UploadMaxFileSize) + 1024*1024,
			Logger:    logger,
			Health: fiber.Map{
				"database": cfg.DatabaseDriver,
				"storage":  cfg.StorageDriver,
				"events":   a.mq != nil,
			},
		},
	)
	return a, nil
}

// startBackground starts the orphan sweeper and the event consumer.
func (a *application) startBackground() error {
	if a.sweeper != nil {
		if err := a.sweeper.Start(a.cfg.OrphanSweepSchedule); err != nil {
			return err
		}
	}

	if a.mq != nil {
		err := a.mq.ConsumeEvents(func(msg amqp.Delivery) error {
			a.logger.Info("Font event",
				zap.String("routing_key", msg.RoutingKey),
				zap.ByteString("payload", msg.Body))
			return nil
		})
		if err != nil {
			a.logger.Warn("Failed to start RabbitMQ consumer", zap.Error(err))
		}
	}
	return nil
}

func (a *application) shutdown() {
	if err := a.app.ShutdownWithTimeout(a.cfg.ShutdownTimeout); err != nil {
		a.logger.Error("Error during Fiber shutdown", zap.Error(err))
	}
	if a.sweeper != nil {
		a.sweeper.Stop()
	}
	if a.mq != nil {
		if err := a.mq.Close(); err != nil {
			a.logger.Error("Error closing RabbitMQ client", zap.Error(err))
		}
	}
	a.closeStore()
}

func (a *application) closeStore() {
	if a.db == nil {
		return
	}
	if err := database.Close(a.db); err != nil {
		a.logger.Error(fmt.Sprintf("Error closing %s database", a.cfg.DatabaseDriver), zap.Error(err))
	}
}
