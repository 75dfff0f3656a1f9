// Package main provides the main entry point for the ShelfSync label synchronization service
package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aisleworks/shelfsync/app/handlers"
	"github.com/aisleworks/shelfsync/app/render"
	"github.com/aisleworks/shelfsync/app/router"
	"github.com/aisleworks/shelfsync/app/scheduler"
	"github.com/aisleworks/shelfsync/app/transport"
	businessflow "github.com/aisleworks/shelfsync/business_flow"
	"github.com/aisleworks/shelfsync/config"
	"github.com/aisleworks/shelfsync/models"
	"github.com/aisleworks/shelfsync/repository"
	"github.com/gofiber/fiber/v3"
	"github.com/redis/go-redis/v9"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// Application represents the main application structure
type Application struct {
	router    *router.FiberRouter
	config    *config.ProductionConfig
	server    *fiber.App
	stopFuncs []func()
}

func main() {
	log.Println("Starting ShelfSync application...")

	// Load production configuration
	cfg, err := config.LoadProductionConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize application
	app, err := initializeApplication(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize application: %v", err)
	}

	// Setup routes
	app.router.SetupRoutes()

	// Handle shutdown signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	// Start server in goroutine
	go func() {
		address := cfg.Server.ListenAddr()
		log.Printf("Server starting on %s", address)

		if err := app.server.Listen(address); err != nil {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for shutdown signal
	<-sigChan
	log.Println("Shutting down gracefully...")

	// Stop background workers first so no dispatch races the broker teardown
	for _, fn := range app.stopFuncs {
		fn()
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := app.server.ShutdownWithContext(shutdownCtx); err != nil {
		log.Printf("Error during shutdown: %v", err)
	}

	log.Println("Server stopped")
}

// initializeDatabase initializes the database connection with connection pooling
func initializeDatabase(cfg config.DatabaseConfig) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(cfg.DSN()), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Get underlying sql.DB for connection pooling configuration
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	sqlDB.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	// Test the connection
	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if err := db.AutoMigrate(
		&models.Company{},
		&models.Store{},
		&models.HardwareProfile{},
		&models.Gateway{},
		&models.Product{},
		&models.Tag{},
		&models.PipelineTask{},
		&models.SyncGroup{},
	); err != nil {
		return nil, fmt.Errorf("failed to migrate schema: %w", err)
	}

	log.Printf("Database connection established with %d max open connections, %d max idle connections",
		cfg.MaxOpenConns, cfg.MaxIdleConns)

	return db, nil
}

// initializeCache initializes the Redis client and verifies connectivity
func initializeCache(cfg config.CacheConfig) (*redis.Client, error) {
	rc := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr(),
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rc.Ping(ctx).Err(); err != nil {
		_ = rc.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	log.Printf("Redis connection established to %s (db=%d)", cfg.Addr(), cfg.DB)
	return rc, nil
}

// initializeApplication initializes the main application components
func initializeApplication(cfg *config.ProductionConfig) (*Application, error) {
	var stopFuncs []func()

	// Initialize database
	db, err := initializeDatabase(cfg.Database)
	if err != nil {
		return nil, err
	}

	rc, err := initializeCache(cfg.Cache)
	if err != nil {
		return nil, err
	}

	// Initialize repositories
	tagRepo := repository.NewTagRepository(db)
	taskRepo := repository.NewPipelineTaskRepository(db)
	groupRepo := repository.NewSyncGroupRepository(db)
	gatewayRepo := repository.NewGatewayRepository(db)

	// Render engine with embedded fonts
	engine, err := render.NewEngine()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize render engine: %w", err)
	}

	guard := scheduler.NewRedisSyncGuard(rc)
	queue := scheduler.NewRedisTaskQueue(rc)

	confirmerLog, err := openWorkerLog(cfg.Logging.Dir, "confirmer.log")
	if err != nil {
		return nil, err
	}
	confirmer := scheduler.NewConfirmer(tagRepo, gatewayRepo, confirmerLog)

	// Broker transport: the confirmer consumes inbound results and heartbeats
	mqttClient := transport.NewMQTTClient(transport.Options{
		BrokerURL:      cfg.MQTT.BrokerURL,
		ClientID:       cfg.MQTT.ClientID,
		Namespace:      cfg.MQTT.Namespace,
		Username:       cfg.MQTT.Username,
		Password:       cfg.MQTT.Password,
		QoS:            byte(cfg.MQTT.QoS),
		ConnectTimeout: cfg.MQTT.ConnectTimeout,
		PublishTimeout: cfg.MQTT.PublishTimeout,
	}, confirmer, nil)

	connectCtx, connectCancel := context.WithTimeout(context.Background(), cfg.MQTT.ConnectTimeout)
	defer connectCancel()
	if err := mqttClient.Connect(connectCtx); err != nil {
		return nil, fmt.Errorf("failed to connect to mqtt broker: %w", err)
	}
	stopFuncs = append(stopFuncs, mqttClient.Disconnect)

	// Worker pool for the two-stage sync chain
	pipeline := scheduler.NewSyncPipeline(
		tagRepo,
		taskRepo,
		engine,
		guard,
		queue,
		mqttClient,
		cfg.Pipeline.Workers,
		cfg.Pipeline.MaxJitter,
		cfg.Logging.Dir,
	)
	stopPipeline := pipeline.Start(context.Background())
	stopFuncs = append(stopFuncs, stopPipeline)

	// Initialize flows
	syncFlow := businessflow.NewSyncFlow(db, tagRepo, taskRepo, groupRepo, queue)

	// Initialize handlers
	syncHandler := handlers.NewSyncHandler(syncFlow)

	healthFn := func() map[string]any {
		data := map[string]any{}

		sqlDB, err := db.DB()
		if err == nil {
			err = sqlDB.Ping()
		}
		data["database"] = err == nil

		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		data["cache"] = rc.Ping(ctx).Err() == nil

		return data
	}

	// Initialize router
	appRouter := router.NewFiberRouter(syncHandler, healthFn)

	fiberRouter := appRouter.(*router.FiberRouter)
	application := &Application{
		router:    fiberRouter,
		config:    cfg,
		server:    fiberRouter.GetApp(),
		stopFuncs: stopFuncs,
	}

	return application, nil
}

// openWorkerLog opens an append-only worker log, mirrored to stdout
func openWorkerLog(dir, name string) (io.Writer, error) {
	if dir == "" {
		return os.Stdout, nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create log directory %s: %w", dir, err)
	}
	f, err := os.OpenFile(dir+"/"+name, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", name, err)
	}
	return io.MultiWriter(os.Stdout, f), nil
}
