// Package startup prepares the application server
package startup

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/AtRiskMedia/cohort-go/internal/application/container"
	"github.com/AtRiskMedia/cohort-go/internal/infrastructure/bus"
	"github.com/AtRiskMedia/cohort-go/internal/infrastructure/observability/logging"
	"github.com/AtRiskMedia/cohort-go/internal/infrastructure/persistence/database"
	"github.com/AtRiskMedia/cohort-go/internal/infrastructure/persistence/docstore"
	"github.com/AtRiskMedia/cohort-go/internal/infrastructure/security"
	"github.com/AtRiskMedia/cohort-go/internal/presentation/dispatch"
	"github.com/AtRiskMedia/cohort-go/internal/presentation/http/server"
	"github.com/AtRiskMedia/cohort-go/pkg/config"
	"github.com/gin-gonic/gin"
)

// Initialize performs the complete startup sequence
func Initialize() error {
	setupLogging()

	start := time.Now().UTC()

	ctx, cancelBackgroundTasks := context.WithCancel(context.Background())
	defer cancelBackgroundTasks()

	// The writeback scheduler runs on its own context so it can be stopped,
	// and its final flush completed, while the engine loop is still consuming
	// tasks.
	writebackCtx, cancelWriteback := context.WithCancel(context.Background())
	defer cancelWriteback()

	log.Println("\033[32m" + `
   ▄▄▄▄ ▄▄▄▄ ▄▄ ▄▄ ▄▄▄▄ ▄▄▄▄ ▄▄▄▄▄
   ██   ██ █ ██▄██ ██ █ ██▄▀  ▀██▀
   ▀▄▄▀ ▀▄▄▀ ██ ██ ▀▄▄▀ ██ ██  ██
` + "\033[97m" + `
  made by At Risk Media
` + "\033[0m")

	// Step 1: Resolve the bus subscription tag
	tag := config.BusTag
	if len(os.Args) > 1 {
		tag = os.Args[1]
	}
	if tag == "" {
		return fmt.Errorf("usage: cohort-go <bus-tag> (or set COHORT_BUS_TAG)")
	}
	log.Printf("Subscribing to bus tag: %s", tag)

	// Step 2: Initialize channeled logging
	logger, err := logging.NewChanneledLogger(logging.DefaultLoggerConfig())
	if err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	logger.Startup().Info("Channeled logging initialized")

	// Step 3: Resolve the operator token secret
	jwtSecret := config.JWTSecret
	if jwtSecret == "" {
		jwtSecret, err = security.GenerateSecureKey(32)
		if err != nil {
			return fmt.Errorf("failed to generate token secret: %w", err)
		}
		logger.Startup().Warn("JWT_SECRET not set - generated an ephemeral secret, tokens will not survive restarts")
	}

	// Step 4: Open the document store
	driver, dsn := "sqlite3", config.DBName+".db"
	if config.DBURL != "" {
		driver, dsn = "libsql", config.DBURL
	}
	logger.Startup().Info("Opening document store", "driver", driver)

	db, err := database.NewConnectionWithLogger(driver, dsn, logger)
	if err != nil {
		return fmt.Errorf("failed to open document store: %w", err)
	}

	store := docstore.NewSQLiteStore(db, logger)
	if err := store.EnsureSchema(ctx); err != nil {
		return fmt.Errorf("failed to ensure store schema: %w", err)
	}

	// Step 5: Recover the session id watermark
	nextID := int64(1)
	bootstrapDoc, err := store.Get(ctx, docstore.BootstrapKey)
	if err != nil {
		return fmt.Errorf("failed to read bootstrap record: %w", err)
	}
	if len(bootstrapDoc.Body) > 0 {
		var record docstore.BootstrapRecord
		if err := json.Unmarshal(bootstrapDoc.Body, &record); err != nil {
			return fmt.Errorf("failed to decode bootstrap record: %w", err)
		}
		if record.NextID > 0 {
			nextID = record.NextID
		}
	}
	logger.Startup().Info("Session id watermark recovered", "nextId", nextID)

	// Step 6: Create dependency injection container
	appContainer := container.NewContainer(store, logger, nextID, jwtSecret)
	logger.Startup().Info("Dependency injection container created with singleton services")

	// Step 7: Start the engine loop and its background timers
	go appContainer.Engine.Run(ctx)
	go appContainer.Engine.StartResolver(ctx)

	writebackDone := make(chan struct{})
	go func() {
		appContainer.WritebackService.Start(writebackCtx)
		close(writebackDone)
	}()
	logger.Startup().Info("Engine loop, waiter resolver and writeback scheduler started")

	// Step 8: Connect to the message bus. The dispatcher is created after the
	// client because replies are sent back through the same connection.
	var dispatcher *dispatch.Dispatcher
	busClient := bus.NewClient(bus.ClientConfig{
		URL:            config.BusURL,
		Tag:            tag,
		WriteTimeout:   config.BusWriteTimeout,
		PingInterval:   config.BusPingInterval,
		ReconnectDelay: config.BusReconnectDelay,
	}, func(msg *bus.Message) {
		dispatcher.Handle(msg)
	}, logger)
	dispatcher = dispatch.NewDispatcher(
		appContainer.CaptureService,
		appContainer.LiveService,
		appContainer.DayService,
		appContainer.CounterService,
		busClient,
		logger,
	)
	go func() {
		if err := busClient.Run(ctx); err != nil {
			logger.Bus().Error("Bus client stopped", "error", err.Error())
		}
	}()
	logger.Startup().Info("Bus client started", "url", config.BusURL, "tag", tag)

	// Step 9: Start HTTP server
	port := config.Port
	httpServer := server.New(port, appContainer)

	go func() {
		logger.System().Info("Starting HTTP server", "address", ":"+port)
		if err := httpServer.Start(); err != nil {
			logger.System().Error("HTTP server failed", "error", err.Error())
		}
	}()

	// Step 10: Setup graceful shutdown
	gracefulShutdown := make(chan os.Signal, 1)
	signal.Notify(gracefulShutdown, syscall.SIGINT, syscall.SIGTERM)

	totalStartupTime := time.Since(start)
	logger.Startup().Info("Application startup complete",
		"totalDuration", totalStartupTime,
		"tag", tag,
		"port", port)

	// Wait for shutdown signal
	<-gracefulShutdown
	logger.Shutdown().Info("Shutdown signal received, starting graceful shutdown...")

	shutdownStart := time.Now()

	// Stop the writeback scheduler first and wait for its final cycle while
	// the engine loop is still running, so in-memory sessions reach the
	// store. Only then stop the engine and the rest of the background tasks.
	cancelWriteback()

	logger.Shutdown().Info("Waiting for final writeback cycle...")
	select {
	case <-writebackDone:
		logger.Shutdown().Info("Final writeback cycle complete")
	case <-time.After(10 * time.Second):
		logger.Shutdown().Error("Final writeback cycle timed out")
	}

	cancelBackgroundTasks()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	logger.Shutdown().Info("Stopping HTTP server...")
	if err := httpServer.Stop(shutdownCtx); err != nil {
		logger.Shutdown().Error("Error during server shutdown", "error", err.Error())
	} else {
		logger.Shutdown().Info("HTTP server stopped successfully")
	}

	logger.Shutdown().Info("Closing document store...")
	if err := db.Close(); err != nil {
		logger.Shutdown().Error("Error closing document store", "error", err.Error())
	} else {
		logger.Shutdown().Info("Document store closed successfully")
	}

	elapsed := time.Since(start)
	logger.Shutdown().Info("Application shutdown complete",
		"totalUptime", elapsed,
		"shutdownDuration", time.Since(shutdownStart))

	return logger.Close()
}

// setupLogging configures application logging
func setupLogging() {
	if os.Getenv("GIN_MODE") == "release" {
		gin.SetMode(gin.ReleaseMode)
	}
	log.SetFlags(log.LstdFlags | log.Lshortfile)
}
