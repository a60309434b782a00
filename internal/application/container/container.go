// Package container provides dependency injection for all singleton services
package container

import (
	"github.com/AtRiskMedia/cohort-go/internal/application/services"
	"github.com/AtRiskMedia/cohort-go/internal/infrastructure/messaging"
	"github.com/AtRiskMedia/cohort-go/internal/infrastructure/observability/logging"
	"github.com/AtRiskMedia/cohort-go/internal/infrastructure/persistence/docstore"
	"github.com/AtRiskMedia/cohort-go/pkg/config"
)

// Container holds all singleton services and infrastructure dependencies
type Container struct {
	// Core engine
	Engine *services.Engine

	// Application services
	CaptureService   *services.CaptureService
	LiveService      *services.LiveService
	DayService       *services.DayService
	CounterService   *services.CounterService
	WritebackService *services.WritebackService
	AuthService      *services.AuthService

	// Infrastructure
	Store       docstore.Store
	Broadcaster *messaging.LiveBroadcaster
	Logger      *logging.ChanneledLogger
}

// NewContainer creates and wires all singleton services
func NewContainer(store docstore.Store, logger *logging.ChanneledLogger, nextID int64, jwtSecret string) *Container {
	broadcaster := messaging.NewLiveBroadcaster(logger)
	engine := services.NewEngine(nextID, broadcaster, logger, services.DefaultEngineOptions())

	counterService := services.NewCounterService(store, logger)

	return &Container{
		Engine: engine,

		CaptureService:   services.NewCaptureService(engine, counterService, logger),
		LiveService:      services.NewLiveService(engine, logger),
		DayService:       services.NewDayService(store, logger),
		CounterService:   counterService,
		WritebackService: services.NewWritebackService(engine, store, logger),
		AuthService:      services.NewAuthService(config.AdminPasswordHash, jwtSecret, logger),

		Store:       store,
		Broadcaster: broadcaster,
		Logger:      logger,
	}
}
