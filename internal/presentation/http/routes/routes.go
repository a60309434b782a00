// Package routes provides HTTP route configuration for the presentation layer.
package routes

import (
	"github.com/AtRiskMedia/cohort-go/internal/application/container"
	"github.com/AtRiskMedia/cohort-go/internal/presentation/http/handlers"
	"github.com/AtRiskMedia/cohort-go/internal/presentation/http/middleware"
	"github.com/gin-gonic/gin"
)

// SetupRoutes configures all HTTP routes and middleware with dependency injection.
func SetupRoutes(container *container.Container) *gin.Engine {
	r := gin.Default()

	r.Use(middleware.CORSMiddleware())

	authHandlers := handlers.NewAuthHandlers(container.AuthService, container.Logger)
	statusHandlers := handlers.NewStatusHandlers(container.Engine)
	liveHandlers := handlers.NewLiveHandlers(container.LiveService, container.Broadcaster, container.Logger)
	counterHandlers := handlers.NewCounterHandlers(container.CounterService, container.DayService, container.Logger)
	systemHandlers := handlers.NewSystemHandlers(container.Logger)

	r.GET("/health", statusHandlers.Health)

	api := r.Group("/api/v1")
	{
		api.POST("/auth/login", authHandlers.Login)

		authed := api.Group("")
		authed.Use(middleware.AuthMiddleware(container.AuthService))
		{
			authed.GET("/status", statusHandlers.GetStatus)
			authed.GET("/live", liveHandlers.GetLive)
			authed.GET("/live/stream", liveHandlers.Stream)
			authed.GET("/counters", counterHandlers.GetCounters)
			authed.GET("/sessions", counterHandlers.GetDaySessions)
			authed.GET("/logging", systemHandlers.GetLogLevels)
			authed.PUT("/logging", systemHandlers.SetLogLevel)
		}
	}

	return r
}
