package app

import (
	"github.com/gin-gonic/gin"
	"github.com/newrelic/go-agent/v3/integrations/nrgin"
	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/redis/go-redis/v9"

	"transitdemand/internal/handler"
	"transitdemand/internal/middleware"
)

// RouterDeps contains all dependencies needed for the router.
type RouterDeps struct {
	SpawnHandler       *handler.SpawnHandler
	PassengerHandler   *handler.PassengerHandler
	SpawnConfigHandler *handler.SpawnConfigHandler
	RedisClient        *redis.Client
	NewRelicApp        *newrelic.Application
}

// NewRouter creates a new Gin router with all routes registered.
func NewRouter(deps RouterDeps) *gin.Engine {
	router := gin.New()

	// Global middleware.
	router.Use(gin.Recovery())
	router.Use(gin.Logger())
	router.Use(middleware.CORSMiddleware())

	// Add New Relic middleware if enabled.
	if deps.NewRelicApp != nil {
		router.Use(nrgin.Middleware(deps.NewRelicApp))
	}

	if deps.RedisClient != nil {
		router.Use(middleware.IdempotencyMiddleware(deps.RedisClient))
	}

	// Health check.
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	// API v1 routes.
	v1 := router.Group("/v1")
	{
		// Spawn trigger.
		v1.POST("/spawn", deps.SpawnHandler.Spawn)

		// Passenger queries and lifecycle transitions.
		passengers := v1.Group("/passengers")
		{
			passengers.GET("", deps.PassengerHandler.List)
			passengers.GET("/near", deps.PassengerHandler.NearLocation)
			passengers.GET("/stats", deps.PassengerHandler.Stats)
			passengers.DELETE("/expired", deps.PassengerHandler.CleanupExpired)
			passengers.POST("/:id/board", deps.PassengerHandler.MarkBoarded)
			passengers.POST("/:id/alight", deps.PassengerHandler.MarkAlighted)
		}

		// Spawn config administration.
		configs := v1.Group("/spawn-configs")
		{
			configs.PUT("", deps.SpawnConfigHandler.Upsert)
			configs.GET("", deps.SpawnConfigHandler.Get)
		}
	}

	return router
}
