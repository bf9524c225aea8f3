package app

import (
	"database/sql"

	"github.com/gin-gonic/gin"
	"github.com/newrelic/go-agent/v3/integrations/nrgin"
	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/redis/go-redis/v9"

	"magadrive/internal/handler"
	"magadrive/internal/middleware"
)

// RouterDeps contains all dependencies needed for the router.
type RouterDeps struct {
	RideHandler  *handler.RideHandler
	EventHandler *handler.EventHandler
	DB           *sql.DB
	RedisClient  *redis.Client
	NewRelicApp  *newrelic.Application
}

// NewRouter creates a new Gin router with all routes registered.
func NewRouter(deps RouterDeps) *gin.Engine {
	router := gin.New()

	// Global middleware.
	router.Use(gin.Recovery())
	router.Use(gin.Logger())
	router.Use(middleware.CORSMiddleware())
	router.Use(middleware.RequestIDMiddleware())

	// Add New Relic middleware if enabled.
	if deps.NewRelicApp != nil {
		router.Use(nrgin.Middleware(deps.NewRelicApp))
	}

	// Health check.
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	// Readiness reports whether backing stores answer.
	router.GET("/ready", func(c *gin.Context) {
		if deps.DB != nil {
			if err := deps.DB.PingContext(c.Request.Context()); err != nil {
				c.JSON(503, gin.H{"status": "unavailable", "component": "postgres"})
				return
			}
		}
		if deps.RedisClient != nil {
			if err := deps.RedisClient.Ping(c.Request.Context()).Err(); err != nil {
				c.JSON(503, gin.H{"status": "unavailable", "component": "redis"})
				return
			}
		}
		c.JSON(200, gin.H{"status": "ready"})
	})

	// API v1 routes.
	v1 := router.Group("/v1")
	{
		rides := v1.Group("/rides")
		{
			rides.POST("", deps.RideHandler.CreateRide)
			rides.GET("", deps.RideHandler.GetAll)
			rides.GET("/:id", deps.RideHandler.GetRide)
			rides.GET("/:id/position", deps.RideHandler.GetPosition)
			rides.POST("/:id/cancel", deps.RideHandler.CancelRide)
			rides.POST("/:id/complete", deps.RideHandler.CompleteRide)
			rides.GET("/:id/events", deps.EventHandler.Stream)
		}
	}

	return router
}
