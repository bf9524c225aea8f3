package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/redis/go-redis/v9"

	"magadrive/internal/app"
	"magadrive/internal/config"
	"magadrive/internal/handler"
	internalRedis "magadrive/internal/redis"
	"magadrive/internal/repository"
	"magadrive/internal/repository/postgres"
	"magadrive/internal/service"
)

func main() {
	// Load configuration.
	cfg := config.Load()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Initialize New Relic FIRST (before database so we can instrument DB).
	var nrApp *newrelic.Application
	var err error
	if cfg.NewRelic.Enabled && cfg.NewRelic.LicenseKey != "" {
		nrApp, err = newrelic.NewApplication(
			newrelic.ConfigAppName(cfg.NewRelic.AppName),
			newrelic.ConfigLicense(cfg.NewRelic.LicenseKey),
			newrelic.ConfigDistributedTracerEnabled(true),
			newrelic.ConfigAppLogForwardingEnabled(true),
		)
		if err != nil {
			log.Printf("failed to initialize New Relic: %v", err)
		} else {
			log.Printf("New Relic enabled: app=%s (with DB instrumentation)", cfg.NewRelic.AppName)
		}
	}

	// Initialize database with New Relic instrumentation.
	db, err := app.NewDatabase(ctx, cfg.Database, nrApp)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}
	defer db.Close()
	log.Println("Connected to PostgreSQL")

	if err := postgres.Migrate(ctx, db); err != nil {
		log.Fatalf("failed to migrate database: %v", err)
	}

	// Initialize Redis with New Relic instrumentation.
	redisClient, err := app.NewRedisClient(ctx, cfg.Redis, nrApp)
	if err != nil {
		log.Fatalf("failed to connect to redis: %v", err)
	}
	defer redisClient.Close()
	log.Println("Connected to Redis")

	// Wire dependencies.
	server, registry, simulator := wireServer(db, redisClient, nrApp, cfg)

	// Start server in goroutine.
	go func() {
		log.Printf("Starting server on port %s", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	// Graceful shutdown.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("server forced to shutdown: %v", err)
	}

	// Stop background lifecycle tasks, then drop subscribers.
	simulator.Shutdown()
	registry.Close()

	log.Println("Server exited")
}

// wireServer wires all dependencies and returns the HTTP server together
// with the pieces that need an explicit shutdown.
func wireServer(db *sql.DB, redisClient *redis.Client, nrApp *newrelic.Application, cfg *config.Config) (*http.Server, *service.Registry, *service.Simulator) {
	// Redis-backed stores.
	rideCache := internalRedis.NewRideCache(redisClient)
	trackingStore := internalRedis.NewTrackingStore(redisClient)

	var idemStore repository.IdempotencyStore = internalRedis.NewIdempotencyStore(redisClient)
	if cfg.Engine.IdempotencyBackend == "postgres" {
		idemStore = postgres.NewIdempotencyStore(db)
	}

	// Postgres repositories.
	rideStore := postgres.NewRideStore(db)
	eventLog := postgres.NewEventLog(db)
	uow := postgres.NewUnitOfWork(db)

	// Core engine.
	registry := service.NewRegistry()
	rideService := service.NewRideService(uow, rideStore, eventLog, idemStore, registry)
	rideService.SetCache(rideCache)

	// Collaborators fall back to in-process stubs when no URL is set.
	var geo service.GeoService = service.NewStubGeo()
	if cfg.Collaborators.GeoURL != "" {
		geo = service.NewGeoClient(cfg.Collaborators.GeoURL, cfg.Collaborators.Timeout)
	}
	var pricing service.PricingService = service.NewStubPricing()
	if cfg.Collaborators.PricingURL != "" {
		pricing = service.NewPricingClient(cfg.Collaborators.PricingURL, cfg.Collaborators.Timeout)
	}

	simulator := service.NewSimulator(rideService, service.NewStubDriverProvider(), geo, pricing, service.SimulatorConfig{
		AssignDelayMin:   cfg.Simulator.AssignDelayMin,
		AssignDelayMax:   cfg.Simulator.AssignDelayMax,
		EtaRefreshDelay:  cfg.Simulator.EtaRefreshDelay,
		OnTheWayDelay:    cfg.Simulator.OnTheWayDelay,
		LocationInterval: cfg.Simulator.LocationInterval,
		LocationUpdates:  cfg.Simulator.LocationUpdates,
	})
	simulator.SetTracker(trackingStore)
	rideService.SetLifecycle(simulator)

	// Handlers.
	rideHandler := handler.NewRideHandler(rideService, trackingStore)
	eventHandler := handler.NewEventHandler(rideService)

	// Create router.
	router := app.NewRouter(app.RouterDeps{
		RideHandler:  rideHandler,
		EventHandler: eventHandler,
		DB:           db,
		RedisClient:  redisClient,
		NewRelicApp:  nrApp,
	})

	// Create HTTP server.
	return &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}, registry, simulator
}
