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

	"transitdemand/internal/app"
	"transitdemand/internal/config"
	"transitdemand/internal/events"
	"transitdemand/internal/handler"
	internalRedis "transitdemand/internal/redis"
	"transitdemand/internal/repository/postgres"
	"transitdemand/internal/service"
	"transitdemand/internal/spawn"
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

	// Initialize Redis with New Relic instrumentation.
	redisClient, err := app.NewRedisClient(ctx, cfg.Redis, nrApp)
	if err != nil {
		log.Fatalf("failed to connect to redis: %v", err)
	}
	defer redisClient.Close()
	log.Println("Connected to Redis")

	// Wire dependencies.
	server, reservoir := wireServer(db, redisClient, nrApp, cfg)

	// Start the background expiration sweeper.
	sweepCtx, stopSweep := context.WithCancel(context.Background())
	defer stopSweep()
	if cfg.Spawn.SweepInterval > 0 {
		go runExpirySweeper(sweepCtx, reservoir, cfg.Spawn.SweepInterval)
	}

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
	stopSweep()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("server forced to shutdown: %v", err)
	}

	log.Println("Server exited")
}

// wireServer wires all dependencies and returns the HTTP server plus the
// reservoir service used by the background sweeper.
func wireServer(db *sql.DB, redisClient *redis.Client, nrApp *newrelic.Application, cfg *config.Config) (*http.Server, *service.ReservoirService) {
	// Initialize Redis stores.
	geoStore := internalRedis.NewGeoStore(redisClient)
	lockStore := internalRedis.NewLockStore(redisClient)
	cacheStore := internalRedis.NewCacheStore(redisClient)

	// Initialize repositories.
	passengerRepo := postgres.NewPassengerRepository(db)
	configRepo := postgres.NewSpawnConfigRepository(db)
	buildingRepo := postgres.NewBuildingRepository(db)

	// Initialize the event bus.
	var publisher events.Publisher = events.NewLogPublisher()
	if cfg.Spawn.EventBusEnabled {
		publisher = events.NewRedisPublisher(redisClient)
	}

	// Initialize spawn pipeline.
	resolver := spawn.NewResolver(configRepo, cacheStore, cfg.Spawn.DefaultTTL)
	calculator := spawn.NewCalculator()
	factory := spawn.NewFactory()

	// Initialize services.
	reservoir := service.NewReservoirService(passengerRepo, geoStore, publisher)
	lifecycle := service.NewLifecycleService(reservoir, passengerRepo, publisher)
	spawnService := service.NewSpawnService(
		resolver,
		calculator,
		factory,
		buildingRepo,
		reservoir,
		lockStore,
		spawn.PolicyKind(cfg.Spawn.Policy),
	)

	// Initialize handlers.
	spawnHandler := handler.NewSpawnHandler(spawnService)
	passengerHandler := handler.NewPassengerHandler(reservoir, lifecycle)
	configHandler := handler.NewSpawnConfigHandler(configRepo, resolver)

	// Create router.
	router := app.NewRouter(app.RouterDeps{
		SpawnHandler:       spawnHandler,
		PassengerHandler:   passengerHandler,
		SpawnConfigHandler: configHandler,
		RedisClient:        redisClient,
		NewRelicApp:        nrApp,
	})

	// Create HTTP server.
	return &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}, reservoir
}

// runExpirySweeper deletes expired WAITING passengers on a fixed cadence.
func runExpirySweeper(ctx context.Context, reservoir *service.ReservoirService, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			result, err := reservoir.ExpireStale(ctx, time.Now())
			if err != nil {
				log.Printf("expiry sweep failed: %v", err)
				continue
			}
			if result.DeletedCount > 0 {
				log.Printf("expiry sweep removed %d passengers", result.DeletedCount)
			}
		}
	}
}
