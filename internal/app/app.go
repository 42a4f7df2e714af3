// Package app wires configuration, storage, enrichment queues, the refresh
// pipeline and the status API into one process.
package app

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"event-enricher/internal/common/cache"
	"event-enricher/internal/common/logging"
	"event-enricher/internal/config"
	"event-enricher/internal/enrichment"
	"event-enricher/internal/handlers"
	"event-enricher/internal/locks"
	"event-enricher/internal/metrics"
	"event-enricher/internal/models"
	"event-enricher/internal/pipeline"
	"event-enricher/internal/redis"
	"event-enricher/internal/scheduler"
	"event-enricher/internal/server"
	"event-enricher/internal/storage"
	"event-enricher/internal/transit"
)

// App holds all the application dependencies
type App struct {
	Config      *config.Config
	Store       storage.Store
	RedisClient *redis.Client
	Cache       cache.Cache
	Locker      locks.Locker
	State       *pipeline.RuntimeState
	Lines       *transit.Table

	LocationQueue *enrichment.LocationQueue
	TransitQueue  *enrichment.TransitQueue
	ImageQueue    *enrichment.ImageQueue

	Orchestrator *pipeline.Orchestrator
	Recalculator *pipeline.Recalculator
	Cleaner      *pipeline.Cleaner

	Registry  *prometheus.Registry
	Metrics   *metrics.Metrics
	Scheduler *scheduler.Scheduler
	Handlers  *handlers.Handlers
	Server    *server.Server

	Logger logging.Logger

	queueCancel context.CancelFunc
	queueWG     sync.WaitGroup
}

// New creates a new application instance with all dependencies. Only a
// store failure is fatal; Redis problems degrade to local cache and locks.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	app := &App{
		Config: cfg,
		Logger: logging.ForComponent("app"),
		State: pipeline.NewRuntimeState(models.Coordinate{
			Lat: cfg.ReferenceLat,
			Lon: cfg.ReferenceLon,
		}),
	}

	if err := app.initializeStorage(ctx); err != nil {
		return nil, err
	}

	if err := app.initializeRedis(ctx); err != nil {
		app.Logger.Warn("Redis initialization failed, continuing without Redis", logging.Err(err))
	}
	if err := app.initializeCache(); err != nil {
		app.Cleanup()
		return nil, err
	}
	app.initializeLocks()

	if err := app.initializeEnrichment(); err != nil {
		app.Cleanup()
		return nil, err
	}
	app.initializePipeline()
	app.initializeMetrics()

	if err := app.initializeScheduler(); err != nil {
		app.Cleanup()
		return nil, err
	}
	app.initializeServer()

	return app, nil
}

// Start launches the queue workers, the scheduler and the HTTP server
func (app *App) Start() error {
	ctx, cancel := context.WithCancel(context.Background())
	app.queueCancel = cancel

	for _, run := range []func(context.Context){
		app.LocationQueue.Run,
		app.TransitQueue.Run,
		app.ImageQueue.Run,
	} {
		app.queueWG.Add(1)
		go func(run func(context.Context)) {
			defer app.queueWG.Done()
			run(ctx)
		}(run)
	}

	if err := app.Server.Start(); err != nil {
		return err
	}
	app.Scheduler.Start()

	app.Logger.Info("Event enricher started",
		logging.String("port", app.Config.Port),
		logging.String("database", app.Config.DatabaseType),
		logging.Bool("redis", app.RedisClient != nil),
	)
	return nil
}

// Shutdown stops accepting requests, then stops jobs and queue workers.
// Pending queue entries are discarded.
func (app *App) Shutdown(ctx context.Context) error {
	var errs []error

	if app.Server != nil {
		if err := app.Server.Shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if app.Handlers != nil {
		app.Handlers.Close()
	}
	if app.Scheduler != nil {
		if err := app.Scheduler.Stop(ctx); err != nil {
			errs = append(errs, err)
		}
	}

	if app.queueCancel != nil {
		app.queueCancel()
		done := make(chan struct{})
		go func() {
			app.queueWG.Wait()
			close(done)
		}()
		select {
		case <-done:
			app.Logger.Info("Enrichment queues stopped")
		case <-ctx.Done():
			errs = append(errs, ctx.Err())
		}
	}

	return errors.Join(errs...)
}

// Cleanup closes the store and the Redis connection
func (app *App) Cleanup() {
	if app.Store != nil {
		if err := app.Store.Close(); err != nil {
			app.Logger.Warn("Failed to close store", logging.Err(err))
		}
	}
	if app.RedisClient != nil {
		if err := app.RedisClient.Close(); err != nil {
			app.Logger.Warn("Failed to close Redis client", logging.Err(err))
		}
	}
}

// shutdownTimeout bounds graceful shutdown
const shutdownTimeout = 30 * time.Second
