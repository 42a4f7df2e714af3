package app

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	commonhttp "event-enricher/internal/common/http"
	"event-enricher/internal/common/logging"
	"event-enricher/internal/feeds"
	"event-enricher/internal/metrics"
	"event-enricher/internal/pipeline"
	"event-enricher/internal/scheduler"
)

func (app *App) initializePipeline() {
	cfg := app.Config
	fetcher := commonhttp.NewFetcher(commonhttp.NewFeedClient(cfg.FeedTimeout), cfg.UserAgent)
	feedLogger := logging.ForComponent("feeds")

	// JSON first: its records carry the richer location data
	sources := []feeds.Source{
		feeds.NewJSONSource(fetcher, cfg.JSONFeedURL, cfg.Location(), feedLogger),
		feeds.NewXMLSource(fetcher, cfg.XMLFeedURL, feedLogger),
	}

	coordinator := pipeline.NewCoordinator(pipeline.CoordinatorDeps{
		Store:    app.Store,
		Location: app.LocationQueue,
		Transit:  app.TransitQueue,
		Images:   app.ImageQueue,
		Lines:    app.Lines,
		State:    app.State,
	})

	app.Orchestrator = pipeline.NewOrchestrator(sources, coordinator, app.State, app.Cache, pipeline.OrchestratorConfig{
		Timeout:   cfg.RefreshTimeout,
		BatchSize: cfg.RefreshBatchSize,
	})
	app.Orchestrator.SetLocker(app.Locker)

	app.Recalculator = pipeline.NewRecalculator(app.Store, app.Cache, app.State, cfg.DistanceBatchSize)
	app.Cleaner = pipeline.NewCleaner(app.Store, app.Cache, nil)
}

func (app *App) initializeMetrics() {
	app.Registry = prometheus.NewRegistry()
	app.Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	app.Metrics = metrics.New(app.Registry, app.State, app.LocationQueue, app.TransitQueue, app.ImageQueue)
	app.Orchestrator.SetObserver(app.Metrics)
}

func (app *App) initializeScheduler() error {
	s, err := scheduler.New(scheduler.Config{
		RefreshSchedule: app.Config.RefreshSchedule,
		CleanupSchedule: app.Config.CleanupSchedule,
		RefreshOnStart:  app.Config.RefreshOnStart,
		Location:        app.Config.Location(),
	}, app.Orchestrator, app.Cleaner)
	if err != nil {
		return err
	}
	s.SetPurgeHook(app.Metrics.EventsPurged)

	app.Scheduler = s
	return nil
}
