package app

import (
	"event-enricher/internal/handlers"
	"event-enricher/internal/metrics"
	"event-enricher/internal/server"
)

func (app *App) initializeServer() {
	app.Handlers = handlers.New(handlers.Deps{
		Store:        app.Store,
		Cache:        app.Cache,
		State:        app.State,
		Refresher:    app.Orchestrator,
		Recalculator: app.Recalculator,
		Queues: []handlers.QueueStats{
			app.LocationQueue,
			app.TransitQueue,
			app.ImageQueue,
		},
		Metrics:        metrics.Handler(app.Registry),
		SearchTTL:      app.Config.CacheTTL,
		OnRecalculated: app.Metrics.DistancesRecalculated,
	})

	app.Server = server.New(app.Handlers.Router(), app.Config.Port)
}
