package app

import (
	"fmt"
	"time"

	commonhttp "event-enricher/internal/common/http"
	"event-enricher/internal/common/logging"
	"event-enricher/internal/enrichment"
	"event-enricher/internal/models"
	"event-enricher/internal/providers/nominatim"
	"event-enricher/internal/providers/overpass"
	"event-enricher/internal/providers/scraper"
	"event-enricher/internal/transit"
)

func (app *App) queueOptions(name string, delay time.Duration) enrichment.Options {
	return enrichment.Options{
		Name:         name,
		MaxLength:    app.Config.QueueMaxLength,
		MaxRetries:   app.Config.QueueMaxRetries,
		Delay:        delay,
		IdleInterval: app.Config.QueueIdleInterval,
		Logger:       logging.ForComponent("enrichment"),
	}
}

func (app *App) initializeEnrichment() error {
	cfg := app.Config
	fetcher := commonhttp.NewFetcher(commonhttp.NewHTTPClientWithTimeout(cfg.ProviderTimeout), cfg.UserAgent)

	if cfg.ImageNotFoundURL != "" {
		models.ImageNotFoundURL = cfg.ImageNotFoundURL
	}

	lines, err := app.loadLineTable()
	if err != nil {
		return err
	}
	app.Lines = lines

	images, err := scraper.NewClient(fetcher, scraper.Config{
		Selector:    cfg.ScraperSelector,
		BaseURL:     cfg.ScraperBaseURL,
		NotFoundURL: models.ImageNotFoundURL,
	})
	if err != nil {
		return fmt.Errorf("failed to create image scraper: %w", err)
	}

	stations := overpass.NewClient(fetcher, overpass.Config{
		Endpoint: cfg.TransitURL,
		RadiusM:  cfg.TransitRadiusM,
		Operator: cfg.TransitOperator,
	})

	app.LocationQueue = enrichment.NewLocationQueue(app.Store,
		nominatim.NewClient(fetcher, cfg.GeocoderURL),
		app.queueOptions("location", cfg.LocationDelay),
		cfg.LocationCooldown,
	)
	app.TransitQueue = enrichment.NewTransitQueue(app.Store, stations, lines, app.Cache,
		app.queueOptions("transit", cfg.TransitDelay))
	app.ImageQueue = enrichment.NewImageQueue(app.Store, images, app.Cache,
		app.queueOptions("image", cfg.ImageDelay))

	return nil
}

func (app *App) loadLineTable() (*transit.Table, error) {
	if path := app.Config.TransitLinesFile; path != "" {
		table, err := transit.LoadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to load transit lines from %s: %w", path, err)
		}
		app.Logger.Info("Transit lines loaded", logging.String("file", path))
		return table, nil
	}
	return transit.Default()
}
