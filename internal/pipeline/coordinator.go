package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/errgroup"

	"event-enricher/internal/common/logging"
	"event-enricher/internal/common/sanitize"
	"event-enricher/internal/models"
	"event-enricher/internal/storage"
	"event-enricher/internal/transit"
)

// CoordinateRequester queues a coordinate-based lookup for an event and
// returns what is already stored
type CoordinateRequester interface {
	Request(ctx context.Context, eventID string, coord models.Coordinate) (models.PartialEnrichment, error)
}

// ImageRequester queues a detail-page image lookup for an event
type ImageRequester interface {
	Request(ctx context.Context, eventID, link string) (models.PartialEnrichment, error)
}

// Coordinator turns a normalized feed event into a stored record, merging
// persisted enrichment and requesting whatever is still missing
type Coordinator struct {
	store    storage.Store
	location CoordinateRequester
	transit  CoordinateRequester
	images   ImageRequester
	lines    *transit.Table
	state    *RuntimeState
	clock    clockwork.Clock
	logger   logging.Logger
}

// CoordinatorDeps groups the collaborators of a Coordinator
type CoordinatorDeps struct {
	Store    storage.Store
	Location CoordinateRequester
	Transit  CoordinateRequester
	Images   ImageRequester
	Lines    *transit.Table
	State    *RuntimeState
	Clock    clockwork.Clock
	Logger   logging.Logger
}

func NewCoordinator(deps CoordinatorDeps) *Coordinator {
	if deps.Clock == nil {
		deps.Clock = clockwork.NewRealClock()
	}
	if deps.Logger == nil {
		deps.Logger = logging.ForComponent("coordinator")
	}
	return &Coordinator{
		store:    deps.Store,
		location: deps.Location,
		transit:  deps.Transit,
		images:   deps.Images,
		lines:    deps.Lines,
		state:    deps.State,
		clock:    deps.Clock,
		logger:   deps.Logger,
	}
}

// ProcessAndStoreEvent sanitizes event, merges it with stored enrichment,
// requests missing enrichment and upserts the result. Ended XML events are
// discarded without being stored. The event is modified in place.
func (c *Coordinator) ProcessAndStoreEvent(ctx context.Context, event *models.Event, fromXML bool) error {
	logger := c.logger.WithContext(ctx).WithFields(logging.String("event_id", event.ID))
	now := c.clock.Now()

	if fromXML && !models.IsActive(event, now) {
		logger.Debug("Discarding ended event")
		return nil
	}

	sanitizeEvent(event)

	existing, err := c.store.FindOne(ctx, event.ID)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		logger.Error("Failed to load stored event", err)
		return fmt.Errorf("failed to load event %s: %w", event.ID, err)
	}

	// stored values win over what the feed carries
	merged := models.Merge(models.EnrichmentOf(existing), models.EnrichmentOf(event))

	if coord, ok := models.EventCoordinate(event); ok {
		fresh, err := c.requestAreaAndTransit(ctx, event.ID, coord, merged)
		if err != nil {
			logger.Error("Failed to request location enrichment", err)
			return err
		}
		merged = models.Merge(merged, fresh)
	}
	event.DistanceKm = models.ComputeDistanceKm(event, c.state.Reference())

	if merged.NearestStation != "" {
		if lines := c.lines.Lines(merged.NearestStation); len(lines) > 0 {
			merged.StationLines = lines
		}
	}

	if !merged.HasImage() && c.images != nil {
		fresh, err := c.images.Request(ctx, event.ID, event.DetailLink)
		if err != nil {
			logger.Error("Failed to request image enrichment", err)
			return err
		}
		merged = models.Merge(merged, fresh)
	}

	event.VenueName = models.CleanVenueName(event.VenueName, merged.District, merged.Neighborhood)
	event.ApplyEnrichment(merged)
	event.UpdatedAt = now.UTC()

	if err := c.store.Upsert(ctx, event); err != nil {
		logger.Error("Failed to store event", err)
		return fmt.Errorf("failed to store event %s: %w", event.ID, err)
	}
	return nil
}

// requestAreaAndTransit asks the location and transit queues, concurrently,
// for whichever part is still incomplete
func (c *Coordinator) requestAreaAndTransit(ctx context.Context, id string, coord models.Coordinate, known models.PartialEnrichment) (models.PartialEnrichment, error) {
	var area, station models.PartialEnrichment

	g, gctx := errgroup.WithContext(ctx)
	if !known.HasLocation() && c.location != nil {
		g.Go(func() error {
			var err error
			area, err = c.location.Request(gctx, id, coord)
			return err
		})
	}
	if !known.HasTransit() && c.transit != nil {
		g.Go(func() error {
			var err error
			station, err = c.transit.Request(gctx, id, coord)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return models.PartialEnrichment{}, err
	}

	return models.Merge(area, station), nil
}

func sanitizeEvent(e *models.Event) {
	e.Title = sanitize.Text(e.Title)
	e.Description = sanitize.HTML(e.Description)
	e.VenueName = sanitize.Text(e.VenueName)
	e.OrganizationName = sanitize.Text(e.OrganizationName)
	e.StreetAddress = sanitize.Text(e.StreetAddress)
	e.Locality = sanitize.Text(e.Locality)
}
