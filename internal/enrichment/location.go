package enrichment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"event-enricher/internal/circuitbreaker"
	commonhttp "event-enricher/internal/common/http"
	"event-enricher/internal/common/sanitize"
	"event-enricher/internal/models"
	"event-enricher/internal/providers/nominatim"
	"event-enricher/internal/storage"
)

// Geocoder resolves a coordinate into administrative areas
type Geocoder interface {
	ReverseGeocode(ctx context.Context, lat, lon float64) (*nominatim.Address, error)
}

// DefaultCooldown is how long the geocoder queue pauses after a refused connection
const DefaultCooldown = 5 * time.Minute

// LocationQueue fills district, neighborhood, street address and locality
type LocationQueue struct {
	*Queue[models.Coordinate]
	store    storage.Store
	geocoder Geocoder
}

// NewLocationQueue builds the geocoder queue with its circuit breaker. The
// breaker only trips on refused connections.
func NewLocationQueue(store storage.Store, geocoder Geocoder, opts Options, cooldown time.Duration) *LocationQueue {
	if opts.Name == "" {
		opts.Name = "location"
	}
	if cooldown <= 0 {
		cooldown = DefaultCooldown
	}

	l := &LocationQueue{store: store, geocoder: geocoder}
	breaker := circuitbreaker.NewGoBreaker(opts.Name,
		circuitbreaker.CooldownConfig(cooldown, commonhttp.IsConnectionRefused),
		opts.Logger,
	)
	l.Queue = NewQueue[models.Coordinate](opts, l.handle, GeocoderPolicy(), breaker)
	return l
}

// Request returns the location data already stored for the event and queues
// a lookup when it is missing. It never waits for the lookup.
func (l *LocationQueue) Request(ctx context.Context, eventID string, coord models.Coordinate) (models.PartialEnrichment, error) {
	known, err := persisted(ctx, l.store, eventID)
	if err != nil {
		return known, err
	}
	if known.HasLocation() {
		return known, nil
	}
	l.Enqueue(eventID, coordinateKey(eventID, coord), coord)
	return known, nil
}

func (l *LocationQueue) handle(ctx context.Context, req Request[models.Coordinate]) error {
	addr, err := l.geocoder.ReverseGeocode(ctx, req.Params.Lat, req.Params.Lon)
	if err != nil {
		return err
	}

	return l.store.UpdateLocation(ctx, req.SubjectID, storage.LocationUpdate{
		District:      sanitize.Text(addr.District),
		Neighborhood:  sanitize.Text(addr.Neighborhood),
		StreetAddress: sanitize.Text(addr.Road),
		Locality:      sanitize.Text(addr.City),
	})
}

// persisted loads the stored enrichment of an event. A missing event has none.
func persisted(ctx context.Context, store storage.Store, eventID string) (models.PartialEnrichment, error) {
	existing, err := store.FindOne(ctx, eventID)
	if errors.Is(err, storage.ErrNotFound) {
		return models.PartialEnrichment{}, nil
	}
	if err != nil {
		return models.PartialEnrichment{}, fmt.Errorf("failed to load enrichment for %s: %w", eventID, err)
	}
	return models.EnrichmentOf(existing), nil
}

func coordinateKey(eventID string, coord models.Coordinate) string {
	return fmt.Sprintf("%s|%.5f,%.5f", eventID, coord.Lat, coord.Lon)
}
