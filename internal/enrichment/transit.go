package enrichment

import (
	"context"
	"fmt"
	"time"

	"event-enricher/internal/common/cache"
	"event-enricher/internal/common/logging"
	"event-enricher/internal/common/sanitize"
	"event-enricher/internal/models"
	"event-enricher/internal/storage"
	"event-enricher/internal/transit"
)

// StationFinder returns the nearest station name around a coordinate, or ""
type StationFinder interface {
	NearestStation(ctx context.Context, lat, lon float64) (string, error)
}

// MemoTTL is how long transit and image lookups are memoized
const MemoTTL = 24 * time.Hour

// TransitQueue fills the nearest station and its lines
type TransitQueue struct {
	*Queue[models.Coordinate]
	store  storage.Store
	finder StationFinder
	lines  *transit.Table
	memo   cache.Cache
}

// NewTransitQueue builds the station queue. memo may be nil.
func NewTransitQueue(store storage.Store, finder StationFinder, lines *transit.Table, memo cache.Cache, opts Options) *TransitQueue {
	if opts.Name == "" {
		opts.Name = "transit"
	}
	t := &TransitQueue{store: store, finder: finder, lines: lines, memo: memo}
	t.Queue = NewQueue[models.Coordinate](opts, t.handle, ServerErrorPolicy(), nil)
	return t
}

// Request returns the transit data already stored for the event and queues a
// lookup when no station is known
func (t *TransitQueue) Request(ctx context.Context, eventID string, coord models.Coordinate) (models.PartialEnrichment, error) {
	known, err := persisted(ctx, t.store, eventID)
	if err != nil {
		return known, err
	}
	if known.HasTransit() {
		return known, nil
	}
	t.Enqueue(eventID, coordinateKey(eventID, coord), coord)
	return known, nil
}

func (t *TransitQueue) handle(ctx context.Context, req Request[models.Coordinate]) error {
	station, err := t.lookup(ctx, req.Params)
	if err != nil {
		return err
	}
	if station == "" {
		t.logger.Debug("No station near event", logging.String("event_id", req.SubjectID))
		return nil
	}

	return t.store.UpdateTransit(ctx, req.SubjectID, storage.TransitUpdate{
		NearestStation: station,
		StationLines:   t.lines.Lines(station),
	})
}

func (t *TransitQueue) lookup(ctx context.Context, coord models.Coordinate) (string, error) {
	key := transitMemoKey(coord)

	var station string
	if t.memo != nil && cache.GetJSON(ctx, t.memo, key, &station) {
		return station, nil
	}

	station, err := t.finder.NearestStation(ctx, coord.Lat, coord.Lon)
	if err != nil {
		return "", err
	}
	station = sanitize.Text(station)

	if t.memo != nil {
		if err := cache.SetJSON(ctx, t.memo, key, station, MemoTTL); err != nil {
			t.logger.Warn("Failed to memoize transit lookup", logging.Err(err))
		}
	}
	return station, nil
}

func transitMemoKey(coord models.Coordinate) string {
	return fmt.Sprintf("%s%.4f,%.4f", cache.TransitPrefix, coord.Lat, coord.Lon)
}
