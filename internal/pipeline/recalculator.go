package pipeline

import (
	"context"
	"fmt"

	"event-enricher/internal/common/cache"
	"event-enricher/internal/common/logging"
	"event-enricher/internal/models"
	"event-enricher/internal/storage"
)

// DefaultDistanceBatchSize bounds each bulk distance write
const DefaultDistanceBatchSize = 500

// RecalculationReport summarises a distance recalculation
type RecalculationReport struct {
	Reference models.Coordinate `json:"reference"`
	Scanned   int               `json:"scanned"`
	Updated   int               `json:"updated"`
}

// Recalculator rewrites stored distances after the reference coordinate moves
type Recalculator struct {
	store     storage.Store
	cache     cache.Cache
	state     *RuntimeState
	batchSize int
	logger    logging.Logger
}

// NewRecalculator creates a recalculator. c may be nil.
func NewRecalculator(store storage.Store, c cache.Cache, state *RuntimeState, batchSize int) *Recalculator {
	if batchSize <= 0 {
		batchSize = DefaultDistanceBatchSize
	}
	return &Recalculator{
		store:     store,
		cache:     c,
		state:     state,
		batchSize: batchSize,
		logger:    logging.ForComponent("recalculator"),
	}
}

// UpdateReference sets the reference coordinate and recalculates distances
// when it actually changed
func (r *Recalculator) UpdateReference(ctx context.Context, reference models.Coordinate) (RecalculationReport, bool, error) {
	if !reference.Valid() {
		return RecalculationReport{}, false, fmt.Errorf("invalid reference coordinate %v,%v", reference.Lat, reference.Lon)
	}
	if !r.state.SetReference(reference) {
		return RecalculationReport{Reference: reference}, false, nil
	}
	report, err := r.Recalculate(ctx)
	return report, true, err
}

// Recalculate recomputes every stored distance against the current reference
// and writes only the ones that changed
func (r *Recalculator) Recalculate(ctx context.Context) (RecalculationReport, error) {
	report := RecalculationReport{Reference: r.state.Reference()}
	pending := make([]storage.DistanceUpdate, 0, r.batchSize)

	flush := func() error {
		if len(pending) == 0 {
			return nil
		}
		if err := r.store.BulkUpdateDistances(ctx, pending); err != nil {
			return fmt.Errorf("failed to write distance batch: %w", err)
		}
		report.Updated += len(pending)
		pending = pending[:0]
		return nil
	}

	err := r.store.ForEachCoordinates(ctx, func(row storage.CoordinateRow) error {
		report.Scanned++
		computed := rowDistance(row, report.Reference)
		if !storage.DistanceChanged(row.DistanceKm, computed) {
			return nil
		}
		pending = append(pending, storage.DistanceUpdate{ID: row.ID, DistanceKm: computed})
		if len(pending) >= r.batchSize {
			return flush()
		}
		return nil
	})
	if err == nil {
		err = flush()
	}

	if report.Updated > 0 && r.cache != nil {
		if _, cerr := r.cache.ClearByPattern(ctx, cache.EventsPrefix); cerr != nil {
			r.logger.Warn("Failed to invalidate event cache", logging.Err(cerr))
		}
	}

	if err != nil {
		r.logger.Error("Distance recalculation failed", err,
			logging.Int("scanned", report.Scanned),
			logging.Int("updated", report.Updated),
		)
		return report, err
	}

	r.logger.Info("Distances recalculated",
		logging.Float64("lat", report.Reference.Lat),
		logging.Float64("lon", report.Reference.Lon),
		logging.Int("scanned", report.Scanned),
		logging.Int("updated", report.Updated),
	)
	return report, nil
}

func rowDistance(row storage.CoordinateRow, reference models.Coordinate) *float64 {
	return models.ComputeDistanceKm(&models.Event{Latitude: row.Latitude, Longitude: row.Longitude}, reference)
}
