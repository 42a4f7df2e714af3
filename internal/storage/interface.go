// Package storage defines the persistent event store used by the pipeline.
// Adapters live in the sqlite and postgres subpackages.
package storage

import (
	"context"
	"errors"
	"time"

	"event-enricher/internal/models"
)

// ErrNotFound is returned when no stored event has the requested id
var ErrNotFound = errors.New("event not found")

// LocationUpdate carries reverse-geocoding results
type LocationUpdate struct {
	District      string
	Neighborhood  string
	StreetAddress string
	Locality      string
}

// TransitUpdate carries the nearest station and its lines
type TransitUpdate struct {
	NearestStation string
	StationLines   []models.StationLine
}

// DistanceUpdate sets the distance of one event; nil clears it
type DistanceUpdate struct {
	ID         string
	DistanceKm *float64
}

// CoordinateRow is the projection streamed by ForEachCoordinates
type CoordinateRow struct {
	ID         string
	Latitude   *float64
	Longitude  *float64
	DistanceKm *float64
}

// Store is a document collection of events keyed by id.
//
// Targeted updates (UpdateLocation, UpdateTransit, UpdateImage) only fill
// columns that are still empty, and Upsert never replaces a populated
// district, neighborhood, nearest station, station lines or image with an
// empty value. They return ErrNotFound when the id is not stored yet.
type Store interface {
	FindOne(ctx context.Context, id string) (*models.Event, error)
	Upsert(ctx context.Context, event *models.Event) error

	UpdateLocation(ctx context.Context, id string, update LocationUpdate) error
	UpdateTransit(ctx context.Context, id string, update TransitUpdate) error
	UpdateImage(ctx context.Context, id string, imageURL string) error

	// DeleteEndedBefore removes events whose end time is before t
	DeleteEndedBefore(ctx context.Context, t time.Time) (int64, error)

	// ForEachCoordinates calls fn for every stored event in id order.
	// Rows are read in pages so fn may write to the store.
	ForEachCoordinates(ctx context.Context, fn func(CoordinateRow) error) error
	BulkUpdateDistances(ctx context.Context, updates []DistanceUpdate) error

	// Search matches title, description, district, neighborhood, venue and organization
	Search(ctx context.Context, query string, limit int) ([]*models.Event, error)
	Count(ctx context.Context) (int64, error)

	Health(ctx context.Context) error
	Close() error
}

// DefaultPageSize is the page size used by ForEachCoordinates
const DefaultPageSize = 500
