package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"event-enricher/internal/models"
	"event-enricher/internal/storage"
)

type Adapter struct {
	pool   *pgxpool.Pool
	config *Config
	now    func() time.Time
}

var _ storage.Store = (*Adapter)(nil)

func NewAdapter(ctx context.Context, config *Config) (*Adapter, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid PostgreSQL config: %w", err)
	}

	poolConfig, err := config.poolConfig()
	if err != nil {
		return nil, err
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	adapter := &Adapter{
		pool:   pool,
		config: config,
		now:    time.Now,
	}

	if err := adapter.migrate(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return adapter, nil
}

func (a *Adapter) migrate(ctx context.Context) error {
	for _, query := range migrations {
		if _, err := a.pool.Exec(ctx, query); err != nil {
			return err
		}
	}
	return nil
}

func (a *Adapter) Close() error {
	if a.pool != nil {
		a.pool.Close()
	}
	return nil
}

func (a *Adapter) Health(ctx context.Context) error {
	return a.pool.Ping(ctx)
}

func (a *Adapter) pageSize() int {
	if a.config.PageSize > 0 {
		return a.config.PageSize
	}
	return storage.DefaultPageSize
}

func timeArg(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	utc := t.UTC()
	return &utc
}

func derefTime(t *time.Time) time.Time {
	if t == nil {
		return time.Time{}
	}
	return t.UTC()
}

func scanEvent(row pgx.Row) (*models.Event, error) {
	var (
		e                  models.Event
		source             string
		startTime, endTime *time.Time
		tags, lines        []byte
	)

	err := row.Scan(
		&e.ID, &source, &e.Title, &e.Description, &e.IsFree, &e.PriceText, &startTime, &endTime,
		&e.ScheduleText, &tags, &e.VenueName, &e.Locality, &e.PostalCode, &e.StreetAddress,
		&e.Latitude, &e.Longitude, &e.OrganizationName, &e.DetailLink, &e.ImageURL, &e.District, &e.Neighborhood,
		&e.DistanceKm, &e.NearestStation, &lines, &e.ExcludedDatesText, &e.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	e.Source = models.Feed(source)
	e.StartTime = derefTime(startTime)
	e.EndTime = derefTime(endTime)
	e.UpdatedAt = e.UpdatedAt.UTC()
	e.AudienceTags = storage.DecodeTags(tags)
	e.StationLines = storage.DecodeLines(lines)

	return &e, nil
}

func (a *Adapter) FindOne(ctx context.Context, id string) (*models.Event, error) {
	row := a.pool.QueryRow(ctx, `SELECT `+eventColumns+` FROM events WHERE id = $1`, id)
	event, err := scanEvent(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", storage.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load event %s: %w", id, err)
	}
	return event, nil
}

func (a *Adapter) Upsert(ctx context.Context, e *models.Event) error {
	if e.ID == "" {
		return fmt.Errorf("event id is required")
	}

	_, err := a.pool.Exec(ctx, upsertEvent,
		e.ID, string(e.Source), e.Title, e.Description, e.IsFree, e.PriceText,
		timeArg(e.StartTime), timeArg(e.EndTime),
		e.ScheduleText, storage.EncodeTags(e.AudienceTags), e.VenueName, e.Locality, e.PostalCode, e.StreetAddress,
		e.Latitude, e.Longitude, e.OrganizationName, e.DetailLink, e.ImageURL,
		e.District, e.Neighborhood, e.DistanceKm, e.NearestStation, storage.EncodeLines(e.StationLines),
		e.ExcludedDatesText, a.now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert event %s: %w", e.ID, err)
	}
	return nil
}

func (a *Adapter) execTargeted(ctx context.Context, id, query string, args ...any) error {
	tag, err := a.pool.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update event %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", storage.ErrNotFound, id)
	}
	return nil
}

func (a *Adapter) UpdateLocation(ctx context.Context, id string, u storage.LocationUpdate) error {
	return a.execTargeted(ctx, id, updateLocation,
		u.District, u.Neighborhood, u.StreetAddress, u.Locality, a.now().UTC(), id)
}

func (a *Adapter) UpdateTransit(ctx context.Context, id string, u storage.TransitUpdate) error {
	lines := storage.EncodeLines(u.StationLines)
	if u.NearestStation == "" {
		lines = "[]"
	}
	return a.execTargeted(ctx, id, updateTransit, lines, u.NearestStation, a.now().UTC(), id)
}

func (a *Adapter) UpdateImage(ctx context.Context, id string, imageURL string) error {
	return a.execTargeted(ctx, id, updateImage, imageURL, a.now().UTC(), id)
}

func (a *Adapter) DeleteEndedBefore(ctx context.Context, t time.Time) (int64, error) {
	tag, err := a.pool.Exec(ctx, `DELETE FROM events WHERE end_time IS NOT NULL AND end_time < $1`, t.UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to delete past events: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (a *Adapter) ForEachCoordinates(ctx context.Context, fn func(storage.CoordinateRow) error) error {
	lastID := ""
	for {
		page, err := a.coordinatePage(ctx, lastID)
		if err != nil {
			return err
		}
		for _, row := range page {
			if err := fn(row); err != nil {
				return err
			}
		}
		if len(page) < a.pageSize() {
			return nil
		}
		lastID = page[len(page)-1].ID
	}
}

func (a *Adapter) coordinatePage(ctx context.Context, afterID string) ([]storage.CoordinateRow, error) {
	rows, err := a.pool.Query(ctx,
		`SELECT id, latitude, longitude, distance_km FROM events WHERE id > $1 ORDER BY id LIMIT $2`,
		afterID, a.pageSize())
	if err != nil {
		return nil, fmt.Errorf("failed to read coordinates: %w", err)
	}
	defer rows.Close()

	var page []storage.CoordinateRow
	for rows.Next() {
		var row storage.CoordinateRow
		if err := rows.Scan(&row.ID, &row.Latitude, &row.Longitude, &row.DistanceKm); err != nil {
			return nil, fmt.Errorf("failed to scan coordinates: %w", err)
		}
		page = append(page, row)
	}
	return page, rows.Err()
}

func (a *Adapter) BulkUpdateDistances(ctx context.Context, updates []storage.DistanceUpdate) error {
	if len(updates) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, u := range updates {
		batch.Queue(`UPDATE events SET distance_km = $1 WHERE id = $2`, u.DistanceKm, u.ID)
	}

	results := a.pool.SendBatch(ctx, batch)
	for _, u := range updates {
		if _, err := results.Exec(); err != nil {
			_ = results.Close()
			return fmt.Errorf("failed to update distance of %s: %w", u.ID, err)
		}
	}
	return results.Close()
}

// tsQuery builds a prefix query where every term must match
func tsQuery(terms []string) string {
	parts := make([]string, len(terms))
	for i, term := range terms {
		parts[i] = term + ":*"
	}
	return strings.Join(parts, " & ")
}

func (a *Adapter) Search(ctx context.Context, query string, limit int) ([]*models.Event, error) {
	terms := storage.SearchTerms(query)
	if len(terms) == 0 {
		return []*models.Event{}, nil
	}

	rows, err := a.pool.Query(ctx,
		`SELECT `+eventColumns+` FROM events
		WHERE search @@ to_tsquery('spanish', $1)
		ORDER BY start_time NULLS LAST, id LIMIT $2`,
		tsQuery(terms), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to search events: %w", err)
	}
	defer rows.Close()

	events := []*models.Event{}
	for rows.Next() {
		event, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		events = append(events, event)
	}
	return events, rows.Err()
}

func (a *Adapter) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := a.pool.QueryRow(ctx, `SELECT COUNT(*) FROM events`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count events: %w", err)
	}
	return n, nil
}
