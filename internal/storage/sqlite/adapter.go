package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"event-enricher/internal/models"
	"event-enricher/internal/storage"
)

type Adapter struct {
	db     *sql.DB
	config *Config
	now    func() time.Time
}

var _ storage.Store = (*Adapter)(nil)

func NewAdapter(config *Config) (*Adapter, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid SQLite config: %w", err)
	}

	db, err := sql.Open("sqlite3", config.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// A single connection serializes writers and keeps :memory: databases shared
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	adapter := &Adapter{
		db:     db,
		config: config,
		now:    time.Now,
	}

	if err := adapter.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return adapter, nil
}

func (a *Adapter) migrate() error {
	for _, query := range migrations {
		if _, err := a.db.Exec(query); err != nil {
			return err
		}
	}
	return nil
}

func (a *Adapter) Close() error {
	if a.db != nil {
		return a.db.Close()
	}
	return nil
}

func (a *Adapter) Health(ctx context.Context) error {
	return a.db.PingContext(ctx)
}

func (a *Adapter) pageSize() int {
	if a.config.PageSize > 0 {
		return a.config.PageSize
	}
	return storage.DefaultPageSize
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEvent(row rowScanner) (*models.Event, error) {
	var (
		e                  models.Event
		source             string
		startTime, endTime string
		updatedAt          string
		tags, lines        string
		lat, lon, distance sql.NullFloat64
	)

	err := row.Scan(
		&e.ID, &source, &e.Title, &e.Description, &e.IsFree, &e.PriceText, &startTime, &endTime,
		&e.ScheduleText, &tags, &e.VenueName, &e.Locality, &e.PostalCode, &e.StreetAddress,
		&lat, &lon, &e.OrganizationName, &e.DetailLink, &e.ImageURL, &e.District, &e.Neighborhood,
		&distance, &e.NearestStation, &lines, &e.ExcludedDatesText, &updatedAt,
	)
	if err != nil {
		return nil, err
	}

	e.Source = models.Feed(source)
	e.StartTime = storage.ParseTime(startTime)
	e.EndTime = storage.ParseTime(endTime)
	e.UpdatedAt = storage.ParseTime(updatedAt)
	e.AudienceTags = storage.DecodeTags([]byte(tags))
	e.StationLines = storage.DecodeLines([]byte(lines))
	e.Latitude = nullFloat(lat)
	e.Longitude = nullFloat(lon)
	e.DistanceKm = nullFloat(distance)

	return &e, nil
}

func nullFloat(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}

func floatArg(v *float64) any {
	if v == nil {
		return nil
	}
	return *v
}

func (a *Adapter) FindOne(ctx context.Context, id string) (*models.Event, error) {
	row := a.db.QueryRowContext(ctx, `SELECT `+eventColumns+` FROM events WHERE id = ?`, id)
	event, err := scanEvent(row)
	if errors.Is(err, sql.ErrNoRows) {
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

	_, err := a.db.ExecContext(ctx, upsertEvent,
		e.ID, string(e.Source), e.Title, e.Description, e.IsFree, e.PriceText,
		storage.FormatTime(e.StartTime), storage.FormatTime(e.EndTime),
		e.ScheduleText, storage.EncodeTags(e.AudienceTags), e.VenueName, e.Locality, e.PostalCode, e.StreetAddress,
		floatArg(e.Latitude), floatArg(e.Longitude), e.OrganizationName, e.DetailLink, e.ImageURL,
		e.District, e.Neighborhood, floatArg(e.DistanceKm), e.NearestStation, storage.EncodeLines(e.StationLines),
		e.ExcludedDatesText, storage.FormatTime(a.now()),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert event %s: %w", e.ID, err)
	}
	return nil
}

func (a *Adapter) execTargeted(ctx context.Context, id, query string, args ...any) error {
	result, err := a.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update event %s: %w", id, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to update event %s: %w", id, err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: %s", storage.ErrNotFound, id)
	}
	return nil
}

func (a *Adapter) UpdateLocation(ctx context.Context, id string, u storage.LocationUpdate) error {
	return a.execTargeted(ctx, id, updateLocation,
		u.District, u.Neighborhood, u.StreetAddress, u.Locality, storage.FormatTime(a.now()), id)
}

func (a *Adapter) UpdateTransit(ctx context.Context, id string, u storage.TransitUpdate) error {
	lines := storage.EncodeLines(u.StationLines)
	if u.NearestStation == "" {
		lines = "[]"
	}
	return a.execTargeted(ctx, id, updateTransit, lines, u.NearestStation, storage.FormatTime(a.now()), id)
}

func (a *Adapter) UpdateImage(ctx context.Context, id string, imageURL string) error {
	return a.execTargeted(ctx, id, updateImage, imageURL, storage.FormatTime(a.now()), id)
}

func (a *Adapter) DeleteEndedBefore(ctx context.Context, t time.Time) (int64, error) {
	result, err := a.db.ExecContext(ctx,
		`DELETE FROM events WHERE end_time <> '' AND end_time < ?`, storage.FormatTime(t))
	if err != nil {
		return 0, fmt.Errorf("failed to delete past events: %w", err)
	}
	return result.RowsAffected()
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
	rows, err := a.db.QueryContext(ctx,
		`SELECT id, latitude, longitude, distance_km FROM events WHERE id > ? ORDER BY id LIMIT ?`,
		afterID, a.pageSize())
	if err != nil {
		return nil, fmt.Errorf("failed to read coordinates: %w", err)
	}
	defer rows.Close()

	var page []storage.CoordinateRow
	for rows.Next() {
		var (
			id                 string
			lat, lon, distance sql.NullFloat64
		)
		if err := rows.Scan(&id, &lat, &lon, &distance); err != nil {
			return nil, fmt.Errorf("failed to scan coordinates: %w", err)
		}
		page = append(page, storage.CoordinateRow{
			ID:         id,
			Latitude:   nullFloat(lat),
			Longitude:  nullFloat(lon),
			DistanceKm: nullFloat(distance),
		})
	}
	return page, rows.Err()
}

func (a *Adapter) BulkUpdateDistances(ctx context.Context, updates []storage.DistanceUpdate) error {
	if len(updates) == 0 {
		return nil
	}

	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `UPDATE events SET distance_km = ? WHERE id = ?`)
	if err != nil {
		return fmt.Errorf("failed to prepare distance update: %w", err)
	}
	defer stmt.Close()

	for _, u := range updates {
		if _, err := stmt.ExecContext(ctx, floatArg(u.DistanceKm), u.ID); err != nil {
			return fmt.Errorf("failed to update distance of %s: %w", u.ID, err)
		}
	}

	return tx.Commit()
}

// matchExpression builds an FTS prefix query where every term must match
func matchExpression(terms []string) string {
	parts := make([]string, len(terms))
	for i, term := range terms {
		parts[i] = term + "*"
	}
	return strings.Join(parts, " ")
}

func (a *Adapter) Search(ctx context.Context, query string, limit int) ([]*models.Event, error) {
	terms := storage.SearchTerms(query)
	if len(terms) == 0 {
		return []*models.Event{}, nil
	}

	rows, err := a.db.QueryContext(ctx,
		`SELECT `+eventColumns+` FROM events
		WHERE rowid IN (SELECT docid FROM events_fts WHERE events_fts MATCH ?)
		ORDER BY start_time, id LIMIT ?`,
		matchExpression(terms), limit)
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
	if err := a.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM events`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count events: %w", err)
	}
	return n, nil
}
