package postgres

var migrations = []string{
	`CREATE TABLE IF NOT EXISTS events (
		id TEXT PRIMARY KEY,
		source TEXT NOT NULL DEFAULT '',
		title TEXT NOT NULL DEFAULT '',
		description TEXT NOT NULL DEFAULT '',
		is_free BOOLEAN NOT NULL DEFAULT FALSE,
		price_text TEXT NOT NULL DEFAULT '',
		start_time TIMESTAMPTZ,
		end_time TIMESTAMPTZ,
		schedule_text TEXT NOT NULL DEFAULT '',
		audience_tags JSONB NOT NULL DEFAULT '[]',
		venue_name TEXT NOT NULL DEFAULT '',
		locality TEXT NOT NULL DEFAULT '',
		postal_code TEXT NOT NULL DEFAULT '',
		street_address TEXT NOT NULL DEFAULT '',
		latitude DOUBLE PRECISION,
		longitude DOUBLE PRECISION,
		organization_name TEXT NOT NULL DEFAULT '',
		detail_link TEXT NOT NULL DEFAULT '',
		image_url TEXT NOT NULL DEFAULT '',
		district TEXT NOT NULL DEFAULT '',
		neighborhood TEXT NOT NULL DEFAULT '',
		distance_km DOUBLE PRECISION,
		nearest_station TEXT NOT NULL DEFAULT '',
		station_lines JSONB NOT NULL DEFAULT '[]',
		excluded_dates_text TEXT NOT NULL DEFAULT '',
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		search tsvector GENERATED ALWAYS AS (
			to_tsvector('spanish',
				title || ' ' || description || ' ' || district || ' ' ||
				neighborhood || ' ' || venue_name || ' ' || organization_name)
		) STORED
	)`,
	`CREATE INDEX IF NOT EXISTS idx_events_start_time ON events(start_time)`,
	`CREATE INDEX IF NOT EXISTS idx_events_end_time ON events(end_time)`,
	`CREATE INDEX IF NOT EXISTS idx_events_search ON events USING GIN(search)`,
}

const eventColumns = `id, source, title, description, is_free, price_text, start_time, end_time,
	schedule_text, audience_tags, venue_name, locality, postal_code, street_address,
	latitude, longitude, organization_name, detail_link, image_url, district, neighborhood,
	distance_km, nearest_station, station_lines, excluded_dates_text, updated_at`

const upsertEvent = `INSERT INTO events (` + eventColumns + `)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10::jsonb, $11, $12, $13, $14, $15, $16, $17,
	$18, $19, $20, $21, $22, $23, $24::jsonb, $25, $26)
ON CONFLICT (id) DO UPDATE SET
	source = EXCLUDED.source,
	title = EXCLUDED.title,
	description = EXCLUDED.description,
	is_free = EXCLUDED.is_free,
	price_text = EXCLUDED.price_text,
	start_time = EXCLUDED.start_time,
	end_time = EXCLUDED.end_time,
	schedule_text = EXCLUDED.schedule_text,
	audience_tags = EXCLUDED.audience_tags,
	venue_name = EXCLUDED.venue_name,
	locality = COALESCE(NULLIF(EXCLUDED.locality, ''), events.locality),
	postal_code = EXCLUDED.postal_code,
	street_address = COALESCE(NULLIF(EXCLUDED.street_address, ''), events.street_address),
	latitude = EXCLUDED.latitude,
	longitude = EXCLUDED.longitude,
	organization_name = EXCLUDED.organization_name,
	detail_link = EXCLUDED.detail_link,
	image_url = COALESCE(NULLIF(EXCLUDED.image_url, ''), events.image_url),
	district = COALESCE(NULLIF(EXCLUDED.district, ''), events.district),
	neighborhood = COALESCE(NULLIF(EXCLUDED.neighborhood, ''), events.neighborhood),
	distance_km = EXCLUDED.distance_km,
	nearest_station = COALESCE(NULLIF(EXCLUDED.nearest_station, ''), events.nearest_station),
	station_lines = CASE WHEN EXCLUDED.nearest_station <> '' THEN EXCLUDED.station_lines ELSE events.station_lines END,
	excluded_dates_text = EXCLUDED.excluded_dates_text,
	updated_at = EXCLUDED.updated_at`

const updateLocation = `UPDATE events SET
	district = CASE WHEN district = '' THEN $1 ELSE district END,
	neighborhood = CASE WHEN neighborhood = '' THEN $2 ELSE neighborhood END,
	street_address = CASE WHEN street_address = '' THEN $3 ELSE street_address END,
	locality = CASE WHEN locality = '' THEN $4 ELSE locality END,
	updated_at = $5
WHERE id = $6`

const updateTransit = `UPDATE events SET
	station_lines = CASE WHEN nearest_station = '' THEN $1::jsonb ELSE station_lines END,
	nearest_station = CASE WHEN nearest_station = '' THEN $2 ELSE nearest_station END,
	updated_at = $3
WHERE id = $4`

const updateImage = `UPDATE events SET
	image_url = CASE WHEN image_url = '' THEN $1 ELSE image_url END,
	updated_at = $2
WHERE id = $3`
