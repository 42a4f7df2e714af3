package sqlite

var migrations = []string{
	`CREATE TABLE IF NOT EXISTS events (
		id TEXT PRIMARY KEY,
		source TEXT NOT NULL DEFAULT '',
		title TEXT NOT NULL DEFAULT '',
		description TEXT NOT NULL DEFAULT '',
		is_free INTEGER NOT NULL DEFAULT 0,
		price_text TEXT NOT NULL DEFAULT '',
		start_time TEXT NOT NULL DEFAULT '',
		end_time TEXT NOT NULL DEFAULT '',
		schedule_text TEXT NOT NULL DEFAULT '',
		audience_tags TEXT NOT NULL DEFAULT '[]',
		venue_name TEXT NOT NULL DEFAULT '',
		locality TEXT NOT NULL DEFAULT '',
		postal_code TEXT NOT NULL DEFAULT '',
		street_address TEXT NOT NULL DEFAULT '',
		latitude REAL,
		longitude REAL,
		organization_name TEXT NOT NULL DEFAULT '',
		detail_link TEXT NOT NULL DEFAULT '',
		image_url TEXT NOT NULL DEFAULT '',
		district TEXT NOT NULL DEFAULT '',
		neighborhood TEXT NOT NULL DEFAULT '',
		distance_km REAL,
		nearest_station TEXT NOT NULL DEFAULT '',
		station_lines TEXT NOT NULL DEFAULT '[]',
		excluded_dates_text TEXT NOT NULL DEFAULT '',
		updated_at TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE INDEX IF NOT EXISTS idx_events_start_time ON events(start_time)`,
	`CREATE INDEX IF NOT EXISTS idx_events_end_time ON events(end_time)`,

	`CREATE VIRTUAL TABLE IF NOT EXISTS events_fts USING fts4(
		title, description, district, neighborhood, venue_name, organization_name,
		tokenize=unicode61 "remove_diacritics=1"
	)`,
	`CREATE TRIGGER IF NOT EXISTS events_fts_insert AFTER INSERT ON events BEGIN
		INSERT INTO events_fts(docid, title, description, district, neighborhood, venue_name, organization_name)
		VALUES (new.rowid, new.title, new.description, new.district, new.neighborhood, new.venue_name, new.organization_name);
	END`,
	`CREATE TRIGGER IF NOT EXISTS events_fts_update
	AFTER UPDATE OF title, description, district, neighborhood, venue_name, organization_name ON events BEGIN
		DELETE FROM events_fts WHERE docid = old.rowid;
		INSERT INTO events_fts(docid, title, description, district, neighborhood, venue_name, organization_name)
		VALUES (new.rowid, new.title, new.description, new.district, new.neighborhood, new.venue_name, new.organization_name);
	END`,
	`CREATE TRIGGER IF NOT EXISTS events_fts_delete AFTER DELETE ON events BEGIN
		DELETE FROM events_fts WHERE docid = old.rowid;
	END`,
}

const eventColumns = `id, source, title, description, is_free, price_text, start_time, end_time,
	schedule_text, audience_tags, venue_name, locality, postal_code, street_address,
	latitude, longitude, organization_name, detail_link, image_url, district, neighborhood,
	distance_km, nearest_station, station_lines, excluded_dates_text, updated_at`

const upsertEvent = `INSERT INTO events (` + eventColumns + `)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
	source = excluded.source,
	title = excluded.title,
	description = excluded.description,
	is_free = excluded.is_free,
	price_text = excluded.price_text,
	start_time = excluded.start_time,
	end_time = excluded.end_time,
	schedule_text = excluded.schedule_text,
	audience_tags = excluded.audience_tags,
	venue_name = excluded.venue_name,
	locality = COALESCE(NULLIF(excluded.locality, ''), events.locality),
	postal_code = excluded.postal_code,
	street_address = COALESCE(NULLIF(excluded.street_address, ''), events.street_address),
	latitude = excluded.latitude,
	longitude = excluded.longitude,
	organization_name = excluded.organization_name,
	detail_link = excluded.detail_link,
	image_url = COALESCE(NULLIF(excluded.image_url, ''), events.image_url),
	district = COALESCE(NULLIF(excluded.district, ''), events.district),
	neighborhood = COALESCE(NULLIF(excluded.neighborhood, ''), events.neighborhood),
	distance_km = excluded.distance_km,
	nearest_station = COALESCE(NULLIF(excluded.nearest_station, ''), events.nearest_station),
	station_lines = CASE WHEN excluded.nearest_station <> '' THEN excluded.station_lines ELSE events.station_lines END,
	excluded_dates_text = excluded.excluded_dates_text,
	updated_at = excluded.updated_at`

const updateLocation = `UPDATE events SET
	district = CASE WHEN district = '' THEN ? ELSE district END,
	neighborhood = CASE WHEN neighborhood = '' THEN ? ELSE neighborhood END,
	street_address = CASE WHEN street_address = '' THEN ? ELSE street_address END,
	locality = CASE WHEN locality = '' THEN ? ELSE locality END,
	updated_at = ?
WHERE id = ?`

const updateTransit = `UPDATE events SET
	station_lines = CASE WHEN nearest_station = '' THEN ? ELSE station_lines END,
	nearest_station = CASE WHEN nearest_station = '' THEN ? ELSE nearest_station END,
	updated_at = ?
WHERE id = ?`

const updateImage = `UPDATE events SET
	image_url = CASE WHEN image_url = '' THEN ? ELSE image_url END,
	updated_at = ?
WHERE id = ?`
