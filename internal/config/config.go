// Package config provides configuration management for the event enricher.
// It loads configuration from environment variables with sensible defaults
// and validates it so the process starts in a known-good state.
//
// Environment Variables:
//
// Application Settings:
//   - PORT: HTTP status server port (default: 8080)
//   - LOG_LEVEL: Logging level (default: info)
//   - LOG_FORMAT: "console" or "json" (default: console)
//   - LOG_FILE: Optional log file; stdout when unset
//
// Database Configuration:
//   - DATABASE_TYPE: "sqlite" or "postgres" (default: sqlite)
//   - DATABASE_PATH: SQLite database file path (default: ./events.db)
//   - POSTGRES_HOST, POSTGRES_PORT (5432), POSTGRES_DB, POSTGRES_USER,
//     POSTGRES_PASSWORD, POSTGRES_SSL_MODE (disable)
//
// Redis and Cache:
//   - REDIS_ADDRESS: Redis server address; empty disables Redis
//   - REDIS_PASSWORD, REDIS_DB (0), REDIS_POOL_SIZE (10)
//   - CACHE_TYPE: "local", "redis" or "two_tier" (default: local)
//   - CACHE_TTL: Listing/search cache TTL (default: 10m)
//
// Feeds:
//   - JSON_FEED_URL, XML_FEED_URL: catalog endpoints
//   - FEED_TIMEZONE: zone of feed-local timestamps (default: Europe/Madrid)
//   - FEED_TIMEOUT: per-request timeout for feed downloads (default: 60s)
//
// Refresh:
//   - REFRESH_SCHEDULE: cron spec for full refresh (default: @every 6h)
//   - CLEANUP_SCHEDULE: cron spec for past-event deletion (default: 0 3 * * *)
//   - REFRESH_ON_START: run a refresh at startup (default: true)
//   - REFRESH_TIMEOUT: safety deadline of a cycle (default: 30m)
//   - REFRESH_BATCH_SIZE: events processed concurrently (default: 5)
//   - DISTANCE_BATCH_SIZE: bulk write size for distance updates (default: 500)
//   - REFERENCE_LAT, REFERENCE_LON: initial reference coordinate
//
// Enrichment Providers:
//   - GEOCODER_URL: reverse geocoding endpoint (default: Nominatim)
//   - GEOCODER_USER_AGENT: identification sent to providers, must include a contact
//   - TRANSIT_URL: Overpass API endpoint
//   - TRANSIT_RADIUS_M: station search radius in meters (default: 1000)
//   - TRANSIT_OPERATOR: operator name filter (default: Metro de Madrid)
//   - TRANSIT_LINES_FILE: optional JSON file overriding the bundled line table
//   - SCRAPER_SELECTOR: CSS selector of the detail page image
//   - SCRAPER_BASE_URL: origin used to absolutize relative image URLs
//   - IMAGE_NOT_FOUND_URL: sentinel stored when no image is found
//
// Enrichment Queues:
//   - QUEUE_MAX_LENGTH (1000), QUEUE_MAX_RETRIES (3), QUEUE_IDLE_INTERVAL (5s)
//   - LOCATION_DELAY (1100ms), TRANSIT_DELAY (2s), IMAGE_DELAY (1s)
//   - LOCATION_COOLDOWN: circuit breaker window after a refused connection (default: 5m)
//
// Example usage:
//
//	cfg := config.Load()
//	if err := cfg.Validate(); err != nil {
//		log.Fatalf("Invalid configuration: %v", err)
//	}
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// Config holds all configuration values for the event enricher.
type Config struct {
	// Application settings
	Port     string
	LogLevel string
	LogFile  string

	// Database settings
	DatabaseType     string
	DatabasePath     string
	PostgresHost     string
	PostgresPort     string
	PostgresDB       string
	PostgresUser     string
	PostgresPassword string
	PostgresSSLMode  string

	// Redis and cache settings
	RedisAddress  string
	RedisPassword string
	RedisDB       int
	RedisPoolSize int
	CacheType     string
	CacheTTL      time.Duration

	// Feed settings
	JSONFeedURL  string
	XMLFeedURL   string
	FeedTimezone string
	FeedTimeout  time.Duration

	// Refresh settings
	RefreshSchedule   string
	CleanupSchedule   string
	RefreshOnStart    bool
	RefreshTimeout    time.Duration
	RefreshBatchSize  int
	DistanceBatchSize int
	ReferenceLat      float64
	ReferenceLon      float64

	// Provider settings
	GeocoderURL      string
	UserAgent        string
	TransitURL       string
	TransitRadiusM   int
	TransitOperator  string
	TransitLinesFile string
	ScraperSelector  string
	ScraperBaseURL   string
	ImageNotFoundURL string
	ProviderTimeout  time.Duration

	// Queue settings
	QueueMaxLength    int
	QueueMaxRetries   int
	QueueIdleInterval time.Duration
	LocationDelay     time.Duration
	TransitDelay      time.Duration
	ImageDelay        time.Duration
	LocationCooldown  time.Duration

	// parse problems collected by Load and reported by Validate
	invalid []string
}

// Load reads configuration from environment variables, applying defaults for
// anything unset. Malformed numeric or duration values are reported by Validate.
func Load() *Config {
	c := &Config{}

	c.Port = getEnv("PORT", "8080")
	c.LogLevel = getEnv("LOG_LEVEL", "info")
	c.LogFile = getEnv("LOG_FILE", "")

	c.DatabaseType = strings.ToLower(getEnv("DATABASE_TYPE", "sqlite"))
	c.DatabasePath = getEnv("DATABASE_PATH", "./events.db")
	c.PostgresHost = getEnv("POSTGRES_HOST", "")
	c.PostgresPort = getEnv("POSTGRES_PORT", "5432")
	c.PostgresDB = getEnv("POSTGRES_DB", "")
	c.PostgresUser = getEnv("POSTGRES_USER", "")
	c.PostgresPassword = getEnv("POSTGRES_PASSWORD", "")
	c.PostgresSSLMode = getEnv("POSTGRES_SSL_MODE", "disable")

	c.RedisAddress = getEnv("REDIS_ADDRESS", "")
	c.RedisPassword = getEnv("REDIS_PASSWORD", "")
	c.RedisDB = c.getIntEnv("REDIS_DB", 0)
	c.RedisPoolSize = c.getIntEnv("REDIS_POOL_SIZE", 10)
	c.CacheType = strings.ToLower(getEnv("CACHE_TYPE", "local"))
	c.CacheTTL = c.getDurationEnv("CACHE_TTL", 10*time.Minute)

	c.JSONFeedURL = getEnv("JSON_FEED_URL", "https://datos.madrid.es/egob/catalogo/206974-0-agenda-eventos-culturales-100.json")
	c.XMLFeedURL = getEnv("XML_FEED_URL", "https://www.esmadrid.com/opendata/agenda_v1_es.xml")
	c.FeedTimezone = getEnv("FEED_TIMEZONE", "Europe/Madrid")
	c.FeedTimeout = c.getDurationEnv("FEED_TIMEOUT", 60*time.Second)

	c.RefreshSchedule = getEnv("REFRESH_SCHEDULE", "@every 6h")
	c.CleanupSchedule = getEnv("CLEANUP_SCHEDULE", "0 3 * * *")
	c.RefreshOnStart = getBoolEnv("REFRESH_ON_START", true)
	c.RefreshTimeout = c.getDurationEnv("REFRESH_TIMEOUT", 30*time.Minute)
	c.RefreshBatchSize = c.getIntEnv("REFRESH_BATCH_SIZE", 5)
	c.DistanceBatchSize = c.getIntEnv("DISTANCE_BATCH_SIZE", 500)
	c.ReferenceLat = c.getFloatEnv("REFERENCE_LAT", 40.4169)
	c.ReferenceLon = c.getFloatEnv("REFERENCE_LON", -3.7035)

	c.GeocoderURL = getEnv("GEOCODER_URL", "https://nominatim.openstreetmap.org/reverse")
	c.UserAgent = getEnv("GEOCODER_USER_AGENT", "")
	c.TransitURL = getEnv("TRANSIT_URL", "https://overpass-api.de/api/interpreter")
	c.TransitRadiusM = c.getIntEnv("TRANSIT_RADIUS_M", 1000)
	c.TransitOperator = getEnv("TRANSIT_OPERATOR", "Metro de Madrid")
	c.TransitLinesFile = getEnv("TRANSIT_LINES_FILE", "")
	c.ScraperSelector = getEnv("SCRAPER_SELECTOR", ".image-content img")
	c.ScraperBaseURL = getEnv("SCRAPER_BASE_URL", "https://www.madrid.es")
	c.ImageNotFoundURL = getEnv("IMAGE_NOT_FOUND_URL", "")
	c.ProviderTimeout = c.getDurationEnv("PROVIDER_TIMEOUT", 20*time.Second)

	c.QueueMaxLength = c.getIntEnv("QUEUE_MAX_LENGTH", 1000)
	c.QueueMaxRetries = c.getIntEnv("QUEUE_MAX_RETRIES", 3)
	c.QueueIdleInterval = c.getDurationEnv("QUEUE_IDLE_INTERVAL", 5*time.Second)
	c.LocationDelay = c.getDurationEnv("LOCATION_DELAY", 1100*time.Millisecond)
	c.TransitDelay = c.getDurationEnv("TRANSIT_DELAY", 2*time.Second)
	c.ImageDelay = c.getDurationEnv("IMAGE_DELAY", time.Second)
	c.LocationCooldown = c.getDurationEnv("LOCATION_COOLDOWN", 5*time.Minute)

	return c
}

// getEnv retrieves an environment variable value or returns a default value
// when it is unset or empty.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getBoolEnv accepts the representations understood by strconv.ParseBool.
// Anything else yields defaultValue.
func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func (c *Config) getIntEnv(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		c.invalid = append(c.invalid, fmt.Sprintf("%s must be an integer, got %q", key, value))
		return defaultValue
	}
	return parsed
}

func (c *Config) getFloatEnv(key string, defaultValue float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		c.invalid = append(c.invalid, fmt.Sprintf("%s must be a number, got %q", key, value))
		return defaultValue
	}
	return parsed
}

func (c *Config) getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil {
		c.invalid = append(c.invalid, fmt.Sprintf("%s must be a valid duration (e.g. '5s', '1m'), got %q", key, value))
		return defaultValue
	}
	return parsed
}

// Location returns the feed time zone, falling back to UTC
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.FeedTimezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Validate checks required fields, value ranges and cross-field dependencies.
// It should be called after Load and before any component is built.
func (c *Config) Validate() error {
	if len(c.invalid) > 0 {
		return fmt.Errorf("%s", c.invalid[0])
	}

	if port, err := strconv.Atoi(c.Port); err != nil || port < 1 || port > 65535 {
		return fmt.Errorf("PORT must be a valid port number between 1 and 65535")
	}

	switch c.DatabaseType {
	case "sqlite":
		if c.DatabasePath == "" {
			return fmt.Errorf("DATABASE_PATH is required when using SQLite")
		}
	case "postgres", "postgresql":
		if c.PostgresHost == "" {
			return fmt.Errorf("POSTGRES_HOST is required when using PostgreSQL")
		}
		if c.PostgresDB == "" {
			return fmt.Errorf("POSTGRES_DB is required when using PostgreSQL")
		}
		if c.PostgresUser == "" {
			return fmt.Errorf("POSTGRES_USER is required when using PostgreSQL")
		}
		if port, err := strconv.Atoi(c.PostgresPort); err != nil || port < 1 || port > 65535 {
			return fmt.Errorf("POSTGRES_PORT must be a valid port number")
		}
	default:
		return fmt.Errorf("DATABASE_TYPE must be 'sqlite' or 'postgres'")
	}

	switch c.CacheType {
	case "local":
	case "redis", "two_tier":
		if c.RedisAddress == "" {
			return fmt.Errorf("REDIS_ADDRESS is required when CACHE_TYPE is %s", c.CacheType)
		}
	default:
		return fmt.Errorf("CACHE_TYPE must be 'local', 'redis' or 'two_tier'")
	}

	if c.RedisAddress != "" {
		if c.RedisDB < 0 || c.RedisDB > 15 {
			return fmt.Errorf("REDIS_DB must be a number between 0 and 15")
		}
		if c.RedisPoolSize < 1 {
			return fmt.Errorf("REDIS_POOL_SIZE must be a positive number")
		}
	}

	if c.JSONFeedURL == "" && c.XMLFeedURL == "" {
		return fmt.Errorf("at least one of JSON_FEED_URL or XML_FEED_URL is required")
	}
	if _, err := time.LoadLocation(c.FeedTimezone); err != nil {
		return fmt.Errorf("FEED_TIMEZONE is not a known time zone: %s", c.FeedTimezone)
	}

	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	if c.RefreshSchedule != "" {
		if _, err := parser.Parse(c.RefreshSchedule); err != nil {
			return fmt.Errorf("REFRESH_SCHEDULE is not a valid cron expression: %w", err)
		}
	}
	if c.CleanupSchedule != "" {
		if _, err := parser.Parse(c.CleanupSchedule); err != nil {
			return fmt.Errorf("CLEANUP_SCHEDULE is not a valid cron expression: %w", err)
		}
	}

	if c.RefreshTimeout <= 0 {
		return fmt.Errorf("REFRESH_TIMEOUT must be positive")
	}
	if c.RefreshBatchSize < 1 {
		return fmt.Errorf("REFRESH_BATCH_SIZE must be a positive number")
	}
	if c.DistanceBatchSize < 1 {
		return fmt.Errorf("DISTANCE_BATCH_SIZE must be a positive number")
	}
	if c.ReferenceLat < -90 || c.ReferenceLat > 90 || c.ReferenceLon < -180 || c.ReferenceLon > 180 {
		return fmt.Errorf("REFERENCE_LAT/REFERENCE_LON must be a valid coordinate")
	}

	if c.UserAgent == "" {
		return fmt.Errorf("GEOCODER_USER_AGENT is required and should include a contact (e.g. 'app/1.0 (ops@example.org)')")
	}
	if c.TransitRadiusM < 1 {
		return fmt.Errorf("TRANSIT_RADIUS_M must be a positive number")
	}
	if c.ScraperSelector == "" {
		return fmt.Errorf("SCRAPER_SELECTOR is required")
	}

	if c.QueueMaxLength < 1 {
		return fmt.Errorf("QUEUE_MAX_LENGTH must be a positive number")
	}
	if c.QueueMaxRetries < 0 {
		return fmt.Errorf("QUEUE_MAX_RETRIES must not be negative")
	}
	if c.QueueIdleInterval <= 0 {
		return fmt.Errorf("QUEUE_IDLE_INTERVAL must be positive")
	}
	if c.LocationDelay < 0 || c.TransitDelay < 0 || c.ImageDelay < 0 {
		return fmt.Errorf("queue delays must not be negative")
	}
	if c.LocationCooldown <= 0 {
		return fmt.Errorf("LOCATION_COOLDOWN must be positive")
	}

	return nil
}
