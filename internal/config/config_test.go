package config

import (
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var managedVars = []string{
	"PORT", "LOG_LEVEL", "LOG_FILE",
	"DATABASE_TYPE", "DATABASE_PATH", "POSTGRES_HOST", "POSTGRES_PORT", "POSTGRES_DB", "POSTGRES_USER",
	"REDIS_ADDRESS", "REDIS_DB", "REDIS_POOL_SIZE", "CACHE_TYPE", "CACHE_TTL",
	"JSON_FEED_URL", "XML_FEED_URL", "FEED_TIMEZONE", "FEED_TIMEOUT",
	"REFRESH_SCHEDULE", "CLEANUP_SCHEDULE", "REFRESH_ON_START", "REFRESH_TIMEOUT",
	"REFRESH_BATCH_SIZE", "DISTANCE_BATCH_SIZE", "REFERENCE_LAT", "REFERENCE_LON",
	"GEOCODER_URL", "GEOCODER_USER_AGENT", "TRANSIT_URL", "TRANSIT_RADIUS_M", "TRANSIT_OPERATOR",
	"SCRAPER_SELECTOR", "SCRAPER_BASE_URL", "IMAGE_NOT_FOUND_URL",
	"QUEUE_MAX_LENGTH", "QUEUE_MAX_RETRIES", "QUEUE_IDLE_INTERVAL",
	"LOCATION_DELAY", "TRANSIT_DELAY", "IMAGE_DELAY", "LOCATION_COOLDOWN",
}

// clearTestEnvVars unsets every variable Load reads, restoring them after the test
func clearTestEnvVars(t *testing.T) {
	t.Helper()
	for _, key := range managedVars {
		if value, ok := os.LookupEnv(key); ok {
			os.Unsetenv(key)
			t.Cleanup(func() { os.Setenv(key, value) })
		}
	}
}

func validEnv(t *testing.T) {
	clearTestEnvVars(t)
	t.Setenv("GEOCODER_USER_AGENT", "event-enricher/1.0 (ops@example.org)")
}

func TestLoad_Defaults(t *testing.T) {
	clearTestEnvVars(t)

	cfg := Load()

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "sqlite", cfg.DatabaseType)
	assert.Equal(t, "./events.db", cfg.DatabasePath)
	assert.Equal(t, "local", cfg.CacheType)
	assert.Equal(t, "Europe/Madrid", cfg.FeedTimezone)
	assert.Equal(t, "@every 6h", cfg.RefreshSchedule)
	assert.True(t, cfg.RefreshOnStart)
	assert.Equal(t, 30*time.Minute, cfg.RefreshTimeout)
	assert.Equal(t, 5, cfg.RefreshBatchSize)
	assert.Equal(t, 500, cfg.DistanceBatchSize)
	assert.Equal(t, 1000, cfg.TransitRadiusM)
	assert.Equal(t, 1000, cfg.QueueMaxLength)
	assert.Equal(t, 3, cfg.QueueMaxRetries)
	assert.Equal(t, 5*time.Minute, cfg.LocationCooldown)
	assert.InDelta(t, 40.4169, cfg.ReferenceLat, 1e-9)
}

func TestLoad_Overrides(t *testing.T) {
	clearTestEnvVars(t)
	t.Setenv("DATABASE_TYPE", "Postgres")
	t.Setenv("QUEUE_MAX_LENGTH", "50")
	t.Setenv("LOCATION_DELAY", "250ms")
	t.Setenv("REFERENCE_LAT", "41.38")
	t.Setenv("REFRESH_ON_START", "false")

	cfg := Load()

	assert.Equal(t, "postgres", cfg.DatabaseType)
	assert.Equal(t, 50, cfg.QueueMaxLength)
	assert.Equal(t, 250*time.Millisecond, cfg.LocationDelay)
	assert.InDelta(t, 41.38, cfg.ReferenceLat, 1e-9)
	assert.False(t, cfg.RefreshOnStart)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		wantErr string
	}{
		{name: "defaults with user agent", env: nil},
		{name: "missing user agent", env: map[string]string{"GEOCODER_USER_AGENT": ""}, wantErr: "GEOCODER_USER_AGENT"},
		{name: "bad port", env: map[string]string{"PORT": "70000"}, wantErr: "PORT"},
		{name: "bad database type", env: map[string]string{"DATABASE_TYPE": "mongo"}, wantErr: "DATABASE_TYPE"},
		{name: "postgres needs host", env: map[string]string{"DATABASE_TYPE": "postgres"}, wantErr: "POSTGRES_HOST"},
		{name: "redis cache needs address", env: map[string]string{"CACHE_TYPE": "redis"}, wantErr: "REDIS_ADDRESS"},
		{name: "malformed integer", env: map[string]string{"QUEUE_MAX_LENGTH": "lots"}, wantErr: "QUEUE_MAX_LENGTH"},
		{name: "malformed duration", env: map[string]string{"IMAGE_DELAY": "soon"}, wantErr: "IMAGE_DELAY"},
		{name: "zero batch size", env: map[string]string{"REFRESH_BATCH_SIZE": "0"}, wantErr: "REFRESH_BATCH_SIZE"},
		{name: "bad cron", env: map[string]string{"REFRESH_SCHEDULE": "every day"}, wantErr: "REFRESH_SCHEDULE"},
		{name: "bad time zone", env: map[string]string{"FEED_TIMEZONE": "Mars/Olympus"}, wantErr: "FEED_TIMEZONE"},
		{name: "reference out of range", env: map[string]string{"REFERENCE_LAT": "120"}, wantErr: "REFERENCE_LAT"},
		{
			name: "postgres complete",
			env: map[string]string{
				"DATABASE_TYPE": "postgres",
				"POSTGRES_HOST": "db",
				"POSTGRES_DB":   "events",
				"POSTGRES_USER": "enricher",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			validEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			err := Load().Validate()
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, strings.Contains(err.Error(), tt.wantErr), err.Error())
		})
	}
}

func TestLocation(t *testing.T) {
	cfg := &Config{FeedTimezone: "Europe/Madrid"}
	assert.Equal(t, "Europe/Madrid", cfg.Location().String())

	cfg.FeedTimezone = "Nowhere/Land"
	assert.Equal(t, time.UTC, cfg.Location())
}
