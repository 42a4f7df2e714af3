package cache

import (
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"event-enricher/internal/common/errors"
)

type Type string

const (
	TypeLocal   Type = "local"
	TypeRedis   Type = "redis"
	TypeTwoTier Type = "two_tier"
)

// Key prefixes shared by the pipeline. Everything under EventsPrefix is
// invalidated whenever stored events change.
const (
	EventsPrefix  = "events:"
	SearchPrefix  = EventsPrefix + "search:"
	TransitPrefix = "transit:"
	ImagePrefix   = "image:"
)

type Config struct {
	Type            Type
	// TTL applies to Set calls without an explicit ttl and to the L1 tier
	TTL             time.Duration
	CleanupInterval time.Duration
	// KeyPrefix namespaces redis keys so several deployments can share a server
	KeyPrefix       string
	RedisClient     *redis.Client
}

func DefaultConfig() Config {
	return Config{
		Type:            TypeLocal,
		TTL:             10 * time.Minute,
		CleanupInterval: 20 * time.Minute,
		KeyPrefix:       "enricher:",
	}
}

// Resolve returns the backend New will build. Redis-backed types degrade to
// TypeLocal when no client is configured.
func (c Config) Resolve() Type {
	switch c.Type {
	case "":
		return TypeLocal
	case TypeRedis, TypeTwoTier:
		if c.RedisClient == nil {
			return TypeLocal
		}
	}
	return c.Type
}

// New builds the configured backend. Unlike Resolve it refuses a redis type
// without a client.
func New(config Config) (Cache, error) {
	switch config.Type {
	case TypeLocal, "":
		return NewLocalCache(config.TTL, config.CleanupInterval), nil
	case TypeRedis, TypeTwoTier:
		if config.RedisClient == nil {
			return nil, errors.ConfigError(fmt.Sprintf("cache type %s needs a redis client", config.Type))
		}
		if config.Type == TypeRedis {
			return NewRedisCache(config.RedisClient, config.KeyPrefix), nil
		}
		return NewTwoTierCache(config.TTL, config.CleanupInterval, config.RedisClient, config.KeyPrefix), nil
	default:
		return nil, errors.ConfigError(fmt.Sprintf("unknown cache type: %s", config.Type))
	}
}
