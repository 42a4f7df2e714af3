// Package redis owns the shared go-redis connection used by the cache and the
// refresh lock.
package redis

import (
	"context"
	"time"

	"github.com/go-redis/redis/v8"

	"event-enricher/internal/common/errors"
)

const pingTimeout = 5 * time.Second

type Config struct {
	Address     string
	Password    string
	DB          int
	PoolSize    int
	// DialTimeout also bounds the startup ping
	DialTimeout time.Duration
}

func (c *Config) withDefaults() Config {
	out := *c
	if out.Address == "" {
		out.Address = "localhost:6379"
	}
	if out.PoolSize <= 0 {
		out.PoolSize = 10
	}
	if out.DialTimeout <= 0 {
		out.DialTimeout = pingTimeout
	}
	return out
}

type Client struct {
	rdb    *redis.Client
	config Config
}

// NewClient connects and pings. A failed ping is returned as a connection
// error so the caller can fall back to local-only operation.
func NewClient(ctx context.Context, config *Config) (*Client, error) {
	if config == nil {
		return nil, errors.ConfigError("redis config is required")
	}
	cfg := config.withDefaults()

	rdb := redis.NewClient(&redis.Options{
		Addr:         cfg.Address,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		MaxRetries:   1,
	})

	pingCtx, cancel := context.WithTimeout(ctx, cfg.DialTimeout)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		rdb.Close()
		return nil, errors.ConnectionError("failed to connect to Redis at "+cfg.Address, err)
	}

	return &Client{rdb: rdb, config: cfg}, nil
}

func (c *Client) Close() error {
	return c.rdb.Close()
}

func (c *Client) Health(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := c.rdb.Ping(ctx).Err(); err != nil {
		return errors.ConnectionError("redis ping failed", err)
	}
	return nil
}

// GoRedis exposes the underlying client for the cache and redsync pool
func (c *Client) GoRedis() *redis.Client {
	return c.rdb
}

func (c *Client) Address() string {
	return c.config.Address
}

// PoolStats reports connection pool usage
func (c *Client) PoolStats() *redis.PoolStats {
	return c.rdb.PoolStats()
}
