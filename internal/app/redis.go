package app

import (
	"context"
	"fmt"

	"event-enricher/internal/common/cache"
	"event-enricher/internal/common/logging"
	"event-enricher/internal/locks"
	"event-enricher/internal/redis"
)

func (app *App) initializeRedis(ctx context.Context) error {
	if app.Config.RedisAddress == "" {
		app.Logger.Info("Redis: Not configured (local cache and locks)")
		return nil
	}

	redisClient, err := redis.NewClient(ctx, &redis.Config{
		Address:  app.Config.RedisAddress,
		Password: app.Config.RedisPassword,
		DB:       app.Config.RedisDB,
		PoolSize: app.Config.RedisPoolSize,
	})
	if err != nil {
		return err
	}

	app.RedisClient = redisClient
	app.Logger.Info("Redis: Connected", logging.String("address", app.Config.RedisAddress))
	return nil
}

func (app *App) initializeCache() error {
	cfg := cache.DefaultConfig()
	cfg.Type = cache.Type(app.Config.CacheType)
	if app.RedisClient != nil {
		cfg.RedisClient = app.RedisClient.GoRedis()
	}
	if app.Config.CacheTTL > 0 {
		cfg.TTL = app.Config.CacheTTL
		cfg.CleanupInterval = 2 * app.Config.CacheTTL
	}

	if resolved := cfg.Resolve(); resolved != cfg.Type {
		app.Logger.Warn("Cache type needs Redis, falling back to local cache",
			logging.String("cache_type", app.Config.CacheType))
		cfg.Type = resolved
	}

	c, err := cache.New(cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize cache: %w", err)
	}

	app.Cache = c
	app.Logger.Info("Cache: Ready", logging.String("type", string(cfg.Type)))
	return nil
}

func (app *App) initializeLocks() {
	if app.RedisClient != nil {
		locker, err := locks.NewRedsyncLocker(app.RedisClient)
		if err == nil {
			app.Locker = locker
			app.Logger.Info("Distributed Locks: Enabled")
			return
		}
		app.Logger.Warn("Distributed locks unavailable, using local lock", logging.Err(err))
	}
	app.Locker = locks.NewLocalLocker()
}
