// Package cache provides the byte-oriented cache used to memoize listing,
// search and enrichment lookups.
//
// Backends:
//   - LocalCache: github.com/patrickmn/go-cache, per process
//   - RedisCache: github.com/go-redis/redis/v8, shared across instances
//   - TwoTierCache: local L1 in front of Redis L2
//
// Invalidation is substring based:
//
//	c.ClearByPattern(ctx, cache.EventsPrefix)
//
// removes every listing and search entry while leaving transit and image
// memoization intact.
package cache
