// Package cache provides the look-aside cache for stock prices and metrics.
//
// Entries live in the shared store under "price:<ticker>" and
// "metrics:<ticker>" and expire after their per-kind TTL. The cache is an
// optimization only:
//
//   - a store error on read is a miss
//   - a store error on write is logged and dropped
//   - entries are never deleted individually, only by ResetAll
//
// # Basic Usage
//
//	s := store.NewRedisStore(redisClient)
//	c := cache.NewManager(s, cache.DefaultTTLConfig(), logger)
//
//	if v, ok := c.GetCachePrice(ctx, "RELIANCE.NS"); ok {
//		return v.Price
//	}
//	// fetch upstream ...
//	c.CachePrice(ctx, "RELIANCE.NS", 2501.35)
//
// # Metrics
//
//   - quotegate_cache_hits_total{kind} - Cache hits
//   - quotegate_cache_misses_total{kind} - Cache misses
//   - quotegate_cache_written_bytes_total{kind} - Serialized bytes written
//   - quotegate_cache_errors_total{operation} - Cache operation errors
package cache
