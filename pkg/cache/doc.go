// Package cache provides an optional Redis-backed cache for API responses.
//
// Re-running a pull over the same accounts and date window issues the same
// requests. When a cache is configured, successful responses (status < 400)
// are stored under a deterministic key built from the endpoint, the sorted
// query parameters and a fingerprint of the access token, so two tokens never
// share an entry.
//
// # Basic Usage
//
//	redisClient := redis.NewClient(&redis.Options{
//		Addr: "localhost:6379",
//	})
//
//	manager := cache.NewManager(redisClient, 15*time.Minute)
//
//	key := cache.Key{
//		Endpoint: "https://api.linkedin.com/v2/adCampaignsV2",
//		Params:   map[string]string{"q": "search"},
//		Token:    cache.Fingerprint(accessToken),
//	}
//
//	entry, err := manager.Get(ctx, key)
//	if errors.Is(err, cache.ErrCacheMiss) {
//		// fetch from the API, then manager.Set(ctx, key, entry)
//	}
//
// # Metrics
//
//   - linkedin_cache_lookups_total{result="hit|absent|expired"}
//   - linkedin_cache_stored_bytes_total
//   - linkedin_cache_errors_total{operation="get|decode|set|delete"}
package cache
