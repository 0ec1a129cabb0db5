// Package cache provides request deduplication and response snapshot
// storage for the restroom map API client.
//
// The package has two parts:
//
//   - Dedup collapses concurrent identical requests into one in-flight call
//     whose result is shared by every caller until a TTL expires.
//   - Store keeps the last good response per request key, in memory (LRU)
//     or in Redis, so a failed list read can fall back to it.
//
// # Request keys
//
// A RequestKey describes an outgoing request. KeyPolicy decides whether a
// key bypasses deduplication (filtered queries) and normalizes it, replacing
// the time-bucket query parameter with a placeholder:
//
//	policy := cache.DefaultKeyPolicy()
//	key := cache.RequestKey{
//	    Method: http.MethodGet,
//	    Path:   "/bathrooms",
//	    Query:  url.Values{"latitude": {"52.52"}, "_t": {"58221"}},
//	    Issued: time.Now(),
//	}
//	policy.Normalize(key) // GET|/bathrooms|_t=TIMESTAMP&latitude=52.52|w<window>
//
// # Deduplication
//
//	d := cache.NewDedup(cache.DefaultKeyPolicy())
//	defer d.Close()
//
//	list, err := cache.Execute(ctx, d, key, 30*time.Second, fetch)
//
// # Thread Safety
//
// Dedup and all Store implementations are safe for concurrent use.
package cache
