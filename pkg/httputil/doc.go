// Package httputil provides HTTP utilities for the registry and style sheet
// clients.
//
// # Overview
//
//   - [Cache]: in-memory response caching with a TTL
//   - [Retry]: automatic retry with exponential backoff
//
// # Caching
//
// [Cache] keeps JSON-encoded values in process memory. Entries expire after
// the configured TTL and nothing is written to disk, so a new process always
// starts cold:
//
//	cache := httputil.NewCache(10 * time.Minute)
//	npm := cache.Namespace("npm:")
//	if ok, _ := npm.Get("react", &info); !ok {
//	    info = fetch()
//	    npm.Set("react", info)
//	}
//
// # Retry
//
// [Retry] re-runs an operation while it fails with a [RetryableError]:
//
//	err := httputil.Retry(ctx, httputil.DefaultPolicy, func() error {
//	    return fetch(ctx)
//	})
//
// Wrap network failures, 5xx responses and 429 responses with [Retryable];
// any other error stops the loop immediately.
package httputil
