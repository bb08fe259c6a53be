// Package integrations provides HTTP clients for the remote resources a
// preview depends on.
//
// # Overview
//
//   - [Client]: shared GET helpers with caching and retry
//   - [npm]: npm registry lookups used to pin dist-tags to versions
//
// Remote style sheets referenced by a project are fetched with
// [Client.CachedText].
//
// # Client Pattern
//
//	client := npm.NewClient(10 * time.Minute)  // cache TTL
//	info, err := client.FetchPackage(ctx, "react", false)  // false = use cache
//
// Responses are cached in memory only. Nothing outlives the process.
//
// [npm]: github.com/matzehuels/pipo/pkg/integrations/npm
package integrations
