// Package npm provides an HTTP client for the npm registry API.
//
// # Overview
//
// The preview only needs npm to turn a dist-tag such as "latest" into a
// concrete version before building CDN URLs. Package contents are never
// downloaded: modules load from the CDN.
//
// # Usage
//
//	client := npm.NewClient(10 * time.Minute)
//	v, err := client.ResolveVersion(ctx, "react", "latest")
//	// v == "18.3.1"
//
// # Version Selection
//
// [Client.ResolveVersion] accepts an empty tag (meaning "latest"), any
// dist-tag, or an exact published version. Semver ranges are not resolved.
package npm
