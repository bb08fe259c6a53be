// Package cache fingerprints compile inputs.
//
// A preview session recompiles only when the fingerprint of its input
// changes. Fingerprints are in-process values and are never persisted.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/matzehuels/pipo/pkg/vfs"
)

// Key hashes parts as JSON and returns prefix:hash.
func Key(prefix string, parts ...any) string {
	data, _ := json.Marshal(parts)
	hash := sha256.Sum256(data)
	return fmt.Sprintf("%s:%s", prefix, hex.EncodeToString(hash[:]))
}

// Hash computes a SHA-256 hash of the input data.
// Returns the full 64-character hex string.
func Hash(data []byte) string {
	hash := sha256.Sum256(data)
	return hex.EncodeToString(hash[:])
}

// Fingerprint identifies one compile input. File order is significant
// because it decides the processing order of unrelated files; dependency
// order is not.
func Fingerprint(files *vfs.FileSet, deps map[string]string, entry, backend string) string {
	var pairs [][2]string
	if files != nil {
		pairs = make([][2]string, 0, files.Len())
		for _, p := range files.Paths() {
			src, _ := files.Get(p)
			pairs = append(pairs, [2]string{p, src})
		}
	}
	return Key("input", pairs, deps, entry, backend)
}
