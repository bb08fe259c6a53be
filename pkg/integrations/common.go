package integrations

import (
	"errors"
	"net/http"
	"time"

	"github.com/matzehuels/pipo/pkg/httputil"
)

const httpTimeout = 10 * time.Second

var (
	// ErrNotFound is returned when a package or resource doesn't exist.
	ErrNotFound = errors.New("resource not found")

	// ErrNetwork is returned for HTTP failures (timeouts, connection errors, 5xx responses).
	ErrNetwork = errors.New("network error")
)

// NewHTTPClient creates an HTTP client with a standard timeout.
func NewHTTPClient() *http.Client {
	return &http.Client{Timeout: httpTimeout}
}

// NewCache creates an in-memory response cache with the given TTL.
// See [httputil.NewCache].
func NewCache(ttl time.Duration) *httputil.Cache {
	return httputil.NewCache(ttl)
}
