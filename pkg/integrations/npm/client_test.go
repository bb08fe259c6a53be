package npm

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const reactDoc = `{
  "name": "react",
  "dist-tags": {"latest": "18.3.1", "next": "19.0.0-rc"},
  "versions": {"18.2.0": {}, "18.3.1": {}, "19.0.0-rc": {}}
}`

func newTestClient(t *testing.T) (*Client, *atomic.Int32) {
	t.Helper()
	hits := new(atomic.Int32)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		switch r.URL.EscapedPath() {
		case "/react":
			w.Write([]byte(reactDoc))
		case "/@scope%2Fpkg":
			w.Write([]byte(`{"name":"@scope/pkg","dist-tags":{"latest":"1.0.0"},"versions":{"1.0.0":{}}}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(server.Close)

	c := NewClientWithRegistry(server.URL+"/", time.Hour)
	c.SetHTTPClient(server.Client())
	return c, hits
}

func TestResolveVersion(t *testing.T) {
	c, hits := newTestClient(t)
	ctx := context.Background()

	tests := []struct {
		pkg, tag, want string
	}{
		{"react", "", "18.3.1"},
		{"react", "latest", "18.3.1"},
		{"react", "next", "19.0.0-rc"},
		{"react", "18.2.0", "18.2.0"},
		{"@scope/pkg", "latest", "1.0.0"},
	}
	for _, tt := range tests {
		got, err := c.ResolveVersion(ctx, tt.pkg, tt.tag)
		require.NoError(t, err, "%s@%s", tt.pkg, tt.tag)
		assert.Equal(t, tt.want, got, "%s@%s", tt.pkg, tt.tag)
	}
	assert.EqualValues(t, 2, hits.Load(), "one registry hit per package")
}

func TestResolveVersionErrors(t *testing.T) {
	c, _ := newTestClient(t)
	ctx := context.Background()

	_, err := c.ResolveVersion(ctx, "react", "^18")
	assert.ErrorIs(t, err, ErrUnknownVersion, "ranges do not resolve")

	_, err = c.FetchPackage(ctx, "missing-pkg", false)
	assert.Error(t, err)
}

func TestFetchPackage(t *testing.T) {
	c, _ := newTestClient(t)
	info, err := c.FetchPackage(context.Background(), " React ", false)
	require.NoError(t, err)
	assert.Equal(t, "react", info.Name)
	assert.Equal(t, "18.3.1", info.Latest)
	require.Len(t, info.Versions, 3)
	assert.Equal(t, "18.2.0", info.Versions[0])
}
