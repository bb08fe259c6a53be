package integrations

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matzehuels/pipo/pkg/httputil"
	"github.com/matzehuels/pipo/pkg/observability"
)

func TestNewClientHeaders(t *testing.T) {
	client := NewClient(nil, map[string]string{"Authorization": "Bearer token"})
	assert.NotNil(t, client.http)
	assert.Equal(t, "Bearer token", client.headers["Authorization"])
	assert.NotEmpty(t, client.headers["User-Agent"])
}

func TestClientGet(t *testing.T) {
	type response struct {
		Message string `json:"message"`
	}
	var agent string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		agent = r.Header.Get("User-Agent")
		json.NewEncoder(w).Encode(response{Message: "hello"})
	}))
	defer server.Close()

	client := NewClient(nil, nil)
	client.SetHTTPClient(server.Client())

	var resp response
	require.NoError(t, client.Get(context.Background(), server.URL, &resp))
	assert.Equal(t, "hello", resp.Message)
	assert.NotEmpty(t, agent, "User-Agent header not sent")
}

type recordingHooks struct {
	observability.NoopHTTPHooks
	requests  int
	responses []int
}

func (h *recordingHooks) OnRequest(context.Context, string, string, string) { h.requests++ }
func (h *recordingHooks) OnResponse(_ context.Context, _, _, _ string, status int, _ time.Duration) {
	h.responses = append(h.responses, status)
}

func TestClientHooks(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	hooks := &recordingHooks{}
	client := NewClient(nil, nil)
	client.SetHTTPClient(server.Client())
	client.SetHooks(hooks)

	_, err := client.GetText(context.Background(), server.URL+"/missing.css")
	require.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, 1, hooks.requests)
	assert.Equal(t, []int{http.StatusNotFound}, hooks.responses)
}

func TestClientGetText(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("body{color:red}"))
	}))
	defer server.Close()

	client := NewClient(nil, nil)
	client.SetHTTPClient(server.Client())

	text, err := client.GetText(context.Background(), server.URL)
	require.NoError(t, err)
	assert.Equal(t, "body{color:red}", text)
}

func TestClientCachedText(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Write([]byte("p{}"))
	}))
	defer server.Close()

	client := NewClient(httputil.NewCache(time.Hour), nil)
	client.SetHTTPClient(server.Client())

	for i := 0; i < 3; i++ {
		text, err := client.CachedText(context.Background(), server.URL, false)
		require.NoError(t, err)
		assert.Equal(t, "p{}", text)
	}
	assert.EqualValues(t, 1, hits.Load())

	_, err := client.CachedText(context.Background(), server.URL, true)
	require.NoError(t, err)
	assert.EqualValues(t, 2, hits.Load(), "refresh should bypass the cache")
}

func TestClientGet404(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	client := NewClient(nil, nil)
	client.SetHTTPClient(server.Client())

	var resp map[string]string
	err := client.Get(context.Background(), server.URL, &resp)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestClientGet500(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := NewClient(nil, nil)
	client.SetHTTPClient(server.Client())

	var resp map[string]string
	err := client.Get(context.Background(), server.URL, &resp)
	require.Error(t, err)
	assert.True(t, httputil.IsRetryable(err), "got %T", err)
	assert.ErrorIs(t, err, ErrNetwork)
}

func TestClientCachedFetchError(t *testing.T) {
	client := NewClient(httputil.NewCache(time.Hour), nil)

	var value string
	fetchCount := 0
	err := client.Cached(context.Background(), "key", false, &value, func() error {
		fetchCount++
		return ErrNotFound
	})
	assert.Error(t, err)
	assert.Equal(t, 1, fetchCount, "non-retryable errors are fetched once")
}

func TestCheckStatus(t *testing.T) {
	tests := []struct {
		name       string
		code       int
		wantErr    bool
		wantType   error
		isRetryErr bool
	}{
		{name: "200 OK", code: 200},
		{name: "404 Not Found", code: 404, wantErr: true, wantType: ErrNotFound},
		{name: "429 Too Many Requests", code: 429, wantErr: true, isRetryErr: true},
		{name: "500 Internal Server Error", code: 500, wantErr: true, isRetryErr: true},
		{name: "503 Service Unavailable", code: 503, wantErr: true, isRetryErr: true},
		{name: "400 Bad Request", code: 400, wantErr: true},
		{name: "403 Forbidden", code: 403, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := checkStatus(tt.code)
			if !tt.wantErr {
				require.NoError(t, err)
			} else {
				require.Error(t, err)
			}
			if tt.wantType != nil {
				assert.ErrorIs(t, err, tt.wantType)
			}
			assert.Equal(t, tt.isRetryErr, httputil.IsRetryable(err))
		})
	}
}
