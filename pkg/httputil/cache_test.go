package httputil

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCache_GetSet(t *testing.T) {
	c := NewCache(time.Hour)

	tests := []struct {
		name  string
		key   string
		value any
	}{
		{"simple", "key1", map[string]string{"foo": "bar"}},
		{"string", "key2", "test"},
		{"nested", "key3", map[string]any{"a": map[string]any{"b": 1.0}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.NoError(t, c.Set(tt.key, tt.value))
			var result any
			ok, err := c.Get(tt.key, &result)
			require.NoError(t, err)
			require.True(t, ok, "existing key")
			assert.Equal(t, fmt.Sprint(tt.value), fmt.Sprint(result))
		})
	}
}

func TestCache_Miss(t *testing.T) {
	c := NewCache(time.Hour)
	var result string
	ok, err := c.Get("missing", &result)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCache_Expired(t *testing.T) {
	c := NewCache(time.Minute)
	now := time.Unix(1000, 0)
	c.now = func() time.Time { return now }

	require.NoError(t, c.Set("k", "v"))
	now = now.Add(2 * time.Minute)

	var v string
	ok, err := c.Get("k", &v)
	assert.False(t, ok)
	require.ErrorIs(t, err, ErrExpired)
	assert.Zero(t, c.Len(), "expired entry not dropped")
}

func TestCache_Purge(t *testing.T) {
	c := NewCache(time.Minute)
	now := time.Unix(1000, 0)
	c.now = func() time.Time { return now }
	c.Set("old", 1)
	now = now.Add(90 * time.Second)
	c.Set("new", 2)

	assert.Equal(t, 1, c.Purge())
	assert.Equal(t, 1, c.Len())
}

func TestCache_Namespace(t *testing.T) {
	c := NewCache(0)
	npm := c.Namespace("npm:")
	css := c.Namespace("css:")

	npm.Set("react", "18.2.0")
	css.Set("react", "body{}")

	var a, b string
	npm.Get("react", &a)
	css.Get("react", &b)
	assert.Equal(t, "18.2.0", a)
	assert.Equal(t, "body{}", b)

	ok, _ := c.Get("npm:react", &a)
	assert.True(t, ok, "parent should see namespaced key")

	npm.Delete("react")
	ok, _ = npm.Get("react", &a)
	assert.False(t, ok)
}

func TestRetry(t *testing.T) {
	fast := Policy{Attempts: 3, Delay: time.Millisecond}

	t.Run("retries retryable errors", func(t *testing.T) {
		calls := 0
		err := Retry(context.Background(), fast, func() error {
			calls++
			if calls < 3 {
				return Retryable(errors.New("flaky"))
			}
			return nil
		})
		assert.NoError(t, err)
		assert.Equal(t, 3, calls)
	})

	t.Run("stops on permanent errors", func(t *testing.T) {
		calls := 0
		perm := errors.New("permanent")
		err := Retry(context.Background(), fast, func() error {
			calls++
			return perm
		})
		assert.ErrorIs(t, err, perm)
		assert.Equal(t, 1, calls)
	})

	t.Run("returns last error", func(t *testing.T) {
		err := Retry(context.Background(), fast, func() error {
			return Retryable(errors.New("down"))
		})
		assert.True(t, IsRetryable(err), "got %v", err)
	})

	t.Run("honours cancellation", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		err := Retry(ctx, Policy{Attempts: 3, Delay: time.Hour}, func() error {
			return Retryable(errors.New("down"))
		})
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestRetryable(t *testing.T) {
	assert.NoError(t, Retryable(nil))
	wrapped := fmt.Errorf("ctx: %w", Retryable(errors.New("x")))
	assert.True(t, IsRetryable(wrapped), "IsRetryable() should see through wrapping")
}

func ExampleCache() {
	cache := NewCache(24 * time.Hour)

	data := map[string]string{"name": "react", "version": "18.2.0"}
	if err := cache.Set("npm:react", data); err != nil {
		fmt.Println("Error:", err)
		return
	}

	var result map[string]string
	if ok, err := cache.Get("npm:react", &result); ok && err == nil {
		fmt.Println("Name:", result["name"])
		fmt.Println("Version:", result["version"])
	}
	// Output:
	// Name: react
	// Version: 18.2.0
}
