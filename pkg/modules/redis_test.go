//go:build integration

package modules

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisStore(t *testing.T) {
	addr := os.Getenv("PIPO_REDIS_ADDR")
	if addr == "" {
		addr = "localhost:6379"
	}
	ctx := context.Background()
	store, err := NewRedisStore(ctx, RedisConfig{Addr: addr, Prefix: "pipo-test:", TTL: time.Minute})
	if err != nil {
		t.Skipf("redis not available: %v", err)
	}
	defer store.Close()

	reg := NewRegistry(store, "", "it-1")
	ref, err := reg.Register(ctx, "/a.ts", "export {}")
	require.NoError(t, err)

	code, err := store.Get(ctx, "it-1", ref.ID)
	require.NoError(t, err)
	assert.Equal(t, "export {}", string(code))

	ttl, err := store.client.TTL(ctx, store.moduleKey("it-1", ref.ID)).Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, time.Duration(0))

	require.NoError(t, reg.Dispose(ctx))
	_, err = store.Get(ctx, "it-1", ref.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}
