package modules

import (
	"context"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var refURL = regexp.MustCompile(`^http://localhost:5173/m/7/[0-9a-f-]{36}\.js$`)

func TestRegistryRegister(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	reg := NewRegistry(store, "http://localhost:5173/", "7")

	a, err := reg.Register(ctx, "/a.ts", "export const a = 1;")
	require.NoError(t, err)
	b, err := reg.Register(ctx, "/b.ts", "export const b = 2;")
	require.NoError(t, err)

	assert.Regexp(t, refURL, a.URL)
	assert.NotEqual(t, a.ID, b.ID)
	assert.Equal(t, "7", reg.Pass())

	got, ok := reg.Lookup("/a.ts")
	require.True(t, ok)
	assert.Equal(t, a, got)

	u, ok := reg.ModuleURL("/b.ts")
	require.True(t, ok)
	assert.Equal(t, b.URL, u)

	p, ok := reg.Path(b.URL)
	require.True(t, ok)
	assert.Equal(t, "/b.ts", p)

	code, err := reg.Code(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, "export const a = 1;", string(code))

	assert.Equal(t, []Reference{a, b}, reg.Entries())
	assert.Equal(t, map[string]string{a.URL: "/a.ts", b.URL: "/b.ts"}, reg.URLs())
	assert.Equal(t, 2, reg.Len())
}

func TestRegistryReregisterReplaces(t *testing.T) {
	ctx := context.Background()
	reg := NewRegistry(nil, "", "1")
	first, err := reg.Register(ctx, "/a.ts", "1")
	require.NoError(t, err)
	second, err := reg.Register(ctx, "/a.ts", "2")
	require.NoError(t, err)

	assert.Equal(t, 1, reg.Len())
	_, ok := reg.Path(first.URL)
	assert.False(t, ok)
	p, _ := reg.Path(second.URL)
	assert.Equal(t, "/a.ts", p)
	assert.True(t, len(second.URL) > 0 && second.URL[0] == '/')
}

func TestRegistryDispose(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	reg := NewRegistry(store, "", "2")
	ref, err := reg.Register(ctx, "/a.ts", "x")
	require.NoError(t, err)
	other := NewRegistry(store, "", "3")
	_, err = other.Register(ctx, "/a.ts", "y")
	require.NoError(t, err)

	require.NoError(t, reg.Dispose(ctx))
	require.NoError(t, reg.Dispose(ctx))
	assert.True(t, reg.Disposed())

	_, ok := reg.Lookup("/a.ts")
	assert.False(t, ok)
	_, ok = reg.Path(ref.URL)
	assert.False(t, ok)
	assert.Zero(t, reg.Len())

	_, err = reg.Code(ctx, ref.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = store.Get(ctx, "2", ref.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = reg.Register(ctx, "/b.ts", "z")
	assert.ErrorIs(t, err, ErrDisposed)

	assert.Equal(t, 1, store.Groups(), "other passes are untouched")
	assert.Equal(t, 1, other.Len())
}

func TestMemoryStoreCopiesInput(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	buf := []byte("abc")
	require.NoError(t, s.Put(ctx, "g", "id", buf))
	buf[0] = 'x'
	got, err := s.Get(ctx, "g", "id")
	require.NoError(t, err)
	assert.Equal(t, "abc", string(got))
	assert.NoError(t, s.DeleteGroup(ctx, "missing"))
}
