package observability

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
)

func TestNoopHooksDoNotPanic(t *testing.T) {
	ctx := context.Background()

	c := NoopCompileHooks{}
	c.OnCompileStart(ctx, "1", 3)
	c.OnFileComplete(ctx, "/App.tsx", "esbuild", time.Millisecond, nil)
	c.OnCompileComplete(ctx, "1", 3, 0, time.Second, nil)

	ch := NoopChannelHooks{}
	ch.OnMessage(ctx, "1", "console-log")
	ch.OnDrop(ctx, "0", "element-click", "stale")

	h := NoopHTTPHooks{}
	h.OnRequest(ctx, "GET", "registry.npmjs.org", "/react")
	h.OnResponse(ctx, "GET", "registry.npmjs.org", "/react", 200, time.Second)
	h.OnError(ctx, "GET", "registry.npmjs.org", "/react", nil)
}

func TestWithDefaults(t *testing.T) {
	h := Hooks{}.WithDefaults()
	assert.IsType(t, NoopCompileHooks{}, h.Compile)
	assert.IsType(t, NoopChannelHooks{}, h.Channel)
	assert.IsType(t, NoopHTTPHooks{}, h.HTTP)

	custom := &testCompileHooks{}
	h = Hooks{Compile: custom}.WithDefaults()
	assert.Same(t, custom, h.Compile, "WithDefaults should keep hooks that are set")
}

func TestLogHooks(t *testing.T) {
	var buf bytes.Buffer
	logger := log.New(&buf)
	logger.SetLevel(log.DebugLevel)

	h := NewLogHooks(logger)
	ctx := context.Background()
	h.Compile.OnFileComplete(ctx, "/Broken.tsx", "wasm", time.Millisecond, errors.New("boom"))
	h.Channel.OnDrop(ctx, "3", "element-click", "stale")

	for _, want := range []string{"/Broken.tsx", "boom", "stale", "element-click"} {
		assert.Contains(t, buf.String(), want)
	}
}

// Test implementations
type testCompileHooks struct{ NoopCompileHooks }
