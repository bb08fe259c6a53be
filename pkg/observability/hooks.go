// Package observability provides hooks for metrics, tracing, and logging.
//
// Components accept a [Hooks] value at construction and report events
// through it. Nothing is registered globally: two sessions in one process
// can report to different backends. Unset hooks default to no-ops.
//
// # Usage
//
//	hooks := observability.Hooks{Compile: myMetrics{}}
//	runner := pipeline.NewRunner(pipeline.Config{Hooks: hooks}, logger)
//
// [LogHooks] writes every event to a charmbracelet logger at debug level
// and is what the CLI installs with --verbose.
package observability

import (
	"context"
	"time"

	"github.com/charmbracelet/log"
)

// =============================================================================
// Compile Hooks
// =============================================================================

// CompileHooks receives events from a compilation pass.
type CompileHooks interface {
	OnCompileStart(ctx context.Context, pass string, files int)
	OnFileComplete(ctx context.Context, path, backend string, duration time.Duration, err error)
	OnCompileComplete(ctx context.Context, pass string, modules, failures int, duration time.Duration, err error)
}

// =============================================================================
// Channel Hooks
// =============================================================================

// ChannelHooks receives events from the sandbox message channel.
type ChannelHooks interface {
	// OnMessage records a message accepted for dispatch.
	OnMessage(ctx context.Context, pass, msgType string)

	// OnDrop records a message that was discarded (stale pass, malformed).
	OnDrop(ctx context.Context, pass, msgType, reason string)
}

// =============================================================================
// HTTP Hooks
// =============================================================================

// HTTPHooks receives events from HTTP client operations.
type HTTPHooks interface {
	// OnRequest records an outgoing HTTP request.
	OnRequest(ctx context.Context, method, host, path string)

	// OnResponse records an HTTP response.
	OnResponse(ctx context.Context, method, host, path string, statusCode int, duration time.Duration)

	// OnError records an HTTP error (network failure, timeout).
	OnError(ctx context.Context, method, host, path string, err error)
}

// =============================================================================
// No-op Implementations
// =============================================================================

// NoopCompileHooks is a no-op implementation of CompileHooks.
type NoopCompileHooks struct{}

func (NoopCompileHooks) OnCompileStart(context.Context, string, int)                          {}
func (NoopCompileHooks) OnFileComplete(context.Context, string, string, time.Duration, error) {}
func (NoopCompileHooks) OnCompileComplete(context.Context, string, int, int, time.Duration, error) {
}

// NoopChannelHooks is a no-op implementation of ChannelHooks.
type NoopChannelHooks struct{}

func (NoopChannelHooks) OnMessage(context.Context, string, string)      {}
func (NoopChannelHooks) OnDrop(context.Context, string, string, string) {}

// NoopHTTPHooks is a no-op implementation of HTTPHooks.
type NoopHTTPHooks struct{}

func (NoopHTTPHooks) OnRequest(context.Context, string, string, string)                      {}
func (NoopHTTPHooks) OnResponse(context.Context, string, string, string, int, time.Duration) {}
func (NoopHTTPHooks) OnError(context.Context, string, string, string, error)                 {}

// =============================================================================
// Hook Set
// =============================================================================

// Hooks bundles the hook categories a component may report to.
type Hooks struct {
	Compile CompileHooks
	Channel ChannelHooks
	HTTP    HTTPHooks
}

// WithDefaults returns h with every nil category replaced by its no-op.
func (h Hooks) WithDefaults() Hooks {
	if h.Compile == nil {
		h.Compile = NoopCompileHooks{}
	}
	if h.Channel == nil {
		h.Channel = NoopChannelHooks{}
	}
	if h.HTTP == nil {
		h.HTTP = NoopHTTPHooks{}
	}
	return h
}

// =============================================================================
// Logging Implementation
// =============================================================================

// LogHooks reports every event to Logger at debug level.
type LogHooks struct {
	Logger *log.Logger
}

// NewLogHooks returns a hook set that logs everything through logger.
func NewLogHooks(logger *log.Logger) Hooks {
	if logger == nil {
		logger = log.Default()
	}
	h := LogHooks{Logger: logger.WithPrefix("hooks")}
	return Hooks{Compile: h, Channel: h, HTTP: h}
}

func (h LogHooks) OnCompileStart(_ context.Context, pass string, files int) {
	h.Logger.Debug("compile start", "pass", pass, "files", files)
}

func (h LogHooks) OnFileComplete(_ context.Context, path, backend string, d time.Duration, err error) {
	h.Logger.Debug("file compiled", "path", path, "backend", backend, "duration", d, "err", err)
}

func (h LogHooks) OnCompileComplete(_ context.Context, pass string, modules, failures int, d time.Duration, err error) {
	h.Logger.Debug("compile complete", "pass", pass, "modules", modules, "failures", failures, "duration", d, "err", err)
}

func (h LogHooks) OnMessage(_ context.Context, pass, msgType string) {
	h.Logger.Debug("message", "pass", pass, "type", msgType)
}

func (h LogHooks) OnDrop(_ context.Context, pass, msgType, reason string) {
	h.Logger.Debug("message dropped", "pass", pass, "type", msgType, "reason", reason)
}

func (h LogHooks) OnRequest(_ context.Context, method, host, path string) {
	h.Logger.Debug("http request", "method", method, "host", host, "path", path)
}

func (h LogHooks) OnResponse(_ context.Context, method, host, path string, status int, d time.Duration) {
	h.Logger.Debug("http response", "method", method, "host", host, "path", path, "status", status, "duration", d)
}

func (h LogHooks) OnError(_ context.Context, method, host, path string, err error) {
	h.Logger.Debug("http error", "method", method, "host", host, "path", path, "err", err)
}
