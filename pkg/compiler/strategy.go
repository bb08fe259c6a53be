package compiler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/matzehuels/pipo/pkg/vfs"
)

var (
	// ErrUnknownStrategy is returned for a backend name that was never
	// registered.
	ErrUnknownStrategy = errors.New("unknown compiler strategy")

	// ErrNotInitialized is returned when transforming before Initialize.
	ErrNotInitialized = errors.New("compiler not initialized")

	// ErrNoModule is returned by the wasm backend when no module is
	// configured.
	ErrNoModule = errors.New("no wasm module configured")
)

// JSXRuntime selects how JSX elements are compiled.
type JSXRuntime string

const (
	// JSXClassic compiles to React.createElement and React.Fragment.
	JSXClassic JSXRuntime = "classic"
	// JSXAutomatic compiles to calls into react/jsx-runtime.
	JSXAutomatic JSXRuntime = "automatic"
)

// Options configure a backend. Zero fields take the values of
// [DefaultOptions].
type Options struct {
	Target          string     `toml:"target"`
	JSX             JSXRuntime `toml:"jsx"`
	JSXImportSource string     `toml:"jsx_import_source"`
	SourceMap       bool       `toml:"source_map"` // inline source maps
	Module          string     `toml:"module"`     // wasm module path, wasm backend only
}

// DefaultOptions returns the options used when none are configured.
func DefaultOptions() Options {
	return Options{
		Target:          "es2022",
		JSX:             JSXClassic,
		JSXImportSource: "react",
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.Target == "" {
		o.Target = d.Target
	}
	if o.JSX == "" {
		o.JSX = d.JSX
	}
	if o.JSXImportSource == "" {
		o.JSXImportSource = d.JSXImportSource
	}
	return o
}

// TransformOptions apply to a single call.
type TransformOptions struct {
	Filename string
	Backend  string // overrides the manager default when set
}

// Performance describes one timed transform.
type Performance struct {
	Backend    string
	Duration   time.Duration
	OutputSize int
	Timestamp  time.Time
}

// Result is the output of a timed transform.
type Result struct {
	Code        string
	Performance *Performance
}

// Strategy is a compiler backend.
type Strategy interface {
	Name() string
	// Initialize prepares the backend. Calls after a successful one are
	// no-ops.
	Initialize(ctx context.Context) error
	Initialized() bool
	IsSupported(filename string) bool
	// Transform compiles one file. Diagnostics are returned as
	// *errors.CompileError.
	Transform(ctx context.Context, code string, opts TransformOptions) (string, error)
	TransformWithPerformance(ctx context.Context, code string, opts TransformOptions) (*Result, error)
	Close(ctx context.Context) error
}

// Factory creates a strategy from options.
type Factory func(Options) Strategy

// timed runs fn and wraps its output in a Result.
func timed(name string, fn func() (string, error)) (*Result, error) {
	start := time.Now()
	code, err := fn()
	if err != nil {
		return nil, err
	}
	return &Result{
		Code: code,
		Performance: &Performance{
			Backend:    name,
			Duration:   time.Since(start),
			OutputSize: len(code),
			Timestamp:  start,
		},
	}, nil
}

// isScript reports whether a backend can compile filename.
func isScript(filename string) bool {
	return vfs.IsScript(filename)
}

func notInitialized(name string) error {
	return fmt.Errorf("%s: %w", name, ErrNotInitialized)
}
