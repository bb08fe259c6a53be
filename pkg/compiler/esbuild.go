package compiler

import (
	"context"
	"fmt"
	"strings"
	"sync"

	esbuild "github.com/evanw/esbuild/pkg/api"

	"github.com/matzehuels/pipo/pkg/errors"
	"github.com/matzehuels/pipo/pkg/vfs"
)

// ESBuildName is the registered name of the esbuild backend.
const ESBuildName = "esbuild"

var esbuildTargets = map[string]esbuild.Target{
	"es2015": esbuild.ES2015,
	"es2016": esbuild.ES2016,
	"es2017": esbuild.ES2017,
	"es2018": esbuild.ES2018,
	"es2019": esbuild.ES2019,
	"es2020": esbuild.ES2020,
	"es2021": esbuild.ES2021,
	"es2022": esbuild.ES2022,
	"esnext": esbuild.ESNext,
}

// ESBuild compiles with the esbuild Go API.
type ESBuild struct {
	opts Options

	mu          sync.Mutex
	target      esbuild.Target
	initialized bool
}

// NewESBuild creates an esbuild backend.
func NewESBuild(opts Options) Strategy {
	return &ESBuild{opts: opts.withDefaults()}
}

func (e *ESBuild) Name() string { return ESBuildName }

// Initialize validates the configured target.
func (e *ESBuild) Initialize(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.initialized {
		return nil
	}
	t, ok := esbuildTargets[strings.ToLower(e.opts.Target)]
	if !ok {
		return fmt.Errorf("esbuild: unsupported target %q", e.opts.Target)
	}
	e.target = t
	e.initialized = true
	return nil
}

func (e *ESBuild) Initialized() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.initialized
}

func (e *ESBuild) IsSupported(filename string) bool { return isScript(filename) }

func (e *ESBuild) Transform(ctx context.Context, code string, opts TransformOptions) (string, error) {
	if !e.Initialized() {
		return "", notInitialized(ESBuildName)
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	to := esbuild.TransformOptions{
		Loader:     loaderFor(opts.Filename),
		Format:     esbuild.FormatESModule,
		Target:     e.target,
		Sourcefile: opts.Filename,
		Charset:    esbuild.CharsetUTF8,
	}
	if e.opts.JSX == JSXAutomatic {
		to.JSX = esbuild.JSXAutomatic
		to.JSXImportSource = e.opts.JSXImportSource
	} else {
		to.JSX = esbuild.JSXTransform
		to.JSXFactory = "React.createElement"
		to.JSXFragment = "React.Fragment"
	}
	if e.opts.SourceMap {
		to.Sourcemap = esbuild.SourceMapInline
	}

	res := esbuild.Transform(code, to)
	if len(res.Errors) > 0 {
		return "", esbuildError(opts.Filename, res.Errors)
	}
	return string(res.Code), nil
}

func (e *ESBuild) TransformWithPerformance(ctx context.Context, code string, opts TransformOptions) (*Result, error) {
	return timed(ESBuildName, func() (string, error) { return e.Transform(ctx, code, opts) })
}

func (e *ESBuild) Close(context.Context) error { return nil }

func loaderFor(filename string) esbuild.Loader {
	switch vfs.Ext(filename) {
	case ".ts":
		return esbuild.LoaderTS
	case ".tsx":
		return esbuild.LoaderTSX
	default:
		// .js files in React projects commonly contain JSX
		return esbuild.LoaderJSX
	}
}

// esbuildError converts the first esbuild diagnostic into a CompileError.
// The code frame is esbuild's own formatting of that message.
func esbuildError(filename string, msgs []esbuild.Message) error {
	m := msgs[0]
	ce := &errors.CompileError{
		File:    filename,
		Message: m.Text,
		Backend: ESBuildName,
	}
	if m.Location != nil {
		ce.Line = m.Location.Line
		ce.Column = m.Location.Column
		if m.Location.File != "" {
			ce.File = m.Location.File
		}
	}
	formatted := esbuild.FormatMessages(msgs[:1], esbuild.FormatMessagesOptions{Kind: esbuild.ErrorMessage})
	if len(formatted) > 0 {
		ce.CodeFrame = strings.TrimRight(formatted[0], "\n")
	}
	return ce
}
