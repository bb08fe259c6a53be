package pipeline

import (
	"context"
	stderrors "errors"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/pipo/pkg/compiler"
	"github.com/matzehuels/pipo/pkg/errors"
	"github.com/matzehuels/pipo/pkg/instrument"
	"github.com/matzehuels/pipo/pkg/syntax"
	"github.com/matzehuels/pipo/pkg/vfs"
)

// Options are passed to every processor for one file.
type Options struct {
	Files        *vfs.FileSet
	Registry     instrument.ModuleLookup
	ExternalDeps map[string]string
	Backend      string
}

// FileProcessor transforms one kind of file.
type FileProcessor interface {
	Name() string
	CanProcess(path string) bool
	Process(ctx context.Context, content, path string, opts Options) (string, error)
}

// Chain applies processors in registration order.
type Chain struct {
	processors []FileProcessor
}

// NewChain creates a chain of ps.
func NewChain(ps ...FileProcessor) *Chain {
	return &Chain{processors: ps}
}

// Add appends p to the chain.
func (c *Chain) Add(p FileProcessor) { c.processors = append(c.processors, p) }

// Handles reports whether any processor accepts path.
func (c *Chain) Handles(path string) bool {
	for _, p := range c.processors {
		if p.CanProcess(path) {
			return true
		}
	}
	return false
}

// Process runs every processor that accepts path, feeding each one the
// output of the previous. The first failure stops the chain and is
// returned as a *errors.CompileError.
func (c *Chain) Process(ctx context.Context, content, path string, opts Options) (string, error) {
	out := content
	for _, p := range c.processors {
		if !p.CanProcess(path) {
			continue
		}
		next, err := p.Process(ctx, out, path, opts)
		if err != nil {
			return "", asCompileError(path, p.Name(), err)
		}
		out = next
	}
	return out, nil
}

// asCompileError normalizes a processor failure.
func asCompileError(path, processor string, err error) *errors.CompileError {
	if ce, ok := errors.AsCompileError(err); ok {
		if ce.File == "" {
			ce.File = path
		}
		return ce
	}
	var se *syntax.Error
	if stderrors.As(err, &se) {
		return &errors.CompileError{
			File:    path,
			Line:    se.Line,
			Column:  se.Column,
			Message: se.Message,
			Backend: processor,
			Cause:   err,
		}
	}
	return &errors.CompileError{
		File:    path,
		Message: errors.UserMessage(err),
		Backend: processor,
		Cause:   err,
	}
}

// =============================================================================
// Style Processor
// =============================================================================

// TextFetcher downloads text documents. *integrations.Client satisfies it.
type TextFetcher interface {
	CachedText(ctx context.Context, url string, refresh bool) (string, error)
}

// StyleProcessor turns a style sheet into a module that appends it to the
// document. A sheet whose whole content is a single http(s) URL is
// downloaded and inlined.
type StyleProcessor struct {
	Fetcher TextFetcher // nil disables remote sheets
}

func (StyleProcessor) Name() string { return "style" }

func (StyleProcessor) CanProcess(path string) bool { return vfs.IsStyle(path) }

func (s StyleProcessor) Process(ctx context.Context, content, path string, _ Options) (string, error) {
	css := content
	if u := strings.TrimSpace(content); isRemoteSheet(u) {
		if s.Fetcher == nil {
			return instrument.LinkStatement(u) + "\n", nil
		}
		text, err := s.Fetcher.CachedText(ctx, u, false)
		if err != nil {
			return "", errors.Wrap(errors.ErrCodeNetwork, err, "fetch style sheet %s", u)
		}
		css = text
	}
	return instrument.StyleStatement(path, css) + "\n", nil
}

func isRemoteSheet(s string) bool {
	return !strings.ContainsAny(s, " \t\r\n{};") && errors.ValidateURL(s) == nil
}

// =============================================================================
// Script Processor
// =============================================================================

// ScriptProcessor instruments a script and compiles it with the compiler
// manager.
type ScriptProcessor struct {
	Instrument *instrument.Manager
	Compiler   *compiler.Manager
	Logger     *log.Logger
}

func (ScriptProcessor) Name() string { return "script" }

func (ScriptProcessor) CanProcess(path string) bool { return vfs.IsScript(path) }

func (s ScriptProcessor) Process(ctx context.Context, content, path string, opts Options) (string, error) {
	res, err := s.Instrument.Transform(content, instrument.Options{
		Filename:     path,
		Files:        opts.Files,
		Registry:     opts.Registry,
		ExternalDeps: opts.ExternalDeps,
	})
	if err != nil {
		return "", err
	}
	if len(res.Diagnostics) > 0 && s.Logger != nil {
		s.Logger.Debug("instrumented with warnings", "file", path, "count", len(res.Diagnostics))
	}
	return s.Compiler.Transform(ctx, res.Code, compiler.TransformOptions{
		Filename: path,
		Backend:  opts.Backend,
	})
}
