package instrument

import (
	"github.com/charmbracelet/log"

	"github.com/matzehuels/pipo/pkg/syntax"
	"github.com/matzehuels/pipo/pkg/vfs"
)

// Result is the output of [Manager.Transform].
type Result struct {
	Code        string
	Diagnostics []Diagnostic
	HasJSX      bool
}

// Manager runs processors over a parsed file.
type Manager struct {
	processors []Processor
	logger     *log.Logger

	// InjectReact adds "import React from 'react';" to files that contain
	// JSX but bind no React identifier. The classic JSX
	// transform compiles elements to React.createElement and needs it.
	InjectReact bool
}

// NewManager returns a manager with the default processors: style imports
// first, then import rewriting, then position injection.
func NewManager(logger *log.Logger) *Manager {
	if logger == nil {
		logger = log.Default()
	}
	return &Manager{
		processors:  []Processor{StyleImports{}, ImportRewriter{}, DebugPositions{}},
		logger:      logger.WithPrefix("instrument"),
		InjectReact: true,
	}
}

// Use replaces the processor list.
func (m *Manager) Use(ps ...Processor) {
	m.processors = ps
}

// Processors returns the names of the registered processors in order.
func (m *Manager) Processors() []string {
	names := make([]string, len(m.processors))
	for i, p := range m.processors {
		names[i] = p.Name()
	}
	return names
}

// Transform parses src, applies every processor and prints the result.
// A parse failure is returned as a *syntax.Error.
func (m *Manager) Transform(src string, opts Options) (*Result, error) {
	f, err := syntax.Parse(opts.Filename, src)
	if err != nil {
		return nil, err
	}
	if opts.Files == nil {
		opts.Files = vfs.New()
	}

	c := &Context{Options: opts, File: f, Logger: m.logger}
	syntax.Inspect(f, func(n syntax.Node) bool {
		for _, p := range m.processors {
			p.Process(n, c)
		}
		return true
	})

	hasJSX := syntax.HasJSX(f)
	if m.InjectReact && hasJSX && !bindsReact(f) {
		spec := "react"
		if url, ok := opts.ExternalDeps[spec]; ok && url != "" {
			spec = url
		}
		f.Prepend("import React from " + syntax.Quote(spec, '\'') + ";")
	}

	return &Result{Code: syntax.Print(f), Diagnostics: c.Diagnostics(), HasJSX: hasJSX}, nil
}

func bindsReact(f *syntax.File) bool {
	for _, d := range syntax.Imports(f) {
		if d.Default == "React" || d.Namespace == "React" {
			return true
		}
	}
	return false
}
