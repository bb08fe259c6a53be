package instrument

import (
	"fmt"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/pipo/pkg/syntax"
	"github.com/matzehuels/pipo/pkg/vfs"
)

// Instrumentation attribute names. Consumers rely on these exact values.
const (
	AttrLine      = "data-pipo-line"
	AttrColumn    = "data-pipo-column"
	AttrEndLine   = "data-pipo-end-line"
	AttrEndColumn = "data-pipo-end-column"
	AttrFile      = "data-pipo-file"
)

// ModuleLookup maps a resolved virtual path to a loadable module URL.
type ModuleLookup interface {
	ModuleURL(path string) (string, bool)
}

// Options describe the file being instrumented. They are not modified.
type Options struct {
	Filename     string
	Files        *vfs.FileSet
	Registry     ModuleLookup      // may be nil before any module is registered
	ExternalDeps map[string]string // bare specifier -> URL
}

// Diagnostic is a non-fatal problem found while instrumenting.
type Diagnostic struct {
	File    string
	Line    int
	Column  int
	Message string
}

func (d Diagnostic) String() string {
	return fmt.Sprintf("%s:%d:%d: %s", d.File, d.Line, d.Column, d.Message)
}

// Context is passed to every processor for one file.
type Context struct {
	Options
	File   *syntax.File
	Logger *log.Logger

	diagnostics []Diagnostic
}

// Warn records a diagnostic at the position of n and logs it.
func (c *Context) Warn(n syntax.Node, format string, args ...any) {
	line, col := c.File.Lines.Position(n.Pos())
	d := Diagnostic{File: c.Filename, Line: line, Column: col, Message: fmt.Sprintf(format, args...)}
	c.diagnostics = append(c.diagnostics, d)
	c.Logger.Warn(d.Message, "file", d.File, "line", d.Line)
}

// Diagnostics returns what processors reported so far.
func (c *Context) Diagnostics() []Diagnostic { return c.diagnostics }

// Processor visits tree nodes and records edits on them.
type Processor interface {
	Name() string
	Process(n syntax.Node, c *Context)
}
