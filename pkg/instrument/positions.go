package instrument

import (
	"strconv"

	"github.com/matzehuels/pipo/pkg/syntax"
	"github.com/matzehuels/pipo/pkg/vfs"
)

// DebugPositions injects the source span of every JSX element.
//
// Lines are 1-based and columns 0-based. The end position is the end of the
// closing tag, or of the opening tag for self-closing elements. Fragments
// render no DOM node and are skipped. Attributes that are already present
// are left alone, so running the processor twice adds nothing.
type DebugPositions struct{}

func (DebugPositions) Name() string { return "debug-positions" }

func (DebugPositions) Process(n syntax.Node, c *Context) {
	el, ok := n.(*syntax.JSXElement)
	if !ok || isFragment(el.Open.Name) {
		return
	}
	line, col := c.File.Lines.Position(el.Pos())
	endLine, endCol := c.File.Lines.Position(el.End())

	o := el.Open
	o.Inject(AttrLine, strconv.Itoa(line))
	o.Inject(AttrColumn, strconv.Itoa(col))
	o.Inject(AttrEndLine, strconv.Itoa(endLine))
	o.Inject(AttrEndColumn, strconv.Itoa(endCol))
	if c.Filename != "" {
		o.Inject(AttrFile, vfs.ResolveFile(c.Filename, c.Files))
	}
}

func isFragment(name string) bool {
	return name == "Fragment" || name == "React.Fragment"
}
