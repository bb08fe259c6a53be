package instrument

import (
	"strings"

	"github.com/matzehuels/pipo/pkg/syntax"
	"github.com/matzehuels/pipo/pkg/vfs"
)

// ImportRewriter replaces module specifiers with loadable URLs.
//
// Local specifiers resolve to the reference registered for the target file.
// A missing reference is reported and the specifier is kept, so the failure
// shows up when the module loads. Bare specifiers map through
// Options.ExternalDeps and otherwise stay bare for the import map. Style
// sheets are left to [StyleImports].
type ImportRewriter struct{}

func (ImportRewriter) Name() string { return "import-rewriter" }

func (ImportRewriter) Process(n syntax.Node, c *Context) {
	switch n := n.(type) {
	case *syntax.ImportDecl:
		if n.TypeOnly {
			return
		}
		if _, replaced := n.Replacement(); replaced {
			return
		}
		rewrite(n, n.Source, c)
	case *syntax.ExportFrom:
		if !n.TypeOnly {
			rewrite(n, n.Source, c)
		}
	case *syntax.DynamicImport:
		rewrite(n, n.Source, c)
	}
}

func rewrite(n syntax.Node, lit *syntax.StringLit, c *Context) {
	spec := lit.Value
	if spec == "" || vfs.IsStyle(spec) || isURL(spec) {
		return
	}

	if vfs.IsLocal(spec) {
		target := vfs.ResolveFile(vfs.ResolveRelative(c.Filename, spec), c.Files)
		if c.Registry != nil {
			if url, ok := c.Registry.ModuleURL(target); ok {
				lit.Set(url)
				return
			}
		}
		c.Warn(n, "no module registered for %s (imported as %q)", target, spec)
		return
	}

	if url, ok := c.ExternalDeps[spec]; ok && url != "" {
		lit.Set(url)
	}
}

func isURL(spec string) bool {
	for _, p := range []string{"http://", "https://", "//", "blob:", "data:"} {
		if strings.HasPrefix(spec, p) {
			return true
		}
	}
	return false
}
