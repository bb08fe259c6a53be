package depgraph

import (
	"context"

	"github.com/matzehuels/pipo/pkg/syntax"
	"github.com/matzehuels/pipo/pkg/vfs"
)

// Analyzer extracts the resolved local dependencies of one file.
type Analyzer interface {
	Analyze(ctx context.Context, content, path string, files *vfs.FileSet) ([]string, error)
}

// SyntaxAnalyzer finds imports with the syntax package. Static imports,
// re-exports and literal dynamic imports all count as dependencies.
type SyntaxAnalyzer struct{}

// Analyze implements [Analyzer].
func (SyntaxAnalyzer) Analyze(ctx context.Context, content, path string, files *vfs.FileSet) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := syntax.Parse(path, content)
	if err != nil {
		return nil, err
	}

	var deps []string
	seen := make(map[string]bool)
	add := func(lit *syntax.StringLit) {
		if lit == nil || !vfs.IsRelative(lit.Value) {
			return
		}
		target := vfs.ResolveRelative(path, lit.Value)
		if vfs.IsStyle(target) {
			target, _ = vfs.ResolveStyle(target, files)
		} else {
			target = vfs.ResolveFile(target, files)
		}
		if files.Has(target) && !seen[target] {
			seen[target] = true
			deps = append(deps, target)
		}
	}

	syntax.Inspect(f, func(n syntax.Node) bool {
		switch n := n.(type) {
		case *syntax.ImportDecl:
			if !n.TypeOnly {
				add(n.Source)
			}
		case *syntax.ExportFrom:
			if !n.TypeOnly {
				add(n.Source)
			}
		case *syntax.DynamicImport:
			add(n.Source)
		}
		return true
	})
	return deps, nil
}
