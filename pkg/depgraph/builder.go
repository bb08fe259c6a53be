package depgraph

import (
	"context"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/pipo/pkg/vfs"
)

// Builder constructs a [Graph] from a file set.
type Builder struct {
	Analyzer Analyzer
	Logger   *log.Logger
}

// NewBuilder creates a builder. A nil analyzer selects [SyntaxAnalyzer] and
// a nil logger selects log.Default().
func NewBuilder(a Analyzer, logger *log.Logger) *Builder {
	if a == nil {
		a = SyntaxAnalyzer{}
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Builder{Analyzer: a, Logger: logger}
}

// Build adds every file as a node and records the edges found by the
// analyzer. Only scripts are analyzed; other files become isolated nodes.
// Build fails only when ctx is done.
func (b *Builder) Build(ctx context.Context, files *vfs.FileSet) (*Graph, error) {
	g := New()
	for _, p := range files.Paths() {
		g.AddFile(p)
	}

	for _, p := range files.Paths() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if !vfs.IsAnalyzable(p) {
			continue
		}
		content, _ := files.Get(p)
		deps, err := b.Analyzer.Analyze(ctx, content, p, files)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			b.Logger.Warn("dependency analysis failed", "file", p, "err", err)
			continue
		}
		for _, d := range deps {
			_ = g.AddDependency(p, d)
		}
	}

	b.Logger.Debug("built dependency graph", "nodes", g.NodeCount(), "edges", g.EdgeCount())
	return g, nil
}
