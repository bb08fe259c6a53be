package depgraph

import (
	"bytes"
	"context"
	"fmt"

	"github.com/goccy/go-graphviz"

	"github.com/matzehuels/pipo/pkg/vfs"
)

// ToDOT converts the graph to Graphviz DOT. Style sheets are drawn with a
// dashed outline; edges in cut lists cycles found by [Graph.Order] and
// are drawn in red.
func ToDOT(g *Graph, cut [][2]string) string {
	back := make(map[[2]string]bool, len(cut))
	for _, e := range cut {
		back[e] = true
	}

	var buf bytes.Buffer
	buf.WriteString("digraph G {\n")
	buf.WriteString("  rankdir=LR;\n")
	buf.WriteString("  bgcolor=\"transparent\";\n")
	buf.WriteString("  node [shape=box, style=\"rounded,filled\", fillcolor=white, fontname=\"monospace\"];\n")
	buf.WriteString("\n")

	for _, p := range g.Files() {
		attrs := fmt.Sprintf("label=%q", p)
		if vfs.IsStyle(p) {
			attrs += ", style=\"rounded,filled,dashed\""
		}
		fmt.Fprintf(&buf, "  %q [%s];\n", p, attrs)
	}

	buf.WriteString("\n")
	for _, p := range g.Files() {
		for _, d := range g.Dependencies(p) {
			if back[[2]string{p, d}] {
				fmt.Fprintf(&buf, "  %q -> %q [color=red];\n", p, d)
				continue
			}
			fmt.Fprintf(&buf, "  %q -> %q;\n", p, d)
		}
	}

	buf.WriteString("}\n")
	return buf.String()
}

// RenderSVG renders a DOT graph to SVG using Graphviz.
func RenderSVG(ctx context.Context, dot string) ([]byte, error) {
	gv, err := graphviz.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("init graphviz: %w", err)
	}
	defer gv.Close()

	g, err := graphviz.ParseBytes([]byte(dot))
	if err != nil {
		return nil, fmt.Errorf("parse DOT: %w", err)
	}
	defer g.Close()

	var buf bytes.Buffer
	if err := gv.Render(ctx, g, graphviz.SVG, &buf); err != nil {
		return nil, fmt.Errorf("render: %w", err)
	}
	return buf.Bytes(), nil
}
