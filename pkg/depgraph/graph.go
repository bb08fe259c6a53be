package depgraph

import (
	"errors"
	"slices"

	"github.com/matzehuels/pipo/pkg/vfs"
)

// ErrEmptyPath is returned by [Graph.AddDependency] for an empty endpoint.
var ErrEmptyPath = errors.New("path must not be empty")

// Node is one file in the graph. A node may exist for an import target that
// has no source; such dangling nodes are tolerated and skipped later.
type Node struct {
	Path         string
	Dependencies []string // files this file imports, in discovery order
	Dependents   []string // files importing this file
}

// Graph is a directed graph of files and their local imports.
//
// The zero value is not usable; use [New]. Graph is not safe for concurrent
// mutation.
type Graph struct {
	nodes map[string]*Node
	order []string // insertion order
	edges int
}

// New creates an empty graph.
func New() *Graph {
	return &Graph{nodes: make(map[string]*Node)}
}

// AddFile adds a node for path if it does not exist yet.
func (g *Graph) AddFile(path string) *Node {
	if n, ok := g.nodes[path]; ok {
		return n
	}
	n := &Node{Path: path}
	g.nodes[path] = n
	g.order = append(g.order, path)
	return n
}

// AddDependency records that from imports to, creating either node lazily.
// Duplicate edges are ignored.
func (g *Graph) AddDependency(from, to string) error {
	if from == "" || to == "" {
		return ErrEmptyPath
	}
	src, dst := g.AddFile(from), g.AddFile(to)
	if slices.Contains(src.Dependencies, to) {
		return nil
	}
	src.Dependencies = append(src.Dependencies, to)
	dst.Dependents = append(dst.Dependents, from)
	g.edges++
	return nil
}

// Node returns the node for path.
func (g *Graph) Node(path string) (*Node, bool) {
	n, ok := g.nodes[path]
	return n, ok
}

// Files returns all node paths in insertion order.
func (g *Graph) Files() []string { return slices.Clone(g.order) }

// Dependencies returns the files imported by path.
func (g *Graph) Dependencies(path string) []string {
	if n, ok := g.nodes[path]; ok {
		return slices.Clone(n.Dependencies)
	}
	return nil
}

// Dependents returns the files importing path.
func (g *Graph) Dependents(path string) []string {
	if n, ok := g.nodes[path]; ok {
		return slices.Clone(n.Dependents)
	}
	return nil
}

// NodeCount returns the number of nodes.
func (g *Graph) NodeCount() int { return len(g.nodes) }

// EdgeCount returns the number of distinct edges.
func (g *Graph) EdgeCount() int { return g.edges }

// =============================================================================
// Ordering
// =============================================================================

// Order is the result of [Graph.Order].
type Order struct {
	// Paths lists every node once, dependencies before dependents.
	Paths []string
	// Cycles lists the edges (from, to) that closed a cycle and were not
	// followed.
	Cycles [][2]string
}

// Order computes the processing order. See the package documentation.
func (g *Graph) Order() Order {
	const (
		white = iota
		gray
		black
	)

	color := make(map[string]int, len(g.nodes))
	var out Order

	var visit func(path string)
	visit = func(path string) {
		color[path] = gray
		for _, dep := range g.nodes[path].Dependencies {
			switch color[dep] {
			case white:
				visit(dep)
			case gray:
				out.Cycles = append(out.Cycles, [2]string{path, dep})
			}
		}
		color[path] = black
		out.Paths = append(out.Paths, path)
	}

	for _, p := range g.order {
		if vfs.IsStyle(p) && color[p] == white {
			visit(p)
		}
	}
	for _, p := range g.order {
		if color[p] == white {
			visit(p)
		}
	}
	return out
}
