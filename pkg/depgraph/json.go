package depgraph

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/matzehuels/pipo/pkg/vfs"
)

const kindStyle = "style"

type document struct {
	Nodes []jsonNode `json:"nodes"`
	Edges []jsonEdge `json:"edges"`
	Order []string   `json:"order"`
}

type jsonNode struct {
	ID   string `json:"id"`
	Kind string `json:"kind,omitempty"`
}

type jsonEdge struct {
	From  string `json:"from"`
	To    string `json:"to"`
	Cycle bool   `json:"cycle,omitempty"`
}

// WriteJSON encodes the graph with its processing order and writes it to w.
// Edges listed in order.Cycles are flagged with "cycle": true.
func WriteJSON(g *Graph, order Order, w io.Writer) error {
	back := make(map[[2]string]bool, len(order.Cycles))
	for _, e := range order.Cycles {
		back[e] = true
	}

	out := document{
		Nodes: make([]jsonNode, 0, g.NodeCount()),
		Edges: make([]jsonEdge, 0, g.EdgeCount()),
		Order: order.Paths,
	}
	if out.Order == nil {
		out.Order = []string{}
	}
	for _, p := range g.Files() {
		n := jsonNode{ID: p}
		if vfs.IsStyle(p) {
			n.Kind = kindStyle
		}
		out.Nodes = append(out.Nodes, n)
		for _, d := range g.Dependencies(p) {
			out.Edges = append(out.Edges, jsonEdge{From: p, To: d, Cycle: back[[2]string{p, d}]})
		}
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		return fmt.Errorf("encode: %w", err)
	}
	return nil
}
