package syntax

import "fmt"

// Inspect traverses the tree rooted at n in depth-first order. It calls
// fn(n) first; if fn returns false the children of n are skipped.
func Inspect(n Node, fn func(Node) bool) {
	if n == nil || !fn(n) {
		return
	}
	switch n := n.(type) {
	case *File:
		inspectList(n.Body, fn)
	case *JSXElement:
		Inspect(n.Open, fn)
		inspectList(n.Children, fn)
		if n.Close != nil {
			Inspect(n.Close, fn)
		}
	case *JSXOpening:
		for _, a := range n.Attrs {
			Inspect(a, fn)
		}
	case *JSXAttr:
		if n.Expr != nil {
			Inspect(n.Expr, fn)
		}
		if n.Elem != nil {
			Inspect(n.Elem, fn)
		}
	case *JSXFragment:
		inspectList(n.Children, fn)
	case *JSXExpr:
		inspectList(n.Nodes, fn)
	case *ImportDecl, *ExportFrom, *DynamicImport, *JSXClosing, *StringLit:
		// leaves
	default:
		panic(fmt.Sprintf("syntax.Inspect: unexpected node type %T", n))
	}
}

func inspectList(nodes []Node, fn func(Node) bool) {
	for _, c := range nodes {
		Inspect(c, fn)
	}
}

// HasJSX reports whether the tree contains any JSX element or fragment.
func HasJSX(n Node) bool {
	found := false
	Inspect(n, func(n Node) bool {
		switch n.(type) {
		case *JSXElement, *JSXFragment:
			found = true
		}
		return !found
	})
	return found
}

// Imports returns every static import declaration in f.
func Imports(f *File) []*ImportDecl {
	var out []*ImportDecl
	for _, n := range f.Body {
		if d, ok := n.(*ImportDecl); ok {
			out = append(out, d)
		}
	}
	return out
}
