// Package syntax parses TypeScript and JavaScript modules, with or without
// JSX, into a shallow tree that keeps exact source spans.
//
// The parser is not a full grammar. It recognizes only the constructs the
// preview compiler rewrites:
//   - static import declarations, including side-effect and type-only imports
//   - re-exports (export ... from "x")
//   - dynamic imports with a literal specifier
//   - JSX elements and fragments, their attributes and expression containers
//
// Everything else is scanned just enough to tell code apart from strings,
// comments, template literals and regular expressions.
//
// # Editing
//
// Nodes record edits (a new specifier, injected attributes, a replaced
// declaration) and [Print] splices them into the original text. Untouched
// code keeps its bytes, so line numbers in the output match the input.
//
//	f, err := syntax.Parse("/App.tsx", src)
//	syntax.Inspect(f, func(n syntax.Node) bool {
//	    if imp, ok := n.(*syntax.ImportDecl); ok {
//	        imp.Source.Set("https://esm.sh/react@18.2.0")
//	    }
//	    return true
//	})
//	out := syntax.Print(f)
//
// Positions are byte offsets. [LineIndex] converts them to 1-based lines and
// 0-based columns.
package syntax
