package syntax

import (
	"fmt"
	"slices"
)

// Pos is a byte offset into the source text.
type Pos int

// Node is implemented by every tree node. The set of implementations is
// closed; consumers switch over the concrete types.
type Node interface {
	Pos() Pos // offset of the first byte
	End() Pos // offset one past the last byte
	node()
}

// Error is a syntax error with a resolved position.
type Error struct {
	Path    string
	Offset  Pos
	Line    int // 1-based
	Column  int // 0-based
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s:%d:%d: %s", e.Path, e.Line, e.Column, e.Message)
}

// =============================================================================
// File
// =============================================================================

// File is a parsed module.
type File struct {
	Path  string
	Src   string
	Body  []Node // top-level nodes in source order
	Lines *LineIndex

	prefix string
}

func (f *File) Pos() Pos { return 0 }
func (f *File) End() Pos { return Pos(len(f.Src)) }
func (*File) node()      {}

// Prepend adds text before the first byte of the printed output.
// Callers that care about line numbers must not include newlines.
func (f *File) Prepend(text string) { f.prefix = text + f.prefix }

// =============================================================================
// Module syntax
// =============================================================================

// StringLit is a quoted module specifier.
type StringLit struct {
	Start, Stop Pos // span including quotes
	Quote       byte
	Value       string // text between the quotes

	newValue *string
}

func (s *StringLit) Pos() Pos { return s.Start }
func (s *StringLit) End() Pos { return s.Stop }
func (*StringLit) node()      {}

// Set records a replacement value.
func (s *StringLit) Set(v string) { s.newValue = &v }

// Changed reports whether Set was called.
func (s *StringLit) Changed() bool { return s.newValue != nil }

// Current returns the replacement value if set, else the original.
func (s *StringLit) Current() string {
	if s.newValue != nil {
		return *s.newValue
	}
	return s.Value
}

// ImportDecl is a static import declaration.
type ImportDecl struct {
	Start, Stop Pos
	Source      *StringLit
	Default     string // default binding, if any
	Namespace   string // binding of "* as name", if any
	Named       string // raw text between the braces, if any
	TypeOnly    bool   // import type ...
	SideEffect  bool   // import "x"

	replacement *string
}

func (d *ImportDecl) Pos() Pos { return d.Start }
func (d *ImportDecl) End() Pos { return d.Stop }
func (*ImportDecl) node()      {}

// Replace swaps the whole declaration for code when printed.
func (d *ImportDecl) Replace(code string) { d.replacement = &code }

// Replacement returns the code set by Replace.
func (d *ImportDecl) Replacement() (string, bool) {
	if d.replacement == nil {
		return "", false
	}
	return *d.replacement, true
}

// Bindings returns the local names the declaration introduces outside of
// braces.
func (d *ImportDecl) Bindings() []string {
	var out []string
	if d.Default != "" {
		out = append(out, d.Default)
	}
	if d.Namespace != "" {
		out = append(out, d.Namespace)
	}
	return out
}

// ExportFrom is a re-export: export * from "x", export { a } from "x".
type ExportFrom struct {
	Start, Stop Pos
	Source      *StringLit
	TypeOnly    bool
}

func (e *ExportFrom) Pos() Pos { return e.Start }
func (e *ExportFrom) End() Pos { return e.Stop }
func (*ExportFrom) node()      {}

// DynamicImport is import("x") with a literal specifier.
type DynamicImport struct {
	Start, Stop Pos
	Source      *StringLit
}

func (d *DynamicImport) Pos() Pos { return d.Start }
func (d *DynamicImport) End() Pos { return d.Stop }
func (*DynamicImport) node()      {}

// =============================================================================
// JSX
// =============================================================================

// JSXElement is <Name ...>children</Name> or <Name ... />.
type JSXElement struct {
	Open     *JSXOpening
	Children []Node
	Close    *JSXClosing // nil when self-closing
}

func (e *JSXElement) Pos() Pos { return e.Open.Start }
func (e *JSXElement) End() Pos {
	if e.Close != nil {
		return e.Close.Stop
	}
	return e.Open.Stop
}
func (*JSXElement) node() {}

// JSXOpening is the opening tag of an element.
type JSXOpening struct {
	Start, Stop Pos
	Name        string
	Attrs       []*JSXAttr
	SelfClosing bool
	InsertAt    Pos // where injected attributes are written

	injected []*JSXAttr
}

func (o *JSXOpening) Pos() Pos { return o.Start }
func (o *JSXOpening) End() Pos { return o.Stop }
func (*JSXOpening) node()      {}

// HasAttr reports whether a named attribute is present or already injected.
func (o *JSXOpening) HasAttr(name string) bool {
	for _, a := range o.Attrs {
		if !a.Spread && a.Name == name {
			return true
		}
	}
	for _, a := range o.injected {
		if a.Name == name {
			return true
		}
	}
	return false
}

// Inject adds a string attribute unless one with the same name exists.
// It reports whether the attribute was added.
func (o *JSXOpening) Inject(name, value string) bool {
	if o.HasAttr(name) {
		return false
	}
	o.injected = append(o.injected, &JSXAttr{Name: name, Value: value, Start: o.InsertAt, Stop: o.InsertAt})
	return true
}

// Injected returns the attributes added with Inject.
func (o *JSXOpening) Injected() []*JSXAttr { return slices.Clone(o.injected) }

// JSXClosing is the closing tag of an element.
type JSXClosing struct {
	Start, Stop Pos
	Name        string
}

func (c *JSXClosing) Pos() Pos { return c.Start }
func (c *JSXClosing) End() Pos { return c.Stop }
func (*JSXClosing) node()      {}

// JSXAttr is one attribute of an opening tag.
type JSXAttr struct {
	Start, Stop Pos
	Name        string
	Spread      bool     // {...props}
	Value       string   // string literal value, without quotes
	Expr        *JSXExpr // value={...}, or the spread expression
	Elem        Node     // value=<Element/>
}

func (a *JSXAttr) Pos() Pos { return a.Start }
func (a *JSXAttr) End() Pos { return a.Stop }
func (*JSXAttr) node()      {}

// JSXFragment is <>children</>.
type JSXFragment struct {
	Start, Stop Pos
	Children    []Node
}

func (f *JSXFragment) Pos() Pos { return f.Start }
func (f *JSXFragment) End() Pos { return f.Stop }
func (*JSXFragment) node()      {}

// JSXExpr is an expression container. Nodes holds the JSX elements and
// dynamic imports found inside the expression.
type JSXExpr struct {
	Start, Stop Pos
	Nodes       []Node
}

func (e *JSXExpr) Pos() Pos { return e.Start }
func (e *JSXExpr) End() Pos { return e.Stop }
func (*JSXExpr) node()      {}
