package syntax

import (
	"fmt"
	"strings"
)

type tokKind uint8

const (
	tokNone tokKind = iota
	tokIdent
	tokPunct
	tokValue // string, number, template, regex or JSX
)

// Keywords after which an expression, and so a regex or JSX, may begin.
var exprKeywords = map[string]bool{
	"return": true, "typeof": true, "instanceof": true, "in": true, "of": true,
	"new": true, "delete": true, "void": true, "throw": true, "case": true,
	"do": true, "else": true, "yield": true, "await": true, "default": true,
}

type parser struct {
	path string
	src  string
	pos  int
	jsx  bool

	prevKind tokKind
	prevText string
}

// Parse parses src. JSX is recognized only when the extension of path
// allows it (.tsx, .jsx, .js, .mjs).
func Parse(path, src string) (*File, error) {
	p := &parser{path: path, src: src, jsx: allowsJSX(path)}
	f := &File{Path: path, Src: src, Lines: NewLineIndex(src)}
	body, err := p.scanJS(false)
	if err != nil {
		if se, ok := err.(*Error); ok {
			se.Line, se.Column = f.Lines.Position(se.Offset)
		}
		return nil, err
	}
	f.Body = body
	return f, nil
}

func allowsJSX(path string) bool {
	i := strings.LastIndexByte(path, '.')
	if i < 0 {
		return false
	}
	switch strings.ToLower(path[i:]) {
	case ".tsx", ".jsx", ".js", ".mjs":
		return true
	}
	return false
}

func (p *parser) errorf(off int, format string, args ...any) error {
	return &Error{Path: p.path, Offset: Pos(off), Message: fmt.Sprintf(format, args...)}
}

// =============================================================================
// Script scanning
// =============================================================================

// scanJS scans script code. At top level it runs to EOF; when nested it
// stops at the unmatched "}" that closes the current container and leaves
// pos on it.
func (p *parser) scanJS(nested bool) ([]Node, error) {
	var nodes []Node
	depth := 0
	p.setPrev(tokNone, "")

	for p.pos < len(p.src) {
		c := p.src[p.pos]
		switch {
		case isSpace(c):
			p.pos++
		case c == '/' && p.peek(1) == '/':
			p.skipLineComment()
		case c == '/' && p.peek(1) == '*':
			if err := p.skipBlockComment(); err != nil {
				return nil, err
			}
		case c == '\'' || c == '"':
			p.skipString(c)
			p.setPrev(tokValue, "")
		case c == '`':
			inner, err := p.scanTemplate()
			if err != nil {
				return nil, err
			}
			nodes = append(nodes, inner...)
			p.setPrev(tokValue, "")
		case c == '/' && p.exprStart():
			if p.skipRegex() {
				p.setPrev(tokValue, "")
			} else {
				p.pos++
				p.setPrev(tokPunct, "/")
			}
		case c == '<' && p.jsx && p.exprStart():
			if n, ok := p.tryJSX(); ok {
				nodes = append(nodes, n)
				p.setPrev(tokValue, "")
				continue
			}
			p.pos++
			p.setPrev(tokPunct, "<")
		case isIdentStart(c):
			start := p.pos
			word := p.readIdent()
			afterDot := p.prevKind == tokPunct && p.prevText == "."
			if !afterDot && word == "import" {
				if n, ok := p.parseImport(start, !nested && depth == 0); ok {
					nodes = append(nodes, n)
				}
				continue
			}
			if !afterDot && word == "export" && !nested && depth == 0 {
				if n, ok := p.parseExportFrom(start); ok {
					nodes = append(nodes, n)
					continue
				}
			}
			p.setPrev(tokIdent, word)
		case isDigit(c):
			p.readNumber()
			p.setPrev(tokValue, "")
		case c == '{':
			depth++
			p.pos++
			p.setPrev(tokPunct, "{")
		case c == '}':
			if depth == 0 && nested {
				return nodes, nil
			}
			depth = max(depth-1, 0)
			p.pos++
			p.setPrev(tokPunct, "}")
		case c >= 0x80:
			// non-ASCII identifier characters
			p.pos++
			p.setPrev(tokIdent, "")
		default:
			p.pos++
			p.setPrev(tokPunct, string(c))
		}
	}

	if nested {
		return nil, p.errorf(p.pos, "unexpected end of file, expected \"}\"")
	}
	return nodes, nil
}

func (p *parser) setPrev(k tokKind, text string) {
	p.prevKind, p.prevText = k, text
}

// exprStart reports whether an operand may begin at the current position.
func (p *parser) exprStart() bool {
	switch p.prevKind {
	case tokNone:
		return true
	case tokPunct:
		return p.prevText != ")" && p.prevText != "]" && p.prevText != "}"
	case tokIdent:
		return exprKeywords[p.prevText]
	}
	return false
}

func (p *parser) peek(n int) byte {
	if p.pos+n < len(p.src) {
		return p.src[p.pos+n]
	}
	return 0
}

func (p *parser) skipLineComment() {
	for p.pos < len(p.src) && p.src[p.pos] != '\n' {
		p.pos++
	}
}

func (p *parser) skipBlockComment() error {
	start := p.pos
	end := strings.Index(p.src[p.pos+2:], "*/")
	if end < 0 {
		p.pos = len(p.src)
		return p.errorf(start, "unterminated comment")
	}
	p.pos += end + 4
	return nil
}

// skipString skips a quoted string. Strings cannot span lines, so a raw
// newline ends an unterminated string.
func (p *parser) skipString(q byte) {
	p.pos++
	for p.pos < len(p.src) {
		switch p.src[p.pos] {
		case '\\':
			p.pos += 2
			continue
		case q:
			p.pos++
			return
		case '\n':
			return
		}
		p.pos++
	}
	p.pos = min(p.pos, len(p.src))
}

// scanTemplate skips a template literal and scans its substitutions.
func (p *parser) scanTemplate() ([]Node, error) {
	start := p.pos
	p.pos++
	var nodes []Node
	for p.pos < len(p.src) {
		switch p.src[p.pos] {
		case '\\':
			p.pos += 2
			continue
		case '`':
			p.pos++
			return nodes, nil
		case '$':
			if p.peek(1) == '{' {
				p.pos += 2
				inner, err := p.scanJS(true)
				if err != nil {
					return nil, err
				}
				nodes = append(nodes, inner...)
				p.pos++ // }
				continue
			}
		}
		p.pos++
	}
	return nil, p.errorf(start, "unterminated template literal")
}

// skipRegex skips a regular expression literal. It gives up at a line break
// and leaves pos unchanged so the slash is read as division.
func (p *parser) skipRegex() bool {
	start := p.pos
	p.pos++
	inClass := false
	for p.pos < len(p.src) {
		switch c := p.src[p.pos]; {
		case c == '\\':
			p.pos += 2
			continue
		case c == '\n':
			p.pos = start
			return false
		case c == '[':
			inClass = true
		case c == ']':
			inClass = false
		case c == '/' && !inClass:
			p.pos++
			for p.pos < len(p.src) && isIdentPart(p.src[p.pos]) {
				p.pos++
			}
			return true
		}
		p.pos++
	}
	p.pos = start
	return false
}

func (p *parser) readIdent() string {
	start := p.pos
	for p.pos < len(p.src) && isIdentPart(p.src[p.pos]) {
		p.pos++
	}
	return p.src[start:p.pos]
}

func (p *parser) readNumber() {
	for p.pos < len(p.src) && (isIdentPart(p.src[p.pos]) || p.src[p.pos] == '.') {
		p.pos++
	}
}

// skipTrivia skips whitespace and comments.
func (p *parser) skipTrivia() {
	for p.pos < len(p.src) {
		switch {
		case isSpace(p.src[p.pos]):
			p.pos++
		case p.src[p.pos] == '/' && p.peek(1) == '/':
			p.skipLineComment()
		case p.src[p.pos] == '/' && p.peek(1) == '*':
			_ = p.skipBlockComment()
		default:
			return
		}
	}
}

// word returns the identifier at pos without consuming it.
func (p *parser) word() string {
	save := p.pos
	w := ""
	if p.pos < len(p.src) && isIdentStart(p.src[p.pos]) {
		w = p.readIdent()
	}
	p.pos = save
	return w
}

func (p *parser) consumeWord(w string) bool {
	if p.word() != w {
		return false
	}
	p.pos += len(w)
	return true
}

func (p *parser) readStringLit() (*StringLit, bool) {
	if p.pos >= len(p.src) {
		return nil, false
	}
	q := p.src[p.pos]
	if q != '\'' && q != '"' {
		return nil, false
	}
	start := p.pos
	p.skipString(q)
	if p.pos-start < 2 || p.src[p.pos-1] != q {
		p.pos = start
		return nil, false
	}
	return &StringLit{
		Start: Pos(start),
		Stop:  Pos(p.pos),
		Quote: q,
		Value: p.src[start+1 : p.pos-1],
	}, true
}

// =============================================================================
// Module syntax
// =============================================================================

// parseImport handles the "import" keyword at start. pos is just past it.
func (p *parser) parseImport(start int, topLevel bool) (Node, bool) {
	save := p.pos
	p.skipTrivia()

	switch p.peek(0) {
	case '(':
		if n, ok := p.parseDynamicImport(start); ok {
			return n, true
		}
	case '.':
		// import.meta
	default:
		if topLevel {
			if d, ok := p.parseImportDecl(start); ok {
				p.setPrev(tokPunct, ";")
				return d, true
			}
		}
	}
	p.pos = save
	p.setPrev(tokIdent, "import")
	return nil, false
}

func (p *parser) parseDynamicImport(start int) (Node, bool) {
	p.pos++ // (
	p.skipTrivia()
	lit, ok := p.readStringLit()
	if !ok {
		return nil, false
	}
	after := p.pos
	p.skipTrivia()
	if c := p.peek(0); c != ')' && c != ',' {
		return nil, false
	}
	p.pos = after
	p.setPrev(tokValue, "")
	return &DynamicImport{Start: Pos(start), Stop: lit.Stop, Source: lit}, true
}

func (p *parser) parseImportDecl(start int) (*ImportDecl, bool) {
	d := &ImportDecl{Start: Pos(start)}

	if lit, ok := p.readStringLit(); ok {
		d.Source = lit
		d.SideEffect = true
		p.finishStatement()
		d.Stop = Pos(p.pos)
		return d, true
	}

	if p.word() == "type" {
		save := p.pos
		p.pos += len("type")
		p.skipTrivia()
		next := p.word()
		switch {
		case p.peek(0) == '{' || p.peek(0) == '*':
			d.TypeOnly = true
		case next != "" && next != "from":
			d.TypeOnly = true
		default:
			p.pos = save // "type" is the default binding
		}
	}

	for p.pos < len(p.src) {
		p.skipTrivia()
		switch c := p.peek(0); {
		case c == '{':
			end := strings.IndexByte(p.src[p.pos:], '}')
			if end < 0 {
				return nil, false
			}
			d.Named = strings.TrimSpace(p.src[p.pos+1 : p.pos+end])
			p.pos += end + 1
		case c == '*':
			p.pos++
			p.skipTrivia()
			if !p.consumeWord("as") {
				return nil, false
			}
			p.skipTrivia()
			if d.Namespace = p.readIdentIfAny(); d.Namespace == "" {
				return nil, false
			}
		case c == ',':
			p.pos++
		case isIdentStart(c):
			w := p.readIdent()
			if w == "from" && (d.Default != "" || d.Named != "" || d.Namespace != "") {
				p.skipTrivia()
				lit, ok := p.readStringLit()
				if !ok {
					return nil, false
				}
				d.Source = lit
				p.finishStatement()
				d.Stop = Pos(p.pos)
				return d, true
			}
			if d.Default != "" {
				return nil, false
			}
			d.Default = w
		default:
			// import x = require("y") and other forms
			return nil, false
		}
	}
	return nil, false
}

func (p *parser) readIdentIfAny() string {
	if p.pos < len(p.src) && isIdentStart(p.src[p.pos]) {
		return p.readIdent()
	}
	return ""
}

// parseExportFrom handles re-exports. pos is just past "export".
func (p *parser) parseExportFrom(start int) (Node, bool) {
	save := p.pos
	fail := func() (Node, bool) {
		p.pos = save
		p.setPrev(tokIdent, "export")
		return nil, false
	}

	p.skipTrivia()
	e := &ExportFrom{Start: Pos(start)}
	if p.word() == "type" {
		typeEnd := p.pos + len("type")
		p.pos = typeEnd
		p.skipTrivia()
		if c := p.peek(0); c != '{' && c != '*' {
			return fail()
		}
		e.TypeOnly = true
	}

	switch p.peek(0) {
	case '*':
		p.pos++
		p.skipTrivia()
		if p.consumeWord("as") {
			p.skipTrivia()
			if _, ok := p.readStringLit(); !ok && p.readIdentIfAny() == "" {
				return fail()
			}
		}
	case '{':
		end := strings.IndexByte(p.src[p.pos:], '}')
		if end < 0 {
			return fail()
		}
		p.pos += end + 1
	default:
		return fail()
	}

	p.skipTrivia()
	if !p.consumeWord("from") {
		return fail()
	}
	p.skipTrivia()
	lit, ok := p.readStringLit()
	if !ok {
		return fail()
	}
	e.Source = lit
	p.finishStatement()
	e.Stop = Pos(p.pos)
	p.setPrev(tokPunct, ";")
	return e, true
}

// finishStatement consumes import attributes and an optional semicolon on
// the same line.
func (p *parser) finishStatement() {
	save := p.pos
	p.skipInlineSpace()
	if w := p.word(); w == "with" || w == "assert" {
		p.pos += len(w)
		p.skipTrivia()
		if p.peek(0) == '{' {
			if end := strings.IndexByte(p.src[p.pos:], '}'); end >= 0 {
				p.pos += end + 1
				save = p.pos
				p.skipInlineSpace()
			}
		}
	}
	if p.peek(0) == ';' {
		p.pos++
		return
	}
	p.pos = save
}

func (p *parser) skipInlineSpace() {
	for p.pos < len(p.src) && (p.src[p.pos] == ' ' || p.src[p.pos] == '\t') {
		p.pos++
	}
}

// =============================================================================
// JSX
// =============================================================================

// tryJSX parses a JSX element or fragment at "<". On failure it restores
// the position so the "<" is read as an operator; this covers TypeScript
// type parameters in .tsx files.
func (p *parser) tryJSX() (Node, bool) {
	save := p.pos
	n, err := p.parseJSX()
	if err != nil {
		p.pos = save
		return nil, false
	}
	return n, true
}

func (p *parser) parseJSX() (Node, error) {
	start := p.pos
	p.pos++ // <
	p.skipTrivia()

	if p.peek(0) == '>' {
		p.pos++
		children, closing, err := p.parseChildren("")
		if err != nil {
			return nil, err
		}
		return &JSXFragment{Start: Pos(start), Stop: closing.Stop, Children: children}, nil
	}

	open, err := p.parseOpening(start)
	if err != nil {
		return nil, err
	}
	if open.SelfClosing {
		return &JSXElement{Open: open}, nil
	}
	children, closing, err := p.parseChildren(open.Name)
	if err != nil {
		return nil, err
	}
	return &JSXElement{Open: open, Children: children, Close: closing}, nil
}

func (p *parser) readJSXName() string {
	if p.pos >= len(p.src) || !isIdentStart(p.src[p.pos]) {
		return ""
	}
	start := p.pos
	for p.pos < len(p.src) {
		c := p.src[p.pos]
		if !isIdentPart(c) && c != '.' && c != ':' && c != '-' {
			break
		}
		p.pos++
	}
	return p.src[start:p.pos]
}

func (p *parser) parseOpening(start int) (*JSXOpening, error) {
	name := p.readJSXName()
	if name == "" {
		return nil, p.errorf(p.pos, "expected element name")
	}
	o := &JSXOpening{Start: Pos(start), Name: name, InsertAt: Pos(p.pos)}

	p.skipTrivia()
	if p.peek(0) == ',' || p.word() == "extends" {
		return nil, p.errorf(p.pos, "type parameter list")
	}

	for {
		p.skipTrivia()
		if p.pos >= len(p.src) {
			return nil, p.errorf(start, "unterminated tag <%s>", name)
		}
		switch c := p.src[p.pos]; {
		case c == '/' && p.peek(1) == '>':
			p.pos += 2
			o.SelfClosing = true
			o.Stop = Pos(p.pos)
			return o, nil
		case c == '>':
			p.pos++
			o.Stop = Pos(p.pos)
			return o, nil
		case c == '{':
			a, err := p.parseSpreadAttr()
			if err != nil {
				return nil, err
			}
			o.Attrs = append(o.Attrs, a)
			o.InsertAt = a.Stop
		case isIdentStart(c):
			a, err := p.parseAttr()
			if err != nil {
				return nil, err
			}
			o.Attrs = append(o.Attrs, a)
			o.InsertAt = a.Stop
		default:
			return nil, p.errorf(p.pos, "unexpected %q in <%s>", c, name)
		}
	}
}

func (p *parser) parseSpreadAttr() (*JSXAttr, error) {
	start := p.pos
	p.pos++ // {
	p.skipTrivia()
	if !strings.HasPrefix(p.src[p.pos:], "...") {
		return nil, p.errorf(p.pos, "expected \"...\" in spread attribute")
	}
	p.pos += 3
	expr, err := p.parseExprContainer(start)
	if err != nil {
		return nil, err
	}
	return &JSXAttr{Start: Pos(start), Stop: expr.Stop, Spread: true, Expr: expr}, nil
}

func (p *parser) parseAttr() (*JSXAttr, error) {
	start := p.pos
	name := p.readJSXName()
	a := &JSXAttr{Start: Pos(start), Name: name}
	a.Stop = Pos(p.pos)

	save := p.pos
	p.skipTrivia()
	if p.peek(0) != '=' {
		p.pos = save
		return a, nil
	}
	p.pos++
	p.skipTrivia()

	switch c := p.peek(0); c {
	case '"', '\'':
		end := strings.IndexByte(p.src[p.pos+1:], c)
		if end < 0 {
			return nil, p.errorf(p.pos, "unterminated attribute value")
		}
		a.Value = p.src[p.pos+1 : p.pos+1+end]
		p.pos += end + 2
	case '{':
		p.pos++
		expr, err := p.parseExprContainer(p.pos - 1)
		if err != nil {
			return nil, err
		}
		a.Expr = expr
	case '<':
		elem, err := p.parseJSX()
		if err != nil {
			return nil, err
		}
		a.Elem = elem
	default:
		return nil, p.errorf(p.pos, "expected attribute value for %s", name)
	}
	a.Stop = Pos(p.pos)
	return a, nil
}

// parseExprContainer scans the script inside "{...}". start is the offset
// of "{" and pos is already past it.
func (p *parser) parseExprContainer(start int) (*JSXExpr, error) {
	nodes, err := p.scanJS(true)
	if err != nil {
		return nil, err
	}
	p.pos++ // }
	return &JSXExpr{Start: Pos(start), Stop: Pos(p.pos), Nodes: nodes}, nil
}

// parseChildren reads children up to and including the closing tag for name.
func (p *parser) parseChildren(name string) ([]Node, *JSXClosing, error) {
	var children []Node
	for p.pos < len(p.src) {
		switch p.src[p.pos] {
		case '<':
			save := p.pos
			p.pos++
			p.skipTrivia()
			if p.peek(0) == '/' {
				p.pos++
				p.skipTrivia()
				closeName := p.readJSXName()
				p.skipTrivia()
				if p.peek(0) != '>' {
					return nil, nil, p.errorf(p.pos, "expected \">\" in closing tag")
				}
				p.pos++
				if closeName != name {
					return nil, nil, p.errorf(save, "expected closing tag for <%s>, found </%s>", name, closeName)
				}
				return children, &JSXClosing{Start: Pos(save), Stop: Pos(p.pos), Name: closeName}, nil
			}
			p.pos = save
			child, err := p.parseJSX()
			if err != nil {
				return nil, nil, err
			}
			children = append(children, child)
		case '{':
			start := p.pos
			p.pos++
			expr, err := p.parseExprContainer(start)
			if err != nil {
				return nil, nil, err
			}
			children = append(children, expr)
		default:
			p.pos++ // text
		}
	}
	return nil, nil, p.errorf(p.pos, "unterminated element <%s>", name)
}

// =============================================================================
// Character classes
// =============================================================================

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '\f' || c == '\v'
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func isIdentStart(c byte) bool {
	return c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c == '_' || c == '$'
}

func isIdentPart(c byte) bool { return isIdentStart(c) || isDigit(c) }
