package syntax

import (
	"sort"
	"strings"
)

type edit struct {
	start, stop Pos
	text        string
}

// Print renders f with every recorded edit applied.
//
// Edits never add line breaks of their own, so a position in the output is
// on the same line as in the input.
func Print(f *File) string {
	var edits []edit
	Inspect(f, func(n Node) bool {
		switch n := n.(type) {
		case *ImportDecl:
			if code, ok := n.Replacement(); ok {
				edits = append(edits, edit{n.Start, n.Stop, code})
				return false
			}
			edits = appendLit(edits, n.Source)
		case *ExportFrom:
			edits = appendLit(edits, n.Source)
		case *DynamicImport:
			edits = appendLit(edits, n.Source)
		case *JSXOpening:
			if attrs := n.Injected(); len(attrs) > 0 {
				var b strings.Builder
				for _, a := range attrs {
					b.WriteByte(' ')
					b.WriteString(a.Name)
					b.WriteString(`="`)
					b.WriteString(strings.ReplaceAll(a.Value, `"`, "&quot;"))
					b.WriteByte('"')
				}
				edits = append(edits, edit{n.InsertAt, n.InsertAt, b.String()})
			}
		}
		return true
	})

	sort.SliceStable(edits, func(i, j int) bool { return edits[i].start < edits[j].start })

	var b strings.Builder
	b.Grow(len(f.Src) + len(f.prefix))
	b.WriteString(f.prefix)
	last := Pos(0)
	for _, e := range edits {
		if e.start < last {
			continue // inside a replaced range
		}
		b.WriteString(f.Src[last:e.start])
		b.WriteString(e.text)
		last = e.stop
	}
	b.WriteString(f.Src[last:])
	return b.String()
}

func appendLit(edits []edit, s *StringLit) []edit {
	if s == nil || !s.Changed() {
		return edits
	}
	return append(edits, edit{s.Start, s.Stop, Quote(s.Current(), s.Quote)})
}

// Quote renders v as a script string literal using quote q.
func Quote(v string, q byte) string {
	if q != '\'' && q != '"' {
		q = '"'
	}
	var b strings.Builder
	b.Grow(len(v) + 2)
	b.WriteByte(q)
	for i := 0; i < len(v); i++ {
		switch c := v[i]; c {
		case '\\', q:
			b.WriteByte('\\')
			b.WriteByte(c)
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		default:
			b.WriteByte(c)
		}
	}
	b.WriteByte(q)
	return b.String()
}
