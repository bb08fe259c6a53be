package mapper

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/mattn/go-runewidth"

	"github.com/matzehuels/pipo/pkg/syntax"
)

// DefaultContextLines is the number of lines shown around the error line.
const DefaultContextLines = 2

// CodeFrame renders the lines around line (1-based) with a caret under
// column (0-based, in runes):
//
//	  1 | import a from './a';
//	> 2 | const x = ;
//	    |           ^
//	  3 | export default x;
//
// The caret accounts for wide characters and keeps tabs. It returns ""
// when line is outside src.
func CodeFrame(src string, line, column, context int) string {
	li := syntax.NewLineIndex(src)
	if line < 1 || line > li.Count() {
		return ""
	}
	first := max(1, line-context)
	last := min(li.Count(), line+context)
	width := len(strconv.Itoa(last))

	var b strings.Builder
	for n := first; n <= last; n++ {
		text, _ := li.Line(n)
		marker := " "
		if n == line {
			marker = ">"
		}
		gutter := fmt.Sprintf("%s %*d |", marker, width, n)
		if text == "" {
			b.WriteString(gutter)
		} else {
			b.WriteString(gutter + " " + text)
		}
		b.WriteByte('\n')

		if n == line {
			b.WriteString("  " + strings.Repeat(" ", width) + " | ")
			b.WriteString(caretPadding(text, column))
			b.WriteString("^\n")
		}
	}
	return strings.TrimSuffix(b.String(), "\n")
}

// caretPadding returns the whitespace that puts a caret under column.
func caretPadding(text string, column int) string {
	var b strings.Builder
	for i, r := range []rune(text) {
		if i >= column {
			break
		}
		if r == '\t' {
			b.WriteByte('\t')
			continue
		}
		b.WriteString(strings.Repeat(" ", runewidth.RuneWidth(r)))
	}
	return b.String()
}
