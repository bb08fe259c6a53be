package syntax

import (
	"sort"
	"strings"
	"unicode/utf8"
)

// LineIndex maps byte offsets to line and column numbers.
type LineIndex struct {
	src    string
	starts []int
}

// NewLineIndex indexes the line starts of src.
func NewLineIndex(src string) *LineIndex {
	starts := []int{0}
	for i := 0; i < len(src); i++ {
		if src[i] == '\n' {
			starts = append(starts, i+1)
		}
	}
	return &LineIndex{src: src, starts: starts}
}

// Position returns the 1-based line and 0-based column (in runes) of off.
func (li *LineIndex) Position(off Pos) (line, col int) {
	o := min(max(int(off), 0), len(li.src))
	i := sort.Search(len(li.starts), func(i int) bool { return li.starts[i] > o }) - 1
	return i + 1, utf8.RuneCountInString(li.src[li.starts[i]:o])
}

// Count returns the number of lines.
func (li *LineIndex) Count() int { return len(li.starts) }

// Line returns the text of the 1-based line n without its terminator.
func (li *LineIndex) Line(n int) (string, bool) {
	if n < 1 || n > len(li.starts) {
		return "", false
	}
	start := li.starts[n-1]
	end := len(li.src)
	if n < len(li.starts) {
		end = li.starts[n] - 1
	}
	return strings.TrimSuffix(li.src[start:end], "\r"), true
}
