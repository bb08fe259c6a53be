package mapper

import (
	stderrors "errors"
	"net/url"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/pipo/pkg/errors"
	"github.com/matzehuels/pipo/pkg/protocol"
	"github.com/matzehuels/pipo/pkg/syntax"
	"github.com/matzehuels/pipo/pkg/vfs"
)

// Kind classifies an [ErrorInfo].
type Kind string

const (
	KindCompile Kind = "compile"
	KindRuntime Kind = "runtime"
)

// DefaultRuntimeMessage is used when the sandbox sent no message.
const DefaultRuntimeMessage = "Runtime error occurred"

// ErrorInfo is an error expressed in original paths.
type ErrorInfo struct {
	Kind      Kind   `json:"type"`
	Message   string `json:"message"`
	Stack     string `json:"stack,omitempty"`
	FileName  string `json:"fileName,omitempty"`
	Line      int    `json:"lineNumber,omitempty"`
	Column    int    `json:"columnNumber,omitempty"`
	CodeFrame string `json:"codeFrame,omitempty"`
}

// Point is a position in sandbox viewport pixels.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// SourceInfo is the source range behind a clicked element.
type SourceInfo struct {
	File        string `json:"file"`
	StartLine   int    `json:"startLine"`
	EndLine     int    `json:"endLine"`
	StartColumn int    `json:"startColumn"`
	EndColumn   int    `json:"endColumn"`
	Content     string `json:"content"`
	Position    Point  `json:"position"`
}

// Mapper holds the reference lookup of one pass. It is safe for
// concurrent use.
type Mapper struct {
	mu    sync.RWMutex
	refs  map[string]string // reference URL -> path
	paths []string          // user paths, longest first
	refRE *regexp.Regexp    // any known reference, optionally with origin
	frame *regexp.Regexp    // a known reference followed by :line:col
	files *vfs.FileSet

	logger *log.Logger
}

// New creates an empty mapper.
func New(logger *log.Logger) *Mapper {
	if logger == nil {
		logger = log.Default()
	}
	return &Mapper{
		refs:   map[string]string{},
		files:  vfs.New(),
		logger: logger.WithPrefix("mapper"),
	}
}

// SetReferences replaces the reference -> path lookup.
func (m *Mapper) SetReferences(refs map[string]string) {
	keys := make([]string, 0, len(refs))
	paths := make([]string, 0, len(refs))
	copied := make(map[string]string, len(refs))
	for u, p := range refs {
		copied[u] = p
		keys = append(keys, u)
		paths = append(paths, p)
	}
	byLength := func(a, b string) int { return len(b) - len(a) }
	slices.SortFunc(keys, byLength)
	slices.SortFunc(paths, byLength)

	var refRE, frame *regexp.Regexp
	if len(keys) > 0 {
		quoted := make([]string, len(keys))
		for i, k := range keys {
			quoted[i] = regexp.QuoteMeta(k)
		}
		alt := `(?:https?://[^/\s()]+)?(?:` + strings.Join(quoted, "|") + `)`
		refRE = regexp.MustCompile(alt)
		frame = regexp.MustCompile(`(` + alt + `):(\d+):(\d+)`)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.refs = copied
	m.paths = paths
	m.refRE = refRE
	m.frame = frame
}

// SetFiles sets the files of the current pass.
func (m *Mapper) SetFiles(files *vfs.FileSet) {
	if files == nil {
		files = vfs.New()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.files = files
}

// lookup maps a reference, absolute or root-relative, to its path.
func (m *Mapper) lookup(ref string) (string, bool) {
	if p, ok := m.refs[ref]; ok {
		return p, true
	}
	if u, err := url.Parse(ref); err == nil && u.Host != "" {
		if p, ok := m.refs[u.Path]; ok {
			return p, true
		}
	}
	return "", false
}

// userFile returns path if it belongs to the project.
func (m *Mapper) userFile(path string) string {
	if path == "" {
		return ""
	}
	if m.files.Has(path) {
		return path
	}
	if r := vfs.ResolveFile(path, m.files); m.files.Has(r) {
		return r
	}
	return ""
}

// ProcessRuntimeError maps a sandbox runtime error.
//
// The file is taken from the first stack frame naming a known reference,
// then from the reported filename, then from any known reference found in
// the stack. It is only set when it names a project file.
func (m *Mapper) ProcessRuntimeError(e protocol.RuntimeError) ErrorInfo {
	m.mu.RLock()
	defer m.mu.RUnlock()

	info := ErrorInfo{
		Kind:    KindRuntime,
		Message: e.Message,
		Line:    e.Lineno,
		Column:  e.Colno,
	}
	if info.Message == "" {
		info.Message = DefaultRuntimeMessage
	}

	file := ""
	if m.frame != nil && e.Stack != "" {
		for _, line := range strings.Split(e.Stack, "\n") {
			sub := m.frame.FindStringSubmatch(line)
			if sub == nil {
				continue
			}
			if p, ok := m.lookup(sub[1]); ok {
				file = p
				if info.Line == 0 {
					info.Line, _ = strconv.Atoi(sub[2])
					info.Column, _ = strconv.Atoi(sub[3])
				}
				break
			}
		}
	}
	if file == "" && e.Filename != "" {
		if p, ok := m.lookup(e.Filename); ok {
			file = p
		} else {
			file = e.Filename
		}
	}
	if file == "" && m.refRE != nil && e.Stack != "" {
		if ref := m.refRE.FindString(e.Stack); ref != "" {
			file, _ = m.lookup(ref)
		}
	}

	info.FileName = m.userFile(file)
	info.Stack = m.processStackTrace(e.Stack)
	m.logger.Debug("mapped runtime error", "file", info.FileName, "line", info.Line)
	return info
}

// ProcessCompileError maps a compile failure. Backend diagnostics and
// parse errors keep their position; a code frame is generated when the
// backend did not provide one, and removed from the message when the
// backend repeated it there.
func (m *Mapper) ProcessCompileError(err error) ErrorInfo {
	m.mu.RLock()
	defer m.mu.RUnlock()

	info := ErrorInfo{Kind: KindCompile, Message: errors.UserMessage(err)}

	var se *syntax.Error
	if ce, ok := errors.AsCompileError(err); ok {
		info.Message = ce.Message
		info.FileName = ce.File
		info.Line = ce.Line
		info.Column = ce.Column
		info.CodeFrame = ce.CodeFrame
	} else if stderrors.As(err, &se) {
		info.Message = se.Message
		info.FileName = se.Path
		info.Line = se.Line
		info.Column = se.Column
	}

	if p, ok := m.lookup(info.FileName); ok {
		info.FileName = p
	}
	info.FileName = m.userFile(info.FileName)

	if info.CodeFrame != "" && strings.Contains(info.Message, info.CodeFrame) {
		info.Message = strings.TrimSpace(strings.Replace(info.Message, info.CodeFrame, "", 1))
	}
	if info.CodeFrame == "" && info.FileName != "" && info.Line > 0 {
		src, _ := m.files.Get(info.FileName)
		info.CodeFrame = CodeFrame(src, info.Line, info.Column, DefaultContextLines)
	}
	return info
}

// ProcessStackTrace replaces every known reference in stack with its
// path and keeps the lines that mention a project file. A stack naming no
// known reference is reduced to its first line.
func (m *Mapper) ProcessStackTrace(stack string) string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.processStackTrace(stack)
}

func (m *Mapper) processStackTrace(stack string) string {
	if stack == "" {
		return ""
	}
	lines := strings.Split(stack, "\n")
	if m.refRE == nil || !m.refRE.MatchString(stack) {
		return lines[0]
	}

	replaced := m.refRE.ReplaceAllStringFunc(stack, func(ref string) string {
		if p, ok := m.lookup(ref); ok {
			return p
		}
		return ref
	})

	var keep []string
	for _, line := range strings.Split(replaced, "\n") {
		for _, p := range m.paths {
			if strings.Contains(line, p) {
				keep = append(keep, line)
				break
			}
		}
	}
	if len(keep) == 0 {
		return lines[0]
	}
	return strings.Join(keep, "\n")
}

// ResolveClick returns the source range behind a clicked element. Lines
// are clamped to the file; columns are clamped to their lines.
func (m *Mapper) ResolveClick(c protocol.ElementClick) (SourceInfo, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	file := m.userFile(c.File)
	if file == "" {
		m.logger.Debug("click on unknown file", "file", c.File)
		return SourceInfo{}, false
	}
	src, _ := m.files.Get(file)
	li := syntax.NewLineIndex(src)

	start := clamp(c.StartLine, 1, li.Count())
	end := clamp(c.EndLine, start, li.Count())
	info := SourceInfo{
		File:      file,
		StartLine: start,
		EndLine:   end,
		Position:  Point{X: c.X, Y: c.Y},
	}

	first := lineRunes(li, start)
	if start == end {
		sc := clamp(c.StartColumn, 0, len(first))
		ec := clamp(c.EndColumn, sc, len(first))
		info.StartColumn, info.EndColumn = sc, ec
		info.Content = string(first[sc:ec])
		return info, true
	}

	last := lineRunes(li, end)
	sc := clamp(c.StartColumn, 0, len(first))
	ec := clamp(c.EndColumn, 0, len(last))
	info.StartColumn, info.EndColumn = sc, ec

	parts := []string{string(first[sc:])}
	for n := start + 1; n < end; n++ {
		l, _ := li.Line(n)
		parts = append(parts, l)
	}
	parts = append(parts, string(last[:ec]))
	info.Content = strings.Join(parts, "\n")
	return info, true
}

func lineRunes(li *syntax.LineIndex, n int) []rune {
	l, _ := li.Line(n)
	return []rune(l)
}

func clamp(v, lo, hi int) int {
	if hi < lo {
		hi = lo
	}
	return min(max(v, lo), hi)
}
