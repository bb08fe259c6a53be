package cli

import (
	"fmt"
	"os"
	"slices"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"

	"github.com/matzehuels/pipo/pkg/errors"
	"github.com/matzehuels/pipo/pkg/syntax"
	"github.com/matzehuels/pipo/pkg/vfs"
)

// List styles
var (
	listSelectedStyle = lipgloss.NewStyle().Bold(true).Foreground(colorCyan)
	listNormalStyle   = lipgloss.NewStyle().Foreground(colorWhite)
	listDimStyle      = lipgloss.NewStyle().Foreground(colorDim)
)

// errNoSelection is returned when the picker is left without a choice.
var errNoSelection = errors.New(errors.ErrCodeEntryNotFound, "no entry file selected")

// =============================================================================
// EntryListModel - Interactive entry selection
// =============================================================================

// EntryCandidate is a file that may serve as the preview entry.
type EntryCandidate struct {
	Path  string
	Lines int
}

// EntryListModel is the bubbletea model for picking an entry file.
type EntryListModel struct {
	Entries  []EntryCandidate
	Cursor   int
	Selected string
	Height   int
	Offset   int
}

// NewEntryListModel creates a new entry list model.
func NewEntryListModel(entries []EntryCandidate) EntryListModel {
	return EntryListModel{Entries: entries, Height: 15}
}

func (m EntryListModel) Init() tea.Cmd {
	return nil
}

func (m EntryListModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		case "up", "k":
			if m.Cursor > 0 {
				m.Cursor--
				if m.Cursor < m.Offset {
					m.Offset = m.Cursor
				}
			}
		case "down", "j":
			if m.Cursor < len(m.Entries)-1 {
				m.Cursor++
				if m.Cursor >= m.Offset+m.Height {
					m.Offset = m.Cursor - m.Height + 1
				}
			}
		case "enter":
			if len(m.Entries) == 0 {
				return m, tea.Quit
			}
			m.Selected = m.Entries[m.Cursor].Path
			return m, tea.Quit
		}
	case tea.WindowSizeMsg:
		m.Height = max(msg.Height-6, 5)
	}
	return m, nil
}

func (m EntryListModel) View() string {
	var b strings.Builder

	b.WriteString(StyleTitle.Render("Select Entry File"))
	b.WriteString("\n")
	b.WriteString(listDimStyle.Render("↑/↓ navigate  ⏎ select  q quit"))
	b.WriteString("\n\n")

	end := min(m.Offset+m.Height, len(m.Entries))
	for i := m.Offset; i < end; i++ {
		e := m.Entries[i]
		cursor := "  "
		if i == m.Cursor {
			cursor = "▸ "
		}
		line := fmt.Sprintf("%s%-40s %s", cursor, e.Path, listDimStyle.Render(fmt.Sprintf("%d lines", e.Lines)))
		if i == m.Cursor {
			b.WriteString(listSelectedStyle.Render(line))
		} else {
			b.WriteString(listNormalStyle.Render(line))
		}
		b.WriteString("\n")
	}
	if len(m.Entries) > m.Height {
		b.WriteString(listDimStyle.Render(fmt.Sprintf("\n%d of %d", m.Cursor+1, len(m.Entries))))
		b.WriteString("\n")
	}
	return b.String()
}

// =============================================================================
// Helpers
// =============================================================================

// entryCandidates lists the JSX and TSX files of files, shallow paths first.
func entryCandidates(files *vfs.FileSet) []EntryCandidate {
	var out []EntryCandidate
	for _, p := range files.Paths() {
		if !strings.HasSuffix(p, ".tsx") && !strings.HasSuffix(p, ".jsx") {
			continue
		}
		src, _ := files.Get(p)
		out = append(out, EntryCandidate{Path: p, Lines: syntax.NewLineIndex(src).Count()})
	}
	slices.SortStableFunc(out, func(a, b EntryCandidate) int {
		return strings.Count(a.Path, "/") - strings.Count(b.Path, "/")
	})
	return out
}

// pickEntry runs the interactive picker.
func pickEntry(entries []EntryCandidate) (string, error) {
	if len(entries) == 0 {
		return "", errors.New(errors.ErrCodeEntryNotFound, "no .jsx or .tsx files to choose an entry from")
	}
	final, err := tea.NewProgram(NewEntryListModel(entries)).Run()
	if err != nil {
		return "", errors.Wrap(errors.ErrCodeInternal, err, "entry picker")
	}
	m, ok := final.(EntryListModel)
	if !ok || m.Selected == "" {
		return "", errNoSelection
	}
	return m.Selected, nil
}

// isTerminal reports whether f is an interactive terminal.
func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}
