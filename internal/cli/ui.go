package cli

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/matzehuels/pipo/pkg/compiler"
	"github.com/matzehuels/pipo/pkg/mapper"
)

// =============================================================================
// Color Palette
// =============================================================================

var (
	colorCyan   = lipgloss.Color("36")  // Teal - primary actions
	colorGreen  = lipgloss.Color("35")  // Green - success
	colorYellow = lipgloss.Color("220") // Amber - warnings
	colorRed    = lipgloss.Color("167") // Soft red - errors
	colorBlue   = lipgloss.Color("75")  // Light blue - links
	colorWhite  = lipgloss.Color("255") // Bright white - values
	colorGray   = lipgloss.Color("245") // Gray - secondary text
	colorDim    = lipgloss.Color("240") // Dim gray - muted text
)

// =============================================================================
// Public Styles
// =============================================================================

var (
	// StyleTitle for main headings.
	StyleTitle = lipgloss.NewStyle().Bold(true).Foreground(colorCyan)

	// StyleLink for URLs.
	StyleLink = lipgloss.NewStyle().Foreground(colorBlue).Underline(true)

	// StyleDim for secondary/muted text.
	StyleDim = lipgloss.NewStyle().Foreground(colorDim)

	// StyleValue for data values.
	StyleValue = lipgloss.NewStyle().Foreground(colorWhite)

	// StyleNumber for numeric values.
	StyleNumber = lipgloss.NewStyle().Foreground(colorCyan)

	// StyleWarning for warning messages.
	StyleWarning = lipgloss.NewStyle().Foreground(colorYellow)
)

// =============================================================================
// Internal Styles
// =============================================================================

var (
	styleIconSuccess = lipgloss.NewStyle().Foreground(colorGreen)
	styleIconError   = lipgloss.NewStyle().Foreground(colorRed)
	styleIconWarning = lipgloss.NewStyle().Foreground(colorYellow)
	styleIconInfo    = lipgloss.NewStyle().Foreground(colorGray)
	styleIconSpinner = lipgloss.NewStyle().Foreground(colorCyan)

	styleFailed  = lipgloss.NewStyle().Foreground(colorRed)
	styleCommand = lipgloss.NewStyle().Foreground(colorBlue)
	styleFrame   = lipgloss.NewStyle().Foreground(colorGray).PaddingLeft(4)
	styleWinner  = lipgloss.NewStyle().Bold(true).Foreground(colorGreen)
)

// =============================================================================
// Icons
// =============================================================================

const (
	iconSuccess = "✓"
	iconError   = "✗"
	iconWarning = "!"
	iconInfo    = "›"
	iconArrow   = "→"
)

// =============================================================================
// Status Output
// =============================================================================

func printSuccess(w io.Writer, format string, args ...any) {
	fmt.Fprintln(w, styleIconSuccess.Render(iconSuccess)+" "+fmt.Sprintf(format, args...))
}

func printError(w io.Writer, format string, args ...any) {
	fmt.Fprintln(w, styleIconError.Render(iconError)+" "+fmt.Sprintf(format, args...))
}

func printWarning(w io.Writer, format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintln(w, styleIconWarning.Render(iconWarning)+" "+StyleWarning.Render(msg))
}

func printInfo(w io.Writer, format string, args ...any) {
	fmt.Fprintln(w, styleIconInfo.Render(iconInfo)+" "+fmt.Sprintf(format, args...))
}

// printDetail prints an indented, dimmed line.
func printDetail(w io.Writer, format string, args ...any) {
	fmt.Fprintln(w, "  "+StyleDim.Render(fmt.Sprintf(format, args...)))
}

// printFile prints a file output line.
func printFile(w io.Writer, path string) {
	fmt.Fprintln(w, "  "+StyleDim.Render(iconArrow)+" "+StyleValue.Render(path))
}

// printKeyValue prints a labeled value.
func printKeyValue(w io.Writer, key, value string) {
	keyStyle := lipgloss.NewStyle().Foreground(colorGray).Width(12)
	fmt.Fprintln(w, keyStyle.Render(key)+" "+StyleValue.Render(value))
}

// =============================================================================
// Compile Results
// =============================================================================

// printStats prints pass statistics on a single line.
func printStats(w io.Writer, modules, failures, edges int, elapsed time.Duration) {
	parts := []string{
		StyleDim.Render(fmt.Sprintf("%d modules", modules)),
		StyleDim.Render(fmt.Sprintf("%d imports", edges)),
	}
	if failures > 0 {
		parts = append(parts, styleFailed.Render(fmt.Sprintf("%d failed", failures)))
	}
	parts = append(parts, StyleDim.Render(elapsed.String()))
	fmt.Fprintln(w, "  "+strings.Join(parts, StyleDim.Render(" · ")))
}

// printErrorInfo prints a mapped error with its code frame.
func printErrorInfo(w io.Writer, e mapper.ErrorInfo) {
	loc := e.FileName
	if loc != "" && e.Line > 0 {
		loc = fmt.Sprintf("%s:%d:%d", e.FileName, e.Line, e.Column)
	}
	if loc != "" {
		printError(w, "%s %s", StyleValue.Render(loc), e.Message)
	} else {
		printError(w, "%s", e.Message)
	}
	if e.CodeFrame != "" {
		fmt.Fprintln(w, styleFrame.Render(e.CodeFrame))
	}
}

// printSource prints the source range of a clicked element.
func printSource(w io.Writer, s mapper.SourceInfo) {
	printInfo(w, "%s %s",
		StyleTitle.Render(fmt.Sprintf("%s:%d:%d", s.File, s.StartLine, s.StartColumn)),
		StyleDim.Render(fmt.Sprintf("to %d:%d", s.EndLine, s.EndColumn)))
	for _, line := range strings.Split(s.Content, "\n") {
		printDetail(w, "%s", line)
	}
}

// printComparison renders backend timings as a table, fastest first.
func printComparison(w io.Writer, cmp *compiler.Comparison) {
	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(StyleDim).
		Headers("BACKEND", "TIME", "OUTPUT").
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return StyleTitle.Padding(0, 1)
			}
			return lipgloss.NewStyle().Padding(0, 1)
		})
	for _, p := range cmp.Results {
		name := p.Backend
		if name == cmp.Winner {
			name = styleWinner.Render(name)
		}
		t.Row(name, p.Duration.Round(time.Microsecond).String(), fmt.Sprintf("%d B", p.OutputSize))
	}
	fmt.Fprintln(w, t)
	for name, err := range cmp.Failures {
		printWarning(w, "%s: %v", name, err)
	}
	if cmp.Speedup > 0 {
		printKeyValue(w, "winner", fmt.Sprintf("%s (%.2fx faster)", cmp.Winner, cmp.Speedup))
	}
}

// =============================================================================
// Commands & Next Steps
// =============================================================================

// printNextStep prints a suggested next command.
func printNextStep(w io.Writer, description, cmd string) {
	fmt.Fprintln(w, StyleDim.Render(description+":")+" "+styleCommand.Render(cmd))
}
