// Package cli implements the pipo command-line interface.
//
// The CLI compiles a project directory into a live preview. It is built
// using cobra and logs through charmbracelet/log.
//
// # Commands
//
// The main commands are:
//   - build: compile a project once and write the modules and document
//   - serve: serve the preview over HTTP, recompiling on change with --watch
//   - graph: print the local import graph as DOT, SVG or JSON
//   - bench: compare the compiler backends on one file
//
// # Logging
//
// All commands support --verbose (-v) for debug-level logging and --quiet
// (-q) for warnings only. Verbose logging also installs logging hooks for
// the pipeline, the sandbox channel and the HTTP clients. A log level from
// the configuration can raise verbosity but never lowers it.
//
// # Example
//
//	func main() {
//	    c := cli.New(os.Stderr, cli.LogInfo)
//	    if err := c.RootCommand().ExecuteContext(ctx); err != nil {
//	        os.Exit(1)
//	    }
//	}
package cli

import (
	"io"
	"time"

	"github.com/charmbracelet/log"
)

// newLogger creates a new logger with timestamp formatting.
// Timestamps are formatted as "HH:MM:SS.ms" (e.g., "14:32:01.45").
func newLogger(w io.Writer, level log.Level) *log.Logger {
	return log.NewWithOptions(w, log.Options{
		ReportTimestamp: true,
		TimeFormat:      "15:04:05.00",
		Level:           level,
	})
}

// progress tracks the start time of an operation and logs completion with elapsed duration.
type progress struct {
	logger *log.Logger
	start  time.Time
}

func newProgress(l *log.Logger) *progress {
	return &progress{logger: l, start: time.Now()}
}

// done logs msg along with the elapsed time, e.g. "Compiled 12 modules (84ms)".
func (p *progress) done(msg string) {
	p.logger.Infof("%s (%s)", msg, p.elapsed())
}

func (p *progress) elapsed() time.Duration {
	return time.Since(p.start).Round(time.Millisecond)
}
