package cli

import (
	"bytes"
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/matzehuels/pipo/pkg/depgraph"
	"github.com/matzehuels/pipo/pkg/errors"
	"github.com/matzehuels/pipo/pkg/project"
)

// Graph output formats.
const (
	formatDOT  = "dot"
	formatSVG  = "svg"
	formatJSON = "json"
)

// graphOpts holds flags for the graph command.
type graphOpts struct {
	format string
	output string
}

// graphCommand creates the graph command for inspecting local imports.
func (c *CLI) graphCommand() *cobra.Command {
	var opts graphOpts

	cmd := &cobra.Command{
		Use:   "graph [dir]",
		Short: "Print the import graph of a project",
		Long: `Analyze the local imports of a project and print the dependency graph.

Edges that close an import cycle are drawn in red; those imports are not
followed when ordering the compilation.`,
		Example: `  pipo graph
  pipo graph ./app --format svg -o graph.svg
  pipo graph --format json`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runGraph(cmd.Context(), projectDir(args), opts)
		},
	}

	cmd.Flags().StringVarP(&opts.format, "format", "f", formatDOT, "output format (dot, svg or json)")
	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "output file (stdout when empty)")

	return cmd
}

func (c *CLI) runGraph(ctx context.Context, dir string, opts graphOpts) error {
	switch opts.format {
	case formatDOT, formatSVG, formatJSON:
	default:
		return errors.New(errors.ErrCodeInvalidInput, "unknown format %q (want dot, svg or json)", opts.format)
	}
	p, err := project.Load(dir)
	if err != nil {
		return err
	}

	prog := newProgress(c.Logger)
	g, err := depgraph.NewBuilder(depgraph.SyntaxAnalyzer{}, c.Logger).Build(ctx, p.Files)
	if err != nil {
		return err
	}
	order := g.Order()
	prog.done(fmt.Sprintf("Analyzed %d files, %d imports", g.NodeCount(), g.EdgeCount()))
	for _, e := range order.Cycles {
		c.Logger.Warn("circular import", "from", e[0], "to", e[1])
	}

	var data []byte
	switch opts.format {
	case formatJSON:
		var buf bytes.Buffer
		if err := depgraph.WriteJSON(g, order, &buf); err != nil {
			return errors.Wrap(errors.ErrCodeInternal, err, "encode graph")
		}
		data = buf.Bytes()
	case formatSVG:
		if data, err = depgraph.RenderSVG(ctx, depgraph.ToDOT(g, order.Cycles)); err != nil {
			return err
		}
	default:
		data = []byte(depgraph.ToDOT(g, order.Cycles))
	}

	if opts.output == "" {
		_, err := c.Out.Write(data)
		return err
	}
	if err := os.WriteFile(opts.output, data, 0o644); err != nil {
		return errors.Wrap(errors.ErrCodeInternal, err, "write %s", opts.output)
	}
	printSuccess(c.Out, "Wrote graph")
	printFile(c.Out, opts.output)
	return nil
}
