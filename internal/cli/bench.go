package cli

import (
	"context"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/matzehuels/pipo/pkg/compiler"
	"github.com/matzehuels/pipo/pkg/errors"
)

// benchOpts holds flags for the bench command.
type benchOpts struct {
	jsx    string
	module string
}

// benchCommand creates the bench command for comparing compiler backends.
func (c *CLI) benchCommand() *cobra.Command {
	var opts benchOpts

	cmd := &cobra.Command{
		Use:   "bench <file>",
		Short: "Compare compiler backends on one file",
		Long: `Transform one file with every compiler backend concurrently and report
the time each took and the size of its output.

Backends that cannot be initialized, such as wasm without a configured
module, are listed with their error.`,
		Example: `  pipo bench src/App.tsx
  pipo bench src/App.tsx --jsx automatic --wasm-module compiler.wasm`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runBench(cmd.Context(), args[0], opts)
		},
	}

	cmd.Flags().StringVar(&opts.jsx, "jsx", "", "JSX runtime (classic or automatic)")
	cmd.Flags().StringVar(&opts.module, "wasm-module", "", "WebAssembly compiler module")

	return cmd
}

func (c *CLI) runBench(ctx context.Context, file string, opts benchOpts) error {
	cfg, err := c.loadConfig(filepath.Dir(file))
	if err != nil {
		return err
	}
	src, err := os.ReadFile(file)
	if err != nil {
		return errors.Wrap(errors.ErrCodeInvalidPath, err, "read %s", file)
	}

	mgr := compiler.NewDefaultManager(c.Logger, cfg.Compiler.Options)
	defer mgr.Close(context.WithoutCancel(ctx))

	if opts.jsx != "" || opts.module != "" {
		o := cfg.Compiler.Options
		if opts.jsx != "" {
			o.JSX = compiler.JSXRuntime(opts.jsx)
		}
		if opts.module != "" {
			o.Module = opts.module
		}
		for _, name := range mgr.Available() {
			if err := mgr.Configure(ctx, name, o); err != nil {
				return err
			}
		}
	}

	spinner := c.startSpinner(ctx, "Comparing "+filepath.Base(file)+"...")
	cmp, err := mgr.Compare(ctx, string(src), compiler.TransformOptions{Filename: filepath.ToSlash(file)})
	spinner.Stop()
	if err != nil {
		return err
	}
	if len(cmp.Results) == 0 {
		for name, err := range cmp.Failures {
			printError(c.Out, "%s: %v", name, err)
		}
		return errors.New(errors.ErrCodeBackendInit, "no compiler backend succeeded")
	}
	printComparison(c.Out, cmp)
	return nil
}
