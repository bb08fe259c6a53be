package cli

import (
	"context"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/matzehuels/pipo/pkg/errors"
	"github.com/matzehuels/pipo/pkg/mapper"
	"github.com/matzehuels/pipo/pkg/preview"
)

// buildOpts holds flags for the build command.
type buildOpts struct {
	out     string
	entry   string
	backend string
	base    string
	title   string
}

// buildCommand creates the build command for compiling a project once.
func (c *CLI) buildCommand() *cobra.Command {
	var opts buildOpts

	cmd := &cobra.Command{
		Use:   "build [dir]",
		Short: "Compile a project into a static preview",
		Long: `Compile a project once and write the sandbox document and every compiled module.

The output directory holds index.html and one module per source file under
m/<pass>/. Serve it from the root of a web server, or pass --base when it is
served from elsewhere.`,
		Example: `  pipo build
  pipo build ./app --out dist --entry src/Main.tsx
  pipo build --compiler wasm`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runBuild(cmd.Context(), projectDir(args), opts)
		},
	}

	cmd.Flags().StringVarP(&opts.out, "out", "o", "dist", "output directory")
	cmd.Flags().StringVarP(&opts.entry, "entry", "e", "", "entry file (detected when empty)")
	cmd.Flags().StringVarP(&opts.backend, "compiler", "c", "", "compiler backend (esbuild or wasm)")
	_ = cmd.RegisterFlagCompletionFunc("compiler", completeCompilers)
	cmd.Flags().StringVar(&opts.base, "base", "", "origin module URLs are prefixed with")
	cmd.Flags().StringVar(&opts.title, "title", "", "document title")

	return cmd
}

func (c *CLI) runBuild(ctx context.Context, dir string, opts buildOpts) error {
	cfg, err := c.loadConfig(dir)
	if err != nil {
		return err
	}
	_, in, err := c.loadProject(dir, opts.entry, opts.backend)
	if err != nil {
		return err
	}
	runner, closeRunner, err := c.newRunner(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeRunner()
	runner.BaseURL = strings.TrimSuffix(opts.base, "/")

	var failures []mapper.ErrorInfo
	session := preview.New(preview.Config{
		Runner: runner,
		Title:  opts.title,
		Callbacks: preview.Callbacks{
			OnError: func(e mapper.ErrorInfo) { failures = append(failures, e) },
		},
		Hooks: runner.Hooks,
	}, c.Logger)
	defer session.Close(context.WithoutCancel(ctx))

	prog := newProgress(c.Logger)
	spinner := c.startSpinner(ctx, "Compiling...")
	pass, err := session.Compile(ctx, in)
	spinner.Stop()
	for _, f := range failures {
		printErrorInfo(c.Out, f)
	}
	if err != nil {
		return err
	}

	written, err := writePass(ctx, opts.out, pass)
	if err != nil {
		return err
	}

	stats := pass.Result.Stats
	printSuccess(c.Out, "Built %s", StyleValue.Render(pass.Result.Entry.Path))
	printStats(c.Out, stats.Modules, stats.Failures, stats.EdgeCount, prog.elapsed())
	for _, f := range written {
		printFile(c.Out, f)
	}
	printNextStep(c.Out, "Preview it live", "pipo serve "+dir)
	return nil
}

// writePass writes the document and modules of pass below out and returns
// the written paths.
func writePass(ctx context.Context, out string, pass *preview.Pass) ([]string, error) {
	if err := os.MkdirAll(out, 0o755); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "create %s", out)
	}
	index := filepath.Join(out, "index.html")
	if err := os.WriteFile(index, []byte(pass.Document), 0o644); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "write %s", index)
	}
	written := []string{index}

	reg := pass.Result.Registry
	for _, ref := range reg.Entries() {
		code, err := reg.Code(ctx, ref.ID)
		if err != nil {
			return written, err
		}
		rel := modulePath(ref.URL)
		if rel == ".." || strings.HasPrefix(rel, "../") {
			return written, errors.New(errors.ErrCodeInvalidPath, "module URL %s leaves the output directory", ref.URL)
		}
		target := filepath.Join(out, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return written, errors.Wrap(errors.ErrCodeInternal, err, "create %s", filepath.Dir(target))
		}
		if err := os.WriteFile(target, code, 0o644); err != nil {
			return written, errors.Wrap(errors.ErrCodeInternal, err, "write %s", target)
		}
		written = append(written, target)
	}
	return written, nil
}

// modulePath returns the path part of a module URL, without scheme and host.
func modulePath(url string) string {
	if i := strings.Index(url, "://"); i >= 0 {
		rest := url[i+3:]
		if j := strings.IndexByte(rest, '/'); j >= 0 {
			url = rest[j:]
		} else {
			url = "/"
		}
	}
	return path.Clean(strings.TrimPrefix(url, "/"))
}

// startSpinner starts a spinner on stderr when it is a terminal and
// returns a no-op otherwise.
func (c *CLI) startSpinner(ctx context.Context, message string) stopper {
	if !isTerminal(os.Stderr) {
		return noopStopper{}
	}
	s := newSpinner(ctx, os.Stderr, message)
	s.Start()
	return s
}

type stopper interface{ Stop() }

type noopStopper struct{}

func (noopStopper) Stop() {}
