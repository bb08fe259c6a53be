package cli

import (
	"context"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/matzehuels/pipo/pkg/errors"
	"github.com/matzehuels/pipo/pkg/mapper"
	"github.com/matzehuels/pipo/pkg/pipeline"
	"github.com/matzehuels/pipo/pkg/preview"
	"github.com/matzehuels/pipo/pkg/project"
	"github.com/matzehuels/pipo/pkg/protocol"
	"github.com/matzehuels/pipo/pkg/server"
)

// serveOpts holds flags for the serve command.
type serveOpts struct {
	addr    string
	watch   bool
	inspect bool
	entry   string
	backend string
	title   string
}

// serveCommand creates the serve command for live previews.
func (c *CLI) serveCommand() *cobra.Command {
	var opts serveOpts

	cmd := &cobra.Command{
		Use:   "serve [dir]",
		Short: "Serve a live preview of a project",
		Long: `Compile a project and serve its preview over HTTP.

Open the printed URL in a browser. Runtime errors, console output and, in
inspect mode, clicked elements are reported here with their original source
locations. With --watch the project is recompiled whenever a file changes.`,
		Example: `  pipo serve --watch
  pipo serve ./app --addr :8080 --inspect`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := projectDir(args)
			cfg, err := c.loadConfig(dir)
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("addr") {
				opts.addr = cfg.Server.Addr
			}
			if !cmd.Flags().Changed("watch") {
				opts.watch = cfg.Server.Watch
			}

			runner, closeRunner, err := c.newRunner(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer closeRunner()
			return c.runServe(cmd.Context(), dir, runner, opts, cfg.Server.PollInterval.Duration)
		},
	}

	cmd.Flags().StringVarP(&opts.addr, "addr", "a", "", "listen address (default from config)")
	cmd.Flags().BoolVarP(&opts.watch, "watch", "w", false, "recompile when files change")
	cmd.Flags().BoolVarP(&opts.inspect, "inspect", "i", false, "start in inspect mode")
	cmd.Flags().StringVarP(&opts.entry, "entry", "e", "", "entry file (detected when empty)")
	cmd.Flags().StringVarP(&opts.backend, "compiler", "c", "", "compiler backend (esbuild or wasm)")
	_ = cmd.RegisterFlagCompletionFunc("compiler", completeCompilers)
	cmd.Flags().StringVar(&opts.title, "title", "", "document title")

	return cmd
}

func (c *CLI) runServe(ctx context.Context, dir string, runner *pipeline.Runner, opts serveOpts, poll time.Duration) error {
	_, in, err := c.loadProject(dir, opts.entry, opts.backend)
	if err != nil {
		return err
	}

	session := preview.New(preview.Config{
		Runner:    runner,
		Title:     opts.title,
		Channel:   server.ChannelPath,
		Inspect:   opts.inspect,
		Callbacks: c.serveCallbacks(),
		Hooks:     runner.Hooks,
	}, c.Logger)
	defer session.Close(context.WithoutCancel(ctx))

	// With --watch a failing first pass is reported and serving continues.
	if _, err := session.Compile(ctx, in); err != nil && !opts.watch {
		return err
	}

	ln, err := net.Listen("tcp", opts.addr)
	if err != nil {
		return errors.Wrap(errors.ErrCodeNetwork, err, "listen on %s", opts.addr)
	}
	printSuccess(c.Out, "Serving %s", StyleLink.Render(previewURL(ln.Addr())))
	if opts.watch {
		printDetail(c.Out, "watching %s for changes", dir)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return server.New(session, c.Logger).Serve(gctx, ln)
	})
	if opts.watch {
		w, err := project.NewWatcher(dir, c.Logger)
		if err != nil {
			ln.Close()
			return err
		}
		g.Go(func() error {
			return w.Run(gctx, poll, func(changed []string) {
				c.Logger.Info("change detected", "files", strings.Join(changed, ", "))
				next, err := reloadInput(dir, in)
				if err != nil {
					printErrorInfo(c.Out, mapper.ErrorInfo{Message: errors.UserMessage(err)})
					return
				}
				in = next
				if _, err := session.Compile(gctx, in); err != nil {
					c.Logger.Debug("recompile failed", "err", err)
				}
			})
		})
	}
	return g.Wait()
}

// reloadInput reads the project again and keeps the entry and backend of
// prev.
func reloadInput(dir string, prev pipeline.Input) (pipeline.Input, error) {
	p, err := project.Load(dir)
	if err != nil {
		return pipeline.Input{}, err
	}
	in := p.Input()
	in.Entry = prev.Entry
	in.Backend = prev.Backend
	return in, nil
}

// serveCallbacks prints session events for a terminal user.
func (c *CLI) serveCallbacks() preview.Callbacks {
	return preview.Callbacks{
		OnCompilationStart: func() {
			printInfo(c.Out, "Compiling...")
		},
		OnCompilationComplete: func(seconds float64) {
			printSuccess(c.Out, "Compiled in %s", StyleNumber.Render(formatSeconds(seconds)))
		},
		OnError: func(e mapper.ErrorInfo) {
			printErrorInfo(c.Out, e)
		},
		OnElementClick: func(s mapper.SourceInfo) {
			printSource(c.Out, s)
		},
		OnDependencyError: func(e protocol.DependencyError) {
			printWarning(c.Out, "failed to load %s from %s: %s", e.Name, e.URL, e.Error)
		},
	}
}

// previewURL returns the browser URL for a listener address.
func previewURL(addr net.Addr) string {
	host, port, err := net.SplitHostPort(addr.String())
	if err != nil {
		return "http://" + addr.String() + "/"
	}
	if ip := net.ParseIP(host); host == "" || (ip != nil && ip.IsUnspecified()) {
		host = "localhost"
	}
	return "http://" + net.JoinHostPort(host, port) + "/"
}

func formatSeconds(s float64) string {
	if s < 1 {
		return fmt.Sprintf("%dms", int(s*1000))
	}
	return fmt.Sprintf("%.2fs", s)
}
