package cli

import (
	"context"
	stderrors "errors"
	"io"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/matzehuels/pipo/pkg/buildinfo"
	"github.com/matzehuels/pipo/pkg/cdn"
	"github.com/matzehuels/pipo/pkg/compiler"
	"github.com/matzehuels/pipo/pkg/config"
	"github.com/matzehuels/pipo/pkg/errors"
	"github.com/matzehuels/pipo/pkg/integrations"
	"github.com/matzehuels/pipo/pkg/integrations/npm"
	"github.com/matzehuels/pipo/pkg/modules"
	"github.com/matzehuels/pipo/pkg/observability"
	"github.com/matzehuels/pipo/pkg/pipeline"
	"github.com/matzehuels/pipo/pkg/project"
)

// =============================================================================
// Constants
// =============================================================================

// appName is the application name used for display.
const appName = "pipo"

// Log levels exported for use in main.go.
const (
	LogDebug = log.DebugLevel
	LogInfo  = log.InfoLevel
	LogWarn  = log.WarnLevel
)

// Process exit statuses.
const (
	ExitFailure     = 1
	ExitUsage       = 2
	ExitInterrupted = 130
)

// =============================================================================
// CLI - Central CLI State
// =============================================================================

// CLI holds shared state for all commands.
type CLI struct {
	Logger *log.Logger

	// Out receives command output. Logs go to the logger's writer.
	Out io.Writer

	configPath string
}

// New creates a new CLI instance with a default logger.
func New(w io.Writer, level log.Level) *CLI {
	return &CLI{
		Logger: newLogger(w, level),
		Out:    os.Stdout,
	}
}

// SetLogLevel updates the logger's level.
func (c *CLI) SetLogLevel(level log.Level) {
	c.Logger.SetLevel(level)
}

// ExitCode maps a command error to a process exit status. Errors caused by
// the user's input exit with [ExitUsage].
func ExitCode(err error) int {
	if stderrors.Is(err, context.Canceled) {
		return ExitInterrupted
	}
	switch errors.GetCode(err) {
	case errors.ErrCodeInvalidInput, errors.ErrCodeInvalidManifest,
		errors.ErrCodeInvalidPath, errors.ErrCodeEntryNotFound:
		return ExitUsage
	}
	return ExitFailure
}

// RootCommand creates the root cobra command with all subcommands registered.
func (c *CLI) RootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:          appName,
		Short:        "Pipo previews React components from a project directory",
		Long:         `Pipo compiles a React/TSX project in memory and serves it as an isolated, inspectable preview. Clicking a rendered element reports the source range that produced it.`,
		Version:      buildinfo.Version,
		SilenceUsage: true,
	}

	root.SetVersionTemplate(buildinfo.Template())
	root.PersistentFlags().StringVar(&c.configPath, "config", "", "config file (default: pipo.toml of the project)")

	root.AddCommand(c.buildCommand())
	root.AddCommand(c.serveCommand())
	root.AddCommand(c.graphCommand())
	root.AddCommand(c.benchCommand())
	root.AddCommand(c.completionCommand())

	return root
}

// =============================================================================
// Configuration
// =============================================================================

// loadConfig loads the tool configuration for the project in dir. The
// config level only raises verbosity; --verbose is never lowered.
func (c *CLI) loadConfig(dir string) (*config.Config, error) {
	path := c.configPath
	if path == "" {
		found, ok, err := project.FindManifest(dir)
		if err != nil {
			return nil, err
		}
		if ok {
			path = found
		}
	}
	cfg, err := config.Load(path, config.DotenvName)
	if err != nil {
		return nil, err
	}
	c.SetLogLevel(min(c.Logger.GetLevel(), cfg.Log.ParseLevel()))
	if path != "" {
		c.Logger.Debug("loaded config", "path", path)
	}
	return cfg, nil
}

// =============================================================================
// Runner Factory
// =============================================================================

// newRunner creates a pipeline runner from cfg. The returned close
// function releases the runner and its store.
func (c *CLI) newRunner(ctx context.Context, cfg *config.Config) (*pipeline.Runner, func(), error) {
	store, closeStore, err := c.newStore(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}

	mgr := compiler.NewDefaultManager(c.Logger, cfg.Compiler.Options)
	if err := mgr.SetDefault(cfg.Compiler.Default); err != nil {
		closeStore()
		return nil, nil, err
	}

	fetcher := integrations.NewClient(integrations.NewCache(cfg.CDN.CacheTTL.Duration).Namespace("css:"), nil)
	rc := pipeline.Config{
		Store:    store,
		Compiler: mgr,
		Resolver: cfg.CDN.Resolver(),
		Fetcher:  fetcher,
		Hooks:    c.hooks(),
	}
	if cfg.CDN.Pin {
		registry := npm.NewClientWithRegistry(cfg.CDN.Registry, cfg.CDN.CacheTTL.Duration)
		registry.SetHooks(rc.Hooks.HTTP)
		rc.Pinner = cdn.NewPinner(registry, c.Logger)
	}
	fetcher.SetHooks(rc.Hooks.HTTP)

	runner := pipeline.NewRunner(rc, c.Logger)
	closeAll := func() {
		if err := runner.Close(context.WithoutCancel(ctx)); err != nil {
			c.Logger.Warn("close runner", "err", err)
		}
		closeStore()
	}
	return runner, closeAll, nil
}

func (c *CLI) newStore(ctx context.Context, cfg *config.Config) (modules.Store, func(), error) {
	if cfg.Store.Backend != config.StoreRedis {
		return modules.NewMemoryStore(), func() {}, nil
	}
	rc, err := cfg.Store.Redis()
	if err != nil {
		return nil, nil, err
	}
	store, err := modules.NewRedisStore(ctx, rc)
	if err != nil {
		return nil, nil, err
	}
	c.Logger.Info("using redis module store", "addr", rc.Addr)
	return store, func() { store.Close() }, nil
}

// hooks logs pipeline and channel events at debug level.
func (c *CLI) hooks() observability.Hooks {
	if c.Logger.GetLevel() > log.DebugLevel {
		return observability.Hooks{}
	}
	return observability.NewLogHooks(c.Logger)
}

// =============================================================================
// Projects
// =============================================================================

// loadProject reads the project in dir. entry and backend override the
// manifest. Without any entry, the user is asked to pick one when the
// output is a terminal.
func (c *CLI) loadProject(dir, entry, backend string) (*project.Project, pipeline.Input, error) {
	p, err := project.Load(dir)
	if err != nil {
		return nil, pipeline.Input{}, err
	}
	in := p.Input()
	if entry != "" {
		in.Entry = entry
	}
	if backend != "" {
		in.Backend = backend
	}
	if in.Entry == "" {
		if _, ok := pipeline.DetectEntry(in.Files); !ok && c.interactive() {
			picked, err := pickEntry(entryCandidates(in.Files))
			if err != nil {
				return nil, pipeline.Input{}, err
			}
			in.Entry = picked
		}
	}
	return p, in, nil
}

// interactive reports whether output goes to a terminal.
func (c *CLI) interactive() bool {
	f, ok := c.Out.(*os.File)
	return ok && isTerminal(f)
}

// projectDir returns the directory argument or the working directory.
func projectDir(args []string) string {
	if len(args) > 0 {
		return filepath.Clean(args[0])
	}
	return "."
}
