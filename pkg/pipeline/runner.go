package pipeline

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/pipo/pkg/cdn"
	"github.com/matzehuels/pipo/pkg/compiler"
	"github.com/matzehuels/pipo/pkg/depgraph"
	"github.com/matzehuels/pipo/pkg/errors"
	"github.com/matzehuels/pipo/pkg/instrument"
	"github.com/matzehuels/pipo/pkg/modules"
	"github.com/matzehuels/pipo/pkg/observability"
	"github.com/matzehuels/pipo/pkg/vfs"
)

// State is the lifecycle state of a [Runner].
type State int

const (
	StateIdle State = iota
	StateGraphBuilding
	StateProcessing
	StateReady
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateGraphBuilding:
		return "graph-building"
	case StateProcessing:
		return "processing"
	case StateReady:
		return "ready"
	case StateFailed:
		return "failed"
	default:
		return "idle"
	}
}

// Config holds the collaborators of a [Runner]. Nil fields get defaults.
type Config struct {
	Store      modules.Store
	BaseURL    string // origin modules are served from, empty for root-relative
	Compiler   *compiler.Manager
	Instrument *instrument.Manager
	Resolver   *cdn.Resolver
	Pinner     *cdn.Pinner // pins dist-tags when set
	Fetcher    TextFetcher // remote style sheets when set
	Analyzer   depgraph.Analyzer
	Hooks      observability.Hooks
}

// Runner runs compilation passes.
//
// Passes are serialized. Starting a pass disposes the registry of the
// previous one, so at most one pass's modules are loadable at a time.
type Runner struct {
	Store    modules.Store
	BaseURL  string
	Compiler *compiler.Manager
	Resolver *cdn.Resolver
	Pinner   *cdn.Pinner
	Builder  *depgraph.Builder
	Chain    *Chain
	Hooks    observability.Hooks
	Logger   *log.Logger

	mu      sync.Mutex
	state   State
	current *Result
	passes  int
}

// NewRunner creates a runner. Without a compiler, esbuild and wasm are
// registered with default options. Without a store, modules are kept in
// memory.
func NewRunner(cfg Config, logger *log.Logger) *Runner {
	if logger == nil {
		logger = log.Default()
	}
	if cfg.Store == nil {
		cfg.Store = modules.NewMemoryStore()
	}
	if cfg.Compiler == nil {
		cfg.Compiler = compiler.NewDefaultManager(logger, compiler.DefaultOptions())
	}
	if cfg.Instrument == nil {
		cfg.Instrument = instrument.NewManager(logger)
	}
	if cfg.Resolver == nil {
		cfg.Resolver = cdn.NewResolver()
	}
	if cfg.Analyzer == nil {
		cfg.Analyzer = depgraph.SyntaxAnalyzer{}
	}

	return &Runner{
		Store:    cfg.Store,
		BaseURL:  cfg.BaseURL,
		Compiler: cfg.Compiler,
		Resolver: cfg.Resolver,
		Pinner:   cfg.Pinner,
		Builder:  depgraph.NewBuilder(cfg.Analyzer, logger),
		Chain: NewChain(
			StyleProcessor{Fetcher: cfg.Fetcher},
			ScriptProcessor{Instrument: cfg.Instrument, Compiler: cfg.Compiler, Logger: logger},
		),
		Hooks:  cfg.Hooks.WithDefaults(),
		Logger: logger.WithPrefix("pipeline"),
	}
}

// State returns the lifecycle state.
func (r *Runner) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Result returns the result of the last successful pass, or nil.
func (r *Runner) Result() *Result {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.current
}

// Compile runs one pass over in.
//
// Files that fail to compile are reported in Result.Failures and do not
// fail the pass. The pass fails when the entry module has no reference at
// the end, when no compiler backend can be initialized, or when ctx is
// done. On an entry failure the Result is still returned so its failures
// can be reported.
func (r *Runner) Compile(ctx context.Context, in Input) (*Result, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if in.Files == nil || in.Files.Len() == 0 {
		return nil, errors.New(errors.ErrCodeInvalidInput, "no files to compile")
	}
	entry, err := r.entry(in)
	if err != nil {
		return nil, err
	}

	if err := r.disposeLocked(ctx); err != nil {
		r.Logger.Warn("dispose previous pass", "err", err)
	}
	r.passes++
	pass := in.Pass
	if pass == "" {
		pass = strconv.Itoa(r.passes)
	}

	start := time.Now()
	r.Hooks.Compile.OnCompileStart(ctx, pass, in.Files.Len())
	res, err := r.run(ctx, in, pass, entry)
	stats := Stats{}
	if res != nil {
		stats = res.Stats
	}
	r.Hooks.Compile.OnCompileComplete(ctx, pass, stats.Modules, stats.Failures, time.Since(start), err)

	if err != nil {
		r.state = StateFailed
		return res, err
	}
	r.state = StateReady
	r.current = res
	r.Logger.Info("compiled",
		"pass", pass,
		"modules", stats.Modules,
		"failures", stats.Failures,
		"duration", time.Since(start))
	return res, nil
}

func (r *Runner) entry(in Input) (string, error) {
	if in.Entry == "" {
		p, ok := DetectEntry(in.Files)
		if !ok {
			return "", errors.New(errors.ErrCodeEntryNotFound, "no entry file found; tried %v", DefaultEntries)
		}
		return p, nil
	}
	if err := errors.ValidatePath(in.Entry); err != nil {
		return "", err
	}
	return vfs.ResolveFile(in.Entry, in.Files), nil
}

func (r *Runner) run(ctx context.Context, in Input, pass, entry string) (*Result, error) {
	res := &Result{Pass: pass}

	// Stage 1: Resolve
	r.state = StateGraphBuilding
	deps := in.Dependencies
	if r.Pinner != nil {
		pinned, err := r.Pinner.Pin(ctx, deps)
		if err != nil {
			return nil, err
		}
		deps = pinned
	}
	resolution, err := r.Resolver.Resolve(deps)
	if err != nil {
		return nil, err
	}
	res.Resolution = resolution

	if err := r.Compiler.Initialize(ctx, in.Backend); err != nil {
		return nil, err
	}
	backend, err := r.Compiler.Select(ctx, in.Backend)
	if err != nil {
		return nil, err
	}

	// Stage 2: Graph
	graphStart := time.Now()
	g, err := r.Builder.Build(ctx, in.Files)
	if err != nil {
		return nil, err
	}
	res.Graph = g
	res.Order = g.Order()
	res.Stats.GraphTime = time.Since(graphStart)
	res.Stats.NodeCount = g.NodeCount()
	res.Stats.EdgeCount = g.EdgeCount()
	for _, c := range res.Order.Cycles {
		r.Logger.Warn("circular import", "from", c[0], "to", c[1])
	}
	r.Logger.Debug("built dependency graph",
		"nodes", res.Stats.NodeCount,
		"edges", res.Stats.EdgeCount,
		"duration", res.Stats.GraphTime)

	// Stage 3: Process
	r.state = StateProcessing
	reg := modules.NewRegistry(r.Store, r.BaseURL, pass)
	res.Registry = reg
	opts := Options{
		Files:        in.Files,
		Registry:     reg,
		ExternalDeps: resolution.URLs(),
		Backend:      backend,
	}

	compileStart := time.Now()
	for _, path := range res.Order.Paths {
		if err := ctx.Err(); err != nil {
			_ = reg.Dispose(context.WithoutCancel(ctx))
			return nil, err
		}
		src, ok := in.Files.Get(path)
		if !ok {
			r.Logger.Warn("skipping import target without source", "path", path)
			continue
		}
		if !r.Chain.Handles(path) {
			r.Logger.Debug("skipping unprocessed file", "path", path)
			continue
		}
		res.Stats.Files++

		fileStart := time.Now()
		code, err := r.Chain.Process(ctx, src, path, opts)
		r.Hooks.Compile.OnFileComplete(ctx, path, backend, time.Since(fileStart), err)
		if err != nil {
			ce := asCompileError(path, "", err)
			res.Failures = append(res.Failures, ce)
			r.Logger.Warn("compile failed", "file", path, "err", ce.Message)
			continue
		}
		if _, err := reg.Register(ctx, path, code); err != nil {
			_ = reg.Dispose(context.WithoutCancel(ctx))
			return nil, errors.Wrap(errors.ErrCodeInternal, err, "register %s", path)
		}
	}
	res.Stats.CompileTime = time.Since(compileStart)
	res.Stats.Modules = reg.Len()
	res.Stats.Failures = len(res.Failures)

	ref, ok := reg.Lookup(entry)
	if !ok {
		_ = reg.Dispose(ctx)
		return res, errors.New(errors.ErrCodeEntryNotFound, "entry %s was not compiled", entry)
	}
	res.Entry = ref
	return res, nil
}

// Cleanup disposes the registry of the current pass. It is safe to call
// more than once.
func (r *Runner) Cleanup(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.disposeLocked(ctx)
}

func (r *Runner) disposeLocked(ctx context.Context) error {
	if r.current == nil {
		return nil
	}
	err := r.current.Registry.Dispose(ctx)
	r.current = nil
	r.state = StateIdle
	return err
}

// Close disposes the current pass and releases the compiler backends.
func (r *Runner) Close(ctx context.Context) error {
	if err := r.Cleanup(ctx); err != nil {
		return err
	}
	return r.Compiler.Close(ctx)
}
