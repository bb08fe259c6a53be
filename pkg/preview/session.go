package preview

import (
	"context"
	stderrors "errors"
	"strconv"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/pipo/pkg/cache"
	"github.com/matzehuels/pipo/pkg/errors"
	"github.com/matzehuels/pipo/pkg/mapper"
	"github.com/matzehuels/pipo/pkg/modules"
	"github.com/matzehuels/pipo/pkg/observability"
	"github.com/matzehuels/pipo/pkg/pipeline"
	"github.com/matzehuels/pipo/pkg/protocol"
	"github.com/matzehuels/pipo/pkg/sandbox"
)

var (
	// ErrClosed is returned by operations on a closed session.
	ErrClosed = stderrors.New("session closed")

	// ErrNoInput is returned by Recompile before the first Compile.
	ErrNoInput = stderrors.New("nothing compiled yet")

	// ErrStalePass is returned when asking for a pass that is not current.
	ErrStalePass = stderrors.New("pass is not current")
)

// HTMLEntry is the project file a sandbox document is injected into, when
// present.
const HTMLEntry = "/index.html"

// Callbacks are invoked by a session. Unset callbacks are ignored.
//
// OnError, OnElementClick, OnConsole and OnDependencyError are called from
// the goroutine running [Session.Serve]; OnDependencyError runs on its own
// goroutine so a slow handler never holds up the sandbox.
type Callbacks struct {
	OnCompilationStart    func()
	OnCompilationComplete func(seconds float64)
	OnError               func(mapper.ErrorInfo)
	OnElementClick        func(mapper.SourceInfo)
	OnConsole             func(protocol.ConsoleLog)
	OnDependencyError     func(protocol.DependencyError)
}

func (c Callbacks) withDefaults() Callbacks {
	if c.OnCompilationStart == nil {
		c.OnCompilationStart = func() {}
	}
	if c.OnCompilationComplete == nil {
		c.OnCompilationComplete = func(float64) {}
	}
	if c.OnError == nil {
		c.OnError = func(mapper.ErrorInfo) {}
	}
	if c.OnElementClick == nil {
		c.OnElementClick = func(mapper.SourceInfo) {}
	}
	if c.OnConsole == nil {
		c.OnConsole = func(protocol.ConsoleLog) {}
	}
	if c.OnDependencyError == nil {
		c.OnDependencyError = func(protocol.DependencyError) {}
	}
	return c
}

// Config configures a [Session].
type Config struct {
	Runner    *pipeline.Runner // created with defaults when nil
	Title     string
	Channel   func(pass string) string // host channel URL for a pass; nil disables the socket
	Inspect   bool                     // initial inspect state
	Callbacks Callbacks
	Hooks     observability.Hooks
}

// Pass is one successful compilation.
type Pass struct {
	ID       string
	Result   *pipeline.Result
	Document string
	Errors   []mapper.ErrorInfo // mapped compile failures
	Duration time.Duration
}

// Session is a live preview.
//
// Compile calls are serialized. Serve, SetInspect and the accessors may run
// concurrently with a compile.
type Session struct {
	runner  *pipeline.Runner
	mapper  *mapper.Mapper
	cb      Callbacks
	hooks   observability.ChannelHooks
	title   string
	channel func(string) string
	logger  *log.Logger
	console *log.Logger

	compileMu   sync.Mutex
	passes      int
	fingerprint string
	last        *pipeline.Input

	mu      sync.RWMutex
	current *Pass
	inspect bool
	ch      protocol.Channel
	closed  bool
}

// New creates a session.
func New(cfg Config, logger *log.Logger) *Session {
	if logger == nil {
		logger = log.Default()
	}
	if cfg.Runner == nil {
		cfg.Runner = pipeline.NewRunner(pipeline.Config{Hooks: cfg.Hooks}, logger)
	}
	return &Session{
		runner:  cfg.Runner,
		mapper:  mapper.New(logger),
		cb:      cfg.Callbacks.withDefaults(),
		hooks:   cfg.Hooks.WithDefaults().Channel,
		title:   cfg.Title,
		channel: cfg.Channel,
		inspect: cfg.Inspect,
		logger:  logger.WithPrefix("preview"),
		console: logger.WithPrefix("sandbox"),
	}
}

// Compile compiles in as a new pass. When in has the same fingerprint as
// the current pass, the current pass is returned without compiling.
//
// Compile failures of single files are mapped, reported through OnError and
// recorded in Pass.Errors; they do not fail the pass. A failed pass is
// reported through OnError as well and leaves the session without a
// current pass.
func (s *Session) Compile(ctx context.Context, in pipeline.Input) (*Pass, error) {
	return s.compile(ctx, in, false)
}

// Recompile compiles the last input again as a new pass.
func (s *Session) Recompile(ctx context.Context) (*Pass, error) {
	s.compileMu.Lock()
	last := s.last
	s.compileMu.Unlock()
	if last == nil {
		return nil, ErrNoInput
	}
	return s.compile(ctx, *last, true)
}

func (s *Session) compile(ctx context.Context, in pipeline.Input, force bool) (*Pass, error) {
	s.compileMu.Lock()
	defer s.compileMu.Unlock()

	if s.isClosed() {
		return nil, ErrClosed
	}

	fp := cache.Fingerprint(in.Files, in.Dependencies, in.Entry, in.Backend)
	if cur := s.Current(); !force && cur != nil && fp == s.fingerprint {
		s.logger.Debug("input unchanged, skipping compile", "pass", cur.ID)
		return cur, nil
	}

	s.cb.OnCompilationStart()
	start := time.Now()

	s.passes++
	in.Pass = strconv.Itoa(s.passes)
	s.last = &in
	s.fingerprint = ""
	s.setCurrent(nil)

	res, err := s.runner.Compile(ctx, in)
	s.mapper.SetFiles(in.Files)
	var mapped []mapper.ErrorInfo
	if res != nil {
		if res.Registry != nil {
			s.mapper.SetReferences(res.Registry.URLs())
		}
		for _, f := range res.Failures {
			info := s.mapper.ProcessCompileError(f)
			mapped = append(mapped, info)
			s.cb.OnError(info)
		}
	}
	if err != nil {
		s.logger.Error("compile failed", "pass", in.Pass, "err", err)
		s.cb.OnError(s.mapper.ProcessCompileError(err))
		return nil, err
	}

	doc, err := s.document(res, in)
	if err != nil {
		_ = s.runner.Cleanup(context.WithoutCancel(ctx))
		s.cb.OnError(s.mapper.ProcessCompileError(err))
		return nil, err
	}

	p := &Pass{
		ID:       in.Pass,
		Result:   res,
		Document: doc,
		Errors:   mapped,
		Duration: time.Since(start),
	}
	s.setCurrent(p)
	s.fingerprint = fp
	s.cb.OnCompilationComplete(p.Duration.Seconds())
	return p, nil
}

func (s *Session) document(res *pipeline.Result, in pipeline.Input) (string, error) {
	opts := sandbox.Options{
		Title:     s.title,
		Pass:      res.Pass,
		EntryURL:  res.Entry.URL,
		EntryFile: res.Entry.Path,
		ImportMap: res.Resolution.ImportMap,
		Styles:    res.Resolution.Styles,
		Inspect:   s.Inspecting(),
	}
	if s.channel != nil {
		opts.Channel = s.channel(res.Pass)
	}
	if src, ok := in.Files.Get(HTMLEntry); ok {
		return sandbox.Inject(src, opts)
	}
	return sandbox.Generate(opts)
}

func (s *Session) setCurrent(p *Pass) {
	s.mu.Lock()
	s.current = p
	s.mu.Unlock()
}

func (s *Session) isClosed() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.closed
}

// Current returns the current pass, or nil.
func (s *Session) Current() *Pass {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// PassID returns the id of the current pass, or "".
func (s *Session) PassID() string {
	if p := s.Current(); p != nil {
		return p.ID
	}
	return ""
}

// Document returns the sandbox document of pass.
func (s *Session) Document(pass string) (string, error) {
	p := s.Current()
	if p == nil || p.ID != pass {
		return "", ErrStalePass
	}
	return p.Document, nil
}

// Module returns compiled code by reference id. Only modules of the
// current pass are served.
func (s *Session) Module(ctx context.Context, pass, id string) ([]byte, error) {
	p := s.Current()
	if p == nil || p.ID != pass {
		return nil, ErrStalePass
	}
	code, err := p.Result.Registry.Code(ctx, id)
	if stderrors.Is(err, modules.ErrNotFound) {
		return nil, errors.Wrap(errors.ErrCodeNotFound, err, "module %s", id)
	}
	return code, err
}

// Inspecting reports whether inspect mode is on.
func (s *Session) Inspecting() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.inspect
}

// SetInspect turns inspect mode on or off and tells the attached sandbox.
// Without an attached channel only the state changes; the sandbox asks for
// it after mounting.
func (s *Session) SetInspect(ctx context.Context, enabled bool) error {
	s.mu.Lock()
	s.inspect = enabled
	ch := s.ch
	s.mu.Unlock()

	s.logger.Debug("inspect mode", "enabled", enabled)
	if ch == nil {
		return nil
	}
	return ch.Send(ctx, protocol.ToggleInspect{Enabled: enabled})
}

// Close disposes the current pass and detaches the sandbox. The runner's
// compiler backends are left to their owner.
func (s *Session) Close(ctx context.Context) error {
	s.compileMu.Lock()
	defer s.compileMu.Unlock()

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	ch := s.ch
	s.ch = nil
	s.current = nil
	s.mu.Unlock()

	if ch != nil {
		_ = ch.Close()
	}
	return s.runner.Cleanup(ctx)
}
