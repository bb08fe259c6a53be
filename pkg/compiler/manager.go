package compiler

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"

	"github.com/matzehuels/pipo/pkg/errors"
)

// State is the lifecycle state of a [Manager].
type State int

const (
	StateUninitialized State = iota
	StateInitializing
	StateReady
)

func (s State) String() string {
	switch s {
	case StateInitializing:
		return "initializing"
	case StateReady:
		return "ready"
	default:
		return "uninitialized"
	}
}

type registration struct {
	factory  Factory
	opts     Options
	strategy Strategy
}

// Manager selects and drives compiler strategies.
//
// The first registered strategy is the baseline and the initial default.
// Manager is safe for concurrent use.
type Manager struct {
	mu       sync.Mutex
	regs     map[string]*registration
	names    []string
	baseline string
	current  string
	state    State
	logger   *log.Logger
}

// NewManager creates an empty manager.
func NewManager(logger *log.Logger) *Manager {
	if logger == nil {
		logger = log.Default()
	}
	return &Manager{
		regs:   make(map[string]*registration),
		logger: logger.WithPrefix("compiler"),
	}
}

// NewDefaultManager registers esbuild (baseline) and wasm with the same
// options.
func NewDefaultManager(logger *log.Logger, opts Options) *Manager {
	m := NewManager(logger)
	m.Register(ESBuildName, NewESBuild, opts)
	m.Register(WASMName, NewWASM, opts)
	return m
}

// Register adds a strategy built by f. Registering a name again replaces it.
func (m *Manager) Register(name string, f Factory, opts Options) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.regs[name]; !ok {
		m.names = append(m.names, name)
	}
	m.regs[name] = &registration{factory: f, opts: opts, strategy: f(opts)}
	if m.baseline == "" {
		m.baseline = name
		m.current = name
	}
}

// Initialize makes the manager ready with the named strategy, or with the
// default when name is empty. If a non-baseline strategy fails to
// initialize, the baseline is tried instead. Once ready, further calls do
// nothing.
func (m *Manager) Initialize(ctx context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == StateReady {
		return nil
	}
	if name == "" {
		name = m.current
	}
	return m.initializeLocked(ctx, name)
}

func (m *Manager) initializeLocked(ctx context.Context, name string) error {
	reg, ok := m.regs[name]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownStrategy, name)
	}

	m.state = StateInitializing
	start := time.Now()
	err := reg.strategy.Initialize(ctx)
	if err == nil {
		m.current = name
		m.state = StateReady
		m.logger.Info("initialized compiler", "strategy", name, "duration", time.Since(start))
		return nil
	}

	m.logger.Error("compiler initialization failed", "strategy", name, "err", err)
	if name != m.baseline && m.baseline != "" {
		m.logger.Info("falling back to baseline strategy", "strategy", m.baseline)
		return m.initializeLocked(ctx, m.baseline)
	}
	m.state = StateUninitialized
	return errors.Wrap(errors.ErrCodeBackendInit, err, "initialize %s", name)
}

// State returns the lifecycle state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Current returns the default strategy name.
func (m *Manager) Current() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// Baseline returns the fallback strategy name.
func (m *Manager) Baseline() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.baseline
}

// Select returns the strategy a call naming name will use. An empty name
// selects the current default. A strategy that fails to initialize is
// replaced by the baseline; only a failing baseline is an error.
func (m *Manager) Select(ctx context.Context, name string) (string, error) {
	s, err := m.strategyFor(ctx, name)
	if err != nil {
		return "", err
	}
	return s.Name(), nil
}

// strategyFor returns the strategy for a call, initializing a per-call
// override on first use.
func (m *Manager) strategyFor(ctx context.Context, override string) (Strategy, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != StateReady {
		return nil, ErrNotInitialized
	}
	name := m.current
	if override != "" {
		name = override
	}
	reg, ok := m.regs[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownStrategy, name)
	}
	err := reg.strategy.Initialize(ctx)
	if err == nil {
		return reg.strategy, nil
	}
	if name == m.baseline || m.baseline == "" {
		return nil, errors.Wrap(errors.ErrCodeBackendInit, err, "initialize %s", name)
	}
	m.logger.Warn("compiler unavailable, using baseline", "strategy", name, "baseline", m.baseline, "err", err)
	base := m.regs[m.baseline].strategy
	if err := base.Initialize(ctx); err != nil {
		return nil, errors.Wrap(errors.ErrCodeBackendInit, err, "initialize %s", m.baseline)
	}
	return base, nil
}

// Transform compiles code with the selected strategy. Files the strategy
// does not support are returned unchanged.
func (m *Manager) Transform(ctx context.Context, code string, opts TransformOptions) (string, error) {
	s, err := m.strategyFor(ctx, opts.Backend)
	if err != nil {
		return "", err
	}
	if !s.IsSupported(opts.Filename) {
		m.logger.Debug("file type not supported, passing through", "strategy", s.Name(), "file", opts.Filename)
		return code, nil
	}
	return s.Transform(ctx, code, opts)
}

// TransformWithPerformance is Transform with timing. Unsupported files are
// returned unchanged with no performance data.
func (m *Manager) TransformWithPerformance(ctx context.Context, code string, opts TransformOptions) (*Result, error) {
	s, err := m.strategyFor(ctx, opts.Backend)
	if err != nil {
		return nil, err
	}
	if !s.IsSupported(opts.Filename) {
		return &Result{Code: code}, nil
	}
	return s.TransformWithPerformance(ctx, code, opts)
}

// Comparison is the result of [Manager.Compare].
type Comparison struct {
	Results  []Performance    // successful runs in registration order
	Failures map[string]error // per strategy
	Winner   string
	Speedup  float64 // slowest duration / fastest duration, 0 with fewer than two results
}

// Compare runs every registered strategy on the same input concurrently.
// Strategies that fail to initialize or compile are reported in Failures.
func (m *Manager) Compare(ctx context.Context, code string, opts TransformOptions) (*Comparison, error) {
	m.mu.Lock()
	names := slices.Clone(m.names)
	strategies := make([]Strategy, len(names))
	for i, n := range names {
		strategies[i] = m.regs[n].strategy
	}
	m.mu.Unlock()

	results := make([]*Performance, len(names))
	failures := make([]error, len(names))

	g, gctx := errgroup.WithContext(ctx)
	for i, s := range strategies {
		g.Go(func() error {
			if err := s.Initialize(gctx); err != nil {
				failures[i] = errors.Wrap(errors.ErrCodeBackendInit, err, "initialize %s", s.Name())
				return nil
			}
			o := opts
			o.Backend = s.Name()
			res, err := s.TransformWithPerformance(gctx, code, o)
			if err != nil {
				failures[i] = err
				return nil
			}
			results[i] = res.Performance
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	cmp := &Comparison{Failures: make(map[string]error)}
	for i, n := range names {
		if failures[i] != nil {
			m.logger.Warn("compiler failed during comparison", "strategy", n, "err", failures[i])
			cmp.Failures[n] = failures[i]
			continue
		}
		if results[i] != nil {
			cmp.Results = append(cmp.Results, *results[i])
		}
	}
	if len(cmp.Results) == 0 {
		return cmp, nil
	}

	fastest, slowest := cmp.Results[0], cmp.Results[0]
	for _, r := range cmp.Results[1:] {
		if r.Duration < fastest.Duration {
			fastest = r
		}
		if r.Duration > slowest.Duration {
			slowest = r
		}
	}
	cmp.Winner = fastest.Backend
	if len(cmp.Results) > 1 && fastest.Duration > 0 {
		cmp.Speedup = float64(slowest.Duration) / float64(fastest.Duration)
	}
	m.logger.Info("compiler comparison", "winner", cmp.Winner, "speedup", fmt.Sprintf("%.2fx", cmp.Speedup))
	return cmp, nil
}

// SetDefault changes the default strategy. It does not initialize it.
func (m *Manager) SetDefault(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.regs[name]; !ok {
		return fmt.Errorf("%w: %q", ErrUnknownStrategy, name)
	}
	m.current = name
	return nil
}

// Available returns the registered strategy names in registration order.
func (m *Manager) Available() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.names)
}

// IsAvailable reports whether a strategy is registered.
func (m *Manager) IsAvailable(name string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.regs[name]
	return ok
}

// Configure re-creates a strategy with new options. The new instance starts
// uninitialized and is initialized on next use.
func (m *Manager) Configure(ctx context.Context, name string, opts Options) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	reg, ok := m.regs[name]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownStrategy, name)
	}
	if err := reg.strategy.Close(ctx); err != nil {
		m.logger.Warn("close strategy", "strategy", name, "err", err)
	}
	reg.opts = opts
	reg.strategy = reg.factory(opts)
	m.logger.Debug("configured strategy", "strategy", name)
	return nil
}

// Close releases every strategy.
func (m *Manager) Close(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	var first error
	for _, n := range m.names {
		if err := m.regs[n].strategy.Close(ctx); err != nil && first == nil {
			first = err
		}
	}
	m.state = StateUninitialized
	return first
}
