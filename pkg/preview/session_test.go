package preview

import (
	"context"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matzehuels/pipo/pkg/errors"
	"github.com/matzehuels/pipo/pkg/mapper"
	"github.com/matzehuels/pipo/pkg/observability"
	"github.com/matzehuels/pipo/pkg/pipeline"
	"github.com/matzehuels/pipo/pkg/protocol"
	"github.com/matzehuels/pipo/pkg/vfs"
)

const (
	appSrc    = "import Button from './Button';\nexport default function App() {\n  return <Button label=\"hi\" />;\n}\n"
	buttonSrc = "export default function Button({ label }: { label: string }) {\n  return <button>{label}</button>;\n}\n"
)

func testFiles() *vfs.FileSet {
	return vfs.New("/App.tsx", appSrc, "/Button.tsx", buttonSrc)
}

// recorder collects callback invocations.
type recorder struct {
	mu        sync.Mutex
	starts    int
	completes []float64
	errors    []mapper.ErrorInfo
	clicks    chan mapper.SourceInfo
	consoles  chan protocol.ConsoleLog
	deps      chan protocol.DependencyError
	runtime   chan mapper.ErrorInfo
}

func newRecorder() *recorder {
	return &recorder{
		clicks:   make(chan mapper.SourceInfo, 4),
		consoles: make(chan protocol.ConsoleLog, 4),
		deps:     make(chan protocol.DependencyError, 4),
		runtime:  make(chan mapper.ErrorInfo, 4),
	}
}

func (r *recorder) callbacks() Callbacks {
	return Callbacks{
		OnCompilationStart: func() {
			r.mu.Lock()
			r.starts++
			r.mu.Unlock()
		},
		OnCompilationComplete: func(s float64) {
			r.mu.Lock()
			r.completes = append(r.completes, s)
			r.mu.Unlock()
		},
		OnError: func(info mapper.ErrorInfo) {
			r.mu.Lock()
			r.errors = append(r.errors, info)
			r.mu.Unlock()
			if info.Kind == mapper.KindRuntime {
				r.runtime <- info
			}
		},
		OnElementClick:    func(info mapper.SourceInfo) { r.clicks <- info },
		OnConsole:         func(c protocol.ConsoleLog) { r.consoles <- c },
		OnDependencyError: func(d protocol.DependencyError) { r.deps <- d },
	}
}

type dropHooks struct {
	observability.NoopChannelHooks
	drops chan string
}

func (h dropHooks) OnDrop(_ context.Context, _, _, reason string) { h.drops <- reason }

func newSession(t *testing.T, rec *recorder, hooks observability.Hooks) *Session {
	t.Helper()
	logger := log.New(io.Discard)
	runner := pipeline.NewRunner(pipeline.Config{}, logger)
	s := New(Config{
		Runner:    runner,
		Title:     "Test",
		Channel:   func(pass string) string { return "/ws/" + pass },
		Callbacks: rec.callbacks(),
		Hooks:     hooks,
	}, logger)
	t.Cleanup(func() {
		s.Close(context.Background())
		runner.Close(context.Background())
	})
	return s
}

func TestCompile(t *testing.T) {
	rec := newRecorder()
	s := newSession(t, rec, observability.Hooks{})
	ctx := context.Background()

	p, err := s.Compile(ctx, pipeline.Input{Files: testFiles()})
	require.NoError(t, err)
	assert.Equal(t, "1", p.ID)
	assert.Equal(t, "1", s.PassID())
	assert.Empty(t, p.Errors)
	assert.Equal(t, 1, rec.starts)
	assert.Len(t, rec.completes, 1)

	doc, err := s.Document("1")
	require.NoError(t, err)
	assert.Contains(t, doc, `"entry":"`+p.Result.Entry.URL+`"`)
	assert.Contains(t, doc, `"channel":"/ws/1"`)
	assert.Contains(t, doc, "<title>Test</title>")

	_, err = s.Document("0")
	assert.ErrorIs(t, err, ErrStalePass)

	code, err := s.Module(ctx, "1", p.Result.Entry.ID)
	require.NoError(t, err)
	assert.Contains(t, string(code), "data-pipo-line")

	_, err = s.Module(ctx, "1", "missing")
	assert.True(t, errors.Is(err, errors.ErrCodeNotFound))
}

func TestCompileSkipsUnchangedInput(t *testing.T) {
	rec := newRecorder()
	s := newSession(t, rec, observability.Hooks{})
	ctx := context.Background()

	first, err := s.Compile(ctx, pipeline.Input{Files: testFiles()})
	require.NoError(t, err)
	again, err := s.Compile(ctx, pipeline.Input{Files: testFiles()})
	require.NoError(t, err)
	assert.Same(t, first, again)
	assert.Equal(t, 1, rec.starts)

	forced, err := s.Recompile(ctx)
	require.NoError(t, err)
	assert.Equal(t, "2", forced.ID)
	assert.True(t, first.Result.Registry.Disposed(), "previous pass must be disposed")

	files := testFiles()
	files.Add("/Button.tsx", strings.Replace(buttonSrc, "button>", "a>", 2))
	changed, err := s.Compile(ctx, pipeline.Input{Files: files})
	require.NoError(t, err)
	assert.Equal(t, "3", changed.ID)
	assert.Equal(t, 3, rec.starts)

	_, err = s.Module(ctx, "2", forced.Result.Entry.ID)
	assert.ErrorIs(t, err, ErrStalePass)
}

func TestRecompileWithoutInput(t *testing.T) {
	s := newSession(t, newRecorder(), observability.Hooks{})
	_, err := s.Recompile(context.Background())
	assert.ErrorIs(t, err, ErrNoInput)
}

func TestCompileReportsFileFailures(t *testing.T) {
	rec := newRecorder()
	s := newSession(t, rec, observability.Hooks{})

	files := vfs.New(
		"/App.tsx", "import B from './B';\nexport default function App() {\n  return <div>{B}</div>;\n}\n",
		"/B.tsx", "export default = ;\n",
	)
	p, err := s.Compile(context.Background(), pipeline.Input{Files: files})
	require.NoError(t, err)
	require.Len(t, p.Errors, 1)
	assert.Equal(t, mapper.KindCompile, p.Errors[0].Kind)
	assert.Equal(t, "/B.tsx", p.Errors[0].FileName)
	assert.Equal(t, 1, p.Errors[0].Line)
	assert.NotEmpty(t, p.Errors[0].CodeFrame)
	assert.Len(t, rec.errors, 1)
}

func TestCompileMissingEntry(t *testing.T) {
	rec := newRecorder()
	s := newSession(t, rec, observability.Hooks{})

	_, err := s.Compile(context.Background(), pipeline.Input{Files: vfs.New("/util.ts", "export const x = 1;")})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrCodeEntryNotFound))
	assert.Nil(t, s.Current())
	require.Len(t, rec.errors, 1)
	assert.Equal(t, mapper.KindCompile, rec.errors[0].Kind)
	assert.Empty(t, rec.completes)
}

func TestCompileInjectsIndexHTML(t *testing.T) {
	s := newSession(t, newRecorder(), observability.Hooks{})
	files := testFiles()
	files.Add(HTMLEntry, "<html><head><title>Mine</title></head><body><div id=\"root\"></div></body></html>")

	p, err := s.Compile(context.Background(), pipeline.Input{Files: files, Entry: "/App.tsx"})
	require.NoError(t, err)
	assert.Contains(t, p.Document, "<title>Mine</title>")
	assert.Contains(t, p.Document, `type="importmap"`)
	assert.Equal(t, 1, strings.Count(p.Document, `id="root"`))
}

func TestCloseRejectsCompile(t *testing.T) {
	s := newSession(t, newRecorder(), observability.Hooks{})
	ctx := context.Background()
	p, err := s.Compile(ctx, pipeline.Input{Files: testFiles()})
	require.NoError(t, err)

	require.NoError(t, s.Close(ctx))
	require.NoError(t, s.Close(ctx))
	assert.True(t, p.Result.Registry.Disposed())
	_, err = s.Compile(ctx, pipeline.Input{Files: testFiles()})
	assert.ErrorIs(t, err, ErrClosed)
}

// serve compiles the test project and serves a pipe for its pass.
func serve(t *testing.T, s *Session) (*Pass, *protocol.PipeEnd, <-chan error) {
	t.Helper()
	p, err := s.Compile(context.Background(), pipeline.Input{Files: testFiles()})
	require.NoError(t, err)

	host, sb := protocol.Pipe(p.ID)
	require.NoError(t, s.Attach(host))
	done := make(chan error, 1)
	go func() { done <- s.Serve(context.Background(), host) }()
	return p, sb, done
}

func receive[T protocol.Message](t *testing.T, ch protocol.Channel) T {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	m, err := ch.Receive(ctx)
	require.NoError(t, err)
	v, ok := m.(T)
	require.True(t, ok, "got %T", m)
	return v
}

func next[T any](t *testing.T, ch <-chan T) T {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(5 * time.Second):
		require.FailNow(t, "timed out")
	}
	var zero T
	return zero
}

func TestServe(t *testing.T) {
	rec := newRecorder()
	drops := make(chan string, 8)
	s := newSession(t, rec, observability.Hooks{Channel: dropHooks{drops: drops}})
	p, sb, done := serve(t, s)
	ctx := context.Background()

	// Runtime errors are mapped back to project files.
	ref := p.Result.Entry.URL
	require.NoError(t, sb.Send(ctx, protocol.RuntimeError{
		Message: "boom",
		Stack:   "Error: boom\n    at App (http://localhost:8080" + ref + ":3:10)",
	}))
	info := next(t, rec.runtime)
	assert.Equal(t, "/App.tsx", info.FileName)
	assert.Equal(t, 3, info.Line)
	assert.NotContains(t, info.Stack, ref)

	// Clicks are ignored until inspect mode is on.
	click := protocol.ElementClick{File: "/App.tsx", StartLine: 3, EndLine: 3, StartColumn: 9, EndColumn: 30, X: 4, Y: 2}
	require.NoError(t, sb.Send(ctx, click))
	assert.Equal(t, dropInspect, next(t, drops))

	require.NoError(t, s.SetInspect(ctx, true))
	assert.True(t, receive[protocol.ToggleInspect](t, sb).Enabled)

	require.NoError(t, sb.Send(ctx, click))
	src := next(t, rec.clicks)
	assert.Equal(t, "/App.tsx", src.File)
	assert.Equal(t, `<Button label="hi" />`, src.Content)
	assert.Equal(t, mapper.Point{X: 4, Y: 2}, src.Position)

	// The sandbox asks for the inspect state after mounting.
	require.NoError(t, sb.Send(ctx, protocol.RequestInspectState{}))
	assert.True(t, receive[protocol.ToggleInspect](t, sb).Enabled)

	require.NoError(t, sb.Send(ctx, protocol.ConsoleLog{Level: "warn", Args: []any{"careful", 1.0}}))
	assert.Equal(t, []any{"careful", 1.0}, next(t, rec.consoles).Args)

	require.NoError(t, sb.Send(ctx, protocol.DependencyError{Name: "lodash", URL: "https://esm.sh/lodash", Error: "404"}))
	assert.Equal(t, "lodash", next(t, rec.deps).Name)

	// Stale and malformed messages are dropped and the loop keeps going.
	require.NoError(t, sb.SendRaw(ctx, []byte(`{"type":"runtime-error","pass":"99","data":{"message":"old"}}`)))
	assert.Equal(t, dropStale, next(t, drops))
	require.NoError(t, sb.SendRaw(ctx, []byte(`{"type":"element-click","data":{"file":7}}`)))
	assert.Equal(t, dropMalformed, next(t, drops))
	require.NoError(t, sb.SendRaw(ctx, []byte(`not json`)))
	assert.Equal(t, dropMalformed, next(t, drops))

	require.NoError(t, sb.Send(ctx, protocol.RuntimeError{Message: "still listening"}))
	assert.Equal(t, "still listening", next(t, rec.runtime).Message)

	require.NoError(t, sb.Close())
	assert.NoError(t, next(t, done))
}

func TestServeDropsSupersededPass(t *testing.T) {
	rec := newRecorder()
	drops := make(chan string, 8)
	s := newSession(t, rec, observability.Hooks{Channel: dropHooks{drops: drops}})
	_, sb, done := serve(t, s)
	ctx := context.Background()

	_, err := s.Recompile(ctx)
	require.NoError(t, err)

	require.NoError(t, sb.Send(ctx, protocol.RuntimeError{Message: "from the old pass"}))
	assert.Equal(t, dropStale, next(t, drops))
	assert.Empty(t, rec.runtime)

	require.NoError(t, sb.Close())
	assert.NoError(t, next(t, done))
}

func TestAttachReplacesChannel(t *testing.T) {
	s := newSession(t, newRecorder(), observability.Hooks{})
	p, _, done := serve(t, s)

	host, sb := protocol.Pipe(p.ID)
	require.NoError(t, s.Attach(host))
	assert.NoError(t, next(t, done), "the replaced channel ends its Serve loop")

	second := make(chan error, 1)
	go func() { second <- s.Serve(context.Background(), host) }()

	ctx := context.Background()
	require.NoError(t, s.SetInspect(ctx, true))
	assert.True(t, receive[protocol.ToggleInspect](t, sb).Enabled, "the new channel stays attached")

	require.NoError(t, sb.Close())
	assert.NoError(t, next(t, second))
}

func TestAttachBeforeServeStarts(t *testing.T) {
	s := newSession(t, newRecorder(), observability.Hooks{})
	p, err := s.Compile(context.Background(), pipeline.Input{Files: testFiles()})
	require.NoError(t, err)
	ctx := context.Background()

	// Both sandboxes attach before either handler starts serving.
	first, _ := protocol.Pipe(p.ID)
	second, sb := protocol.Pipe(p.ID)
	require.NoError(t, s.Attach(first))
	require.NoError(t, s.Attach(second))

	firstDone := make(chan error, 1)
	go func() { firstDone <- s.Serve(ctx, first) }()
	assert.NoError(t, next(t, firstDone), "a replaced channel is not served")

	secondDone := make(chan error, 1)
	go func() { secondDone <- s.Serve(ctx, second) }()

	require.NoError(t, s.SetInspect(ctx, true))
	assert.True(t, receive[protocol.ToggleInspect](t, sb).Enabled)

	require.NoError(t, sb.Close())
	assert.NoError(t, next(t, secondDone))
}

func TestServeWithoutChannel(t *testing.T) {
	s := newSession(t, newRecorder(), observability.Hooks{})
	assert.Error(t, s.Serve(context.Background(), nil))
}

func TestSetInspectWithoutChannel(t *testing.T) {
	s := newSession(t, newRecorder(), observability.Hooks{})
	require.NoError(t, s.SetInspect(context.Background(), true))
	assert.True(t, s.Inspecting())
}
