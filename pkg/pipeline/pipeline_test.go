package pipeline

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	perrors "github.com/matzehuels/pipo/pkg/errors"
	"github.com/matzehuels/pipo/pkg/modules"
	"github.com/matzehuels/pipo/pkg/vfs"
)

func newTestRunner(t *testing.T, cfg Config) *Runner {
	t.Helper()
	r := NewRunner(cfg, log.New(io.Discard))
	t.Cleanup(func() { r.Close(context.Background()) })
	return r
}

func moduleCode(t *testing.T, res *Result, path string) string {
	t.Helper()
	ref, ok := res.Registry.Lookup(path)
	require.True(t, ok, "%s was not registered", path)
	code, err := res.Registry.Code(context.Background(), ref.ID)
	require.NoError(t, err, path)
	return string(code)
}

func TestCompile(t *testing.T) {
	r := newTestRunner(t, Config{})
	files := vfs.New(
		"/App.tsx", "import Button from './Button';\nexport default function App() {\n  return <Button label=\"hi\" />;\n}\n",
		"/Button.tsx", "export default function Button({ label }: { label: string }) {\n  return <button>{label}</button>;\n}\n",
	)

	res, err := r.Compile(context.Background(), Input{Files: files, Entry: "/App"})
	require.NoError(t, err)
	assert.Equal(t, StateReady, r.State())
	assert.Equal(t, []string{"/Button.tsx", "/App.tsx"}, res.Order.Paths)
	assert.Equal(t, "/App.tsx", res.Entry.Path)
	assert.Equal(t, 2, res.Stats.Modules)
	assert.Zero(t, res.Stats.Failures)

	button, _ := res.Registry.Lookup("/Button.tsx")
	app := moduleCode(t, res, "/App.tsx")
	assert.Contains(t, app, button.URL, "App imports the Button reference")
	assert.Contains(t, app, "data-pipo-line", "App is instrumented")
	assert.Contains(t, app, "esm.sh/react@18.2.0", "react comes from the CDN")
	assert.Contains(t, res.Resolution.ImportMap.Imports, "react-dom/client")
}

func TestCompileUnavailableBackendFallsBack(t *testing.T) {
	r := newTestRunner(t, Config{})
	files := vfs.New(
		"/App.tsx", "export default function App() {\n  return <div>hi</div>;\n}\n",
	)

	for pass := 0; pass < 2; pass++ {
		res, err := r.Compile(context.Background(), Input{Files: files, Backend: "wasm"})
		require.NoError(t, err, "pass %d", pass)
		assert.Equal(t, 1, res.Stats.Modules, "pass %d: the baseline compiles the file", pass)
		assert.Zero(t, res.Stats.Failures, "pass %d", pass)
		assert.Equal(t, "/App.tsx", res.Entry.Path, "pass %d", pass)
	}
	assert.Equal(t, "esbuild", r.Compiler.Current())
}

func TestCompileFailingDependency(t *testing.T) {
	r := newTestRunner(t, Config{})
	files := vfs.New(
		"/A.tsx", "import B from './B';\nexport default function A() {\n  return <div>{B}</div>;\n}\n",
		"/B.tsx", "export default = ;\n",
	)

	res, err := r.Compile(context.Background(), Input{Files: files, Entry: "/A.tsx"})
	require.NoError(t, err)
	_, ok := res.Registry.Lookup("/B.tsx")
	assert.False(t, ok, "a failing file must not be registered")
	require.Len(t, res.Failures, 1)
	assert.Equal(t, "/B.tsx", res.Failures[0].File)
	assert.Equal(t, 1, res.Failures[0].Line)
	assert.True(t, res.Failed("/B.tsx"))
	assert.False(t, res.Failed("/A.tsx"))
	assert.Contains(t, moduleCode(t, res, "/A.tsx"), `"./B"`, "A keeps its original specifier")
}

func TestCompileStyleImport(t *testing.T) {
	r := newTestRunner(t, Config{})
	files := vfs.New(
		"/App.tsx", "import './styles.css';\nexport default () => <div className=\"a\" />;\n",
		"/styles.css", ".a { color: red; }",
	)

	res, err := r.Compile(context.Background(), Input{Files: files})
	require.NoError(t, err)
	assert.Equal(t, "/styles.css", res.Order.Paths[0], "style sheets come first")

	app := moduleCode(t, res, "/App.tsx")
	assert.Contains(t, app, ".a { color: red; }")
	assert.Contains(t, app, "document.head.appendChild")
	assert.NotContains(t, app, `import "./styles.css"`, "live style import remains")
}

func TestCompileMissingEntry(t *testing.T) {
	r := newTestRunner(t, Config{})
	files := vfs.New("/App.tsx", "export default = ;")

	res, err := r.Compile(context.Background(), Input{Files: files, Entry: "/App.tsx"})
	require.True(t, perrors.Is(err, perrors.ErrCodeEntryNotFound), "got %v", err)
	assert.Equal(t, StateFailed, r.State())
	require.NotNil(t, res, "the result still carries the failures")
	assert.Len(t, res.Failures, 1)
	assert.True(t, res.Registry.Disposed(), "the registry of a failed pass is disposed")
}

func TestCompileNoEntry(t *testing.T) {
	r := newTestRunner(t, Config{})
	_, err := r.Compile(context.Background(), Input{Files: vfs.New("/lib.ts", "export const x = 1;")})
	assert.True(t, perrors.Is(err, perrors.ErrCodeEntryNotFound), "got %v", err)

	_, err = r.Compile(context.Background(), Input{})
	assert.True(t, perrors.Is(err, perrors.ErrCodeInvalidInput), "got %v", err)
}

func TestRecompileDisposesPreviousPass(t *testing.T) {
	store := modules.NewMemoryStore()
	r := newTestRunner(t, Config{Store: store})
	files := vfs.New("/App.jsx", "export default () => <p>one</p>;")

	first, err := r.Compile(context.Background(), Input{Files: files})
	require.NoError(t, err)
	second, err := r.Compile(context.Background(), Input{Files: files})
	require.NoError(t, err)
	assert.NotEqual(t, first.Pass, second.Pass)
	assert.True(t, first.Registry.Disposed(), "the previous registry is disposed")
	assert.Equal(t, 1, store.Groups())

	require.NoError(t, r.Cleanup(context.Background()))
	assert.NoError(t, r.Cleanup(context.Background()), "Cleanup is idempotent")
	assert.Zero(t, store.Groups())
	assert.Nil(t, r.Result())
}

func TestCompileCanceled(t *testing.T) {
	r := newTestRunner(t, Config{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := r.Compile(ctx, Input{Files: vfs.New("/App.jsx", "export default 1;")})
	assert.ErrorIs(t, err, context.Canceled)
}

type fakeFetcher map[string]string

func (f fakeFetcher) CachedText(_ context.Context, url string, _ bool) (string, error) {
	if s, ok := f[url]; ok {
		return s, nil
	}
	return "", errors.New("not found")
}

func TestStyleProcessor(t *testing.T) {
	ctx := context.Background()
	p := StyleProcessor{Fetcher: fakeFetcher{"https://cdn.example.com/a.css": "h1{margin:0}"}}

	out, err := p.Process(ctx, "p { color: blue; }", "/a.css", Options{})
	require.NoError(t, err)
	assert.Contains(t, out, "p { color: blue; }")
	assert.Contains(t, out, `"/a.css"`)

	out, err = p.Process(ctx, "  https://cdn.example.com/a.css\n", "/remote.css", Options{})
	require.NoError(t, err)
	assert.Contains(t, out, "h1{margin:0}")

	_, err = p.Process(ctx, "https://cdn.example.com/missing.css", "/m.css", Options{})
	assert.True(t, perrors.Is(err, perrors.ErrCodeNetwork), "got %v", err)

	out, _ = StyleProcessor{}.Process(ctx, "https://cdn.example.com/a.css", "/l.css", Options{})
	assert.Contains(t, out, "createElement('link')", "without a fetcher the sheet is linked")
}

type upper struct{}

func (upper) Name() string                { return "upper" }
func (upper) CanProcess(path string) bool { return strings.HasSuffix(path, ".txt") }
func (upper) Process(_ context.Context, content, _ string, _ Options) (string, error) {
	return strings.ToUpper(content), nil
}

type failing struct{}

func (failing) Name() string                { return "failing" }
func (failing) CanProcess(path string) bool { return true }
func (failing) Process(context.Context, string, string, Options) (string, error) {
	return "", errors.New("nope")
}

func TestChain(t *testing.T) {
	ctx := context.Background()
	c := NewChain(upper{}, upper{})
	assert.True(t, c.Handles("/a.txt"))
	assert.False(t, c.Handles("/a.md"))
	out, err := c.Process(ctx, "abc", "/a.txt", Options{})
	require.NoError(t, err)
	assert.Equal(t, "ABC", out)

	c.Add(failing{})
	_, err = c.Process(ctx, "abc", "/a.txt", Options{})
	ce, ok := perrors.AsCompileError(err)
	require.True(t, ok, "got %v", err)
	assert.Equal(t, "/a.txt", ce.File)
	assert.Equal(t, "failing", ce.Backend)
	assert.Equal(t, "nope", ce.Message)
}

func TestDetectEntry(t *testing.T) {
	tests := []struct {
		files *vfs.FileSet
		want  string
		ok    bool
	}{
		{vfs.New("/lib.ts", "", "/App.tsx", ""), "/App.tsx", true},
		{vfs.New("src/main.tsx", "", "src/App.jsx", ""), "src/App.jsx", true},
		{vfs.New("/index.tsx", ""), "/index.tsx", true},
		{vfs.New("/lib.ts", ""), "", false},
	}
	for _, tt := range tests {
		got, ok := DetectEntry(tt.files)
		assert.Equal(t, tt.want, got, "%v", tt.files.Paths())
		assert.Equal(t, tt.ok, ok, "%v", tt.files.Paths())
	}
}
