package project

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matzehuels/pipo/pkg/errors"
)

func writeFiles(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		path := filepath.Join(root, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
}

func TestLoad(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]string{
		"src/App.tsx":                 "export default () => null;",
		"src/styles.css":              ".a {}",
		"index.html":                  "<div id=\"root\"></div>",
		"lib/util.mjs":                "export const x = 1;",
		"README.md":                   "# demo",
		".eslintrc.js":                "module.exports = {};",
		"node_modules/react/index.js": "module.exports = {};",
		".git/hooks/pre-commit.js":    "",
		ManifestName: `
[project]
entry = "./src/App.tsx"
compiler = "wasm"

[dependencies]
lodash = " 4.17.21 "
"@arco-design/web-react" = "2.62.1"

[tool]
port = 3000
`,
	})

	p, err := Load(root)
	require.NoError(t, err)
	assert.Equal(t, []string{"/index.html", "/lib/util.mjs", "/src/App.tsx", "/src/styles.css"}, p.Files.Paths())

	require.NotNil(t, p.Manifest)
	in := p.Input()
	assert.Equal(t, "/src/App.tsx", in.Entry)
	assert.Equal(t, "wasm", in.Backend)
	assert.Equal(t, map[string]string{"lodash": "4.17.21", "@arco-design/web-react": "2.62.1"}, in.Dependencies)
	assert.Same(t, p.Files, in.Files)
}

func TestLoadPackageJSON(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]string{
		"App.jsx":      "export default () => null;",
		"package.json": `{"name":"demo","dependencies":{"react":"^18.2.0","dayjs":"~1.11.10","lodash":"latest"}}`,
	})

	p, err := Load(root)
	require.NoError(t, err)
	in := p.Input()
	assert.Empty(t, in.Entry)
	assert.Equal(t, map[string]string{"react": "18.2.0", "dayjs": "1.11.10", "lodash": "latest"}, in.Dependencies)
}

func TestLoadErrors(t *testing.T) {
	t.Run("missing", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "nope"))
		assert.True(t, errors.Is(err, errors.ErrCodeNotFound))
	})
	t.Run("not a directory", func(t *testing.T) {
		root := t.TempDir()
		writeFiles(t, root, map[string]string{"App.tsx": ""})
		_, err := Load(filepath.Join(root, "App.tsx"))
		assert.True(t, errors.Is(err, errors.ErrCodeInvalidPath))
	})
	t.Run("empty", func(t *testing.T) {
		root := t.TempDir()
		writeFiles(t, root, map[string]string{"notes.txt": "hi"})
		_, err := Load(root)
		assert.True(t, errors.Is(err, errors.ErrCodeInvalidInput))
	})
	t.Run("bad manifest", func(t *testing.T) {
		root := t.TempDir()
		writeFiles(t, root, map[string]string{"App.tsx": "", ManifestName: "[project\nentry="})
		_, err := Load(root)
		assert.True(t, errors.Is(err, errors.ErrCodeInvalidManifest))
	})
	t.Run("bad dependency", func(t *testing.T) {
		root := t.TempDir()
		writeFiles(t, root, map[string]string{"App.tsx": "", ManifestName: "[dependencies]\n\"../evil\" = \"1.0.0\"\n"})
		_, err := Load(root)
		assert.True(t, errors.Is(err, errors.ErrCodeInvalidManifest))
	})
	t.Run("entry outside project", func(t *testing.T) {
		root := t.TempDir()
		writeFiles(t, root, map[string]string{"App.tsx": "", ManifestName: "[project]\nentry = \"../App.tsx\"\n"})
		_, err := Load(root)
		assert.True(t, errors.Is(err, errors.ErrCodeInvalidManifest))
	})
}

func TestFindManifest(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]string{ManifestName: "", "src/deep/App.tsx": ""})

	path, ok, err := FindManifest(filepath.Join(root, "src", "deep"))
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, filepath.Join(root, ManifestName), path)
}

func TestVirtualPath(t *testing.T) {
	root := filepath.FromSlash("/work/app")
	vp, err := VirtualPath(root, filepath.Join(root, "src", "App.tsx"))
	require.NoError(t, err)
	assert.Equal(t, "/src/App.tsx", vp)

	_, err = VirtualPath(root, filepath.FromSlash("/work/other/App.tsx"))
	assert.Error(t, err)
}

func TestRelevant(t *testing.T) {
	for name, want := range map[string]bool{
		"App.tsx":    true,
		"a/b.CSS":    true,
		"index.html": true,
		"x.mjs":      true,
		"README.md":  false,
		".env.js":    false,
		"data.json":  false,
	} {
		assert.Equal(t, want, Relevant(name), name)
	}
}

func TestWatcher(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]string{"src/App.tsx": "v1", "README.md": "x"})

	w, err := NewWatcher(root, log.New(io.Discard))
	require.NoError(t, err)
	w.Debounce = 20 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	changes := make(chan []string, 4)
	go w.Run(ctx, 10*time.Millisecond, func(changed []string) { changes <- changed })

	writeFiles(t, root, map[string]string{"src/App.tsx": "v2 with more bytes", "src/New.tsx": "new", "README.md": "y"})

	got := map[string]bool{}
	deadline := time.After(5 * time.Second)
	for !got["/src/App.tsx"] || !got["/src/New.tsx"] {
		select {
		case changed := <-changes:
			for _, p := range changed {
				got[p] = true
			}
		case <-deadline:
			require.FailNow(t, "changes not reported", "got %v", got)
		}
	}
	assert.False(t, got["/README.md"])
}
