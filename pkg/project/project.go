// Package project loads a preview project from disk.
//
// A project is a directory of script, style and HTML files, optionally with
// a pipo.toml manifest:
//
//	[project]
//	entry = "src/App.tsx"
//	compiler = "esbuild"
//
//	[dependencies]
//	lodash = "4.17.21"
//	"@arco-design/web-react" = "2.62.1"
//
// Without a manifest, dependencies are read from package.json and the entry
// is detected when compiling.
package project

import (
	"encoding/json"
	stderrors "errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/matzehuels/pipo/pkg/errors"
	"github.com/matzehuels/pipo/pkg/pipeline"
	"github.com/matzehuels/pipo/pkg/vfs"
)

// ManifestName is the manifest file name.
const ManifestName = "pipo.toml"

// MaxFileSize is the largest source file Load reads.
const MaxFileSize = 2 << 20

// Extensions lists the file types a project consists of.
var Extensions = []string{".js", ".jsx", ".ts", ".tsx", ".mjs", ".css", ".html"}

// skipDirs are never descended into. Dot-directories are skipped as well.
var skipDirs = map[string]bool{
	"node_modules": true,
}

// Project is a loaded project directory.
type Project struct {
	Root     string
	Files    *vfs.FileSet
	Manifest *Manifest // nil without pipo.toml
}

// Input returns the compile input for the project.
func (p *Project) Input() pipeline.Input {
	in := pipeline.Input{Files: p.Files}
	if p.Manifest != nil {
		in.Entry = p.Manifest.Project.Entry
		in.Backend = p.Manifest.Project.Compiler
		in.Dependencies = p.Manifest.Dependencies
	}
	return in
}

// Load reads the project in dir.
func Load(dir string) (*Project, error) {
	root, err := filepath.Abs(dir)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidPath, err, "resolve %s", dir)
	}
	info, err := os.Stat(root)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeNotFound, err, "open project")
	}
	if !info.IsDir() {
		return nil, errors.New(errors.ErrCodeInvalidPath, "%s is not a directory", dir)
	}

	files, err := ReadFiles(root)
	if err != nil {
		return nil, err
	}
	if files.Len() == 0 {
		return nil, errors.New(errors.ErrCodeInvalidInput, "no source files in %s", dir)
	}

	p := &Project{Root: root, Files: files}
	m, err := LoadManifest(filepath.Join(root, ManifestName))
	switch {
	case err == nil:
		p.Manifest = m
	case stderrors.Is(err, fs.ErrNotExist):
		deps, err := readPackageJSON(filepath.Join(root, "package.json"))
		if err != nil {
			return nil, err
		}
		if len(deps) > 0 {
			p.Manifest = &Manifest{Dependencies: deps}
		}
	default:
		return nil, err
	}
	return p, nil
}

// ReadFiles collects the project files under root, keyed by absolute-style
// virtual paths ("/src/App.tsx"), in lexical order.
func ReadFiles(root string) (*vfs.FileSet, error) {
	files := &vfs.FileSet{}
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != root && (strings.HasPrefix(d.Name(), ".") || skipDirs[d.Name()]) {
				return filepath.SkipDir
			}
			return nil
		}
		if !Relevant(path) || !d.Type().IsRegular() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		if info.Size() > MaxFileSize {
			return nil
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		vp, err := VirtualPath(root, path)
		if err != nil {
			return err
		}
		files.Add(vp, string(data))
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidPath, err, "read project")
	}
	return files, nil
}

// Relevant reports whether a file name belongs to a project.
func Relevant(name string) bool {
	if strings.HasPrefix(filepath.Base(name), ".") {
		return false
	}
	ext := strings.ToLower(filepath.Ext(name))
	for _, e := range Extensions {
		if ext == e {
			return true
		}
	}
	return false
}

// VirtualPath converts a file under root to its virtual path.
func VirtualPath(root, path string) (string, error) {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return "", err
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", errors.New(errors.ErrCodeInvalidPath, "%s is outside %s", path, root)
	}
	return "/" + filepath.ToSlash(rel), nil
}

type packageJSON struct {
	Dependencies map[string]string `json:"dependencies"`
}

// readPackageJSON returns the dependencies of a package.json with range
// operators stripped. A missing file yields no dependencies.
func readPackageJSON(path string) (map[string]string, error) {
	data, err := os.ReadFile(path)
	if stderrors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidManifest, err, "read package.json")
	}
	var pkg packageJSON
	if err := json.Unmarshal(data, &pkg); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidManifest, err, "parse package.json")
	}
	deps := make(map[string]string, len(pkg.Dependencies))
	for name, v := range pkg.Dependencies {
		deps[name] = strings.TrimLeft(strings.TrimSpace(v), "^~=>v ")
	}
	return deps, nil
}
