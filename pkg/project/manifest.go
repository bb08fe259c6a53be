package project

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/matzehuels/pipo/pkg/errors"
)

// Manifest is the content of pipo.toml.
type Manifest struct {
	Project      ProjectConfig     `toml:"project"`
	Dependencies map[string]string `toml:"dependencies"`
}

// ProjectConfig is the [project] table.
type ProjectConfig struct {
	Name     string `toml:"name"`
	Entry    string `toml:"entry"`    // file path relative to the project root
	Compiler string `toml:"compiler"` // compiler strategy name
}

// LoadManifest reads and validates a manifest. A missing file returns an
// error matching fs.ErrNotExist.
func LoadManifest(path string) (*Manifest, error) {
	var m Manifest
	if _, err := toml.DecodeFile(path, &m); err != nil {
		if os.IsNotExist(err) {
			return nil, err
		}
		return nil, errors.Wrap(errors.ErrCodeInvalidManifest, err, "%s: failed to parse TOML", path)
	}
	if err := m.normalize(); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidManifest, err, "%s", path)
	}
	return &m, nil
}

// normalize validates the manifest and turns the entry into a virtual path.
func (m *Manifest) normalize() error {
	if e := strings.TrimSpace(m.Project.Entry); e != "" {
		e = "/" + strings.TrimPrefix(filepath.ToSlash(e), "./")
		e = strings.ReplaceAll(e, "//", "/")
		if err := errors.ValidatePath(e); err != nil {
			return fmt.Errorf("[project].entry: %w", err)
		}
		m.Project.Entry = e
	}
	for name, v := range m.Dependencies {
		if err := errors.ValidatePackageName(name); err != nil {
			return fmt.Errorf("[dependencies]: %w", err)
		}
		m.Dependencies[name] = strings.TrimSpace(v)
	}
	return nil
}

// FindManifest walks up from startDir to locate pipo.toml.
func FindManifest(startDir string) (path string, ok bool, err error) {
	if startDir == "" {
		startDir = "."
	}
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return "", false, fmt.Errorf("failed to resolve start directory: %w", err)
	}
	for {
		candidate := filepath.Join(dir, ManifestName)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, true, nil
		} else if !os.IsNotExist(err) {
			return "", false, fmt.Errorf("failed to stat %q: %w", candidate, err)
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return "", false, nil
}
