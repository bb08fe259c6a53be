package cdn

import (
	"context"
	"maps"
	"sync"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"
)

// VersionSource resolves a dist-tag of a package to a version.
// *npm.Client satisfies it.
type VersionSource interface {
	ResolveVersion(ctx context.Context, pkg, tag string) (string, error)
}

// Pinner replaces dist-tags with the versions they currently point to, so
// a preview does not change when a package publishes.
type Pinner struct {
	Source VersionSource
	Logger *log.Logger
}

// NewPinner creates a pinner backed by source.
func NewPinner(source VersionSource, logger *log.Logger) *Pinner {
	if logger == nil {
		logger = log.Default()
	}
	return &Pinner{Source: source, Logger: logger.WithPrefix("cdn")}
}

const latestTag = "latest"

// pinConcurrency bounds parallel registry lookups.
const pinConcurrency = 8

// Pin returns a copy of deps where every empty or dist-tag version is
// replaced by a concrete one. Entries that cannot be pinned keep their
// value and are logged. Pin only fails when ctx is done.
func (p *Pinner) Pin(ctx context.Context, deps map[string]string) (map[string]string, error) {
	out := maps.Clone(deps)
	if out == nil {
		out = make(map[string]string)
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(pinConcurrency)
	for spec, v := range deps {
		if !IsTag(v) {
			continue
		}
		name, _ := ParsePackagePath(spec)
		tag := v
		if tag == "" {
			tag = latestTag
		}
		g.Go(func() error {
			version, err := p.Source.ResolveVersion(gctx, name, tag)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				p.Logger.Warn("could not pin dependency", "package", spec, "tag", v, "err", err)
				return nil
			}
			mu.Lock()
			out[spec] = version
			mu.Unlock()
			p.Logger.Debug("pinned dependency", "package", spec, "tag", v, "version", version)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// IsTag reports whether v names a dist-tag rather than a version. The
// empty string counts as the latest tag.
func IsTag(v string) bool {
	if v == "" {
		return true
	}
	c := v[0]
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}
