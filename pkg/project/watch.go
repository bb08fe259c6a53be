package project

import (
	"context"
	"path/filepath"
	"slices"
	"time"

	"github.com/charmbracelet/log"
	"github.com/radovskyb/watcher"

	"github.com/matzehuels/pipo/pkg/errors"
)

// DefaultDebounce is how long a watcher waits for changes to settle.
const DefaultDebounce = 100 * time.Millisecond

// Watcher reports changes to project files.
type Watcher struct {
	Debounce time.Duration

	root   string
	w      *watcher.Watcher
	logger *log.Logger
}

// NewWatcher watches the project under root. Changes made after
// NewWatcher returns are reported by Run.
func NewWatcher(root string, logger *log.Logger) (*Watcher, error) {
	if logger == nil {
		logger = log.Default()
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidPath, err, "resolve %s", root)
	}

	w := watcher.New()
	w.IgnoreHiddenFiles(true)
	w.FilterOps(watcher.Create, watcher.Write, watcher.Remove, watcher.Rename, watcher.Move)
	for dir := range skipDirs {
		if err := w.Ignore(filepath.Join(abs, dir)); err != nil {
			return nil, errors.Wrap(errors.ErrCodeInternal, err, "ignore %s", dir)
		}
	}
	if err := w.AddRecursive(abs); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidPath, err, "watch %s", root)
	}
	return &Watcher{
		Debounce: DefaultDebounce,
		root:     abs,
		w:        w,
		logger:   logger.WithPrefix("watch"),
	}, nil
}

// Run polls every interval and calls fn with the sorted virtual paths of
// the files that changed, once changes have settled. It returns when ctx
// is done.
func (w *Watcher) Run(ctx context.Context, interval time.Duration, fn func(changed []string)) error {
	errc := make(chan error, 1)
	go func() { errc <- w.w.Start(interval) }()
	defer w.w.Close()

	settle := time.NewTimer(w.Debounce)
	settle.Stop()
	defer settle.Stop()
	pending := map[string]bool{}

	for {
		select {
		case ev := <-w.w.Event:
			if ev.FileInfo != nil && ev.IsDir() {
				continue
			}
			for _, p := range []string{ev.Path, ev.OldPath} {
				if p == "" || !Relevant(p) {
					continue
				}
				if vp, err := VirtualPath(w.root, p); err == nil {
					pending[vp] = true
				}
			}
			if len(pending) > 0 {
				settle.Reset(w.Debounce)
			}
		case <-settle.C:
			changed := make([]string, 0, len(pending))
			for p := range pending {
				changed = append(changed, p)
			}
			slices.Sort(changed)
			clear(pending)
			w.logger.Debug("files changed", "files", changed)
			fn(changed)
		case err := <-w.w.Error:
			w.logger.Warn("watch error", "err", err)
		case err := <-errc:
			return err
		case <-w.w.Closed:
			return nil
		case <-ctx.Done():
			return nil
		}
	}
}
