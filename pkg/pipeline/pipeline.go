// Package pipeline compiles a virtual project into loadable modules.
//
// This package implements the preview compilation pass used by the CLI,
// the HTTP server and the host session. By centralizing it, every entry
// point orders, instruments and registers files the same way.
//
// # Architecture
//
// A pass consists of three stages:
//
//  1. Resolve: map external dependencies to CDN URLs and an import map
//  2. Graph: analyze local imports and compute the processing order
//  3. Process: run each file through the processor [Chain] and register
//     the output with the pass's module registry
//
// Files are processed strictly in order, so by the time a file is
// instrumented every local dependency that compiled already has a
// reference its imports can be rewritten to. A file that fails is
// recorded and skipped; its dependents keep their original specifiers.
//
// # Usage
//
//	runner := pipeline.NewRunner(pipeline.Config{}, logger)
//	defer runner.Close(ctx)
//
//	res, err := runner.Compile(ctx, pipeline.Input{
//	    Files: vfs.New("/App.tsx", src),
//	    Entry: "/App.tsx",
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(res.Entry.URL)
package pipeline

import (
	"time"

	"github.com/matzehuels/pipo/pkg/cdn"
	"github.com/matzehuels/pipo/pkg/depgraph"
	"github.com/matzehuels/pipo/pkg/errors"
	"github.com/matzehuels/pipo/pkg/modules"
	"github.com/matzehuels/pipo/pkg/vfs"
)

// =============================================================================
// Default Values
// =============================================================================

// DefaultEntries are tried in order when no entry is given.
var DefaultEntries = []string{
	"/App.tsx", "/App.jsx", "/App.ts", "/App.js",
	"/src/App.tsx", "/src/App.jsx",
	"/index.tsx", "/index.jsx", "/src/index.tsx", "/src/index.jsx",
	"/main.tsx", "/src/main.tsx",
}

// DetectEntry returns the first of [DefaultEntries] present in files.
// Paths are matched with and without the leading slash.
func DetectEntry(files *vfs.FileSet) (string, bool) {
	for _, p := range DefaultEntries {
		if files.Has(p) {
			return p, true
		}
		if bare := p[1:]; files.Has(bare) {
			return bare, true
		}
	}
	return "", false
}

// =============================================================================
// Input and Result
// =============================================================================

// Input is everything one compilation pass needs.
type Input struct {
	Files        *vfs.FileSet
	Dependencies map[string]string // package specifier -> version
	Entry        string            // detected when empty
	Backend      string            // compiler strategy, default when empty
	Pass         string            // assigned by the runner when empty
}

// Result contains the outputs of a pass.
type Result struct {
	Pass string

	// Registry holds one reference per successfully processed file.
	Registry *modules.Registry

	// Entry is the reference of the entry module.
	Entry modules.Reference

	Graph *depgraph.Graph
	Order depgraph.Order

	// Failures lists files that did not compile, in processing order.
	Failures []*errors.CompileError

	// Resolution holds the external dependency URLs and import map.
	Resolution *cdn.Resolution

	Stats Stats
}

// Stats contains pass execution statistics.
type Stats struct {
	Files       int
	Modules     int
	Failures    int
	NodeCount   int
	EdgeCount   int
	GraphTime   time.Duration
	CompileTime time.Duration
}

// Failed reports whether path failed to compile in this pass.
func (r *Result) Failed(path string) bool {
	for _, f := range r.Failures {
		if f.File == path {
			return true
		}
	}
	return false
}
