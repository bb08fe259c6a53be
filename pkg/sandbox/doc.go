// Package sandbox renders the document a preview runs in.
//
// A sandbox document carries an import map for external packages, the base
// inspect styles, component-library stylesheets and a bootstrap module. The
// bootstrap mounts the entry module into #root, mirrors the console, reports
// runtime and dependency errors, and owns the inspect controller. Every
// message it sends is tagged with the compilation pass it belongs to.
//
// [Generate] builds a complete document. [Inject] adds the same pieces to a
// project's own index.html.
package sandbox
