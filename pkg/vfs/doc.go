// Package vfs holds the virtual file set a preview is compiled from and the
// module path resolver shared by the dependency analyzer and the import
// rewriter.
//
// A [FileSet] maps paths to source text and remembers insertion order, which
// drives the processing order computed by the depgraph package. Paths may be
// absolute-style (/App.tsx) or bare (App.tsx); both forms resolve the same
// way.
//
// # Resolution
//
// Relative specifiers are resolved against the directory of the importing
// file with [ResolveRelative], then matched against the file set by
// extension probing:
//
//	p := vfs.ResolveRelative("/src/App.tsx", "./Button") // "/src/Button"
//	p = vfs.ResolveFile(p, files)                         // "/src/Button.tsx"
//
// Style-sheet imports use [ResolveStyle], which tries p, p+".css" and the
// .css-stripped form in that order. The first match wins.
package vfs
