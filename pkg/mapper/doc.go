// Package mapper translates what the sandbox reports back into terms of
// the virtual project.
//
// Compiled modules are loaded from opaque reference URLs. A stack trace
// from the sandbox therefore names /m/3/6f1c….js rather than /App.tsx.
// The [Mapper] holds the reverse lookup of the current pass and rewrites
// runtime errors, compile diagnostics and element clicks so that only
// original paths reach the host.
package mapper
