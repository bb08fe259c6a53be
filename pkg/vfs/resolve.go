package vfs

import (
	"path"
	"strings"
)

// scriptExtensions are tried, in order, after an exact match fails.
var scriptExtensions = []string{".tsx", ".ts", ".jsx", ".js", ".css"}

// IsRelative reports whether spec is a relative module specifier.
func IsRelative(spec string) bool {
	return spec == "." || spec == ".." ||
		strings.HasPrefix(spec, "./") || strings.HasPrefix(spec, "../")
}

// IsLocal reports whether spec addresses a file in the project rather than a
// package or a remote URL.
func IsLocal(spec string) bool {
	return IsRelative(spec) || (strings.HasPrefix(spec, "/") && !strings.HasPrefix(spec, "//"))
}

// ResolveRelative resolves spec against the directory of current.
//
// "." and empty segments are dropped and ".." pops one segment. Popping never
// goes past the root: a leading "/" on current is always kept, and surplus
// ".." segments are ignored. Non-relative specifiers are returned unchanged.
func ResolveRelative(current, spec string) string {
	if !IsRelative(spec) {
		return spec
	}
	absolute := strings.HasPrefix(current, "/")

	var parts []string
	for _, seg := range strings.Split(current, "/") {
		if seg != "" {
			parts = append(parts, seg)
		}
	}
	if len(parts) > 0 {
		parts = parts[:len(parts)-1] // drop the file name
	}

	for _, seg := range strings.Split(spec, "/") {
		switch seg {
		case "", ".":
		case "..":
			if len(parts) > 0 {
				parts = parts[:len(parts)-1]
			}
		default:
			parts = append(parts, seg)
		}
	}

	joined := strings.Join(parts, "/")
	if absolute {
		return "/" + joined
	}
	return joined
}

// ResolveFile looks up p in files, then p with each known extension.
// It returns p unchanged when nothing matches.
func ResolveFile(p string, files *FileSet) string {
	if files.Has(p) {
		return p
	}
	for _, ext := range scriptExtensions {
		if files.Has(p + ext) {
			return p + ext
		}
	}
	return p
}

// ResolveStyle looks up a style sheet at p in files.
// The lookup order is p, p+".css", then p with a trailing ".css" stripped and
// re-appended. ok is false when no candidate exists.
func ResolveStyle(p string, files *FileSet) (resolved string, ok bool) {
	candidates := []string{p, p + ".css", strings.TrimSuffix(p, ".css") + ".css"}
	for _, c := range candidates {
		if files.Has(c) {
			return c, true
		}
	}
	return p, false
}

// Ext returns the lower-cased extension of p including the dot.
func Ext(p string) string {
	return strings.ToLower(path.Ext(p))
}

// IsStyle reports whether p names a style sheet.
func IsStyle(p string) bool {
	return Ext(p) == ".css"
}

// IsScript reports whether p names a script or markup module.
func IsScript(p string) bool {
	switch Ext(p) {
	case ".js", ".jsx", ".ts", ".tsx", ".mjs":
		return true
	}
	return false
}

// IsAnalyzable reports whether imports of p should be analyzed for the
// dependency graph.
func IsAnalyzable(p string) bool {
	return IsScript(p)
}

// AllowsJSX reports whether markup syntax may appear in p.
// Plain .ts files treat "<" as a type assertion or comparison.
func AllowsJSX(p string) bool {
	switch Ext(p) {
	case ".jsx", ".tsx", ".js", ".mjs":
		return true
	}
	return false
}
