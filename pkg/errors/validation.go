package errors

import (
	"regexp"
	"strings"
	"unicode"
)

// npmPackageNameRegex matches valid npm package names, scoped or not.
var npmPackageNameRegex = regexp.MustCompile(`^(@[a-z0-9-~][a-z0-9-._~]*/)?[a-z0-9-~][a-z0-9-._~]*$`)

// ValidatePackageName validates an external dependency name.
//
// The rules follow npm naming: lowercase, optional @scope/ prefix, and no
// path traversal. Subpaths (react-dom/client) are not package names and
// must be split off by the caller first.
func ValidatePackageName(name string) error {
	if name == "" {
		return New(ErrCodeInvalidInput, "package name cannot be empty")
	}
	if len(name) > 214 {
		return New(ErrCodeInvalidInput, "package name too long (max 214 characters)")
	}
	for _, r := range name {
		if unicode.IsControl(r) {
			return New(ErrCodeInvalidInput, "package name contains invalid control characters")
		}
	}
	if strings.Contains(name, "..") || strings.Contains(name, "\\") {
		return New(ErrCodeInvalidInput, "package name contains invalid characters: %q", name)
	}
	if strings.ToLower(name) != name {
		return New(ErrCodeInvalidInput, "package names must be lowercase: %q", name)
	}
	if !npmPackageNameRegex.MatchString(name) {
		return New(ErrCodeInvalidInput, "invalid package name: %q", name)
	}
	return nil
}

// ValidatePath validates a virtual file path.
//
// Validation rules:
//   - Path cannot be empty
//   - Maximum length of 500 characters
//   - No null bytes or control characters
//   - No path traversal segments (..)
//   - No backslashes (Windows-style paths)
//
// Both absolute-style (/App.tsx) and bare (App.tsx) paths are accepted.
func ValidatePath(path string) error {
	if path == "" {
		return New(ErrCodeInvalidPath, "path cannot be empty")
	}

	const maxPathLength = 500
	if len(path) > maxPathLength {
		return New(ErrCodeInvalidPath, "path too long (max %d characters)", maxPathLength)
	}

	for _, r := range path {
		if r == '\x00' || unicode.IsControl(r) {
			return New(ErrCodeInvalidPath, "path contains invalid characters")
		}
	}

	for _, seg := range strings.Split(path, "/") {
		if seg == ".." {
			return New(ErrCodeInvalidPath, "path cannot contain path traversal sequences (..)")
		}
	}

	if strings.Contains(path, "\\") {
		return New(ErrCodeInvalidPath, "path cannot contain backslashes")
	}

	return nil
}

// ValidateURL validates a URL string for safety.
// It ensures the URL has a safe scheme (http or https).
func ValidateURL(rawURL string) error {
	if rawURL == "" {
		return New(ErrCodeInvalidInput, "URL cannot be empty")
	}
	if !strings.HasPrefix(rawURL, "http://") && !strings.HasPrefix(rawURL, "https://") {
		return New(ErrCodeInvalidInput, "URL must use http or https scheme")
	}
	return nil
}
