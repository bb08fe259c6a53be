package errors

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidatePackageName(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"simple", "react", false},
		{"dashed", "left-pad", false},
		{"scoped", "@arco-design/web-react", false},
		{"dotted", "lodash.debounce", false},

		{"empty", "", true},
		{"uppercase", "React", true},
		{"traversal", "../react", true},
		{"backslash", "re\\act", true},
		{"control char", "rea\x01ct", true},
		{"subpath", "react-dom/client", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePackageName(tt.input)
			if tt.wantErr {
				assert.Error(t, err, tt.input)
			} else {
				assert.NoError(t, err, tt.input)
			}
		})
	}
}

func TestValidateURL(t *testing.T) {
	tests := []struct {
		input   string
		wantErr bool
	}{
		{"https://esm.sh/react@18.2.0", false},
		{"http://localhost:8080/a.css", false},
		{"", true},
		{"ftp://example.com/a.css", true},
		{"./a.css", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			err := ValidateURL(tt.input)
			if tt.wantErr {
				assert.Error(t, err, tt.input)
			} else {
				assert.NoError(t, err, tt.input)
			}
		})
	}
}

func TestValidatePath(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"absolute style", "/App.tsx", false},
		{"bare", "App.tsx", false},
		{"nested", "/src/components/Button.tsx", false},
		{"with dots", "/v1.2.3/index.js", false},

		{"empty", "", true},
		{"too long", string(make([]byte, 600)), true},
		{"path traversal", "../../../etc/passwd", true},
		{"path traversal middle", "foo/../bar", true},
		{"null byte", "foo\x00bar", true},
		{"backslash", "foo\\bar", true},
		{"newline", "foo\nbar", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePath(tt.input)
			if !tt.wantErr {
				assert.NoError(t, err, tt.input)
				return
			}
			assert.Error(t, err, tt.input)
			assert.True(t, Is(err, ErrCodeInvalidPath), "wrong error code: %v", err)
		})
	}
}

func TestErrorCodesAreUnique(t *testing.T) {
	codes := []Code{
		ErrCodeGraph,
		ErrCodeCompile,
		ErrCodeBackendInit,
		ErrCodeRuntime,
		ErrCodeProtocol,
		ErrCodeEntryNotFound,
		ErrCodeInvalidInput,
		ErrCodeInvalidManifest,
		ErrCodeInvalidPath,
		ErrCodeNotFound,
		ErrCodeNetwork,
		ErrCodeInternal,
		ErrCodeUnsupported,
	}

	seen := make(map[Code]bool)
	for _, code := range codes {
		assert.False(t, seen[code], "duplicate error code: %s", code)
		seen[code] = true
	}
}
