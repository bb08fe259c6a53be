package config

import (
	"errors"
	"io/fs"

	"github.com/joho/godotenv"

	perrors "github.com/matzehuels/pipo/pkg/errors"
)

// DotenvName is the dotenv file read from the working directory.
const DotenvName = ".env"

// readDotenv parses path without touching the process environment.
func readDotenv(path string) (map[string]string, error) {
	if path == "" {
		return nil, nil
	}
	env, err := godotenv.Read(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, perrors.Wrap(perrors.ErrCodeInvalidInput, err, "read %s", path)
	}
	return env, nil
}
