package config

import (
	"errors"
	"io/fs"

	"github.com/joho/godotenv"
)

// LoadDotenv reads a .env file and sets environment variables that are not
// already defined. A missing file is ignored.
func LoadDotenv(path string) error {
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

// ReloadDotenv reads a .env file and overrides existing environment
// variables. A missing file is ignored.
func ReloadDotenv(path string) error {
	if err := godotenv.Overload(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}
