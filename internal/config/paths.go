package config

import (
	"os"
	"path/filepath"
)

// RootPath returns the root directory for skillrouter data.
// It uses $SKILLROUTER_PATH if set, otherwise defaults to ~/.skillrouter.
func RootPath() string {
	if v := os.Getenv("SKILLROUTER_PATH"); v != "" {
		return v
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".skillrouter")
	}
	return filepath.Join(home, ".skillrouter")
}

// ConfigPath returns the path to the config file.
func ConfigPath() string {
	return filepath.Join(RootPath(), "config.jsonc")
}

// DotenvPath returns the path to the .env file.
func DotenvPath() string {
	return filepath.Join(RootPath(), ".env")
}
