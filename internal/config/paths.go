package config

import (
	"os"
	"path/filepath"
)

// Dir returns ~/.codesync, honouring CODESYNC_HOME.
func Dir() (string, error) {
	if d := os.Getenv("CODESYNC_HOME"); d != "" {
		return d, nil
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(homeDir, ".codesync"), nil
}

// DefaultPath is the config file inside Dir.
func DefaultPath() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

// DefaultRedirectDB is where the sqlite redirect store lives unless configured.
func DefaultRedirectDB() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "session.db"), nil
}
