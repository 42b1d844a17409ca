package store

import (
	"fmt"
	"os"
	"path/filepath"
)

// DefaultDBName is the run database file name inside the global directory.
const DefaultDBName = "runs.db"

// GlobalPath returns the path to the global .strangeloop directory.
// On Unix: ~/.strangeloop
// On Windows: %USERPROFILE%\.strangeloop
func GlobalPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}
	return filepath.Join(homeDir, ".strangeloop"), nil
}

// DefaultDBPath returns ~/.strangeloop/runs.db.
func DefaultDBPath() (string, error) {
	dir, err := GlobalPath()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, DefaultDBName), nil
}

// EnsureGlobalDir creates the global .strangeloop directory if it doesn't exist.
func EnsureGlobalDir() error {
	globalPath, err := GlobalPath()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(globalPath, 0755); err != nil {
		return fmt.Errorf("failed to create global .strangeloop directory: %w", err)
	}

	return nil
}
