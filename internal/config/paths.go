package config

import (
	"fmt"
	"os"
	"path/filepath"
)

const (
	// ConfigDir is the clipvault directory below the user's home.
	ConfigDir = ".config/clipvault"

	DefaultDBName   = "clipvault.db"
	DefaultBlobsDir = "blobs"
)

// Dir returns ~/.config/clipvault.
func Dir() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}
	return filepath.Join(homeDir, ConfigDir), nil
}

// resolve places p under the config directory unless it is absolute. An
// empty p selects fallback.
func resolve(p, fallback string) (string, error) {
	if filepath.IsAbs(p) {
		return p, nil
	}
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	if p == "" {
		p = fallback
	}
	return filepath.Join(dir, p), nil
}

// ResolveDBPath returns the catalog file location.
// Empty uses ~/.config/clipvault/clipvault.db, relative paths are taken
// from ~/.config/clipvault/.
func (c *Config) ResolveDBPath() (string, error) {
	return resolve(c.DBPath, DefaultDBName)
}

// ResolveBlobsDir returns the blob directory location with the same rules
// as ResolveDBPath.
func (c *Config) ResolveBlobsDir() (string, error) {
	return resolve(c.BlobsDir, DefaultBlobsDir)
}
