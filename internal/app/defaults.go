package app

import (
	"fmt"
	"os"
	"path/filepath"
)

// GetDefaults returns application default paths, checking environment variables first.
// Environment variables:
//   - DOCSTORE_CONFIG_PATH: config file location (default: ~/.config/docstore.toml)
//   - DOCSTORE_HOME: base directory for docstore data (default: ~/.local/share/docstore)
func GetDefaults() (map[string]string, error) {
	configPath, err := envOrHome("DOCSTORE_CONFIG_PATH", ".config", "docstore.toml")
	if err != nil {
		return nil, err
	}

	baseDir, err := envOrHome("DOCSTORE_HOME", ".local", "share", "docstore")
	if err != nil {
		return nil, err
	}

	return map[string]string{
		"config_path": configPath,
		"base_dir":    baseDir,
		"log_dir":     filepath.Join(baseDir, "log"),
	}, nil
}

// envOrHome returns the value of env if set, otherwise the path under the
// user's home directory.
func envOrHome(env string, elem ...string) (string, error) {
	if path := os.Getenv(env); path != "" {
		return path, nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(append([]string{homeDir}, elem...)...), nil
}
