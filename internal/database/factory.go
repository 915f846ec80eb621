package database

import (
	"fmt"
	"path/filepath"

	"docstore/internal/config"
	"docstore/internal/docstore"
)

// RegistryFileName is the SQLite file created under the configured data dir.
const RegistryFileName = "docstore.db"

// NewRegistryFromConfig creates a Registry implementation based on the database config type.
func NewRegistryFromConfig(cfg config.DatabaseConfig) (docstore.Registry, error) {
	var path string
	switch cfg.Type {
	case "sqlite":
		if cfg.DataDir == "" {
			return nil, fmt.Errorf("data_dir required for sqlite database")
		}
		path = filepath.Join(cfg.DataDir, RegistryFileName)
	case "memory":
		path = ":memory:"
	default:
		return nil, fmt.Errorf("unknown database type: %s", cfg.Type)
	}

	reg, err := NewSQLiteRegistry(path)
	if err != nil {
		return nil, err
	}
	return reg, nil
}
