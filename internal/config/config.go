package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Defaults applied by NewConfig and by the storage factory for unset fields.
const (
	DefaultBucket         = "clinic-sensitive-documents"
	DefaultRegion         = "us-east-1"
	DefaultMaxSizeBytes   = 50 * 1024 * 1024
	DefaultMinAgeMonths   = 6
	DefaultBatchSize      = 100
	DefaultRunTimeoutSecs = 300
	DefaultIntervalMins   = 1440
	DefaultURLTTLSeconds  = 3600
)

// Config represents the main configuration for docstore.
type Config struct {
	BaseDir    string           `toml:"base_dir"`
	LogDir     string           `toml:"log_dir"`
	LogLevel   string           `toml:"log_level"` // "debug", "info" (default), "warn", "error"
	Storage    StorageConfig    `toml:"storage"`
	Ingest     IngestConfig     `toml:"ingest"`
	Policy     PolicyConfig     `toml:"policy"`
	Database   DatabaseConfig   `toml:"database"`
	Encryption EncryptionConfig `toml:"encryption"`
}

// StorageConfig selects and configures the object store backend.
// This uses a tagged union pattern - the Type field determines which other fields are relevant.
type StorageConfig struct {
	Type   string `toml:"type"` // "auto" (default), "s3", "filesystem" or "memory"
	Bucket string `toml:"bucket,omitempty"`

	// S3-specific fields (only used when Type == "s3" or auto selects S3)
	Region           string `toml:"region,omitempty"`
	Endpoint         string `toml:"endpoint,omitempty"`
	AccessKeyID      string `toml:"access_key_id,omitempty"`
	SecretAccessKey  string `toml:"secret_access_key,omitempty"`
	ColdStorageClass string `toml:"cold_storage_class,omitempty"`

	// FileSystem-specific fields (only used when Type == "filesystem" or auto falls back)
	LocalRoot  string `toml:"local_root,omitempty"`
	SigningKey string `toml:"signing_key,omitempty"`

	URLTTLSeconds int `toml:"url_ttl_seconds"`
}

// IngestConfig holds the gate limits.
type IngestConfig struct {
	MaxSizeBytes int64 `toml:"max_size_bytes"`
	SniffContent bool  `toml:"sniff_content"`
}

// PolicyConfig tunes the age-based migration policy and its scheduler.
type PolicyConfig struct {
	MinAgeMonths      int `toml:"min_age_months"`
	BatchSize         int `toml:"batch_size"`
	Workers           int `toml:"workers"`
	RunTimeoutSeconds int `toml:"run_timeout_seconds"`
	IntervalMinutes   int `toml:"interval_minutes"`
}

// DatabaseConfig represents configuration for the document registry.
// This uses a tagged union pattern - the Type field determines which other fields are relevant.
type DatabaseConfig struct {
	Type    string `toml:"type"`               // "sqlite" or "memory"
	DataDir string `toml:"data_dir,omitempty"` // only used for type=sqlite
}

// EncryptionConfig holds paths to the age key pair used by the filesystem store.
type EncryptionConfig struct {
	Type           string `toml:"type"` // "age", "test" or "none" (default)
	PublicKeyPath  string `toml:"public_key_path,omitempty"`
	PrivateKeyPath string `toml:"private_key_path,omitempty"`
}

// NewConfig creates a new Config rooted at baseDir with default settings.
func NewConfig(baseDir string) *Config {
	return &Config{
		BaseDir:  baseDir,
		LogDir:   filepath.Join(baseDir, "log"),
		LogLevel: "info",
		Storage: StorageConfig{
			Type:          "auto",
			LocalRoot:     filepath.Join(baseDir, "objects"),
			URLTTLSeconds: DefaultURLTTLSeconds,
		},
		Ingest: IngestConfig{
			MaxSizeBytes: DefaultMaxSizeBytes,
		},
		Policy: PolicyConfig{
			MinAgeMonths:      DefaultMinAgeMonths,
			BatchSize:         DefaultBatchSize,
			Workers:           1,
			RunTimeoutSeconds: DefaultRunTimeoutSecs,
			IntervalMinutes:   DefaultIntervalMins,
		},
		Database: DatabaseConfig{
			Type:    "sqlite",
			DataDir: filepath.Join(baseDir, "db"),
		},
		Encryption: EncryptionConfig{
			Type:           "none",
			PublicKeyPath:  filepath.Join(baseDir, "keys", "docstore.pub"),
			PrivateKeyPath: filepath.Join(baseDir, "keys", "docstore.key"),
		},
	}
}

// Manager handles reading and writing configuration.
type Manager struct{}

// Read decodes a Config from the provided reader.
func (m *Manager) Read(r io.Reader) (*Config, error) {
	var cfg Config
	if _, err := toml.NewDecoder(r).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	return &cfg, nil
}

// Write encodes a Config to the provided writer.
func (m *Manager) Write(w io.Writer, cfg *Config) error {
	if err := toml.NewEncoder(w).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return nil
}

// ReadFromFile reads a Config from the specified file path.
func ReadFromFile(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	cfg, err := m.Read(f)
	if err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}
	return cfg, nil
}

// writeToFile writes a Config to the specified file path. The file may hold
// credentials, so it is created owner-only.
func writeToFile(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	if err := m.Write(f, cfg); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}
	return nil
}

// Init initializes a new config file at the specified path with the provided Config.
func Init(path string, cfg *Config) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := writeToFile(path, cfg); err != nil {
		return fmt.Errorf("initializing config: %w", err)
	}
	return nil
}
