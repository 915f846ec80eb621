package storage

import (
	"context"
	"fmt"
	"os"

	"docstore/internal/config"
	"docstore/internal/docstore"
)

// Resolve fills unset storage settings from the environment and settles an
// "auto" type on a concrete backend. S3 is chosen when credentials are
// available from the config or the AWS environment variables.
func Resolve(cfg config.StorageConfig, getenv func(string) string) config.StorageConfig {
	if cfg.Bucket == "" {
		cfg.Bucket = firstNonEmpty(getenv("AWS_S3_BUCKET"), getenv("AWS_S3_BUCKET_NAME"), config.DefaultBucket)
	}
	if cfg.Region == "" {
		cfg.Region = firstNonEmpty(getenv("AWS_REGION"), config.DefaultRegion)
	}
	if cfg.AccessKeyID == "" && cfg.SecretAccessKey == "" {
		cfg.AccessKeyID = getenv("AWS_ACCESS_KEY_ID")
		cfg.SecretAccessKey = getenv("AWS_SECRET_ACCESS_KEY")
	}

	if cfg.Type == "" || cfg.Type == "auto" {
		if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
			cfg.Type = "s3"
		} else {
			cfg.Type = "filesystem"
		}
	}
	return cfg
}

// NewStoreFromConfig creates a Store implementation based on the storage
// config type. The encryptor is only used by the filesystem backend and may
// be nil.
func NewStoreFromConfig(ctx context.Context, cfg config.StorageConfig, enc docstore.Encryptor, opts Options) (docstore.Store, error) {
	cfg = Resolve(cfg, os.Getenv)

	switch cfg.Type {
	case "memory":
		return NewMemoryStore(cfg.Bucket, opts), nil
	case "s3":
		store, err := NewS3StoreFromSettings(ctx, S3Settings{
			Bucket:           cfg.Bucket,
			Region:           cfg.Region,
			Endpoint:         cfg.Endpoint,
			AccessKeyID:      cfg.AccessKeyID,
			SecretAccessKey:  cfg.SecretAccessKey,
			ColdStorageClass: cfg.ColdStorageClass,
		}, opts)
		if err != nil {
			return nil, err
		}
		return store, nil
	case "filesystem":
		if cfg.LocalRoot == "" {
			return nil, fmt.Errorf("filesystem store requires local_root to be set")
		}
		store, err := NewFileSystemStore(cfg.Bucket, cfg.LocalRoot, enc, cfg.SigningKey, opts)
		if err != nil {
			return nil, err
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown storage type: %s", cfg.Type)
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
