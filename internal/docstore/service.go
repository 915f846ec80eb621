package docstore

import (
	"context"
	"time"
)

// IngestRequest is a completed upload handed over by the calling layer.
type IngestRequest struct {
	Category     string
	MimeType     string
	OwnerID      int64
	Payload      []byte
	OriginalName string
}

// IngestResult is the storage locator plus the facts the caller needs to
// persist on its document record.
type IngestResult struct {
	Key          string
	Bucket       string
	Provider     string
	URL          string
	Size         int64
	MimeType     string
	OriginalName string
	Category     string
	OwnerID      int64
}

// Service exposes ingestion and object access to the rest of the application.
// The store is chosen once at startup and injected here.
type Service struct {
	gate   *Gate
	store  Store
	logger Logger
}

// NewService creates a Service over the given gate and store.
func NewService(gate *Gate, store Store, logger Logger) *Service {
	return &Service{
		gate:   gate,
		store:  store,
		logger: logger,
	}
}

// Store returns the backend this service writes to.
func (s *Service) Store() Store {
	return s.store
}

// Ingest validates the payload and persists it. A disallowed payload returns
// a *RejectedError and never reaches the store. Backend failures are returned
// unmodified as *StorageError.
func (s *Service) Ingest(ctx context.Context, req IngestRequest) (*IngestResult, error) {
	category := NormalizeCategory(req.Category)
	if category == "" {
		category = DefaultCategory
	}

	v := s.gate.Accept(category, req.MimeType, req.Payload)
	if !v.Accepted {
		return nil, &RejectedError{
			Category: category,
			MimeType: req.MimeType,
			Size:     int64(len(req.Payload)),
			Reason:   v.Reason,
			Allowed:  v.Allowed,
		}
	}

	mimeType := NormalizeMimeType(req.MimeType)
	loc, err := s.store.Put(ctx, &Object{
		OwnerID:      req.OwnerID,
		Category:     category,
		OriginalName: req.OriginalName,
		MimeType:     mimeType,
		Data:         req.Payload,
	})
	if err != nil {
		ingestTotal.WithLabelValues("failed").Inc()
		s.logger.Error("storing document failed",
			"category", category,
			"owner_id", req.OwnerID,
			"original_name", req.OriginalName,
			"error", err,
		)
		return nil, err
	}

	ingestTotal.WithLabelValues("accepted").Inc()
	s.logger.Info("document stored",
		"key", loc.Key,
		"bucket", loc.Bucket,
		"provider", loc.Provider,
		"owner_id", req.OwnerID,
		"size", len(req.Payload),
	)

	return &IngestResult{
		Key:          loc.Key,
		Bucket:       loc.Bucket,
		Provider:     loc.Provider,
		URL:          loc.URL,
		Size:         int64(len(req.Payload)),
		MimeType:     mimeType,
		OriginalName: req.OriginalName,
		Category:     category,
		OwnerID:      req.OwnerID,
	}, nil
}

// AccessURL returns a freshly signed URL for key. ttl <= 0 selects DefaultURLTTL.
func (s *Service) AccessURL(ctx context.Context, key string, ttl time.Duration) (string, error) {
	if err := ValidateKey(key); err != nil {
		return "", NewStorageError("sign", key, err)
	}
	url, err := s.store.SignedURL(ctx, key, ClampTTL(ttl))
	if err != nil {
		s.logger.Error("signing access url failed", "key", key, "error", err)
		return "", err
	}
	return url, nil
}

// Fetch returns the stored bytes for key.
func (s *Service) Fetch(ctx context.Context, key string) ([]byte, error) {
	if err := ValidateKey(key); err != nil {
		return nil, NewStorageError("get", key, err)
	}
	data, err := s.store.GetBytes(ctx, key)
	if err != nil {
		s.logger.Error("reading document failed", "key", key, "error", err)
		return nil, err
	}
	return data, nil
}

// DeleteDocument purges the object at key. The registry record is left to
// the caller.
func (s *Service) DeleteDocument(ctx context.Context, key string) error {
	if err := ValidateKey(key); err != nil {
		return NewStorageError("delete", key, err)
	}
	if err := s.store.Delete(ctx, key); err != nil {
		s.logger.Error("deleting document failed", "key", key, "error", err)
		return err
	}
	s.logger.Info("document deleted", "key", key)
	return nil
}
