package storage

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strconv"
	"sync"
	"time"

	"docstore/internal/docstore"
	"docstore/internal/model"
)

// memoryObject is one stored object with its class and metadata.
type memoryObject struct {
	data        []byte
	contentType string
	class       model.StorageClass
	metadata    map[string]string
}

// MemoryStore is an in-memory implementation of docstore.Store that tracks
// storage classes like a tiered backend, making it useful for testing.
// This implementation is safe for concurrent use.
type MemoryStore struct {
	bucket  string
	opts    Options
	objects map[string]*memoryObject
	mu      sync.RWMutex
}

// NewMemoryStore creates a new in-memory store with the given bucket name.
func NewMemoryStore(bucket string, opts Options) *MemoryStore {
	return &MemoryStore{
		bucket:  bucket,
		opts:    opts.withDefaults(),
		objects: make(map[string]*memoryObject),
	}
}

// Put stores a copy of obj's data under a new key.
func (m *MemoryStore) Put(ctx context.Context, obj *docstore.Object) (*docstore.Locator, error) {
	key := m.opts.newKey(obj)
	if err := docstore.ValidateKey(key); err != nil {
		return nil, docstore.NewStorageError("put", key, err)
	}

	m.mu.Lock()
	if _, exists := m.objects[key]; exists {
		m.mu.Unlock()
		return nil, docstore.NewStorageError("put", key, fmt.Errorf("key collision"))
	}
	m.objects[key] = &memoryObject{
		data:        bytes.Clone(obj.Data),
		contentType: obj.MimeType,
		class:       model.ClassHot,
		metadata:    objectMetadata(obj, m.opts.Clock.Now()),
	}
	m.mu.Unlock()

	u, err := m.SignedURL(ctx, key, docstore.DefaultURLTTL)
	if err != nil {
		m.mu.Lock()
		delete(m.objects, key)
		m.mu.Unlock()
		return nil, err
	}
	return &docstore.Locator{Key: key, Bucket: m.bucket, Provider: m.Provider(), URL: u}, nil
}

// SignedURL returns a memory:// URL carrying the expiry time.
func (m *MemoryStore) SignedURL(ctx context.Context, key string, ttl time.Duration) (string, error) {
	m.mu.RLock()
	_, ok := m.objects[key]
	m.mu.RUnlock()
	if !ok {
		return "", docstore.NewStorageError("sign", key, docstore.ErrNotFound)
	}

	expires := m.opts.Clock.Now().Add(docstore.ClampTTL(ttl)).Unix()
	u := url.URL{
		Scheme:   "memory",
		Host:     m.bucket,
		Path:     "/" + key,
		RawQuery: "expires=" + strconv.FormatInt(expires, 10),
	}
	return u.String(), nil
}

// GetBytes returns a copy of the stored data.
func (m *MemoryStore) GetBytes(ctx context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	obj, ok := m.objects[key]
	if !ok {
		return nil, docstore.NewStorageError("get", key, docstore.ErrNotFound)
	}
	return bytes.Clone(obj.data), nil
}

// Delete removes key. Missing keys are ignored.
func (m *MemoryStore) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.objects, key)
	return nil
}

// TransitionClass swaps the object's class under the lock, so callers never
// observe a partial change.
func (m *MemoryStore) TransitionClass(ctx context.Context, key string, class model.StorageClass) error {
	if !class.Valid() {
		return docstore.NewStorageError("transition", key, fmt.Errorf("unknown storage class %q", class))
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	obj, ok := m.objects[key]
	if !ok {
		return docstore.NewStorageError("transition", key, docstore.ErrNotFound)
	}
	obj.class = class
	return nil
}

// ClassOf reports the current class of key, for assertions in tests.
func (m *MemoryStore) ClassOf(key string) (model.StorageClass, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	obj, ok := m.objects[key]
	if !ok {
		return "", false
	}
	return obj.class, true
}

// Metadata returns a copy of the metadata stored with key.
func (m *MemoryStore) Metadata(key string) map[string]string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	obj, ok := m.objects[key]
	if !ok {
		return nil
	}
	out := make(map[string]string, len(obj.metadata))
	for k, v := range obj.metadata {
		out[k] = v
	}
	return out
}

func (m *MemoryStore) Provider() string      { return "memory" }
func (m *MemoryStore) Bucket() string        { return m.bucket }
func (m *MemoryStore) SupportsTiering() bool { return true }

// Compile-time check that MemoryStore implements docstore.Store interface
var _ docstore.Store = (*MemoryStore)(nil)
