package testutil

import (
	"context"
	"sync"

	"docstore/internal/docstore"
	"docstore/internal/model"
	"docstore/internal/storage"
)

// NewTestStore creates an in-memory store with a deterministic clock and
// token generator.
func NewTestStore(clock docstore.Clock) *storage.MemoryStore {
	return storage.NewMemoryStore("test-bucket", storage.Options{
		Clock:  clock,
		Tokens: NewStubTokens(),
	})
}

// FailingStore wraps a Store and injects failures per key. It records every
// TransitionClass call so tests can assert which keys were touched.
type FailingStore struct {
	docstore.Store

	mu             sync.Mutex
	failPut        error
	failTransition map[string]error
	transitions    []string
	tiering        *bool
	onTransition   func(ctx context.Context, key string)
}

func NewFailingStore(inner docstore.Store) *FailingStore {
	return &FailingStore{
		Store:          inner,
		failTransition: make(map[string]error),
	}
}

// FailPuts makes every Put return err.
func (s *FailingStore) FailPuts(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failPut = err
}

// FailTransitionFor makes TransitionClass on key return err.
func (s *FailingStore) FailTransitionFor(key string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failTransition[key] = err
}

// SetTiering overrides SupportsTiering of the wrapped store.
func (s *FailingStore) SetTiering(v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tiering = &v
}

// OnTransition registers a hook run at the start of every TransitionClass.
func (s *FailingStore) OnTransition(fn func(ctx context.Context, key string)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onTransition = fn
}

// TransitionCalls returns the keys passed to TransitionClass, in call order.
func (s *FailingStore) TransitionCalls() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.transitions...)
}

func (s *FailingStore) Put(ctx context.Context, obj *docstore.Object) (*docstore.Locator, error) {
	s.mu.Lock()
	err := s.failPut
	s.mu.Unlock()
	if err != nil {
		return nil, docstore.NewStorageError("put", "", err)
	}
	return s.Store.Put(ctx, obj)
}

func (s *FailingStore) TransitionClass(ctx context.Context, key string, class model.StorageClass) error {
	s.mu.Lock()
	s.transitions = append(s.transitions, key)
	err := s.failTransition[key]
	hook := s.onTransition
	s.mu.Unlock()

	if hook != nil {
		hook(ctx, key)
	}
	if err != nil {
		return docstore.NewStorageError("transition", key, err)
	}
	return s.Store.TransitionClass(ctx, key, class)
}

func (s *FailingStore) SupportsTiering() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.tiering != nil {
		return *s.tiering
	}
	return s.Store.SupportsTiering()
}

var _ docstore.Store = (*FailingStore)(nil)
