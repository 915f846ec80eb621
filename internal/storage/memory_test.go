package storage_test

import (
	"context"
	"errors"
	"net/url"
	"regexp"
	"strconv"
	"testing"
	"time"

	"docstore/internal/docstore"
	"docstore/internal/model"
	"docstore/internal/storage"
	"docstore/internal/testutil"
)

var keyPattern = regexp.MustCompile(`^lab-results/42/\d+-[0-9a-f]{16}-results.pdf$`)

func labResult() *docstore.Object {
	return &docstore.Object{
		OwnerID:      42,
		Category:     "lab-results",
		OriginalName: "results.pdf",
		MimeType:     "application/pdf",
		Data:         []byte("%PDF-1.4 cholesterol panel"),
	}
}

func TestMemoryStore_PutAndGet(t *testing.T) {
	ctx := context.Background()
	clock := testutil.FixedClock()
	store := testutil.NewTestStore(clock)

	loc, err := store.Put(ctx, labResult())
	if err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	if !keyPattern.MatchString(loc.Key) {
		t.Errorf("Key = %q, does not match %s", loc.Key, keyPattern)
	}
	if loc.Bucket != "test-bucket" || loc.Provider != "memory" {
		t.Errorf("Locator = %+v", loc)
	}

	u, err := url.Parse(loc.URL)
	if err != nil {
		t.Fatalf("parsing URL: %v", err)
	}
	expires, _ := strconv.ParseInt(u.Query().Get("expires"), 10, 64)
	if want := clock.Now().Add(time.Hour).Unix(); expires != want {
		t.Errorf("expires = %d, want %d", expires, want)
	}

	data, err := store.GetBytes(ctx, loc.Key)
	if err != nil {
		t.Fatalf("GetBytes() error = %v", err)
	}
	if string(data) != "%PDF-1.4 cholesterol panel" {
		t.Errorf("GetBytes() = %q", data)
	}

	meta := store.Metadata(loc.Key)
	if meta["userId"] != "42" || meta["originalName"] != "results.pdf" || meta["fileType"] != "lab-results" {
		t.Errorf("Metadata = %v", meta)
	}
	if meta["uploadDate"] != "2024-01-15T10:30:00Z" {
		t.Errorf("uploadDate = %q", meta["uploadDate"])
	}

	class, _ := store.ClassOf(loc.Key)
	if class != model.ClassHot {
		t.Errorf("class = %q, want hot", class)
	}
}

func TestMemoryStore_KeysAreUnique(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore("b", storage.Options{Clock: testutil.FixedClock()})

	seen := make(map[string]bool)
	for i := 0; i < 200; i++ {
		loc, err := store.Put(ctx, labResult())
		if err != nil {
			t.Fatalf("Put() error = %v", err)
		}
		if seen[loc.Key] {
			t.Fatalf("duplicate key %q", loc.Key)
		}
		seen[loc.Key] = true
	}
}

func TestMemoryStore_PutRejectsInvalidKey(t *testing.T) {
	ctx := context.Background()
	clock := testutil.FixedClock()
	store := storage.NewMemoryStore("b", storage.Options{Clock: clock, Tokens: slashTokens{}})

	if _, err := store.Put(ctx, labResult()); !errors.Is(err, docstore.ErrInvalidKey) {
		t.Fatalf("Put() error = %v, want ErrInvalidKey", err)
	}
	key := docstore.GenerateKey("lab-results", 42, "results.pdf", clock.Now(), slashTokens{}.Token())
	if _, ok := store.ClassOf(key); ok {
		t.Errorf("rejected key %q was stored", key)
	}
}

func TestMemoryStore_NotFound(t *testing.T) {
	ctx := context.Background()
	store := testutil.NewTestStore(testutil.FixedClock())

	_, err := store.GetBytes(ctx, "lab-results/42/missing")
	if !errors.Is(err, docstore.ErrNotFound) {
		t.Errorf("GetBytes() error = %v, want ErrNotFound", err)
	}
	var se *docstore.StorageError
	if !errors.As(err, &se) || se.Op != "get" || se.Key != "lab-results/42/missing" {
		t.Errorf("GetBytes() error = %#v, want StorageError for get", err)
	}

	if _, err := store.SignedURL(ctx, "lab-results/42/missing", time.Hour); !errors.Is(err, docstore.ErrNotFound) {
		t.Errorf("SignedURL() error = %v, want ErrNotFound", err)
	}
	if err := store.TransitionClass(ctx, "lab-results/42/missing", model.ClassCold); !errors.Is(err, docstore.ErrNotFound) {
		t.Errorf("TransitionClass() error = %v, want ErrNotFound", err)
	}
}

func TestMemoryStore_TransitionClass(t *testing.T) {
	ctx := context.Background()
	store := testutil.NewTestStore(testutil.FixedClock())

	loc, err := store.Put(ctx, labResult())
	if err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	for i := 0; i < 2; i++ {
		if err := store.TransitionClass(ctx, loc.Key, model.ClassCold); err != nil {
			t.Fatalf("TransitionClass() call %d error = %v", i+1, err)
		}
	}
	class, _ := store.ClassOf(loc.Key)
	if class != model.ClassCold {
		t.Errorf("class = %q, want cold", class)
	}

	data, err := store.GetBytes(ctx, loc.Key)
	if err != nil || string(data) != "%PDF-1.4 cholesterol panel" {
		t.Errorf("content changed by transition: %q, %v", data, err)
	}
	if !store.SupportsTiering() {
		t.Error("SupportsTiering() = false, want true")
	}

	if err := store.TransitionClass(ctx, loc.Key, model.StorageClass("warm")); err == nil {
		t.Error("TransitionClass() to unknown class expected error")
	}
}

func TestMemoryStore_Delete(t *testing.T) {
	ctx := context.Background()
	store := testutil.NewTestStore(testutil.FixedClock())

	loc, err := store.Put(ctx, labResult())
	if err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	for i := 0; i < 2; i++ {
		if err := store.Delete(ctx, loc.Key); err != nil {
			t.Fatalf("Delete() call %d error = %v", i+1, err)
		}
	}
	if _, err := store.GetBytes(ctx, loc.Key); !docstore.IsNotFound(err) {
		t.Errorf("GetBytes() after delete error = %v, want not found", err)
	}
}
