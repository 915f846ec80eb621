package docstore

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"docstore/internal/model"
)

// DefaultURLTTL is the validity of the signed URL returned by Put.
const DefaultURLTTL = time.Hour

// MaxURLTTL bounds caller-requested URL validity (the S3 presign limit).
const MaxURLTTL = 7 * 24 * time.Hour

// Object is a validated payload ready to be persisted.
type Object struct {
	OwnerID      int64
	Category     string
	OriginalName string
	MimeType     string
	Data         []byte
}

// Locator identifies a persisted object and carries a fresh access URL.
type Locator struct {
	Key      string
	Bucket   string
	Provider string
	URL      string
}

// Store is the uniform contract over the remote object store and the local
// fallback. Implementations do not retry; retry policy belongs to callers.
// Every failure is returned as a *StorageError.
type Store interface {
	// Put persists obj under a newly generated unique key and returns its locator
	// with a signed URL valid for DefaultURLTTL.
	Put(ctx context.Context, obj *Object) (*Locator, error)

	// SignedURL derives a fresh time-limited access URL. It never caches.
	SignedURL(ctx context.Context, key string, ttl time.Duration) (string, error)

	// GetBytes returns the object's content, or a StorageError wrapping ErrNotFound.
	GetBytes(ctx context.Context, key string) ([]byte, error)

	// Delete removes the object. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// TransitionClass changes the object's class in place, keeping its bytes,
	// key and metadata. Transitioning to the current class is a no-op.
	TransitionClass(ctx context.Context, key string, class model.StorageClass) error

	// Provider names the backend ("s3", "filesystem", "memory").
	Provider() string

	// Bucket names the logical container objects are written to.
	Bucket() string

	// SupportsTiering reports whether TransitionClass changes real storage cost.
	SupportsTiering() bool
}

// Unlocker is implemented by stores that encrypt at rest and need a
// passphrase before GetBytes can decrypt.
type Unlocker interface {
	Unlock(passphrase string) error
}

var unsafeKeyChars = regexp.MustCompile(`[^a-zA-Z0-9.-]`)

// SanitizeName replaces every character outside [a-zA-Z0-9.-] with '_' so the
// result can never introduce a path separator into a key.
func SanitizeName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return "upload"
	}
	return unsafeKeyChars.ReplaceAllString(name, "_")
}

// GenerateKey builds a storage key of the form
// <category>/<ownerID>/<unix millis>-<token>-<sanitized name>.
// An empty category, or one that sanitizes to "." or "..", is stored under
// DefaultCategory.
func GenerateKey(category string, ownerID int64, originalName string, now time.Time, token string) string {
	prefix := DefaultCategory
	if c := NormalizeCategory(category); c != "" {
		prefix = SanitizeName(c)
	}
	if prefix == "." || prefix == ".." {
		prefix = DefaultCategory
	}
	return fmt.Sprintf("%s/%d/%d-%s-%s",
		prefix,
		ownerID,
		now.UnixMilli(),
		token,
		SanitizeName(originalName),
	)
}

// ValidateKey rejects keys that are empty, absolute or contain parent references.
func ValidateKey(key string) error {
	if key == "" || strings.HasPrefix(key, "/") || strings.Contains(key, "\\") {
		return ErrInvalidKey
	}
	for _, seg := range strings.Split(key, "/") {
		if seg == "" || seg == "." || seg == ".." {
			return ErrInvalidKey
		}
	}
	return nil
}

// ClampTTL applies the default for non-positive values and caps at MaxURLTTL.
func ClampTTL(ttl time.Duration) time.Duration {
	if ttl <= 0 {
		return DefaultURLTTL
	}
	if ttl > MaxURLTTL {
		return MaxURLTTL
	}
	return ttl
}
