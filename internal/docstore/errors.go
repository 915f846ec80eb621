package docstore

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNotFound is returned (wrapped in a StorageError) when no object exists at a key.
	ErrNotFound = errors.New("object not found")

	// ErrLocked is returned when reading from an encrypted store whose key has not been unlocked.
	ErrLocked = errors.New("store is locked: decryption key not unlocked")

	// ErrInvalidKey is returned for empty keys or keys that escape the store root.
	ErrInvalidKey = errors.New("invalid storage key")

	// ErrRunInProgress is returned when a migration run is requested while another is active.
	ErrRunInProgress = errors.New("migration run already in progress")
)

// StorageError describes a failed backend call. It always names the operation
// and the key so the failure can be traced without reproducing it.
type StorageError struct {
	Op  string // "put", "get", "sign", "delete" or "transition"
	Key string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s %q: %v", e.Op, e.Key, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// NewStorageError wraps err unless it is already a StorageError.
func NewStorageError(op, key string, err error) error {
	var se *StorageError
	if errors.As(err, &se) {
		return err
	}
	return &StorageError{Op: op, Key: key, Err: err}
}

// IsNotFound reports whether err signals a missing object.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// RejectedError is returned by ingestion when the gate refuses a payload.
// It is an expected, user-triggerable outcome rather than a system fault.
type RejectedError struct {
	Category string
	MimeType string
	Size     int64
	Reason   string
	Allowed  []string
}

func (e *RejectedError) Error() string {
	if len(e.Allowed) == 0 {
		return fmt.Sprintf("upload rejected: %s", e.Reason)
	}
	return fmt.Sprintf("upload rejected: %s (allowed: %s)", e.Reason, strings.Join(e.Allowed, ", "))
}

// IsRejected reports whether err is an ingestion rejection.
func IsRejected(err error) bool {
	var re *RejectedError
	return errors.As(err, &re)
}
