package storage

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/BurntSushi/toml"

	"docstore/internal/docstore"
	"docstore/internal/model"
)

// signingKeyFile holds the generated URL signing key when none is configured.
const signingKeyFile = ".signing-key"

// sidecar is the TOML document stored next to each object.
type sidecar struct {
	ContentType string            `toml:"content_type"`
	Size        int64             `toml:"size"`
	Encrypted   bool              `toml:"encrypted"`
	Metadata    map[string]string `toml:"metadata"`
}

// FileSystemStore is the local fallback implementation of docstore.Store.
// It lays objects out under the bucket directory:
//
//	<root>/
//	  <bucket>/
//	    objects/<key>        (content, age-encrypted when an encryptor is set)
//	    meta/<key>.toml      (content type, size and user metadata)
//
// It has no storage tiers, so TransitionClass only checks the object exists.
type FileSystemStore struct {
	bucket     string
	root       string
	objectsDir string
	metaDir    string
	signingKey []byte
	encryptor  docstore.Encryptor
	opts       Options

	mu  sync.RWMutex
	dec docstore.DecryptionContext
}

// NewFileSystemStore creates a filesystem store rooted at the given path.
// A nil encryptor stores plaintext. An empty signingKey loads or creates a
// random key under root so URLs stay verifiable across restarts.
func NewFileSystemStore(bucket, root string, encryptor docstore.Encryptor, signingKey string, opts Options) (*FileSystemStore, error) {
	bucketDir := filepath.Join(root, bucket)
	objectsDir := filepath.Join(bucketDir, "objects")
	metaDir := filepath.Join(bucketDir, "meta")

	for _, dir := range []string{objectsDir, metaDir} {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return nil, fmt.Errorf("creating store directory: %w", err)
		}
	}

	key := []byte(signingKey)
	if len(key) == 0 {
		var err error
		key, err = loadOrCreateSigningKey(filepath.Join(root, signingKeyFile))
		if err != nil {
			return nil, err
		}
	}

	return &FileSystemStore{
		bucket:     bucket,
		root:       root,
		objectsDir: objectsDir,
		metaDir:    metaDir,
		signingKey: key,
		encryptor:  encryptor,
		opts:       opts.withDefaults(),
	}, nil
}

// Put writes the object and its sidecar. The content is written before the
// sidecar so a visible sidecar always has content behind it.
func (s *FileSystemStore) Put(ctx context.Context, obj *docstore.Object) (*docstore.Locator, error) {
	key := s.opts.newKey(obj)
	objPath, metaPath, err := s.resolve(key)
	if err != nil {
		return nil, docstore.NewStorageError("put", key, err)
	}

	if _, err := os.Stat(objPath); err == nil {
		return nil, docstore.NewStorageError("put", key, fmt.Errorf("key collision"))
	}

	content := obj.Data
	if s.encryptor != nil {
		var buf bytes.Buffer
		if err := s.encryptor.Encrypt(bytes.NewReader(obj.Data), &buf); err != nil {
			return nil, docstore.NewStorageError("put", key, fmt.Errorf("encrypting content: %w", err))
		}
		content = buf.Bytes()
	}

	if err := writeFileAtomic(objPath, content); err != nil {
		return nil, docstore.NewStorageError("put", key, err)
	}

	var meta bytes.Buffer
	err = toml.NewEncoder(&meta).Encode(sidecar{
		ContentType: obj.MimeType,
		Size:        int64(len(obj.Data)),
		Encrypted:   s.encryptor != nil,
		Metadata:    objectMetadata(obj, s.opts.Clock.Now()),
	})
	if err == nil {
		err = writeFileAtomic(metaPath, meta.Bytes())
	}
	if err != nil {
		os.Remove(objPath)
		return nil, docstore.NewStorageError("put", key, fmt.Errorf("writing metadata: %w", err))
	}

	u, err := s.SignedURL(ctx, key, docstore.DefaultURLTTL)
	if err != nil {
		os.Remove(metaPath)
		os.Remove(objPath)
		return nil, err
	}
	return &docstore.Locator{Key: key, Bucket: s.bucket, Provider: s.Provider(), URL: u}, nil
}

// SignedURL returns a file:// URL carrying an expiry and an HMAC-SHA256
// signature over the key and expiry.
func (s *FileSystemStore) SignedURL(ctx context.Context, key string, ttl time.Duration) (string, error) {
	objPath, _, err := s.resolve(key)
	if err != nil {
		return "", docstore.NewStorageError("sign", key, err)
	}
	if _, err := os.Stat(objPath); err != nil {
		return "", docstore.NewStorageError("sign", key, notFoundOr(err))
	}

	abs, err := filepath.Abs(objPath)
	if err != nil {
		return "", docstore.NewStorageError("sign", key, err)
	}
	expires := s.opts.Clock.Now().Add(docstore.ClampTTL(ttl)).Unix()

	q := url.Values{}
	q.Set("key", key)
	q.Set("expires", strconv.FormatInt(expires, 10))
	q.Set("signature", s.sign(key, expires))
	u := url.URL{Scheme: "file", Path: filepath.ToSlash(abs), RawQuery: q.Encode()}
	return u.String(), nil
}

// VerifySignedURL checks a URL produced by SignedURL and returns the key it
// grants access to.
func (s *FileSystemStore) VerifySignedURL(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("parsing url: %w", err)
	}
	q := u.Query()
	key := q.Get("key")
	expires, err := strconv.ParseInt(q.Get("expires"), 10, 64)
	if err != nil {
		return "", fmt.Errorf("invalid expires parameter: %w", err)
	}

	want := s.sign(key, expires)
	if !hmac.Equal([]byte(want), []byte(q.Get("signature"))) {
		return "", fmt.Errorf("signature mismatch")
	}
	if s.opts.Clock.Now().Unix() >= expires {
		return "", fmt.Errorf("url expired at %s", time.Unix(expires, 0).UTC().Format(time.RFC3339))
	}
	return key, nil
}

// GetBytes reads the object, decrypting it when it was stored encrypted.
func (s *FileSystemStore) GetBytes(ctx context.Context, key string) ([]byte, error) {
	objPath, metaPath, err := s.resolve(key)
	if err != nil {
		return nil, docstore.NewStorageError("get", key, err)
	}

	meta, err := readSidecar(metaPath)
	if err != nil {
		return nil, docstore.NewStorageError("get", key, err)
	}
	data, err := os.ReadFile(objPath)
	if err != nil {
		return nil, docstore.NewStorageError("get", key, notFoundOr(err))
	}
	if !meta.Encrypted {
		return data, nil
	}

	s.mu.RLock()
	dec := s.dec
	s.mu.RUnlock()
	if dec == nil {
		return nil, docstore.NewStorageError("get", key, docstore.ErrLocked)
	}

	var out bytes.Buffer
	if err := dec.Decrypt(bytes.NewReader(data), &out); err != nil {
		return nil, docstore.NewStorageError("get", key, fmt.Errorf("decrypting content: %w", err))
	}
	return out.Bytes(), nil
}

// Unlock decrypts the private key so encrypted objects can be read.
func (s *FileSystemStore) Unlock(passphrase string) error {
	if s.encryptor == nil {
		return nil
	}
	dec, err := s.encryptor.Unlock(passphrase)
	if err != nil {
		return fmt.Errorf("unlocking store: %w", err)
	}
	s.mu.Lock()
	s.dec = dec
	s.mu.Unlock()
	return nil
}

// Delete removes the object and its sidecar. Missing files are ignored.
func (s *FileSystemStore) Delete(ctx context.Context, key string) error {
	objPath, metaPath, err := s.resolve(key)
	if err != nil {
		return docstore.NewStorageError("delete", key, err)
	}
	for _, p := range []string{objPath, metaPath} {
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			return docstore.NewStorageError("delete", key, err)
		}
	}
	return nil
}

// TransitionClass succeeds without touching the object. Local disk has a
// single tier; the registry still records the logical class.
func (s *FileSystemStore) TransitionClass(ctx context.Context, key string, class model.StorageClass) error {
	objPath, _, err := s.resolve(key)
	if err != nil {
		return docstore.NewStorageError("transition", key, err)
	}
	if !class.Valid() {
		return docstore.NewStorageError("transition", key, fmt.Errorf("unknown storage class %q", class))
	}
	if _, err := os.Stat(objPath); err != nil {
		return docstore.NewStorageError("transition", key, notFoundOr(err))
	}
	s.opts.Logger.Debug("filesystem store has no tiers, transition is logical only",
		"key", key,
		"class", string(class),
	)
	return nil
}

func (s *FileSystemStore) Provider() string      { return "filesystem" }
func (s *FileSystemStore) Bucket() string        { return s.bucket }
func (s *FileSystemStore) SupportsTiering() bool { return false }

// Root returns the directory the store was created on.
func (s *FileSystemStore) Root() string {
	return s.root
}

// resolve maps a key to its content and sidecar paths, rejecting keys that
// could escape the bucket directory.
func (s *FileSystemStore) resolve(key string) (string, string, error) {
	if err := docstore.ValidateKey(key); err != nil {
		return "", "", err
	}
	objPath, metaPath := s.paths(key)
	return objPath, metaPath, nil
}

func (s *FileSystemStore) paths(key string) (string, string) {
	rel := filepath.FromSlash(key)
	return filepath.Join(s.objectsDir, rel), filepath.Join(s.metaDir, rel+".toml")
}

func (s *FileSystemStore) sign(key string, expires int64) string {
	mac := hmac.New(sha256.New, s.signingKey)
	fmt.Fprintf(mac, "%s\n%d", key, expires)
	return hex.EncodeToString(mac.Sum(nil))
}

func readSidecar(path string) (*sidecar, error) {
	var meta sidecar
	if _, err := toml.DecodeFile(path, &meta); err != nil {
		return nil, notFoundOr(err)
	}
	return &meta, nil
}

// notFoundOr maps a missing file to docstore.ErrNotFound.
func notFoundOr(err error) error {
	if errors.Is(err, os.ErrNotExist) {
		return docstore.ErrNotFound
	}
	return err
}

func loadOrCreateSigningKey(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err == nil {
		key, err := hex.DecodeString(string(bytes.TrimSpace(data)))
		if err != nil {
			return nil, fmt.Errorf("parsing signing key %s: %w", path, err)
		}
		return key, nil
	}
	if !os.IsNotExist(err) {
		return nil, fmt.Errorf("reading signing key: %w", err)
	}

	key := make([]byte, 32)
	rand.Read(key)
	if err := writeFileAtomic(path, []byte(hex.EncodeToString(key)+"\n")); err != nil {
		return nil, fmt.Errorf("writing signing key: %w", err)
	}
	return key, nil
}

// writeFileAtomic writes data to destPath using a temp file and rename, so
// readers never observe a partially written file.
func writeFileAtomic(destPath string, data []byte) error {
	// Create temp file in the same directory to ensure atomic rename works
	dir := filepath.Dir(destPath)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("creating directory: %w", err)
	}
	tmpFile, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	success := false
	defer func() {
		if !success {
			os.Remove(tmpPath)
		}
	}()

	if _, err := tmpFile.Write(data); err != nil {
		tmpFile.Close()
		return fmt.Errorf("failed to write data: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	if err := os.Rename(tmpPath, destPath); err != nil {
		return fmt.Errorf("failed to rename temp file: %w", err)
	}

	success = true
	return nil
}

// Compile-time check that FileSystemStore implements docstore.Store interface
var (
	_ docstore.Store    = (*FileSystemStore)(nil)
	_ docstore.Unlocker = (*FileSystemStore)(nil)
)
