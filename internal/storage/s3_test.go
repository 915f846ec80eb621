package storage_test

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"docstore/internal/docstore"
	"docstore/internal/model"
	"docstore/internal/storage"
	"docstore/internal/testutil"
)

type fakeObject struct {
	data     []byte
	class    types.StorageClass
	metadata map[string]string
	sse      types.ServerSideEncryption
}

// fakeS3 is an in-memory S3 stand-in covering the calls S3Store makes.
type fakeS3 struct {
	mu      sync.Mutex
	objects map[string]*fakeObject
	puts    []*s3.PutObjectInput
	copies  []*s3.CopyObjectInput
	deletes []string
	copyErr error
}

func newFakeS3() *fakeS3 {
	return &fakeS3{objects: make(map[string]*fakeObject)}
}

func (f *fakeS3) PutObject(ctx context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.puts = append(f.puts, in)
	class := in.StorageClass
	if class == types.StorageClassStandard {
		class = ""
	}
	f.objects[*in.Key] = &fakeObject{data: data, class: class, metadata: in.Metadata, sse: in.ServerSideEncryption}
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) UploadPart(context.Context, *s3.UploadPartInput, ...func(*s3.Options)) (*s3.UploadPartOutput, error) {
	return nil, fmt.Errorf("multipart upload not supported by fake")
}

func (f *fakeS3) CreateMultipartUpload(context.Context, *s3.CreateMultipartUploadInput, ...func(*s3.Options)) (*s3.CreateMultipartUploadOutput, error) {
	return nil, fmt.Errorf("multipart upload not supported by fake")
}

func (f *fakeS3) CompleteMultipartUpload(context.Context, *s3.CompleteMultipartUploadInput, ...func(*s3.Options)) (*s3.CompleteMultipartUploadOutput, error) {
	return nil, fmt.Errorf("multipart upload not supported by fake")
}

func (f *fakeS3) AbortMultipartUpload(context.Context, *s3.AbortMultipartUploadInput, ...func(*s3.Options)) (*s3.AbortMultipartUploadOutput, error) {
	return &s3.AbortMultipartUploadOutput{}, nil
}

func (f *fakeS3) GetObject(ctx context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	obj, ok := f.objects[*in.Key]
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(obj.data)), StorageClass: obj.class}, nil
}

func (f *fakeS3) HeadObject(ctx context.Context, in *s3.HeadObjectInput, _ ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	obj, ok := f.objects[*in.Key]
	if !ok {
		return nil, &types.NotFound{}
	}
	return &s3.HeadObjectOutput{StorageClass: obj.class, Metadata: obj.metadata}, nil
}

func (f *fakeS3) CopyObject(ctx context.Context, in *s3.CopyObjectInput, _ ...func(*s3.Options)) (*s3.CopyObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.copies = append(f.copies, in)
	if f.copyErr != nil {
		return nil, f.copyErr
	}

	bucket, key, _ := strings.Cut(*in.CopySource, "/")
	if bucket != *in.Bucket || key != *in.Key {
		return nil, fmt.Errorf("unexpected copy source %q", *in.CopySource)
	}
	obj, ok := f.objects[key]
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	if obj.class == in.StorageClass && in.MetadataDirective == types.MetadataDirectiveCopy {
		return nil, fmt.Errorf("InvalidRequest: copy request is illegal because it makes no changes")
	}
	obj.class = in.StorageClass
	obj.sse = in.ServerSideEncryption
	return &s3.CopyObjectOutput{}, nil
}

func (f *fakeS3) DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.objects, *in.Key)
	f.deletes = append(f.deletes, *in.Key)
	return &s3.DeleteObjectOutput{}, nil
}

func (f *fakeS3) object(key string) *fakeObject {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.objects[key]
}

// fakePresigner builds URLs carrying the requested expiry, or fails with err.
type fakePresigner struct{ err error }

func (p fakePresigner) PresignGetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
	if p.err != nil {
		return nil, p.err
	}
	var opts s3.PresignOptions
	for _, fn := range optFns {
		fn(&opts)
	}
	return &v4.PresignedHTTPRequest{
		Method: "GET",
		URL:    fmt.Sprintf("https://%s.s3.amazonaws.com/%s?X-Amz-Expires=%d", *in.Bucket, *in.Key, int(opts.Expires.Seconds())),
	}, nil
}

func newS3Store(t *testing.T, coldClass string) (*storage.S3Store, *fakeS3) {
	t.Helper()
	client := newFakeS3()
	store, err := storage.NewS3Store(client, fakePresigner{}, "clinic-sensitive-documents", coldClass, storage.Options{
		Clock:  testutil.FixedClock(),
		Tokens: testutil.NewStubTokens(),
	})
	if err != nil {
		t.Fatalf("NewS3Store() error = %v", err)
	}
	return store, client
}

func TestS3Store_Put(t *testing.T) {
	ctx := context.Background()
	store, client := newS3Store(t, "")

	loc, err := store.Put(ctx, labResult())
	if err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	if !keyPattern.MatchString(loc.Key) {
		t.Errorf("Key = %q, does not match %s", loc.Key, keyPattern)
	}
	if loc.Provider != "s3" || loc.Bucket != "clinic-sensitive-documents" {
		t.Errorf("Locator = %+v", loc)
	}
	if !strings.HasSuffix(loc.URL, "X-Amz-Expires=3600") {
		t.Errorf("URL = %q, want 3600s expiry", loc.URL)
	}

	if len(client.puts) != 1 {
		t.Fatalf("PutObject calls = %d, want 1", len(client.puts))
	}
	in := client.puts[0]
	if in.ServerSideEncryption != types.ServerSideEncryptionAes256 {
		t.Errorf("ServerSideEncryption = %q, want AES256", in.ServerSideEncryption)
	}
	if in.StorageClass != types.StorageClassStandard {
		t.Errorf("StorageClass = %q, want STANDARD", in.StorageClass)
	}
	if *in.ContentType != "application/pdf" {
		t.Errorf("ContentType = %q", *in.ContentType)
	}
	for _, k := range []string{"userId", "uploadDate", "originalName", "fileType"} {
		if in.Metadata[k] == "" {
			t.Errorf("metadata %q missing", k)
		}
	}

	data, err := store.GetBytes(ctx, loc.Key)
	if err != nil {
		t.Fatalf("GetBytes() error = %v", err)
	}
	if !bytes.Equal(data, labResult().Data) {
		t.Errorf("GetBytes() = %q", data)
	}
}

func TestS3Store_Put_RemovesObjectWhenSigningFails(t *testing.T) {
	ctx := context.Background()
	client := newFakeS3()
	signErr := errors.New("credentials expired")
	store, err := storage.NewS3Store(client, fakePresigner{err: signErr}, "clinic-sensitive-documents", "", storage.Options{
		Clock:  testutil.FixedClock(),
		Tokens: testutil.NewStubTokens(),
	})
	if err != nil {
		t.Fatalf("NewS3Store() error = %v", err)
	}

	if _, err := store.Put(ctx, labResult()); !errors.Is(err, signErr) {
		t.Fatalf("Put() error = %v, want %v", err, signErr)
	}

	if len(client.puts) != 1 {
		t.Fatalf("PutObject calls = %d, want 1", len(client.puts))
	}
	key := *client.puts[0].Key
	if client.object(key) != nil {
		t.Errorf("object %q left in bucket after failed Put", key)
	}
	if len(client.deletes) != 1 || client.deletes[0] != key {
		t.Errorf("DeleteObject calls = %v, want [%s]", client.deletes, key)
	}
}

func TestS3Store_Put_RejectsInvalidKey(t *testing.T) {
	client := newFakeS3()
	store, err := storage.NewS3Store(client, fakePresigner{}, "clinic-sensitive-documents", "", storage.Options{
		Clock:  testutil.FixedClock(),
		Tokens: slashTokens{},
	})
	if err != nil {
		t.Fatalf("NewS3Store() error = %v", err)
	}

	if _, err := store.Put(context.Background(), labResult()); !errors.Is(err, docstore.ErrInvalidKey) {
		t.Fatalf("Put() error = %v, want ErrInvalidKey", err)
	}
	if len(client.puts) != 0 {
		t.Errorf("PutObject calls = %d, want 0", len(client.puts))
	}
}

func TestS3Store_SignedURL_ClampsTTL(t *testing.T) {
	store, _ := newS3Store(t, "")

	tests := []struct {
		ttl  time.Duration
		want string
	}{
		{ttl: 0, want: "X-Amz-Expires=3600"},
		{ttl: 15 * time.Minute, want: "X-Amz-Expires=900"},
		{ttl: 30 * 24 * time.Hour, want: "X-Amz-Expires=604800"},
	}
	for _, tt := range tests {
		u, err := store.SignedURL(context.Background(), "lab-results/42/k", tt.ttl)
		if err != nil {
			t.Fatalf("SignedURL() error = %v", err)
		}
		if !strings.HasSuffix(u, tt.want) {
			t.Errorf("SignedURL(%v) = %q, want suffix %q", tt.ttl, u, tt.want)
		}
	}
}

func TestS3Store_TransitionClass(t *testing.T) {
	ctx := context.Background()

	t.Run("copies in place to the cold class once", func(t *testing.T) {
		store, client := newS3Store(t, "")
		loc, err := store.Put(ctx, labResult())
		if err != nil {
			t.Fatalf("Put() error = %v", err)
		}

		for i := 0; i < 2; i++ {
			if err := store.TransitionClass(ctx, loc.Key, model.ClassCold); err != nil {
				t.Fatalf("TransitionClass() call %d error = %v", i+1, err)
			}
		}

		if len(client.copies) != 1 {
			t.Fatalf("CopyObject calls = %d, want 1", len(client.copies))
		}
		in := client.copies[0]
		if in.StorageClass != types.StorageClassStandardIa {
			t.Errorf("StorageClass = %q, want STANDARD_IA", in.StorageClass)
		}
		if in.MetadataDirective != types.MetadataDirectiveCopy {
			t.Errorf("MetadataDirective = %q, want COPY", in.MetadataDirective)
		}
		if in.ServerSideEncryption != types.ServerSideEncryptionAes256 {
			t.Errorf("ServerSideEncryption = %q, want AES256", in.ServerSideEncryption)
		}

		obj := client.object(loc.Key)
		if obj.class != types.StorageClassStandardIa {
			t.Errorf("object class = %q, want STANDARD_IA", obj.class)
		}
		if !bytes.Equal(obj.data, labResult().Data) || obj.metadata["userId"] != "42" {
			t.Error("transition changed object content or metadata")
		}
	})

	t.Run("configurable cold class", func(t *testing.T) {
		store, client := newS3Store(t, "GLACIER_IR")
		loc, _ := store.Put(ctx, labResult())

		if err := store.TransitionClass(ctx, loc.Key, model.ClassCold); err != nil {
			t.Fatalf("TransitionClass() error = %v", err)
		}
		if got := client.object(loc.Key).class; got != types.StorageClassGlacierIr {
			t.Errorf("object class = %q, want GLACIER_IR", got)
		}
		if store.ColdStorageClass() != "GLACIER_IR" {
			t.Errorf("ColdStorageClass() = %q", store.ColdStorageClass())
		}
	})

	t.Run("hot on a standard object is a no-op", func(t *testing.T) {
		store, client := newS3Store(t, "")
		loc, _ := store.Put(ctx, labResult())

		if err := store.TransitionClass(ctx, loc.Key, model.ClassHot); err != nil {
			t.Fatalf("TransitionClass() error = %v", err)
		}
		if len(client.copies) != 0 {
			t.Errorf("CopyObject calls = %d, want 0", len(client.copies))
		}
	})

	t.Run("missing object", func(t *testing.T) {
		store, _ := newS3Store(t, "")
		err := store.TransitionClass(ctx, "lab-results/42/missing", model.ClassCold)
		if !errors.Is(err, docstore.ErrNotFound) {
			t.Errorf("TransitionClass() error = %v, want ErrNotFound", err)
		}
		var se *docstore.StorageError
		if !errors.As(err, &se) || se.Op != "transition" {
			t.Errorf("TransitionClass() error = %#v, want StorageError for transition", err)
		}
	})

	t.Run("copy failure is reported", func(t *testing.T) {
		store, client := newS3Store(t, "")
		loc, _ := store.Put(ctx, labResult())
		client.copyErr = errors.New("SlowDown: please reduce your request rate")

		if err := store.TransitionClass(ctx, loc.Key, model.ClassCold); err == nil {
			t.Error("TransitionClass() expected error")
		}
	})
}

func TestS3Store_GetAndDelete(t *testing.T) {
	ctx := context.Background()
	store, _ := newS3Store(t, "")

	if _, err := store.GetBytes(ctx, "lab-results/42/missing"); !errors.Is(err, docstore.ErrNotFound) {
		t.Errorf("GetBytes() error = %v, want ErrNotFound", err)
	}

	loc, _ := store.Put(ctx, labResult())
	for i := 0; i < 2; i++ {
		if err := store.Delete(ctx, loc.Key); err != nil {
			t.Fatalf("Delete() call %d error = %v", i+1, err)
		}
	}
	if _, err := store.GetBytes(ctx, loc.Key); !docstore.IsNotFound(err) {
		t.Errorf("GetBytes() after delete error = %v, want not found", err)
	}
}

func TestNewS3Store_Validation(t *testing.T) {
	if _, err := storage.NewS3Store(newFakeS3(), fakePresigner{}, "", "", storage.Options{}); err == nil {
		t.Error("NewS3Store() without bucket expected error")
	}
	if _, err := storage.NewS3Store(newFakeS3(), fakePresigner{}, "b", "FREEZER", storage.Options{}); err == nil {
		t.Error("NewS3Store() with unknown storage class expected error")
	}
}
