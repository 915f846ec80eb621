package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"docstore/internal/docstore"
	"docstore/internal/model"
)

// DefaultColdStorageClass is the S3 class cold documents are moved to.
const DefaultColdStorageClass = types.StorageClassStandardIa

// S3API is the subset of the S3 client the store calls. Uploads go through
// the upload manager, which needs the multipart operations as well.
type S3API interface {
	manager.UploadAPIClient
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	CopyObject(ctx context.Context, params *s3.CopyObjectInput, optFns ...func(*s3.Options)) (*s3.CopyObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// Presigner signs GET requests. *s3.PresignClient satisfies it.
type Presigner interface {
	PresignGetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

// S3Settings configures the S3 client.
type S3Settings struct {
	Bucket           string
	Region           string
	Endpoint         string // for S3-compatible services; enables path-style addressing
	AccessKeyID      string
	SecretAccessKey  string
	ColdStorageClass string
}

// S3Store implements docstore.Store on Amazon S3. Objects are written with
// server-side encryption and a hot storage class of STANDARD.
type S3Store struct {
	client    S3API
	uploader  *manager.Uploader
	presigner Presigner
	bucket    string
	coldClass types.StorageClass
	opts      Options
}

// NewS3StoreFromSettings loads AWS configuration and builds an S3Store.
// Static credentials are used when both halves are set; otherwise the default
// AWS credential chain applies.
func NewS3StoreFromSettings(ctx context.Context, settings S3Settings, opts Options) (*S3Store, error) {
	loadOpts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(settings.Region),
	}
	if settings.AccessKeyID != "" && settings.SecretAccessKey != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(settings.AccessKeyID, settings.SecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("loading aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if settings.Endpoint != "" {
			o.BaseEndpoint = aws.String(settings.Endpoint)
			o.UsePathStyle = true
		}
	})

	return NewS3Store(client, s3.NewPresignClient(client), settings.Bucket, settings.ColdStorageClass, opts)
}

// NewS3Store creates a store over an existing client. An empty coldClass
// selects DefaultColdStorageClass.
func NewS3Store(client S3API, presigner Presigner, bucket, coldClass string, opts Options) (*S3Store, error) {
	if bucket == "" {
		return nil, fmt.Errorf("s3 store requires a bucket")
	}
	cold := DefaultColdStorageClass
	if coldClass != "" {
		cold = types.StorageClass(coldClass)
		if !knownStorageClass(cold) {
			return nil, fmt.Errorf("unknown s3 storage class: %s", coldClass)
		}
	}

	return &S3Store{
		client:    client,
		uploader:  manager.NewUploader(client),
		presigner: presigner,
		bucket:    bucket,
		coldClass: cold,
		opts:      opts.withDefaults(),
	}, nil
}

// Put uploads the object with AES256 server-side encryption. Large payloads
// are split into parts by the upload manager.
func (s *S3Store) Put(ctx context.Context, obj *docstore.Object) (*docstore.Locator, error) {
	key := s.opts.newKey(obj)
	if err := docstore.ValidateKey(key); err != nil {
		return nil, docstore.NewStorageError("put", key, err)
	}

	_, err := s.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:               aws.String(s.bucket),
		Key:                  aws.String(key),
		Body:                 bytes.NewReader(obj.Data),
		ContentType:          aws.String(obj.MimeType),
		ContentLength:        aws.Int64(int64(len(obj.Data))),
		ServerSideEncryption: types.ServerSideEncryptionAes256,
		StorageClass:         types.StorageClassStandard,
		Metadata:             objectMetadata(obj, s.opts.Clock.Now()),
	})
	if err != nil {
		return nil, docstore.NewStorageError("put", key, err)
	}

	u, err := s.SignedURL(ctx, key, docstore.DefaultURLTTL)
	if err != nil {
		// The caller never learns the key, so nothing would reference the object.
		if delErr := s.Delete(context.WithoutCancel(ctx), key); delErr != nil {
			s.opts.Logger.Error("removing unsigned object failed", "key", key, "error", delErr)
		}
		return nil, err
	}
	return &docstore.Locator{Key: key, Bucket: s.bucket, Provider: s.Provider(), URL: u}, nil
}

// SignedURL presigns a GET for key. It does not check the object exists.
func (s *S3Store) SignedURL(ctx context.Context, key string, ttl time.Duration) (string, error) {
	req, err := s.presigner.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(docstore.ClampTTL(ttl)))
	if err != nil {
		return "", docstore.NewStorageError("sign", key, err)
	}
	return req.URL, nil
}

func (s *S3Store) GetBytes(ctx context.Context, key string) ([]byte, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, docstore.NewStorageError("get", key, mapS3Error(err))
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, docstore.NewStorageError("get", key, fmt.Errorf("reading body: %w", err))
	}
	return data, nil
}

// Delete removes key. S3 reports success for missing keys as well.
func (s *S3Store) Delete(ctx context.Context, key string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if errors.Is(mapS3Error(err), docstore.ErrNotFound) {
			return nil
		}
		return docstore.NewStorageError("delete", key, err)
	}
	return nil
}

// TransitionClass rewrites the object onto itself with the target storage
// class. Metadata and encryption are preserved. When the object is already
// in the target class nothing is copied, since S3 rejects a self-copy that
// changes nothing.
func (s *S3Store) TransitionClass(ctx context.Context, key string, class model.StorageClass) error {
	target, err := s.storageClassFor(class)
	if err != nil {
		return docstore.NewStorageError("transition", key, err)
	}

	head, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return docstore.NewStorageError("transition", key, mapS3Error(err))
	}

	current := head.StorageClass
	if current == "" {
		current = types.StorageClassStandard
	}
	if current == target {
		s.opts.Logger.Debug("object already in target class", "key", key, "class", string(target))
		return nil
	}

	_, err = s.client.CopyObject(ctx, &s3.CopyObjectInput{
		Bucket:               aws.String(s.bucket),
		Key:                  aws.String(key),
		CopySource:           aws.String(copySource(s.bucket, key)),
		StorageClass:         target,
		MetadataDirective:    types.MetadataDirectiveCopy,
		ServerSideEncryption: types.ServerSideEncryptionAes256,
	})
	if err != nil {
		return docstore.NewStorageError("transition", key, mapS3Error(err))
	}
	return nil
}

func (s *S3Store) Provider() string      { return "s3" }
func (s *S3Store) Bucket() string        { return s.bucket }
func (s *S3Store) SupportsTiering() bool { return true }

// ColdStorageClass returns the S3 class used for cold documents.
func (s *S3Store) ColdStorageClass() string {
	return string(s.coldClass)
}

func (s *S3Store) storageClassFor(class model.StorageClass) (types.StorageClass, error) {
	switch class {
	case model.ClassHot:
		return types.StorageClassStandard, nil
	case model.ClassCold:
		return s.coldClass, nil
	default:
		return "", fmt.Errorf("unknown storage class %q", class)
	}
}

// mapS3Error translates missing-object errors into docstore.ErrNotFound.
// HeadObject reports NotFound while GetObject reports NoSuchKey.
func mapS3Error(err error) error {
	var noSuchKey *types.NoSuchKey
	var notFound *types.NotFound
	if errors.As(err, &noSuchKey) || errors.As(err, &notFound) {
		return fmt.Errorf("%w: %v", docstore.ErrNotFound, err)
	}
	return err
}

// copySource builds the URL-encoded "bucket/key" value CopyObject expects.
func copySource(bucket, key string) string {
	return url.PathEscape(bucket) + "/" + (&url.URL{Path: key}).EscapedPath()
}

func knownStorageClass(c types.StorageClass) bool {
	for _, v := range c.Values() {
		if v == c {
			return true
		}
	}
	return false
}

// Compile-time check that S3Store implements docstore.Store interface
var _ docstore.Store = (*S3Store)(nil)
