package storage

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"fontbox/internal/models"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// MinioConfig holds connection details for an S3-compatible object store.
type MinioConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	Prefix    string
	UseSSL    bool
}

// MinioBackend stores font files as objects in a bucket.
type MinioBackend struct {
	client *minio.Client
	bucket string
	prefix string
}

// NewMinioBackend connects to the object store and makes sure the bucket exists.
func NewMinioBackend(ctx context.Context, cfg MinioConfig) (*MinioBackend, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("minio endpoint is not configured")
	}
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("minio bucket is not configured")
	}

	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize minio client: %w", err)
	}

	b := &MinioBackend{
		client: client,
		bucket: cfg.Bucket,
		prefix: normalizePrefix(cfg.Prefix),
	}
	if err := b.ensureBucket(ctx); err != nil {
		return nil, err
	}
	return b, nil
}

func (b *MinioBackend) ensureBucket(ctx context.Context) error {
	exists, err := b.client.BucketExists(ctx, b.bucket)
	if err != nil {
		return fmt.Errorf("failed to check bucket %s: %w", b.bucket, err)
	}
	if exists {
		return nil
	}
	if err := b.client.MakeBucket(ctx, b.bucket, minio.MakeBucketOptions{}); err != nil {
		// Another instance may have created it in the meantime.
		if exists, errExists := b.client.BucketExists(ctx, b.bucket); errExists == nil && exists {
			return nil
		}
		return fmt.Errorf("failed to create bucket %s: %w", b.bucket, err)
	}
	return nil
}

// UploadPath returns "<bucket>/<prefix>".
func (b *MinioBackend) UploadPath() string {
	return b.bucket + "/" + b.prefix
}

// SaveFile uploads content as a new object.
func (b *MinioBackend) SaveFile(ctx context.Context, content io.Reader, size int64, originalName string) (SavedFile, error) {
	filename := GenerateFilename(originalName, time.Now())
	_, err := b.client.PutObject(ctx, b.bucket, b.key(filename), content, size, minio.PutObjectOptions{
		ContentType: models.MimetypeForExtension(filepath.Ext(filename)),
	})
	if err != nil {
		return SavedFile{}, fmt.Errorf("failed to upload object: %w", err)
	}
	return SavedFile{Filename: filename, Path: PublicPath(filename)}, nil
}

// DeleteFile removes the object. S3 deletes are idempotent.
func (b *MinioBackend) DeleteFile(ctx context.Context, filename string) error {
	if err := b.client.RemoveObject(ctx, b.bucket, b.key(filename), minio.RemoveObjectOptions{}); err != nil {
		if isNoSuchKey(err) {
			return nil
		}
		return fmt.Errorf("failed to delete object: %w", err)
	}
	return nil
}

// Open streams the object's content.
func (b *MinioBackend) Open(ctx context.Context, filename string) (io.ReadCloser, error) {
	obj, err := b.client.GetObject(ctx, b.bucket, b.key(filename), minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to get object: %w", err)
	}
	// GetObject is lazy; Stat surfaces a missing key.
	if _, err := obj.Stat(); err != nil {
		obj.Close()
		if isNoSuchKey(err) {
			return nil, fmt.Errorf("%s: %w", filename, ErrFileNotFound)
		}
		return nil, fmt.Errorf("failed to stat object: %w", err)
	}
	return obj, nil
}

// List returns every object under the prefix.
func (b *MinioBackend) List(ctx context.Context) ([]FileInfo, error) {
	var files []FileInfo
	for object := range b.client.ListObjects(ctx, b.bucket, minio.ListObjectsOptions{
		Prefix:    b.prefix,
		Recursive: true,
	}) {
		if object.Err != nil {
			return nil, fmt.Errorf("failed to list objects: %w", object.Err)
		}
		name := strings.TrimPrefix(object.Key, b.prefix)
		if name == "" || strings.Contains(name, "/") {
			continue
		}
		files = append(files, FileInfo{Filename: name, Size: object.Size, ModTime: object.LastModified})
	}
	return files, nil
}

func (b *MinioBackend) key(filename string) string {
	return b.prefix + filename
}

func normalizePrefix(prefix string) string {
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		return ""
	}
	return prefix + "/"
}

func isNoSuchKey(err error) bool {
	return minio.ToErrorResponse(err).Code == "NoSuchKey"
}
