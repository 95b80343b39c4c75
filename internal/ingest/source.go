package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

var (
	// ErrSourceRead wraps failures opening or reading the input.
	ErrSourceRead = errors.New("source read failed")
	// ErrInvalidPath is returned for paths the service refuses to open.
	ErrInvalidPath = errors.New("invalid ingest path")
)

// Opener resolves an ingest path to a readable stream.
type Opener interface {
	Validate(path string) error
	Open(ctx context.Context, path string) (io.ReadCloser, error)
}

// ObjectGetter streams one object from object storage.
type ObjectGetter interface {
	GetObject(ctx context.Context, bucket, key string) (io.ReadCloser, error)
}

// SourceOpener opens local files, or s3:// and minio:// objects when an
// ObjectGetter is configured.
type SourceOpener struct {
	baseDir string
	objects ObjectGetter
}

// NewSourceOpener confines local paths to baseDir when it is non-empty.
// objects may be nil, which disables object-storage paths.
func NewSourceOpener(baseDir string, objects ObjectGetter) *SourceOpener {
	return &SourceOpener{baseDir: baseDir, objects: objects}
}

// Validate checks a path without touching the source.
func (o *SourceOpener) Validate(path string) error {
	_, _, _, err := o.resolve(path)
	return err
}

// Open returns a stream for path. The caller closes it.
func (o *SourceOpener) Open(ctx context.Context, path string) (io.ReadCloser, error) {
	local, bucket, key, err := o.resolve(path)
	if err != nil {
		return nil, err
	}

	if local != "" {
		f, err := os.Open(local)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrSourceRead, err)
		}
		return f, nil
	}

	rc, err := o.objects.GetObject(ctx, bucket, key)
	if err != nil {
		return nil, fmt.Errorf("%w: get s3://%s/%s: %w", ErrSourceRead, bucket, key, err)
	}
	return rc, nil
}

// resolve returns either a local path or an object location.
func (o *SourceOpener) resolve(path string) (local, bucket, key string, err error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return "", "", "", fmt.Errorf("%w: empty path", ErrInvalidPath)
	}

	if strings.HasPrefix(path, "s3://") || strings.HasPrefix(path, "minio://") {
		if o.objects == nil {
			return "", "", "", fmt.Errorf("%w: object storage is not configured", ErrInvalidPath)
		}
		u, err := url.Parse(path)
		if err != nil {
			return "", "", "", fmt.Errorf("%w: %w", ErrInvalidPath, err)
		}
		bucket, key = u.Host, strings.TrimPrefix(u.Path, "/")
		if bucket == "" || key == "" {
			return "", "", "", fmt.Errorf("%w: want s3://bucket/key, got %q", ErrInvalidPath, path)
		}
		return "", bucket, key, nil
	}

	if o.baseDir == "" {
		return filepath.Clean(path), "", "", nil
	}

	base, err := filepath.Abs(o.baseDir)
	if err != nil {
		return "", "", "", fmt.Errorf("%w: %w", ErrInvalidPath, err)
	}
	full := path
	if !filepath.IsAbs(full) {
		full = filepath.Join(base, full)
	}
	full = filepath.Clean(full)
	rel, err := filepath.Rel(base, full)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", "", "", fmt.Errorf("%w: %q is outside %s", ErrInvalidPath, path, base)
	}
	return full, "", "", nil
}

// ObjectStore reads ingest files from MinIO or any S3-compatible endpoint.
type ObjectStore struct {
	mc *minio.Client
}

// NewObjectStore creates a MinIO client with static credentials.
func NewObjectStore(endpoint, accessKey, secretKey string, useTLS bool) (*ObjectStore, error) {
	mc, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}
	return &ObjectStore{mc: mc}, nil
}

// GetObject streams bucket/key. The object is stat'ed first so a missing key
// fails here rather than on the first read.
func (s *ObjectStore) GetObject(ctx context.Context, bucket, key string) (io.ReadCloser, error) {
	obj, err := s.mc.GetObject(ctx, bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, err
	}
	if _, err := obj.Stat(); err != nil {
		_ = obj.Close()
		return nil, err
	}
	return obj, nil
}
