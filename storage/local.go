package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/user/queryloop-go/apperror"
)

// LocalStore is a FileStore backed by the local filesystem. Each bucket is a
// directory under the configured root.
type LocalStore struct {
	root string
}

// NewLocalStore creates a LocalStore rooted at root, creating the directory
// if it does not exist.
func NewLocalStore(root string) (*LocalStore, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, apperror.NewExternalServiceError(fmt.Sprintf("failed to create storage root %s", root), err)
	}
	return &LocalStore{root: root}, nil
}

// resolve maps (bucket, path) onto the filesystem and rejects paths that
// would escape the bucket directory.
func (s *LocalStore) resolve(bucket, path string) (string, error) {
	if bucket == "" || path == "" {
		return "", apperror.NewValidationError("bucket and path are required", nil)
	}
	bucketDir := filepath.Join(s.root, bucket)
	full := filepath.Join(bucketDir, filepath.FromSlash(path))
	if !strings.HasPrefix(full, bucketDir+string(os.PathSeparator)) {
		return "", apperror.NewValidationError(fmt.Sprintf("invalid storage path %q", path), nil)
	}
	return full, nil
}

// Upload writes the blob to bucket/path.
func (s *LocalStore) Upload(ctx context.Context, bucket, path string, r io.Reader) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	full, err := s.resolve(bucket, path)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return apperror.NewExternalServiceError("failed to create attachment directory", err)
	}

	f, err := os.Create(full)
	if err != nil {
		return apperror.NewExternalServiceError("failed to create attachment file", err)
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		os.Remove(full)
		return apperror.NewExternalServiceError("failed to write attachment file", err)
	}
	if err := f.Close(); err != nil {
		return apperror.NewExternalServiceError("failed to close attachment file", err)
	}
	return nil
}

// Remove deletes blobs from a bucket. Missing blobs are ignored so the call
// stays idempotent.
func (s *LocalStore) Remove(ctx context.Context, bucket string, paths []string) error {
	for _, p := range paths {
		if err := ctx.Err(); err != nil {
			return err
		}
		full, err := s.resolve(bucket, p)
		if err != nil {
			return err
		}
		if err := os.Remove(full); err != nil && !os.IsNotExist(err) {
			return apperror.NewExternalServiceError(fmt.Sprintf("failed to remove blob %s/%s", bucket, p), err)
		}
	}
	return nil
}
