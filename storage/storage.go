// Package storage abstracts the blob store used for question and answer
// attachments. The production deployment keeps blobs on a mounted volume via
// LocalStore; the interface is the seam where an object-storage client would
// plug in.
package storage

import (
	"context"
	"io"
	"strings"
)

// Bucket names for the two attachment kinds.
const (
	QuestionFilesBucket = "questions-files"
	AnswerFilesBucket   = "answer-files"
)

// SafeFileName normalizes an upload filename for use in a blob path.
// Spaces become underscores so stored paths never need URL escaping.
func SafeFileName(name string) string {
	return strings.ReplaceAll(name, " ", "_")
}

// FileStore stores and removes blobs addressed by (bucket, path).
type FileStore interface {
	// Upload writes the blob read from r to bucket/path, creating parent
	// directories or prefixes as needed.
	Upload(ctx context.Context, bucket, path string, r io.Reader) error
	// Remove deletes the given paths from a bucket. Paths that no longer
	// exist are skipped, not errors: the deletion coordinator retries
	// cascades, so Remove must be idempotent.
	Remove(ctx context.Context, bucket string, paths []string) error
}
