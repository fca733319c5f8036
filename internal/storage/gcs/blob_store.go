// Package gcs stores decision records as objects in a Google Cloud Storage
// bucket, one object per record under a per-job prefix.
package gcs

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"

	"cloud.google.com/go/storage"
)

// Config selects the bucket and the object prefix records are written under.
type Config struct {
	Bucket string
	// Prefix plays the role of the job's output directory, e.g. "decisions_big".
	Prefix string
}

// BlobStore writes record objects into one bucket. Record names are flat:
// the prefix is the only path component the store adds.
type BlobStore struct {
	client *storage.Client
	bucket string
	prefix string
}

// New returns a BlobStore using client. The client is owned by the caller.
func New(client *storage.Client, cfg Config) (*BlobStore, error) {
	if client == nil {
		return nil, fmt.Errorf("storage client is required")
	}
	if strings.TrimSpace(cfg.Bucket) == "" {
		return nil, fmt.Errorf("bucket name is required")
	}
	return &BlobStore{
		client: client,
		bucket: cfg.Bucket,
		prefix: strings.Trim(cfg.Prefix, "/"),
	}, nil
}

// ObjectName maps a record file name to its object name in the bucket.
func (s *BlobStore) ObjectName(name string) string {
	if s.prefix == "" {
		return name
	}
	return path.Join(s.prefix, name)
}

// PutObject uploads one record and returns its gs:// URI. A later upload
// with the same name replaces the object, matching the local store.
func (s *BlobStore) PutObject(ctx context.Context, name string, contentType string, r io.Reader) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("context canceled: %w", err)
	}
	if strings.TrimSpace(name) == "" {
		return "", fmt.Errorf("record name is required")
	}
	if strings.ContainsAny(name, `/\`) || name == "." || name == ".." {
		return "", fmt.Errorf("record name %q must not contain path elements", name)
	}

	object := s.ObjectName(name)
	writer := s.client.Bucket(s.bucket).Object(object).NewWriter(ctx)
	if contentType != "" {
		writer.ContentType = contentType
	}
	if _, err := io.Copy(writer, r); err != nil {
		if closeErr := writer.Close(); closeErr != nil {
			return "", fmt.Errorf("upload record %s: %w (close writer: %v)", object, err, closeErr)
		}
		return "", fmt.Errorf("upload record %s: %w", object, err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("finalize record %s: %w", object, err)
	}
	return fmt.Sprintf("gs://%s/%s", s.bucket, object), nil
}
