// Package storage defines the blob store abstraction decision records are
// written through. Implementations live in the local, gcs and memory
// subpackages.
package storage

import (
	"context"
	"io"
)

// BlobStore persists named objects and returns a URI for each write. Writing
// the same name twice replaces the earlier object.
type BlobStore interface {
	PutObject(ctx context.Context, name string, contentType string, data io.Reader) (string, error)
}
