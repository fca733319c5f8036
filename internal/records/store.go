// Package records serializes decision records to JSON and writes them, one
// object per decision, through a blob store.
package records

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/JakeFAU/legal-decisions-crawler/internal/decision"
	"github.com/JakeFAU/legal-decisions-crawler/internal/storage"
)

const (
	// Extension is appended to every record key.
	Extension   = ".json"
	contentType = "application/json; charset=utf-8"
)

// ErrInvalidKey is returned for keys that cannot name a flat file.
var ErrInvalidKey = errors.New("invalid record key")

// Store writes records as <key>.json objects.
type Store struct {
	blobs storage.BlobStore
}

// New returns a Store writing through blobs.
func New(blobs storage.BlobStore) (*Store, error) {
	if blobs == nil {
		return nil, fmt.Errorf("blob store is required")
	}
	return &Store{blobs: blobs}, nil
}

// FileName maps a record key to its object name.
func FileName(key string) (string, error) {
	name := decision.SanitizeKey(key)
	switch name {
	case "", ".", "..":
		return "", fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	return name + Extension, nil
}

// Save writes rec and returns the URI reported by the blob store. A record
// whose key matches an earlier one replaces it.
func (s *Store) Save(ctx context.Context, rec decision.Record) (string, error) {
	name, err := FileName(rec.Key())
	if err != nil {
		return "", err
	}
	data, err := Encode(rec)
	if err != nil {
		return "", err
	}
	uri, err := s.blobs.PutObject(ctx, name, contentType, bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("write record %s: %w", name, err)
	}
	return uri, nil
}

// Encode renders v as UTF-8 JSON without HTML escaping and without a
// trailing newline.
func Encode(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, fmt.Errorf("encode record: %w", err)
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// DecodeFull parses a stored full record.
func DecodeFull(data []byte) (*decision.FullRecord, error) {
	var rec decision.FullRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("decode full record: %w", err)
	}
	return &rec, nil
}

// DecodeSmall parses a stored small record.
func DecodeSmall(data []byte) (*decision.SmallRecord, error) {
	var rec decision.SmallRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("decode small record: %w", err)
	}
	return &rec, nil
}
