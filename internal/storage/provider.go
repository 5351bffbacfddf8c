// Package storage defines the object storage contract shared by the local,
// in-memory and Cloud Storage backends. Discovery state and export snapshots
// are persisted through it.
package storage

import (
	"context"
	"errors"
	"io"
)

// ErrNotFound is returned by GetObject when the object does not exist.
var ErrNotFound = errors.New("object not found")

// BlobStore reads and writes whole objects by path.
type BlobStore interface {
	// PutObject uploads data to path and returns a URI for the object.
	PutObject(ctx context.Context, path string, contentType string, data io.Reader) (string, error)
	// GetObject returns the object's content or ErrNotFound.
	GetObject(ctx context.Context, path string) ([]byte, error)
}
