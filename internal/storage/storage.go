package storage

import (
	"context"
	"io"
)

// BlobStore publishes local artifacts to durable object storage.
type BlobStore interface {
	// Key resolves an artifact name into a full object key, applying the
	// store's namespace prefix.
	Key(name string) string

	// Put uploads content under the given key.
	Put(ctx context.Context, key string, r io.Reader) error

	// Exists checks whether an object is already present at the given key.
	Exists(ctx context.Context, key string) (bool, error)
}
