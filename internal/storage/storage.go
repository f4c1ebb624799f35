// Package storage abstracts the object store holding documents and their
// derived artifacts. Paths are bucket-qualified ("bucket/inner/path"),
// matching the layout in docpath.
package storage

import (
	"context"
	"errors"
	"io"
)

// ErrNotExist is returned when the named object is absent.
var ErrNotExist = errors.New("object does not exist")

// ObjectStore is the minimal surface the pipeline needs from object
// storage. Implementations must be safe for concurrent use.
type ObjectStore interface {
	// Upload writes an object, replacing any existing content.
	Upload(ctx context.Context, path string, data []byte) error
	// Open returns a reader over the whole object.
	Open(ctx context.Context, path string) (io.ReadCloser, error)
	// ReadAll reads the whole object into memory.
	ReadAll(ctx context.Context, path string) ([]byte, error)
	// ReadRange reads length bytes starting at offset. Short reads at the
	// end of the object are not an error.
	ReadRange(ctx context.Context, path string, offset, length int64) ([]byte, error)
	// Size reports the object's length in bytes.
	Size(ctx context.Context, path string) (int64, error)
	// Delete removes a single object. Deleting a missing object is a no-op.
	Delete(ctx context.Context, path string) error
	// DeletePrefix removes every object under the given prefix.
	DeletePrefix(ctx context.Context, prefix string) error
}
