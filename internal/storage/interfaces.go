// Package storage defines the object store contract used by the content layer.
// An object store persists immutable objects addressed by bucket and name and
// serves byte ranges of them.
package storage

import (
	"context"
	"errors"
	"io"
)

// Errors returned by ObjectStore implementations.
var (
	// ErrObjectNotFound indicates the named object does not exist.
	ErrObjectNotFound = errors.New("object not found")

	// ErrInvalidName indicates an empty object name or one escaping the bucket.
	ErrInvalidName = errors.New("invalid object name")
)

// ObjectReference addresses a byte range of one stored object.
type ObjectReference struct {
	// Bucket is the namespace the object lives in.
	Bucket string `json:"bucket"`

	// Name is the object key within the bucket.
	Name string `json:"name"`

	// Offset is the first byte of the range.
	Offset int64 `json:"offset"`

	// Size is the length of the range. 0 means up to the end of the object.
	Size int64 `json:"size"`
}

// ObjectWrite is one payload of a bulk write.
type ObjectWrite struct {
	Name string
	Data []byte
}

// ObjectStore defines the interface for object store backends.
// Implementations can include the local filesystem or S3-compatible services.
type ObjectStore interface {
	// GetObject opens the range of the referenced object.
	// Returns ErrObjectNotFound if the object does not exist.
	GetObject(ctx context.Context, ref ObjectReference) (io.ReadCloser, error)

	// PutObject stores everything read from r under ref.Bucket/ref.Name and
	// returns the reference with Size set to the number of bytes written.
	PutObject(ctx context.Context, ref ObjectReference, r io.Reader) (ObjectReference, error)

	// PutObjects stores several payloads in one call.
	PutObjects(ctx context.Context, bucket string, writes []ObjectWrite) error

	// RemoveObject deletes the referenced object. Missing objects are not an error.
	RemoveObject(ctx context.Context, ref ObjectReference) error

	// RemoveObjects deletes the named objects. Missing objects are not an error.
	RemoveObjects(ctx context.Context, bucket string, names []string) error
}

// IsNotFound returns true if err reports a missing object.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrObjectNotFound)
}
