// Package storage abstracts the remote asset store that holds uploaded
// product images.
package storage

import (
	"context"
	"io"
)

// Storage defines the interface for object store operations.
type Storage interface {
	// Upload stores an object and returns the key it was stored under and
	// its public URL. Backends may assign their own key.
	Upload(ctx context.Context, input *UploadInput) (*UploadResult, error)

	// Delete removes an object by its key.
	Delete(ctx context.Context, key string) error

	// GetURL returns the public URL for the given key.
	GetURL(ctx context.Context, key string) (string, error)

	// Open streams the object bytes. The caller closes Object.Body.
	Open(ctx context.Context, key string) (*Object, error)
}

// UploadInput holds the parameters for uploading an object.
type UploadInput struct {
	Key         string
	ContentType string
	Size        int64
	Data        io.Reader
}

// UploadResult holds the result of a successful upload.
type UploadResult struct {
	Key string
	URL string
}

// Object is an opened stored object.
type Object struct {
	Body        io.ReadCloser
	ContentType string
	Size        int64
}
