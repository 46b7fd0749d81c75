package storage

import (
	"context"
	"io"
)

// ObjectStorage defines the object operations the raw archive needs
type ObjectStorage interface {
	// Upload writes an object to storage
	Upload(ctx context.Context, key string, reader io.Reader, size int64, contentType string) error
}
