// Package blobstore is the port onto the object store backing message
// attachments: chunked upload with progress reporting, durable URL
// resolution, and deletion.
package blobstore

import (
	"context"
	"io"
)

// ProgressFunc receives a 0–100 percentage at every chunk boundary.
type ProgressFunc func(percent float64)

type Store interface {
	// Put streams the blob under key and returns its durable retrieval URL.
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string, onProgress ProgressFunc) (string, error)
	// URL resolves the durable retrieval URL for an existing blob.
	URL(ctx context.Context, key string) (string, error)
	Delete(ctx context.Context, key string) error
}
