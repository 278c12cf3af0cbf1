// Package filestore defines the object storage interface used to publish
// query result exports.
//
// Usage:
//
//	cfg := filestore.DefaultConfig("localhost:9000", "minioadmin", "minioadmin")
//	store, err := minio.New(ctx, cfg)
//	if err != nil { ... }
//	defer store.Close()
//
//	info, err := store.PutObject(ctx, "nlsql-exports", key, body, size, "text/csv")
package filestore

import (
	"context"
	"io"
	"time"
)

// Store is implemented by object storage providers.
type Store interface {
	// Ping verifies the storage backend is reachable.
	Ping(ctx context.Context) error

	// Close releases any held resources.
	Close() error

	// EnsureBucket creates bucket if it does not exist yet.
	EnsureBucket(ctx context.Context, bucket string) error

	// PutObject uploads size bytes from r to key inside bucket. A size of
	// -1 streams until EOF.
	PutObject(ctx context.Context, bucket, key string, r io.Reader, size int64, contentType string) (*ObjectInfo, error)

	// StatObject returns metadata for the object at key inside bucket.
	StatObject(ctx context.Context, bucket, key string) (*ObjectInfo, error)

	// ListObjects returns the objects in bucket that match opts.
	ListObjects(ctx context.Context, bucket string, opts ListOptions) ([]ObjectInfo, error)

	// PresignGetURL returns a time-limited download URL for the object.
	PresignGetURL(ctx context.Context, bucket, key string, ttl time.Duration) (string, error)
}
