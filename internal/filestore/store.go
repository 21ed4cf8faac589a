// Package filestore is the read-only object storage the broker fetches
// remote configuration documents from.
//
// Providers implement Store; callers depend only on this package.
//
// Usage:
//
//	cfg := filestore.DefaultConfig("localhost:9000", "minioadmin", "minioadmin")
//	store, err := minio.New(ctx, cfg)
//	if err != nil { ... }
//	defer store.Close()
//
//	data, info, err := filestore.ReadAll(ctx, store, "dbbroker", "pooling.yaml", filestore.MaxDocumentSize)
package filestore

import (
	"context"
	"io"

	"github.com/koustreak/dbbroker/internal/errs"
)

// MaxDocumentSize is the largest configuration object ReadAll accepts by
// default.
const MaxDocumentSize = 1 << 20

// Store is a read-only view of an object storage backend.
type Store interface {
	// Ping verifies the backend is reachable with the configured credentials.
	Ping(ctx context.Context) error

	Close() error

	// StatObject returns metadata for the object at key without downloading it.
	StatObject(ctx context.Context, bucket, key string) (*ObjectInfo, error)

	// GetObject opens a streaming handle to the object at key. The caller
	// must Close it.
	GetObject(ctx context.Context, bucket, key string) (Object, error)
}

// ReadAll downloads the object at key. Objects larger than limit are
// rejected rather than truncated.
func ReadAll(ctx context.Context, s Store, bucket, key string, limit int64) ([]byte, *ObjectInfo, error) {
	if bucket == "" || key == "" {
		return nil, nil, errs.New(errs.ErrKindInvalidInput, "bucket and key are required")
	}

	obj, err := s.GetObject(ctx, bucket, key)
	if err != nil {
		return nil, nil, err
	}
	defer obj.Close()

	data, err := io.ReadAll(io.LimitReader(obj, limit+1))
	if err != nil {
		return nil, nil, errs.Wrap(errs.ErrKindConnectionFailed, "failed to read object "+bucket+"/"+key, err)
	}
	if int64(len(data)) > limit {
		return nil, nil, errs.Newf(errs.ErrKindInvalidInput, "object %s/%s exceeds %d bytes", bucket, key, limit)
	}
	return data, obj.Info(), nil
}
