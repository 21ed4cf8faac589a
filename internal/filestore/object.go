package filestore

import (
	"io"
	"time"
)

// ObjectInfo describes a stored configuration object.
type ObjectInfo struct {
	Key  string
	Size int64

	ContentType string

	// ETag lets callers skip reloading an unchanged document.
	ETag string

	LastModified time.Time
}

// Object is a streaming handle to an object's content.
type Object interface {
	io.ReadCloser

	Info() *ObjectInfo
}
