package storage

import (
	"context"
	"io"
)

// Reader provides read access to stored certificate scans
type Reader interface {
	// GetReader returns a reader for the scan at the given key
	GetReader(ctx context.Context, key string) (io.ReadCloser, error)

	// Exists checks if a scan exists at the given key
	Exists(ctx context.Context, key string) (bool, error)
}

// Metadata contains scan object metadata
type Metadata struct {
	Size        int64
	ContentType string
	ETag        string
}
