package storage

import (
	"context"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"strings"
)

// FilesystemStorage implements storage.Reader over a local scan directory
type FilesystemStorage struct {
	baseDir string
}

// NewFilesystemStorage creates a filesystem-backed scan reader
func NewFilesystemStorage(baseDir string) (*FilesystemStorage, error) {
	// Ensure base directory exists
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create scan directory: %w", err)
	}

	return &FilesystemStorage{
		baseDir: baseDir,
	}, nil
}

// resolve maps a scan key to a path inside the base directory. Keys that
// would escape the base directory are rejected.
func (fs *FilesystemStorage) resolve(key string) (string, error) {
	cleaned := filepath.Clean(key)
	if filepath.IsAbs(cleaned) || cleaned == ".." || strings.HasPrefix(cleaned, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("invalid scan key: %s", key)
	}
	return filepath.Join(fs.baseDir, cleaned), nil
}

// GetReader returns a reader for the scan at the given key
func (fs *FilesystemStorage) GetReader(ctx context.Context, key string) (io.ReadCloser, error) {
	path, err := fs.resolve(key)
	if err != nil {
		return nil, err
	}

	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("scan not found: %s", key)
		}
		return nil, fmt.Errorf("failed to open scan: %w", err)
	}

	return file, nil
}

// Exists checks if a scan exists at the given key
func (fs *FilesystemStorage) Exists(ctx context.Context, key string) (bool, error) {
	path, err := fs.resolve(key)
	if err != nil {
		return false, err
	}

	_, err = os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to stat scan: %w", err)
	}

	return true, nil
}

// GetMetadata returns metadata for the scan at the given key. ContentType is
// inferred from the key's extension.
func (fs *FilesystemStorage) GetMetadata(ctx context.Context, key string) (*Metadata, error) {
	path, err := fs.resolve(key)
	if err != nil {
		return nil, err
	}

	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("scan not found: %s", key)
		}
		return nil, fmt.Errorf("failed to stat scan: %w", err)
	}

	return &Metadata{
		Size:        info.Size(),
		ContentType: mime.TypeByExtension(filepath.Ext(key)),
	}, nil
}
