package storage

import (
	"context"
	"fmt"
	"io"
	"net/http"
)

// HTTPReader provides read access to certificate scans served by a content
// service.
type HTTPReader struct {
	baseURL    string
	httpClient *http.Client
}

// NewHTTPReader creates a new HTTP-based scan reader
func NewHTTPReader(baseURL string) *HTTPReader {
	return &HTTPReader{
		baseURL:    baseURL,
		httpClient: &http.Client{},
	}
}

// GetReader returns a reader for the scan at the given key
func (r *HTTPReader) GetReader(ctx context.Context, key string) (io.ReadCloser, error) {
	url := fmt.Sprintf("%s/v1/scans/%s", r.baseURL, key)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to download scan: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("download failed with status %d", resp.StatusCode)
	}

	return resp.Body, nil
}

// Exists checks if a scan exists at the given key
func (r *HTTPReader) Exists(ctx context.Context, key string) (bool, error) {
	url := fmt.Sprintf("%s/v1/scans/%s", r.baseURL, key)

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
	if err != nil {
		return false, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return false, fmt.Errorf("failed to check scan: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusOK {
		return true, nil
	}
	if resp.StatusCode == http.StatusNotFound {
		return false, nil
	}

	return false, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
}
