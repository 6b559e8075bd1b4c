package layout

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"image"
	"image/png"
	"net/http"
	"time"

	"github.com/certward/certificate-pipeline/pkg/certificate"
)

// HTTPScorer calls a remote layout-classifier service. Failures surface as
// errors and are converted to the fallback confidence by the Adapter.
type HTTPScorer struct {
	baseURL    string
	httpClient *http.Client
}

// NewHTTPScorer creates a scorer backed by the layout service at baseURL
func NewHTTPScorer(baseURL string) *HTTPScorer {
	return &HTTPScorer{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// Name identifies the scorer
func (s *HTTPScorer) Name() string { return "layout-api" }

type scoreRequest struct {
	ImagePNG string              `json:"image_png"`
	Tokens   []certificate.Token `json:"tokens"`
}

type scoreResponse struct {
	LayoutConfidence float64 `json:"layout_confidence"`
}

// Score posts the original image and recognized tokens to the layout service
// and returns its confidence score.
func (s *HTTPScorer) Score(ctx context.Context, img image.Image, tokens []certificate.Token) (float64, error) {
	var imgBuf bytes.Buffer
	if err := png.Encode(&imgBuf, img); err != nil {
		return 0, fmt.Errorf("encode image: %w", err)
	}

	body, err := json.Marshal(scoreRequest{
		ImagePNG: base64.StdEncoding.EncodeToString(imgBuf.Bytes()),
		Tokens:   tokens,
	})
	if err != nil {
		return 0, fmt.Errorf("marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/v1/layout-score", s.baseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return 0, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("layout score request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("layout score failed with status %d", resp.StatusCode)
	}

	var scored scoreResponse
	if err := json.NewDecoder(resp.Body).Decode(&scored); err != nil {
		return 0, fmt.Errorf("decode response: %w", err)
	}
	return scored.LayoutConfidence, nil
}
