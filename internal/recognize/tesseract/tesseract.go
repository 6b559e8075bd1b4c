// Package tesseract implements the recognition capability with the gosseract
// client. Tesseract handles are not safe for concurrent use, so the engine
// keeps a fixed pool of clients and serializes access through it instead of
// sharing one mutable handle.
package tesseract

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"

	"github.com/otiai10/gosseract/v2"

	"github.com/certward/certificate-pipeline/internal/recognize"
	"github.com/certward/certificate-pipeline/pkg/certificate"
)

// Engine implements recognize.Engine using a pool of gosseract clients
type Engine struct {
	pool chan *gosseract.Client
}

// New constructs a Tesseract-backed engine with poolSize pooled clients.
// Each client is configured with the certificate character whitelist and
// single-block page segmentation.
func New(poolSize int) (*Engine, error) {
	if poolSize < 1 {
		poolSize = 1
	}
	pool := make(chan *gosseract.Client, poolSize)
	for i := 0; i < poolSize; i++ {
		client := gosseract.NewClient()
		if err := client.SetWhitelist(recognize.CharWhitelist); err != nil {
			client.Close()
			drain(pool)
			return nil, fmt.Errorf("set whitelist: %w", err)
		}
		if err := client.SetPageSegMode(gosseract.PSM_SINGLE_BLOCK); err != nil {
			client.Close()
			drain(pool)
			return nil, fmt.Errorf("set page seg mode: %w", err)
		}
		pool <- client
	}
	return &Engine{pool: pool}, nil
}

func drain(pool chan *gosseract.Client) {
	for {
		select {
		case c := <-pool:
			c.Close()
		default:
			return
		}
	}
}

// Name identifies the engine
func (e *Engine) Name() string { return "tesseract" }

// Recognize runs word-level OCR over the raster and returns one token per
// recognized word with its confidence and bounding box.
func (e *Engine) Recognize(ctx context.Context, img image.Image) ([]certificate.Token, error) {
	var client *gosseract.Client
	select {
	case client = <-e.pool:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	defer func() { e.pool <- client }()

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode raster: %w", err)
	}
	if err := client.SetImageFromBytes(buf.Bytes()); err != nil {
		return nil, fmt.Errorf("set image: %w", err)
	}
	boxes, err := client.GetBoundingBoxes(gosseract.RIL_WORD)
	if err != nil {
		return nil, fmt.Errorf("get bounding boxes: %w", err)
	}

	tokens := make([]certificate.Token, 0, len(boxes))
	for _, b := range boxes {
		tokens = append(tokens, certificate.Token{
			Text:       b.Word,
			Confidence: b.Confidence,
			BBox: certificate.BBox{
				X:      b.Box.Min.X,
				Y:      b.Box.Min.Y,
				Width:  b.Box.Dx(),
				Height: b.Box.Dy(),
			},
		})
	}
	return tokens, nil
}

// Close releases all pooled clients
func (e *Engine) Close() error {
	var firstErr error
	for i := 0; i < cap(e.pool); i++ {
		client := <-e.pool
		if err := client.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
