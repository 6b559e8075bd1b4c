// Package recognize wraps external text-recognition engines behind a narrow
// capability interface so the OCR provider is swappable without touching the
// extraction, fusion or hashing stages.
package recognize

import (
	"context"
	"image"
	"strings"

	"github.com/certward/certificate-pipeline/pkg/certificate"
)

// CharWhitelist is the closed character set the engine should recognize.
// Certificates are alphanumeric-dominated; restricting the alphabet
// materially reduces misreads of decorative borders and seals.
const CharWhitelist = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz.,:-/% "

// MinTokenConfidence is the filtering threshold: tokens at or below this
// confidence are treated as recognition noise and discarded entirely.
const MinTokenConfidence = 30.0

// Engine is the text-recognition capability contract: one cleaned raster in,
// recognized tokens out, in engine-internal reading order.
type Engine interface {
	Name() string
	Recognize(ctx context.Context, img image.Image) ([]certificate.Token, error)
}

// Adapter applies the pipeline's filtering policy on top of an Engine and
// exposes the concatenated raw text alongside the surviving tokens.
type Adapter struct {
	engine Engine
}

// NewAdapter wraps an engine with the confidence-filtering policy
func NewAdapter(engine Engine) *Adapter {
	return &Adapter{engine: engine}
}

// Name reports the underlying engine name
func (a *Adapter) Name() string { return a.engine.Name() }

// Recognize runs the engine and filters its output to tokens with confidence
// strictly greater than MinTokenConfidence and non-blank text. Raw text is
// the surviving token texts joined by single spaces in reading order.
func (a *Adapter) Recognize(ctx context.Context, img image.Image) ([]certificate.Token, string, error) {
	all, err := a.engine.Recognize(ctx, img)
	if err != nil {
		return nil, "", err
	}
	tokens := make([]certificate.Token, 0, len(all))
	texts := make([]string, 0, len(all))
	for _, tok := range all {
		if tok.Confidence <= MinTokenConfidence {
			continue
		}
		text := strings.TrimSpace(tok.Text)
		if text == "" {
			continue
		}
		tok.Text = text
		tokens = append(tokens, tok)
		texts = append(texts, text)
	}
	return tokens, strings.Join(texts, " "), nil
}
