// Package layout wraps external layout-aware classifiers behind a capability
// interface and applies the pipeline's degradation policy: a failing scorer
// never fails the run.
package layout

import (
	"context"
	"image"
	"log"

	"github.com/certward/certificate-pipeline/pkg/certificate"
)

const (
	// FallbackConfidence is substituted when the scorer fails
	FallbackConfidence = 70.0
	// MinConfidence and MaxConfidence bound scorer output before use,
	// defending against out-of-range or degenerate values.
	MinConfidence = 60.0
	MaxConfidence = 95.0
)

// Scorer is the layout-scoring capability: given the original image and the
// recognized tokens, produce a single structural-plausibility score in 0-100.
type Scorer interface {
	Name() string
	Score(ctx context.Context, img image.Image, tokens []certificate.Token) (float64, error)
}

// Adapter applies clamping and the fixed fallback on top of a Scorer
type Adapter struct {
	scorer Scorer
}

// NewAdapter wraps a scorer with the degradation policy
func NewAdapter(scorer Scorer) *Adapter {
	return &Adapter{scorer: scorer}
}

// Score invokes the scorer and returns the layout confidence plus whether
// enhanced extraction was available. On scorer failure it substitutes the
// fixed fallback confidence and reports enhanced=false so downstream
// consumers can tell degraded runs from full-confidence ones. On success the
// score is clamped into [MinConfidence, MaxConfidence].
func (a *Adapter) Score(ctx context.Context, img image.Image, tokens []certificate.Token) (score float64, enhanced bool) {
	s, err := a.scorer.Score(ctx, img, tokens)
	if err != nil {
		log.Printf("layout scorer %s failed, using fallback confidence: %v", a.scorer.Name(), err)
		return FallbackConfidence, false
	}
	if s < MinConfidence {
		s = MinConfidence
	}
	if s > MaxConfidence {
		s = MaxConfidence
	}
	return s, true
}

// HeuristicScorer is the built-in scorer: it reads layout plausibility off
// the mean token confidence. It stands in for a layout-aware classifier in
// deployments that do not run one.
type HeuristicScorer struct{}

// Name identifies the scorer
func (HeuristicScorer) Name() string { return "heuristic" }

// Score returns the mean token confidence, or MinConfidence when the token
// sequence is empty.
func (HeuristicScorer) Score(ctx context.Context, img image.Image, tokens []certificate.Token) (float64, error) {
	if len(tokens) == 0 {
		return MinConfidence, nil
	}
	var sum float64
	for _, tok := range tokens {
		sum += tok.Confidence
	}
	return sum / float64(len(tokens)), nil
}
