package pipeline

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/png"
	"testing"

	"github.com/certward/certificate-pipeline/internal/layout"
	"github.com/certward/certificate-pipeline/pkg/certificate"
)

type fakeEngine struct {
	tokens []certificate.Token
	err    error
}

func (f *fakeEngine) Name() string { return "fake" }

func (f *fakeEngine) Recognize(ctx context.Context, img image.Image) ([]certificate.Token, error) {
	return f.tokens, f.err
}

type fakeScorer struct {
	score float64
	err   error
}

func (f *fakeScorer) Name() string { return "fake-scorer" }

func (f *fakeScorer) Score(ctx context.Context, img image.Image, tokens []certificate.Token) (float64, error) {
	return f.score, f.err
}

func pngBytes(t *testing.T) []byte {
	t.Helper()
	img := image.NewGray(image.Rect(0, 0, 16, 16))
	for i := range img.Pix {
		img.Pix[i] = 255
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

func token(text string, conf float64) certificate.Token {
	return certificate.Token{Text: text, Confidence: conf}
}

func TestProcessSuccess(t *testing.T) {
	engine := &fakeEngine{tokens: []certificate.Token{
		token("Name:", 90),
		token("John", 88),
		token("Smith", 86),
		token("Marks:", 92),
		token("85%", 95),
	}}
	p := New(engine, &fakeScorer{score: 80})

	result := p.Process(context.Background(), pngBytes(t), "cert.png", "alice")
	if !result.Success {
		t.Fatalf("Process failed: %s", result.Error)
	}
	if result.Fingerprint == "" {
		t.Fatalf("fingerprint missing on success")
	}
	if result.RawText != "Name: John Smith Marks: 85%" {
		t.Fatalf("rawText = %q", result.RawText)
	}
	if got := result.Fields[certificate.FieldMarks]; got != "85%" {
		t.Fatalf("marks = %q", got)
	}
	// recognition mean = (90+88+86+92+95)/5 = 90.2, overall = 90.2*0.6 + 80*0.4
	if result.RecognitionConfidence != 90.2 {
		t.Fatalf("recognition confidence = %v", result.RecognitionConfidence)
	}
	if result.OverallConfidence != 86.12 {
		t.Fatalf("overall confidence = %v", result.OverallConfidence)
	}
	if !result.EnhancedExtraction {
		t.Fatalf("enhanced extraction should be true on scorer success")
	}
	if result.ElapsedSeconds < 0 {
		t.Fatalf("elapsed = %v", result.ElapsedSeconds)
	}
	if result.Filename != "cert.png" || result.UploadedBy != "alice" {
		t.Fatalf("caller metadata not carried: %+v", result)
	}
}

func TestProcessDecodeFailure(t *testing.T) {
	p := New(&fakeEngine{}, &fakeScorer{score: 80})

	result := p.Process(context.Background(), []byte("not an image"), "bad.bin", "")
	if result.Success {
		t.Fatalf("expected failure for undecodable input")
	}
	if result.Fingerprint != "" {
		t.Fatalf("fingerprint must be absent on failure")
	}
	if result.Error == "" {
		t.Fatalf("error message must be populated")
	}
}

func TestProcessDegradesOnScorerFailure(t *testing.T) {
	engine := &fakeEngine{tokens: []certificate.Token{token("word", 50)}}
	p := New(engine, &fakeScorer{err: errors.New("model offline")})

	result := p.Process(context.Background(), pngBytes(t), "", "")
	if !result.Success {
		t.Fatalf("scorer failure must not fail the run: %s", result.Error)
	}
	if result.LayoutConfidence != layout.FallbackConfidence {
		t.Fatalf("layout confidence = %v, want fallback %v", result.LayoutConfidence, layout.FallbackConfidence)
	}
	if result.EnhancedExtraction {
		t.Fatalf("degraded run must report enhanced_extraction=false")
	}
}

func TestProcessDegradesOnRecognitionFailure(t *testing.T) {
	p := New(&fakeEngine{err: errors.New("tesseract crashed")}, &fakeScorer{score: 70})

	result := p.Process(context.Background(), pngBytes(t), "", "")
	if !result.Success {
		t.Fatalf("recognition failure must not fail the run: %s", result.Error)
	}
	if result.RecognitionConfidence != 0 {
		t.Fatalf("recognition confidence = %v, want 0", result.RecognitionConfidence)
	}
	if result.RawText != "" {
		t.Fatalf("rawText = %q, want empty", result.RawText)
	}
	if result.Fingerprint == "" {
		t.Fatalf("degraded run still fingerprints its (empty) fields")
	}
}

func TestProcessZeroTokens(t *testing.T) {
	p := New(&fakeEngine{}, &fakeScorer{score: 75})

	result := p.Process(context.Background(), pngBytes(t), "", "")
	if !result.Success {
		t.Fatalf("zero tokens must not fail the run")
	}
	if result.RecognitionConfidence != 0 {
		t.Fatalf("recognition confidence = %v, want 0", result.RecognitionConfidence)
	}
	// overall = 0*0.6 + 75*0.4
	if result.OverallConfidence != 30 {
		t.Fatalf("overall confidence = %v, want 30", result.OverallConfidence)
	}
}

func TestMeanConfidenceEmpty(t *testing.T) {
	if got := MeanConfidence(nil); got != 0 {
		t.Fatalf("MeanConfidence(nil) = %v, want 0", got)
	}
}

func TestFuseBounds(t *testing.T) {
	cases := []struct{ rec, lay float64 }{
		{0, 0}, {100, 100}, {0, 100}, {100, 0}, {55.55, 72.3},
	}
	for _, c := range cases {
		got := Fuse(c.rec, c.lay)
		if got < 0 || got > 100 {
			t.Fatalf("Fuse(%v, %v) = %v out of [0,100]", c.rec, c.lay, got)
		}
	}
	if Fuse(100, 100) != 100 {
		t.Fatalf("Fuse(100, 100) = %v", Fuse(100, 100))
	}
	if Fuse(50, 100) != 70 {
		t.Fatalf("Fuse(50, 100) = %v, want 70", Fuse(50, 100))
	}
}

func TestStatusBoundary(t *testing.T) {
	if got := certificate.StatusFor(80.00); got != certificate.StatusPending {
		t.Fatalf("StatusFor(80.00) = %s, want pending", got)
	}
	if got := certificate.StatusFor(80.01); got != certificate.StatusVerified {
		t.Fatalf("StatusFor(80.01) = %s, want verified", got)
	}
}
