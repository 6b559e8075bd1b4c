// Package pipeline sequences the certificate processing stages and owns
// their error boundary. Each run is a single synchronous computation; runs
// share nothing but the recognition and layout capabilities, which must be
// safe for concurrent invocation.
package pipeline

import (
	"context"
	"log"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/certward/certificate-pipeline/internal/extract"
	"github.com/certward/certificate-pipeline/internal/fingerprint"
	"github.com/certward/certificate-pipeline/internal/layout"
	"github.com/certward/certificate-pipeline/internal/normalize"
	"github.com/certward/certificate-pipeline/internal/recognize"
	"github.com/certward/certificate-pipeline/pkg/certificate"
)

// Stage names one step of the processing state machine
type Stage string

const (
	StageDecoding      Stage = "decoding"
	StagePreprocessing Stage = "preprocessing"
	StageRecognizing   Stage = "recognizing"
	StageExtracting    Stage = "extracting"
	StageLayoutScoring Stage = "layout_scoring"
	StageFusing        Stage = "fusing"
	StageHashing       Stage = "hashing"
	StageDone          Stage = "done"
	StageFailed        Stage = "failed"
)

// Fusion weights. Fixed policy, not configurable.
const (
	recognitionWeight = 0.6
	layoutWeight      = 0.4
)

// Processor runs the extraction-and-fingerprinting pipeline
type Processor struct {
	recognizer *recognize.Adapter
	layout     *layout.Adapter
}

// New builds a processor over the given recognition engine and layout scorer
func New(engine recognize.Engine, scorer layout.Scorer) *Processor {
	return &Processor{
		recognizer: recognize.NewAdapter(engine),
		layout:     layout.NewAdapter(scorer),
	}
}

// Process runs one certificate through the full pipeline:
// decode -> preprocess -> recognize -> extract -> layout score -> fuse ->
// hash. A decode failure is the sole fatal error; every later stage degrades
// gracefully into the result instead of aborting. The returned result is
// complete on return and never mutated afterward.
func (p *Processor) Process(ctx context.Context, data []byte, filename, uploadedBy string) certificate.ProcessingResult {
	runID := uuid.New().String()
	start := time.Now()
	stage := StageDecoding

	log.Printf("[%s] Starting certificate pipeline (file=%s, %d bytes)", runID, filename, len(data))
	log.Printf("[%s] Stage %s", runID, stage)

	img, err := normalize.Decode(data)
	if err != nil {
		log.Printf("[%s] Stage %s: decode failed: %v", runID, StageFailed, err)
		return certificate.ProcessingResult{
			Success:    false,
			Error:      err.Error(),
			Filename:   filename,
			UploadedBy: uploadedBy,
			Timestamp:  time.Now(),
		}
	}

	stage = StagePreprocessing
	log.Printf("[%s] Stage %s", runID, stage)
	cleaned := normalize.Clean(img)

	stage = StageRecognizing
	log.Printf("[%s] Stage %s (engine=%s)", runID, stage, p.recognizer.Name())
	tokens, rawText, err := p.recognizer.Recognize(ctx, cleaned)
	if err != nil {
		// Recognition failure degrades to an empty token sequence; the run
		// completes with zero recognition confidence.
		log.Printf("[%s] Recognition failed, continuing with no tokens: %v", runID, err)
		tokens, rawText = nil, ""
	}
	log.Printf("[%s] Recognized %d tokens", runID, len(tokens))

	stage = StageExtracting
	log.Printf("[%s] Stage %s", runID, stage)
	fields := extract.Fields(rawText)
	log.Printf("[%s] Extracted %d of %d fields", runID, len(fields), len(certificate.FieldNames()))

	stage = StageLayoutScoring
	log.Printf("[%s] Stage %s", runID, stage)
	layoutConf, enhanced := p.layout.Score(ctx, img, tokens)

	stage = StageFusing
	recognitionConf := MeanConfidence(tokens)
	overall := Fuse(recognitionConf, layoutConf)
	log.Printf("[%s] Stage %s: recognition=%.2f layout=%.2f enhanced=%t", runID, stage, recognitionConf, layoutConf, enhanced)

	stage = StageHashing
	log.Printf("[%s] Stage %s", runID, stage)
	fp := fingerprint.Fingerprint(fields)
	elapsed := time.Since(start).Seconds()

	stage = StageDone
	log.Printf("[%s] Stage %s: confidence=%.2f fingerprint=%s (%.3fs)", runID, stage, overall, fp, elapsed)

	return certificate.ProcessingResult{
		Success:               true,
		Fields:                fields,
		Fingerprint:           fp,
		OverallConfidence:     overall,
		RecognitionConfidence: round2(recognitionConf),
		LayoutConfidence:      round2(layoutConf),
		EnhancedExtraction:    enhanced,
		ElapsedSeconds:        elapsed,
		RawText:               rawText,
		Filename:              filename,
		UploadedBy:            uploadedBy,
		Timestamp:             time.Now(),
	}
}

// MeanConfidence averages per-token confidences. An empty token sequence is
// defined as confidence 0, never a division fault.
func MeanConfidence(tokens []certificate.Token) float64 {
	if len(tokens) == 0 {
		return 0
	}
	var sum float64
	for _, tok := range tokens {
		sum += tok.Confidence
	}
	return sum / float64(len(tokens))
}

// Fuse blends recognition and layout confidence with the fixed 0.6/0.4
// weights, rounded to two decimal places.
func Fuse(recognitionConf, layoutConf float64) float64 {
	return round2(recognitionConf*recognitionWeight + layoutConf*layoutWeight)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
