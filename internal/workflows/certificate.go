package workflows

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"

	"github.com/certward/certificate-pipeline/internal/store"
	"github.com/certward/certificate-pipeline/pkg/certificate"
)

// ScanReader reads certificate scans by key
type ScanReader interface {
	GetReader(ctx context.Context, key string) (io.ReadCloser, error)
	Exists(ctx context.Context, key string) (bool, error)
}

// Processor runs the extraction-and-fingerprinting pipeline
type Processor interface {
	Process(ctx context.Context, data []byte, filename, uploadedBy string) certificate.ProcessingResult
}

// CertificateSaver persists processed certificates
type CertificateSaver interface {
	Save(ctx context.Context, rec *store.Record) error
}

// SightingTracker records repeat submissions of a fingerprint
type SightingTracker interface {
	Record(ctx context.Context, fingerprint, filename, uploadedBy string) (int, error)
}

// CertificateWorkflow processes a stored scan and persists the outcome
type CertificateWorkflow struct {
	scans     ScanReader
	processor Processor
	certs     CertificateSaver
	sightings SightingTracker
}

// NewCertificateWorkflow creates a certificate processing workflow
func NewCertificateWorkflow(scans ScanReader, processor Processor, certs CertificateSaver, sightings SightingTracker) *CertificateWorkflow {
	return &CertificateWorkflow{
		scans:     scans,
		processor: processor,
		certs:     certs,
		sightings: sightings,
	}
}

// Name returns the workflow name
func (w *CertificateWorkflow) Name() string {
	return "CertificateWorkflow"
}

// Execute runs the certificate processing workflow
func (w *CertificateWorkflow) Execute(wctx *WorkflowContext) (*WorkflowResult, error) {
	log.Printf("[%s] Starting certificate workflow for content_key=%s", wctx.RunID, wctx.Request.ContentKey)

	// Step 1: Validate request
	if wctx.Request.ContentKey == "" {
		return &WorkflowResult{
			Success: false,
			Error:   fmt.Errorf("%w: content_key is required", ErrInvalidRequest),
		}, ErrInvalidRequest
	}

	// Step 2: Check if the scan exists
	exists, err := w.scans.Exists(wctx.Ctx, wctx.Request.ContentKey)
	if err != nil {
		log.Printf("[%s] Failed to check scan existence: %v", wctx.RunID, err)
		return &WorkflowResult{
			Success: false,
			Error:   fmt.Errorf("scan check failed: %w", err),
		}, err
	}
	if !exists {
		log.Printf("[%s] Scan not found: %s", wctx.RunID, wctx.Request.ContentKey)
		return &WorkflowResult{
			Success: false,
			Error:   fmt.Errorf("scan not found: %s", wctx.Request.ContentKey),
		}, nil
	}

	// Step 3: Download the scan
	reader, err := w.scans.GetReader(wctx.Ctx, wctx.Request.ContentKey)
	if err != nil {
		log.Printf("[%s] Failed to read scan: %v", wctx.RunID, err)
		return &WorkflowResult{
			Success: false,
			Error:   fmt.Errorf("scan read failed: %w", err),
		}, err
	}
	defer reader.Close()

	data, err := io.ReadAll(reader)
	if err != nil {
		log.Printf("[%s] Failed to read scan data: %v", wctx.RunID, err)
		return &WorkflowResult{
			Success: false,
			Error:   fmt.Errorf("scan read failed: %w", err),
		}, err
	}
	log.Printf("[%s] Scan downloaded, %d bytes", wctx.RunID, len(data))

	// Step 4: Run the pipeline
	result := w.processor.Process(wctx.Ctx, data, wctx.Request.Filename, wctx.Request.UploadedBy)
	if !result.Success {
		log.Printf("[%s] Pipeline failed: %s", wctx.RunID, result.Error)
		return &WorkflowResult{
			Success: false,
			Error:   fmt.Errorf("pipeline failed: %s", result.Error),
		}, nil
	}

	// Step 5: Record the sighting (non-fatal on error)
	seenCount, err := w.sightings.Record(wctx.Ctx, result.Fingerprint, result.Filename, result.UploadedBy)
	if err != nil {
		log.Printf("[%s] Failed to record sighting: %v", wctx.RunID, err)
		// Continue anyway - the store's unique constraint still dedupes
	}

	// Step 6: Persist the certificate
	rec := &store.Record{
		Fingerprint:           result.Fingerprint,
		Fields:                result.Fields,
		Confidence:            result.OverallConfidence,
		RecognitionConfidence: result.RecognitionConfidence,
		LayoutConfidence:      result.LayoutConfidence,
		EnhancedExtraction:    result.EnhancedExtraction,
		RawText:               result.RawText,
		Filename:              result.Filename,
		FileSize:              int64(len(data)),
		UploadedBy:            result.UploadedBy,
		Status:                certificate.StatusFor(result.OverallConfidence),
		ProcessingTime:        result.ElapsedSeconds,
	}
	duplicate := false
	if err := w.certs.Save(wctx.Ctx, rec); err != nil {
		if !errors.Is(err, store.ErrDuplicate) {
			log.Printf("[%s] Failed to save certificate: %v", wctx.RunID, err)
			return &WorkflowResult{
				Success: false,
				Error:   fmt.Errorf("save failed: %w", err),
			}, err
		}
		duplicate = true
		log.Printf("[%s] Duplicate fingerprint %s (seen %d times)", wctx.RunID, result.Fingerprint, seenCount)
	}

	log.Printf("[%s] Certificate workflow completed (status=%s, duplicate=%t)", wctx.RunID, rec.Status, duplicate)

	return &WorkflowResult{
		Success: true,
		Outputs: map[string]interface{}{
			"fingerprint":      result.Fingerprint,
			"status":           rec.Status,
			"confidence":       result.OverallConfidence,
			"duplicate":        duplicate,
			"dedupe_seen":      seenCount,
			"extracted_fields": len(result.Fields),
		},
	}, nil
}
