package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/certward/certificate-pipeline/internal/metrics"
	"github.com/certward/certificate-pipeline/internal/store"
	"github.com/certward/certificate-pipeline/pkg/certificate"
)

// DefaultMaxUploadBytes caps multipart uploads when no limit is configured
const DefaultMaxUploadBytes = 10 << 20

// DefaultListLimit is used when GET /v1/certificates has no limit parameter
const DefaultListLimit = 50

// MaxListLimit caps the limit query parameter
const MaxListLimit = 200

// Processor runs the extraction pipeline on raw scan bytes
type Processor interface {
	Process(ctx context.Context, data []byte, filename, uploadedBy string) certificate.ProcessingResult
}

// CertificateStore is the persistence surface the handlers need
type CertificateStore interface {
	Save(ctx context.Context, rec *store.Record) error
	VerifyByFingerprint(ctx context.Context, fingerprint string) (*store.Record, error)
	GetByFingerprint(ctx context.Context, fingerprint string) (*store.Record, error)
	SearchByCertificateID(ctx context.Context, certificateID string) (*store.Record, error)
	List(ctx context.Context, status string, limit int) ([]store.Record, error)
	GetStats(ctx context.Context) (*store.Stats, error)
}

// SightingTracker records every time a fingerprint is submitted
type SightingTracker interface {
	Record(ctx context.Context, fingerprint, filename, uploadedBy string) (int, error)
}

// Handler serves the certificate HTTP API
type Handler struct {
	processor      Processor
	certs          CertificateStore
	sightings      SightingTracker
	maxUploadBytes int64
}

// New creates a handler. A nil sightings tracker disables sighting counts.
func New(processor Processor, certs CertificateStore, sightings SightingTracker, maxUploadBytes int64) *Handler {
	if maxUploadBytes <= 0 {
		maxUploadBytes = DefaultMaxUploadBytes
	}
	return &Handler{
		processor:      processor,
		certs:          certs,
		sightings:      sightings,
		maxUploadBytes: maxUploadBytes,
	}
}

// Routes mounts the API on a chi router
func (h *Handler) Routes(r chi.Router) {
	r.Post("/v1/certificates", h.HandleUpload)
	r.Post("/v1/verify", h.HandleVerify)
	r.Get("/v1/certificates", h.HandleList)
	r.Get("/v1/certificates/{certificateID}", h.HandleSearch)
	r.Get("/v1/stats", h.HandleStats)
	r.Get("/health", h.HandleHealth)
}

// uploadResponse wraps a pipeline run for the upload endpoint
type uploadResponse struct {
	Result      certificate.ProcessingResult `json:"result"`
	Record      *store.Record                `json:"record,omitempty"`
	Duplicate   bool                         `json:"duplicate"`
	SeenCount   int                          `json:"seen_count,omitempty"`
	Fingerprint string                       `json:"fingerprint,omitempty"`
}

// HandleUpload handles POST /v1/certificates - runs the pipeline on an
// uploaded scan and persists the result
func (h *Handler) HandleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)
	if err := r.ParseMultipartForm(h.maxUploadBytes); err != nil {
		http.Error(w, fmt.Sprintf("Invalid upload: %v", err), http.StatusBadRequest)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		http.Error(w, "file is required", http.StatusBadRequest)
		return
	}
	defer file.Close()

	if !allowedExtension(header.Filename) {
		http.Error(w, "unsupported file type, expected png or jpeg", http.StatusBadRequest)
		return
	}

	uploadedBy := r.FormValue("uploaded_by")
	if uploadedBy == "" {
		uploadedBy = "anonymous"
	}

	data, err := io.ReadAll(file)
	if err != nil {
		http.Error(w, fmt.Sprintf("Failed to read upload: %v", err), http.StatusBadRequest)
		return
	}

	log.Printf("Processing upload: filename=%s, uploaded_by=%s, size=%d", header.Filename, uploadedBy, len(data))

	result := h.processor.Process(r.Context(), data, header.Filename, uploadedBy)
	metrics.ProcessingDuration.Observe(result.ElapsedSeconds)

	if !result.Success {
		metrics.DecodeFailures.Inc()
		metrics.ProcessedTotal.WithLabelValues("failed").Inc()
		writeJSON(w, http.StatusUnprocessableEntity, uploadResponse{Result: result})
		return
	}
	if !result.EnhancedExtraction {
		metrics.DegradedRuns.Inc()
	}

	seenCount := 0
	if h.sightings != nil {
		seenCount, err = h.sightings.Record(r.Context(), result.Fingerprint, result.Filename, result.UploadedBy)
		if err != nil {
			log.Printf("Failed to record sighting for %s: %v", result.Fingerprint, err)
		}
	}

	status := certificate.StatusFor(result.OverallConfidence)
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
		Status:                status,
		ProcessingTime:        result.ElapsedSeconds,
	}

	if err := h.certs.Save(r.Context(), rec); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			metrics.DuplicateSubmissions.Inc()
			existing, lookupErr := h.certs.GetByFingerprint(r.Context(), result.Fingerprint)
			if lookupErr != nil {
				log.Printf("Failed to load duplicate %s: %v", result.Fingerprint, lookupErr)
			}
			writeJSON(w, http.StatusConflict, uploadResponse{
				Result:      result,
				Record:      existing,
				Duplicate:   true,
				SeenCount:   seenCount,
				Fingerprint: result.Fingerprint,
			})
			return
		}
		log.Printf("Failed to save certificate: %v", err)
		http.Error(w, "Failed to save certificate", http.StatusInternalServerError)
		return
	}

	metrics.ProcessedTotal.WithLabelValues(status).Inc()
	writeJSON(w, http.StatusCreated, uploadResponse{
		Result:      result,
		Record:      rec,
		SeenCount:   seenCount,
		Fingerprint: result.Fingerprint,
	})
}

// verifyRequest is the POST /v1/verify body
type verifyRequest struct {
	Fingerprint string `json:"fingerprint"`
}

// verifyResponse reports whether a fingerprint matches a stored certificate
type verifyResponse struct {
	Verified    bool          `json:"verified"`
	Certificate *store.Record `json:"certificate,omitempty"`
}

// HandleVerify handles POST /v1/verify - looks up a fingerprint and bumps
// its verification counter
func (h *Handler) HandleVerify(w http.ResponseWriter, r *http.Request) {
	var req verifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, fmt.Sprintf("Invalid request: %v", err), http.StatusBadRequest)
		return
	}
	if req.Fingerprint == "" {
		http.Error(w, "fingerprint is required", http.StatusBadRequest)
		return
	}

	rec, err := h.certs.VerifyByFingerprint(r.Context(), req.Fingerprint)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeJSON(w, http.StatusOK, verifyResponse{Verified: false})
			return
		}
		log.Printf("Verification lookup failed: %v", err)
		http.Error(w, "Verification failed", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, verifyResponse{Verified: true, Certificate: rec})
}

// HandleSearch handles GET /v1/certificates/{certificateID}
func (h *Handler) HandleSearch(w http.ResponseWriter, r *http.Request) {
	certificateID := chi.URLParam(r, "certificateID")
	if certificateID == "" {
		http.Error(w, "certificate_id is required", http.StatusBadRequest)
		return
	}

	rec, err := h.certs.SearchByCertificateID(r.Context(), certificateID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			http.Error(w, "Certificate not found", http.StatusNotFound)
			return
		}
		log.Printf("Search failed: %v", err)
		http.Error(w, "Search failed", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, rec)
}

// listResponse wraps the certificate listing
type listResponse struct {
	Certificates []store.Record `json:"certificates"`
	Count        int            `json:"count"`
}

// HandleList handles GET /v1/certificates?status=&limit=
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	status := r.URL.Query().Get("status")
	if status != "" && status != certificate.StatusVerified && status != certificate.StatusPending {
		http.Error(w, fmt.Sprintf("unknown status %q", status), http.StatusBadRequest)
		return
	}

	limit := DefaultListLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			http.Error(w, "limit must be a positive integer", http.StatusBadRequest)
			return
		}
		limit = parsed
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}

	records, err := h.certs.List(r.Context(), status, limit)
	if err != nil {
		log.Printf("List failed: %v", err)
		http.Error(w, "List failed", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, listResponse{Certificates: records, Count: len(records)})
}

// HandleStats handles GET /v1/stats
func (h *Handler) HandleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.certs.GetStats(r.Context())
	if err != nil {
		log.Printf("Stats failed: %v", err)
		http.Error(w, "Stats failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// HandleHealth handles GET /health
func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// allowedExtension accepts the image formats the decoder handles
func allowedExtension(filename string) bool {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".png", ".jpg", ".jpeg":
		return true
	}
	return false
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Printf("Failed to encode response: %v", err)
	}
}
