package certificate

import "time"

// Field name constants for extracted certificate data
const (
	FieldName          = "name"
	FieldRollNo        = "roll_no"
	FieldCertificateID = "certificate_id"
	FieldMarks         = "marks"
	FieldInstitution   = "institution"
)

// FieldNames returns the fixed field set in canonical order
func FieldNames() []string {
	return []string{FieldName, FieldRollNo, FieldCertificateID, FieldMarks, FieldInstitution}
}

// Fields maps field names to extracted values. A missing key means the field
// was not extracted, which is distinct from an extracted empty string.
type Fields map[string]string

// BBox is a bounding box in pixel coordinates, origin at the upper-left corner
type BBox struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Token is a single recognized word with its confidence (0-100) and position.
// Tokens live only for the duration of a pipeline run and are never persisted.
type Token struct {
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
	BBox       BBox    `json:"bbox"`
}

// ProcessingResult is the immutable outcome of one pipeline run
type ProcessingResult struct {
	Success               bool      `json:"success"`
	Fields                Fields    `json:"extracted_data"`
	Fingerprint           string    `json:"fingerprint,omitempty"`
	OverallConfidence     float64   `json:"confidence"`
	RecognitionConfidence float64   `json:"recognition_confidence"`
	LayoutConfidence      float64   `json:"layout_confidence"`
	EnhancedExtraction    bool      `json:"enhanced_extraction"`
	ElapsedSeconds        float64   `json:"processing_time"`
	RawText               string    `json:"raw_text"`
	Error                 string    `json:"error,omitempty"`
	Filename              string    `json:"filename,omitempty"`
	UploadedBy            string    `json:"uploaded_by,omitempty"`
	Timestamp             time.Time `json:"timestamp"`
}

// Status constants for stored certificates
const (
	StatusVerified = "verified"
	StatusPending  = "pending"
)

// VerifiedThreshold is the overall-confidence cutoff above which a certificate
// is stored as verified. The comparison is strictly greater-than.
const VerifiedThreshold = 80.0

// StatusFor derives the storage status from an overall confidence score
func StatusFor(confidence float64) string {
	if confidence > VerifiedThreshold {
		return StatusVerified
	}
	return StatusPending
}

// ProcessRequest represents a request to process a certificate by reference
type ProcessRequest struct {
	ContentKey string `json:"content_key"`
	Filename   string `json:"filename,omitempty"`
	UploadedBy string `json:"uploaded_by,omitempty"`
	Job        string `json:"job"`
}

// ProcessResponse represents the response from triggering processing
type ProcessResponse struct {
	RunID           string `json:"run_id"`
	DedupeSeenCount int    `json:"dedupe_seen_count"`
}

// JobType constants
const (
	JobCertificate = "certificate"
)
