// Package store persists processed certificates in Postgres. The unique
// fingerprint constraint is what turns the canonical hash into a duplicate
// detector.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/lib/pq"

	"github.com/certward/certificate-pipeline/pkg/certificate"
)

var (
	// ErrDuplicate is returned when a certificate with the same fingerprint
	// already exists
	ErrDuplicate = errors.New("certificate with this fingerprint already exists")

	// ErrNotFound is returned when no certificate matches the query
	ErrNotFound = errors.New("certificate not found")
)

// uniqueViolation is the Postgres error code for unique constraint violations
const uniqueViolation = "23505"

// Record is a stored certificate
type Record struct {
	ID                    int64              `json:"id"`
	Fingerprint           string             `json:"fingerprint"`
	Fields                certificate.Fields `json:"extracted_data"`
	Confidence            float64            `json:"confidence"`
	RecognitionConfidence float64            `json:"recognition_confidence"`
	LayoutConfidence      float64            `json:"layout_confidence"`
	EnhancedExtraction    bool               `json:"enhanced_extraction"`
	RawText               string             `json:"-"`
	Filename              string             `json:"filename,omitempty"`
	FileSize              int64              `json:"file_size,omitempty"`
	UploadedBy            string             `json:"uploaded_by,omitempty"`
	Status                string             `json:"status"`
	VerificationAttempts  int                `json:"verification_attempts"`
	ProcessingTime        float64            `json:"processing_time"`
	UploadDate            time.Time          `json:"upload_date"`
}

// Stats summarizes the stored certificate population
type Stats struct {
	Total             int     `json:"total"`
	Verified          int     `json:"verified"`
	Pending           int     `json:"pending"`
	AverageConfidence float64 `json:"average_confidence"`
}

// Store provides certificate persistence
type Store struct {
	db *sql.DB
}

// New creates a certificate store and ensures its schema
func New(db *sql.DB) (*Store, error) {
	s := &Store{db: db}
	if err := s.ensureSchema(); err != nil {
		return nil, fmt.Errorf("failed to ensure certificates schema: %w", err)
	}
	return s, nil
}

func (s *Store) ensureSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS certificates (
			id BIGSERIAL PRIMARY KEY,
			fingerprint TEXT NOT NULL UNIQUE,
			name TEXT,
			roll_no TEXT,
			certificate_id TEXT,
			marks TEXT,
			institution TEXT,
			confidence DOUBLE PRECISION NOT NULL,
			recognition_confidence DOUBLE PRECISION NOT NULL DEFAULT 0,
			layout_confidence DOUBLE PRECISION NOT NULL DEFAULT 0,
			enhanced_extraction BOOLEAN NOT NULL DEFAULT false,
			raw_text TEXT,
			filename TEXT,
			file_size BIGINT,
			uploaded_by TEXT,
			status TEXT NOT NULL,
			verification_attempts INTEGER NOT NULL DEFAULT 0,
			processing_time DOUBLE PRECISION,
			upload_date TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			last_updated TIMESTAMPTZ
		)`,
		`CREATE INDEX IF NOT EXISTS idx_certificates_certificate_id ON certificates (certificate_id)`,
		`CREATE INDEX IF NOT EXISTS idx_certificates_roll_no ON certificates (roll_no)`,
		`CREATE INDEX IF NOT EXISTS idx_certificates_status ON certificates (status)`,
		`CREATE INDEX IF NOT EXISTS idx_certificates_upload_date ON certificates (upload_date DESC)`,
	}
	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	log.Printf("✓ certificates table ready")
	return nil
}

// Save inserts a processed certificate. A fingerprint collision maps to
// ErrDuplicate rather than a database error, so callers can treat it as a
// duplicate-detection signal.
func (s *Store) Save(ctx context.Context, rec *Record) error {
	query := `
		INSERT INTO certificates (
			fingerprint, name, roll_no, certificate_id, marks, institution,
			confidence, recognition_confidence, layout_confidence,
			enhanced_extraction, raw_text, filename, file_size, uploaded_by,
			status, processing_time
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		RETURNING id, upload_date
	`
	err := s.db.QueryRowContext(ctx, query,
		rec.Fingerprint,
		fieldOrNull(rec.Fields, certificate.FieldName),
		fieldOrNull(rec.Fields, certificate.FieldRollNo),
		fieldOrNull(rec.Fields, certificate.FieldCertificateID),
		fieldOrNull(rec.Fields, certificate.FieldMarks),
		fieldOrNull(rec.Fields, certificate.FieldInstitution),
		rec.Confidence,
		rec.RecognitionConfidence,
		rec.LayoutConfidence,
		rec.EnhancedExtraction,
		rec.RawText,
		nullString(rec.Filename),
		rec.FileSize,
		nullString(rec.UploadedBy),
		rec.Status,
		rec.ProcessingTime,
	).Scan(&rec.ID, &rec.UploadDate)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return ErrDuplicate
		}
		return fmt.Errorf("failed to save certificate: %w", err)
	}
	return nil
}

// VerifyByFingerprint looks up a certificate by its content fingerprint and
// bumps its verification counter.
func (s *Store) VerifyByFingerprint(ctx context.Context, fp string) (*Record, error) {
	query := `
		UPDATE certificates
		SET verification_attempts = verification_attempts + 1
		WHERE fingerprint = $1
		RETURNING ` + recordColumns
	return s.scanRecord(s.db.QueryRowContext(ctx, query, fp))
}

// GetByFingerprint fetches a certificate without touching the verification
// counter.
func (s *Store) GetByFingerprint(ctx context.Context, fp string) (*Record, error) {
	query := `SELECT ` + recordColumns + ` FROM certificates WHERE fingerprint = $1`
	return s.scanRecord(s.db.QueryRowContext(ctx, query, fp))
}

// SearchByCertificateID finds the certificate with the given extracted ID
func (s *Store) SearchByCertificateID(ctx context.Context, certificateID string) (*Record, error) {
	query := `SELECT ` + recordColumns + ` FROM certificates WHERE certificate_id = $1 ORDER BY upload_date DESC LIMIT 1`
	return s.scanRecord(s.db.QueryRowContext(ctx, query, certificateID))
}

// List returns stored certificates, newest first, optionally filtered by
// status.
func (s *Store) List(ctx context.Context, status string, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = 100
	}
	query := `SELECT ` + recordColumns + ` FROM certificates`
	args := []interface{}{}
	if status != "" {
		query += ` WHERE status = $1`
		args = append(args, status)
	}
	query += fmt.Sprintf(` ORDER BY upload_date DESC LIMIT %d`, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list certificates: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		rec, err := scanRecordFrom(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, *rec)
	}
	return records, rows.Err()
}

// ListByUploader returns certificates uploaded by a specific user, newest
// first.
func (s *Store) ListByUploader(ctx context.Context, uploadedBy string, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `SELECT ` + recordColumns + ` FROM certificates WHERE uploaded_by = $1 ORDER BY upload_date DESC LIMIT $2`
	rows, err := s.db.QueryContext(ctx, query, uploadedBy, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list certificates: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		rec, err := scanRecordFrom(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, *rec)
	}
	return records, rows.Err()
}

// UpdateStatus changes a certificate's status by fingerprint
func (s *Store) UpdateStatus(ctx context.Context, fp, status string) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE certificates SET status = $2, last_updated = NOW() WHERE fingerprint = $1`,
		fp, status)
	if err != nil {
		return fmt.Errorf("failed to update status: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to update status: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// GetStats reports counts by status and the average confidence
func (s *Store) GetStats(ctx context.Context) (*Stats, error) {
	query := `
		SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE status = $1),
			COUNT(*) FILTER (WHERE status = $2),
			COALESCE(AVG(confidence), 0)
		FROM certificates
	`
	var stats Stats
	err := s.db.QueryRowContext(ctx, query, certificate.StatusVerified, certificate.StatusPending).
		Scan(&stats.Total, &stats.Verified, &stats.Pending, &stats.AverageConfidence)
	if err != nil {
		return nil, fmt.Errorf("failed to get stats: %w", err)
	}
	return &stats, nil
}

const recordColumns = `id, fingerprint, name, roll_no, certificate_id, marks, institution,
	confidence, recognition_confidence, layout_confidence, enhanced_extraction,
	COALESCE(raw_text, ''), COALESCE(filename, ''), COALESCE(file_size, 0),
	COALESCE(uploaded_by, ''), status, verification_attempts,
	COALESCE(processing_time, 0), upload_date`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func (s *Store) scanRecord(row *sql.Row) (*Record, error) {
	rec, err := scanRecordFrom(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return rec, err
}

func scanRecordFrom(row rowScanner) (*Record, error) {
	var rec Record
	var name, rollNo, certificateID, marks, institution sql.NullString
	err := row.Scan(
		&rec.ID, &rec.Fingerprint,
		&name, &rollNo, &certificateID, &marks, &institution,
		&rec.Confidence, &rec.RecognitionConfidence, &rec.LayoutConfidence,
		&rec.EnhancedExtraction, &rec.RawText, &rec.Filename, &rec.FileSize,
		&rec.UploadedBy, &rec.Status, &rec.VerificationAttempts,
		&rec.ProcessingTime, &rec.UploadDate,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan certificate: %w", err)
	}

	rec.Fields = make(certificate.Fields, 5)
	setField(rec.Fields, certificate.FieldName, name)
	setField(rec.Fields, certificate.FieldRollNo, rollNo)
	setField(rec.Fields, certificate.FieldCertificateID, certificateID)
	setField(rec.Fields, certificate.FieldMarks, marks)
	setField(rec.Fields, certificate.FieldInstitution, institution)
	return &rec, nil
}

func setField(fields certificate.Fields, name string, value sql.NullString) {
	if value.Valid {
		fields[name] = value.String
	}
}

// fieldOrNull maps an absent extraction field to SQL NULL so "not extracted"
// stays distinct from "extracted as empty" in storage.
func fieldOrNull(fields certificate.Fields, name string) interface{} {
	if value, ok := fields[name]; ok {
		return value
	}
	return nil
}

func nullString(value string) interface{} {
	if value == "" {
		return nil
	}
	return value
}
