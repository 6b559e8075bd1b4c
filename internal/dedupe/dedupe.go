package dedupe

import (
	"context"
	"database/sql"
	"fmt"
	"log"
)

// Tracker tracks repeat submissions of the same certificate content. The
// store's unique fingerprint constraint rejects duplicates; the tracker
// records how often each fingerprint has been seen, which also surfaces the
// cases where partial extraction shifted the fingerprint of a rescanned
// certificate.
type Tracker struct {
	db *sql.DB
}

// NewTracker creates a new dedupe tracker
func NewTracker(db *sql.DB) (*Tracker, error) {
	tracker := &Tracker{db: db}

	// Create table if not exists
	if err := tracker.ensureTable(); err != nil {
		return nil, fmt.Errorf("failed to ensure dedupe table: %w", err)
	}

	return tracker, nil
}

// ensureTable creates the certificate_sightings table if it doesn't exist
func (t *Tracker) ensureTable() error {
	query := `
		CREATE TABLE IF NOT EXISTS certificate_sightings (
			fingerprint TEXT PRIMARY KEY,
			last_filename TEXT,
			last_uploaded_by TEXT,
			first_seen_at TIMESTAMPTZ DEFAULT NOW(),
			last_seen_at TIMESTAMPTZ DEFAULT NOW(),
			seen_count INTEGER DEFAULT 1
		)
	`

	_, err := t.db.Exec(query)
	if err != nil {
		return fmt.Errorf("failed to create certificate_sightings table: %w", err)
	}

	log.Printf("✓ certificate_sightings table ready")
	return nil
}

// Record records a submission of the given fingerprint and returns the seen
// count
func (t *Tracker) Record(ctx context.Context, fingerprint, filename, uploadedBy string) (int, error) {
	// Upsert: increment seen_count if exists, insert if not
	query := `
		INSERT INTO certificate_sightings (fingerprint, last_filename, last_uploaded_by, first_seen_at, last_seen_at, seen_count)
		VALUES ($1, $2, $3, NOW(), NOW(), 1)
		ON CONFLICT (fingerprint) DO UPDATE
		SET last_seen_at = NOW(),
		    seen_count = certificate_sightings.seen_count + 1,
		    last_filename = EXCLUDED.last_filename,
		    last_uploaded_by = EXCLUDED.last_uploaded_by
		RETURNING seen_count
	`

	var seenCount int
	err := t.db.QueryRowContext(ctx, query, fingerprint, filename, uploadedBy).Scan(&seenCount)
	if err != nil {
		return 0, fmt.Errorf("failed to record sighting: %w", err)
	}

	return seenCount, nil
}

// GetSeenCount retrieves the seen count for a fingerprint
func (t *Tracker) GetSeenCount(ctx context.Context, fingerprint string) (int, error) {
	query := `SELECT seen_count FROM certificate_sightings WHERE fingerprint = $1`

	var seenCount int
	err := t.db.QueryRowContext(ctx, query, fingerprint).Scan(&seenCount)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to get seen count: %w", err)
	}

	return seenCount, nil
}
