package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/certward/certificate-pipeline/pkg/certificate"
)

// Canonicalize normalizes extracted fields into the deterministic byte form
// that is hashed. Name, roll number, certificate ID and institution are
// trimmed and upper-cased; marks is trimmed only. Absent fields normalize to
// an empty string, so a scan with one field unreadable hashes differently
// from a clean scan of the same certificate.
func Canonicalize(fields certificate.Fields) []byte {
	normalized := make(map[string]string, 5)
	for _, name := range certificate.FieldNames() {
		value := strings.TrimSpace(fields[name])
		if name != certificate.FieldMarks {
			value = strings.ToUpper(value)
		}
		normalized[name] = value
	}
	// json.Marshal emits map keys in sorted order with no extra whitespace,
	// so equal field sets serialize identically byte-for-byte.
	data, err := json.Marshal(normalized)
	if err != nil {
		// A map[string]string cannot fail to marshal.
		panic(fmt.Sprintf("canonicalize fields: %v", err))
	}
	return data
}

// Fingerprint derives the content fingerprint for a set of extracted fields:
// a lowercase hex SHA-256 of the canonical serialization. It is a pure
// function of the five field values, independent of confidence, filename,
// uploader or timestamp.
func Fingerprint(fields certificate.Fields) string {
	sum := sha256.Sum256(Canonicalize(fields))
	return hex.EncodeToString(sum[:])
}
