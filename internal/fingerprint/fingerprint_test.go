package fingerprint

import (
	"testing"

	"github.com/certward/certificate-pipeline/pkg/certificate"
)

func TestFingerprintFixedVector(t *testing.T) {
	fields := certificate.Fields{
		certificate.FieldName:          "John Smith",
		certificate.FieldRollNo:        "CS2021001",
		certificate.FieldCertificateID: "CERT-2024-001",
		certificate.FieldMarks:         "85%",
		certificate.FieldInstitution:   "University of Technology",
	}
	const want = "b98b9ccc7227f274fb7af84ed122a1715974050310b19cc890858f82d80fe398"
	if got := Fingerprint(fields); got != want {
		t.Fatalf("Fingerprint() = %s, want %s", got, want)
	}
}

func TestFingerprintIdempotent(t *testing.T) {
	fields := certificate.Fields{
		certificate.FieldName:  "Jane Doe",
		certificate.FieldMarks: "91.5%",
	}
	first := Fingerprint(fields)
	second := Fingerprint(fields)
	if first != second {
		t.Fatalf("repeated calls disagree: %s vs %s", first, second)
	}
	if fields[certificate.FieldName] != "Jane Doe" {
		t.Fatalf("input fields were mutated: %+v", fields)
	}
}

func TestFingerprintInsertionOrderIndependent(t *testing.T) {
	a := certificate.Fields{}
	a[certificate.FieldName] = "John Smith"
	a[certificate.FieldInstitution] = "University of Technology"
	a[certificate.FieldRollNo] = "CS2021001"

	b := certificate.Fields{}
	b[certificate.FieldRollNo] = "CS2021001"
	b[certificate.FieldName] = "John Smith"
	b[certificate.FieldInstitution] = "University of Technology"

	if Fingerprint(a) != Fingerprint(b) {
		t.Fatalf("fingerprint depends on insertion order")
	}
}

func TestFingerprintCaseAndWhitespaceInvariance(t *testing.T) {
	a := certificate.Fields{certificate.FieldName: " John Smith "}
	b := certificate.Fields{certificate.FieldName: "john smith"}
	if Fingerprint(a) != Fingerprint(b) {
		t.Fatalf("name is not case/whitespace normalized")
	}
}

func TestFingerprintMarksPreservedBeyondTrim(t *testing.T) {
	a := certificate.Fields{certificate.FieldMarks: "85%"}
	b := certificate.Fields{certificate.FieldMarks: "85 %"}
	if Fingerprint(a) == Fingerprint(b) {
		t.Fatalf("marks should only be trimmed, not space-normalized")
	}
	c := certificate.Fields{certificate.FieldMarks: " 85% "}
	if Fingerprint(a) != Fingerprint(c) {
		t.Fatalf("marks should be trimmed of surrounding whitespace")
	}
}

func TestFingerprintAbsentFieldChangesHash(t *testing.T) {
	full := certificate.Fields{
		certificate.FieldName:          "John Smith",
		certificate.FieldRollNo:        "CS2021001",
		certificate.FieldCertificateID: "CERT-2024-001",
		certificate.FieldMarks:         "85%",
		certificate.FieldInstitution:   "University of Technology",
	}
	partial := certificate.Fields{
		certificate.FieldName:          "John Smith",
		certificate.FieldRollNo:        "CS2021001",
		certificate.FieldCertificateID: "CERT-2024-001",
		certificate.FieldMarks:         "85%",
	}
	const wantPartial = "7338a7bd36b21d4ac6a64aafd4da078073326e69028677a8b9eec4dcbddfdf19"
	if got := Fingerprint(partial); got != wantPartial {
		t.Fatalf("Fingerprint(partial) = %s, want %s", got, wantPartial)
	}
	if Fingerprint(full) == Fingerprint(partial) {
		t.Fatalf("missing institution must change the fingerprint")
	}
}

func TestFingerprintAllFieldsAbsent(t *testing.T) {
	const want = "3167f0ba3d4ffb820be3a34dfe59a3674252adc60782a0d9f8d4a241af8c1f3c"
	if got := Fingerprint(certificate.Fields{}); got != want {
		t.Fatalf("Fingerprint(empty) = %s, want %s", got, want)
	}
	if got := Fingerprint(nil); got != want {
		t.Fatalf("Fingerprint(nil) = %s, want %s", got, want)
	}
}

func TestCanonicalizeSortedCompact(t *testing.T) {
	got := string(Canonicalize(certificate.Fields{
		certificate.FieldName:  "john smith",
		certificate.FieldMarks: "85%",
	}))
	want := `{"certificate_id":"","institution":"","marks":"85%","name":"JOHN SMITH","roll_no":""}`
	if got != want {
		t.Fatalf("Canonicalize() = %s, want %s", got, want)
	}
}
