package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/certward/certificate-pipeline/internal/workflows"
	"github.com/certward/certificate-pipeline/pkg/certificate"
)

type fakeScans struct {
	data map[string][]byte
}

func (f *fakeScans) GetReader(ctx context.Context, key string) (io.ReadCloser, error) {
	data, ok := f.data[key]
	if !ok {
		return nil, errors.New("missing")
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (f *fakeScans) Exists(ctx context.Context, key string) (bool, error) {
	_, ok := f.data[key]
	return ok, nil
}

func newProcessServer(t *testing.T, scans workflows.ScanReader, processor Processor) (*httptest.Server, func()) {
	t.Helper()
	runner := workflows.NewWorkflowRunner()
	runner.Register(certificate.JobCertificate, workflows.NewCertificateWorkflow(scans, processor, newFakeStore(), &fakeSightings{}))

	r := chi.NewRouter()
	r.Post("/v1/process", NewProcessHandler(runner).HandleProcess)
	srv := httptest.NewServer(r)
	return srv, srv.Close
}

func TestProcessByReference(t *testing.T) {
	scans := &fakeScans{data: map[string][]byte{"cert-1.png": []byte("imagebytes")}}
	srv, done := newProcessServer(t, scans, &fakeProcessor{result: successResult()})
	defer done()

	resp, err := http.Post(srv.URL+"/v1/process", "application/json",
		strings.NewReader(`{"content_key":"cert-1.png","uploaded_by":"alice"}`))
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	var body processResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.RunID == "" {
		t.Fatalf("run_id missing")
	}
	if body.Outputs["fingerprint"] != "abc123" {
		t.Fatalf("outputs = %+v", body.Outputs)
	}
}

func TestProcessMissingScan(t *testing.T) {
	srv, done := newProcessServer(t, &fakeScans{}, &fakeProcessor{result: successResult()})
	defer done()

	resp, err := http.Post(srv.URL+"/v1/process", "application/json",
		strings.NewReader(`{"content_key":"nope.png"}`))
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422", resp.StatusCode)
	}
}

func TestProcessRequiresContentKey(t *testing.T) {
	srv, done := newProcessServer(t, &fakeScans{}, &fakeProcessor{result: successResult()})
	defer done()

	resp, err := http.Post(srv.URL+"/v1/process", "application/json", strings.NewReader(`{}`))
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
}

func TestProcessUnknownJob(t *testing.T) {
	srv, done := newProcessServer(t, &fakeScans{}, &fakeProcessor{result: successResult()})
	defer done()

	resp, err := http.Post(srv.URL+"/v1/process", "application/json",
		strings.NewReader(`{"content_key":"cert-1.png","job":"thumbnail"}`))
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
}
