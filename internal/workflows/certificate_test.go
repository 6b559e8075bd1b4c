package workflows

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"

	"github.com/certward/certificate-pipeline/internal/store"
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

type fakeProcessor struct {
	result certificate.ProcessingResult
}

func (f *fakeProcessor) Process(ctx context.Context, data []byte, filename, uploadedBy string) certificate.ProcessingResult {
	return f.result
}

type fakeSaver struct {
	saved []*store.Record
	err   error
}

func (f *fakeSaver) Save(ctx context.Context, rec *store.Record) error {
	f.saved = append(f.saved, rec)
	return f.err
}

type fakeTracker struct {
	count int
}

func (f *fakeTracker) Record(ctx context.Context, fingerprint, filename, uploadedBy string) (int, error) {
	f.count++
	return f.count, nil
}

func successResult() certificate.ProcessingResult {
	return certificate.ProcessingResult{
		Success:           true,
		Fingerprint:       "abc123",
		Fields:            certificate.Fields{certificate.FieldName: "john smith"},
		OverallConfidence: 86.12,
	}
}

func TestCertificateWorkflowPersists(t *testing.T) {
	scans := &fakeScans{data: map[string][]byte{"cert-1.png": []byte("imagebytes")}}
	saver := &fakeSaver{}
	w := NewCertificateWorkflow(scans, &fakeProcessor{result: successResult()}, saver, &fakeTracker{})

	result, err := w.Execute(&WorkflowContext{
		Ctx:     context.Background(),
		Request: certificate.ProcessRequest{ContentKey: "cert-1.png", Job: certificate.JobCertificate},
		RunID:   "run-1",
	})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if !result.Success {
		t.Fatalf("workflow failed: %v", result.Error)
	}
	if len(saver.saved) != 1 {
		t.Fatalf("expected one saved record, got %d", len(saver.saved))
	}
	rec := saver.saved[0]
	if rec.Status != certificate.StatusVerified {
		t.Fatalf("status = %s, want verified for confidence 86.12", rec.Status)
	}
	if rec.Fingerprint != "abc123" {
		t.Fatalf("fingerprint = %s", rec.Fingerprint)
	}
	if result.Outputs["duplicate"] != false {
		t.Fatalf("outputs = %+v", result.Outputs)
	}
}

func TestCertificateWorkflowDuplicate(t *testing.T) {
	scans := &fakeScans{data: map[string][]byte{"cert-1.png": []byte("imagebytes")}}
	saver := &fakeSaver{err: store.ErrDuplicate}
	w := NewCertificateWorkflow(scans, &fakeProcessor{result: successResult()}, saver, &fakeTracker{})

	result, err := w.Execute(&WorkflowContext{
		Ctx:     context.Background(),
		Request: certificate.ProcessRequest{ContentKey: "cert-1.png", Job: certificate.JobCertificate},
		RunID:   "run-2",
	})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if !result.Success {
		t.Fatalf("duplicate must not fail the workflow: %v", result.Error)
	}
	if result.Outputs["duplicate"] != true {
		t.Fatalf("outputs = %+v", result.Outputs)
	}
}

func TestCertificateWorkflowMissingScan(t *testing.T) {
	w := NewCertificateWorkflow(&fakeScans{}, &fakeProcessor{result: successResult()}, &fakeSaver{}, &fakeTracker{})

	result, err := w.Execute(&WorkflowContext{
		Ctx:     context.Background(),
		Request: certificate.ProcessRequest{ContentKey: "nope.png", Job: certificate.JobCertificate},
		RunID:   "run-3",
	})
	if err != nil {
		t.Fatalf("missing scan should not return a runner error, got %v", err)
	}
	if result.Success {
		t.Fatalf("expected failure for missing scan")
	}
}

func TestCertificateWorkflowPipelineFailure(t *testing.T) {
	scans := &fakeScans{data: map[string][]byte{"bad.bin": []byte("junk")}}
	failing := &fakeProcessor{result: certificate.ProcessingResult{Success: false, Error: "could not decode image"}}
	saver := &fakeSaver{}
	w := NewCertificateWorkflow(scans, failing, saver, &fakeTracker{})

	result, err := w.Execute(&WorkflowContext{
		Ctx:     context.Background(),
		Request: certificate.ProcessRequest{ContentKey: "bad.bin", Job: certificate.JobCertificate},
		RunID:   "run-4",
	})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if result.Success {
		t.Fatalf("expected failure for undecodable scan")
	}
	if len(saver.saved) != 0 {
		t.Fatalf("failed runs must not be persisted")
	}
}

func TestRunnerDispatch(t *testing.T) {
	runner := NewWorkflowRunner()
	scans := &fakeScans{data: map[string][]byte{"cert-1.png": []byte("imagebytes")}}
	runner.Register(certificate.JobCertificate, NewCertificateWorkflow(scans, &fakeProcessor{result: successResult()}, &fakeSaver{}, &fakeTracker{}))

	_, err := runner.Run(&WorkflowContext{
		Ctx:     context.Background(),
		Request: certificate.ProcessRequest{ContentKey: "cert-1.png", Job: "unknown"},
	})
	if !errors.Is(err, ErrWorkflowNotFound) {
		t.Fatalf("error = %v, want ErrWorkflowNotFound", err)
	}

	result, err := runner.Run(&WorkflowContext{
		Ctx:     context.Background(),
		Request: certificate.ProcessRequest{ContentKey: "cert-1.png", Job: certificate.JobCertificate},
	})
	if err != nil || !result.Success {
		t.Fatalf("dispatch failed: %v %v", err, result)
	}
}
