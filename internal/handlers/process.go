package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"

	"github.com/google/uuid"

	"github.com/certward/certificate-pipeline/internal/workflows"
	"github.com/certward/certificate-pipeline/pkg/certificate"
)

// ProcessHandler handles by-reference processing requests: the scan is
// fetched from the configured scan store instead of the request body
type ProcessHandler struct {
	workflowRunner *workflows.WorkflowRunner
}

// NewProcessHandler creates a new process handler
func NewProcessHandler(runner *workflows.WorkflowRunner) *ProcessHandler {
	return &ProcessHandler{
		workflowRunner: runner,
	}
}

// processResponse reports a completed workflow run
type processResponse struct {
	certificate.ProcessResponse
	Outputs map[string]interface{} `json:"outputs,omitempty"`
	Error   string                 `json:"error,omitempty"`
}

// HandleProcess handles POST /v1/process - runs the certificate workflow
// against a stored scan and returns the outcome
func (h *ProcessHandler) HandleProcess(w http.ResponseWriter, r *http.Request) {
	var req certificate.ProcessRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, fmt.Sprintf("Invalid request: %v", err), http.StatusBadRequest)
		return
	}

	if req.ContentKey == "" {
		http.Error(w, "content_key is required", http.StatusBadRequest)
		return
	}
	if req.Job == "" {
		req.Job = certificate.JobCertificate
	}
	if req.Filename == "" {
		req.Filename = req.ContentKey
	}
	if req.UploadedBy == "" {
		req.UploadedBy = "anonymous"
	}

	runID := uuid.New().String()
	log.Printf("Running workflow: content_key=%s, job=%s, run_id=%s", req.ContentKey, req.Job, runID)

	result, err := h.workflowRunner.Run(&workflows.WorkflowContext{
		Ctx:     r.Context(),
		Request: req,
		RunID:   runID,
	})
	if err != nil {
		log.Printf("Workflow failed: run_id=%s: %v", runID, err)
		status := http.StatusInternalServerError
		if errors.Is(err, workflows.ErrWorkflowNotFound) || errors.Is(err, workflows.ErrInvalidRequest) {
			status = http.StatusBadRequest
		}
		http.Error(w, fmt.Sprintf("Workflow failed: %v", err), status)
		return
	}

	resp := processResponse{
		ProcessResponse: certificate.ProcessResponse{RunID: runID},
		Outputs:         result.Outputs,
	}
	if seen, ok := result.Outputs["dedupe_seen"].(int); ok {
		resp.DedupeSeenCount = seen
	}

	if !result.Success {
		if result.Error != nil {
			resp.Error = result.Error.Error()
		}
		writeJSON(w, http.StatusUnprocessableEntity, resp)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}
