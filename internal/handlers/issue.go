package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/civiclens/routing-server/internal/pipeline"
	"go.uber.org/zap"
)

// IssueHandler exposes the vision stage: photo in, issue description out.
type IssueHandler struct {
	pipeline *pipeline.Orchestrator
	logger   *zap.SugaredLogger
}

// NewIssueHandler creates a new issue handler
func NewIssueHandler(p *pipeline.Orchestrator, logger *zap.SugaredLogger) *IssueHandler {
	return &IssueHandler{pipeline: p, logger: logger}
}

type describeRequest struct {
	Base64Image string `json:"base64Image"`
	MimeType    string `json:"mimeType"`
}

// Describe handles POST /api/v1/issues/describe
func (h *IssueHandler) Describe(w http.ResponseWriter, r *http.Request) {
	var req describeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Base64Image == "" || req.MimeType == "" {
		respondError(w, http.StatusBadRequest, "Missing image data")
		return
	}

	description, err := h.pipeline.DescribeIssue(r.Context(), req.Base64Image, req.MimeType)
	if err != nil {
		h.logger.Errorw("Failed to describe image", "error", err)
		respondError(w, http.StatusBadGateway, "Failed to process image")
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{"description": description})
}
