// Package handlers contains HTTP request handlers for the CivicLens API.
// Handlers parse requests, call the pipeline, and return JSON responses.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/civiclens/routing-server/internal/apperrors"
	"github.com/civiclens/routing-server/internal/middleware"
	"github.com/civiclens/routing-server/internal/models"
	"github.com/civiclens/routing-server/internal/pipeline"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ComplaintHandler handles complaint-related HTTP endpoints
type ComplaintHandler struct {
	pipeline *pipeline.Orchestrator
	logger   *zap.SugaredLogger
}

// NewComplaintHandler creates a new complaint handler
func NewComplaintHandler(p *pipeline.Orchestrator, logger *zap.SugaredLogger) *ComplaintHandler {
	return &ComplaintHandler{pipeline: p, logger: logger}
}

type classifyRequest struct {
	Lat              *float64 `json:"lat"`
	Lon              *float64 `json:"lon"`
	IssueDescription string   `json:"issueDescription"`
}

// Classify handles POST /api/v1/complaints/classify
// Resolves the address, routes the complaint, and returns a submittable draft.
func (h *ComplaintHandler) Classify(w http.ResponseWriter, r *http.Request) {
	principal, ok := middleware.PrincipalFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	var req classifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Lat == nil || req.Lon == nil {
		respondError(w, http.StatusBadRequest, "Missing required fields: lat, lon")
		return
	}

	draft, err := h.pipeline.ClassifyAndCompose(r.Context(), models.ClassificationRequest{
		Lat:              *req.Lat,
		Lon:              *req.Lon,
		IssueDescription: req.IssueDescription,
	}, principal)
	if err != nil {
		h.respondPipelineError(w, err, "Failed to classify complaint")
		return
	}

	respondJSON(w, http.StatusOK, draft)
}

// Submit handles POST /api/v1/complaints
// Persists the complaint and attempts email dispatch. A dispatch failure is
// a partial success: the record exists and deliveryStatus reads "failed".
func (h *ComplaintHandler) Submit(w http.ResponseWriter, r *http.Request) {
	principal, ok := middleware.PrincipalFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	var draft models.Draft
	if err := json.NewDecoder(r.Body).Decode(&draft); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	result, err := h.pipeline.SubmitComplaint(r.Context(), draft, principal)
	if err != nil {
		h.respondPipelineError(w, err, "Failed to submit complaint")
		return
	}

	respondJSON(w, http.StatusCreated, result)
}

// List handles GET /api/v1/complaints
func (h *ComplaintHandler) List(w http.ResponseWriter, r *http.Request) {
	principal, ok := middleware.PrincipalFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	complaints, err := h.pipeline.ListComplaints(r.Context(), principal)
	if err != nil {
		h.respondPipelineError(w, err, "Failed to fetch complaints")
		return
	}
	if complaints == nil {
		complaints = []models.Complaint{}
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"success":    true,
		"complaints": complaints,
	})
}

// Get handles GET /api/v1/complaints/{id}
func (h *ComplaintHandler) Get(w http.ResponseWriter, r *http.Request) {
	principal, ok := middleware.PrincipalFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid complaint id")
		return
	}

	complaint, err := h.pipeline.GetComplaint(r.Context(), id, principal)
	if err != nil {
		h.respondPipelineError(w, err, "Failed to fetch complaint")
		return
	}

	respondJSON(w, http.StatusOK, complaint)
}

// respondPipelineError maps the error taxonomy to HTTP statuses.
func (h *ComplaintHandler) respondPipelineError(w http.ResponseWriter, err error, fallbackMsg string) {
	var invalid *apperrors.InvalidInputError
	switch {
	case errors.As(err, &invalid):
		respondError(w, http.StatusBadRequest, invalid.Error())
	case errors.Is(err, apperrors.ErrNotFound):
		respondError(w, http.StatusNotFound, "Complaint not found")
	case errors.Is(err, apperrors.ErrStorageConflict):
		respondError(w, http.StatusConflict, "Complaint number conflict, please retry")
	case errors.Is(err, apperrors.ErrStorageUnavailable):
		h.logger.Errorw("Storage unavailable", "error", err)
		respondError(w, http.StatusServiceUnavailable, "Storage unavailable, please retry")
	case apperrors.IsUpstream(err):
		h.logger.Errorw("Upstream failure", "error", err)
		respondError(w, http.StatusBadGateway, "Upstream service unavailable")
	default:
		h.logger.Errorw(fallbackMsg, "error", err)
		respondError(w, http.StatusInternalServerError, fallbackMsg)
	}
}

// Helper: respond with JSON
func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// Helper: respond with error
func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
