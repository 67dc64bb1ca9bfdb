// Package models defines the data structures used across the application.
// These map to the PostgreSQL schema and the JSON API surface.
package models

import (
	"time"

	"github.com/google/uuid"
)

// Complaint statuses. Transitions are driven by the departments, not by
// this service; records are created Pending and read back as-is.
const (
	StatusPending    = "Pending"
	StatusInProgress = "InProgress"
	StatusResolved   = "Resolved"
)

// Confidence markers for a classification result.
const (
	ConfidenceModel    = "model"    // parsed from the generative model
	ConfidenceFallback = "fallback" // synthesized locally after unusable output
)

// Principal is the authenticated citizen on whose behalf the pipeline runs.
// Owned by the identity provider; this service only reads it.
type Principal struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	AccessToken  string    `json:"-"`
	RefreshToken string    `json:"-"`
	TokenExpiry  time.Time `json:"-"`
}

// Coordinates is a latitude/longitude pair as submitted by the client.
type Coordinates struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// ResolvedAddress is the human-readable address derived from coordinates.
// Lives only for the duration of one request.
type ResolvedAddress struct {
	Formatted string      `json:"formatted"`
	Raw       Coordinates `json:"raw"`
}

// ClassificationRequest carries one submission into the classify stage.
type ClassificationRequest struct {
	Lat              float64 `json:"lat"`
	Lon              float64 `json:"lon"`
	IssueDescription string  `json:"issueDescription"`
}

// ClassificationResult is the routing decision for one complaint.
// Confidence is "fallback" when the model's output was unusable and the
// result was synthesized locally.
type ClassificationResult struct {
	Department      string `json:"department"`
	DepartmentEmail string `json:"email"`
	Subject         string `json:"subject,omitempty"`
	Body            string `json:"body,omitempty"`
	Confidence      string `json:"confidence"`
}

// Draft is a fully composed complaint ready for submission: the routing
// decision plus the email fields the dispatcher will send.
type Draft struct {
	DeptName    string      `json:"deptName"`
	DeptMail    string      `json:"deptMail"`
	Subject     string      `json:"subject"`
	Body        string      `json:"body"`
	Location    string      `json:"location"`
	Coordinates Coordinates `json:"coordinates"`
	Confidence  string      `json:"confidence"`
}

// Complaint is the durable record. ComplaintNo is the idempotency and
// display key; OwnerID scopes all reads.
type Complaint struct {
	ID          uuid.UUID   `json:"id" db:"id"`
	ComplaintNo string      `json:"complaintNo" db:"complaint_no"`
	OwnerID     string      `json:"ownerId" db:"owner_id"`
	DeptName    string      `json:"deptName" db:"dept_name"`
	DeptMail    string      `json:"deptMail" db:"dept_mail"`
	Subject     string      `json:"subject" db:"subject"`
	Description string      `json:"description" db:"description"`
	Location    string      `json:"location" db:"location"`
	Coordinates Coordinates `json:"coordinates"`
	Status      string      `json:"status" db:"status"`
	CreatedAt   time.Time   `json:"createdAt" db:"created_at"`
}

// ComplaintInput is what the orchestrator hands the store at creation time.
// ComplaintNo and timestamps are assigned by the store.
type ComplaintInput struct {
	OwnerID     string
	DeptName    string
	DeptMail    string
	Subject     string
	Description string
	Location    string
	Coordinates Coordinates
}

// SubmissionEvent is one entry in the per-complaint audit trail recorded as
// the pipeline advances (classified, stored, mail_sent, mail_failed).
type SubmissionEvent struct {
	ID          uuid.UUID `json:"id"`
	ComplaintNo string    `json:"complaintNo"`
	OwnerID     string    `json:"ownerId"`
	Stage       string    `json:"stage"`
	Detail      string    `json:"detail,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}

// SubmitResult is returned to the caller after a submission attempt.
// DeliveryStatus is "sent" or "failed"; the complaint record exists either way.
type SubmitResult struct {
	ComplaintNo    string `json:"complaintNo"`
	Department     string `json:"department"`
	DeliveryStatus string `json:"deliveryStatus"`
}

// HealthStatus is the health check response body.
type HealthStatus struct {
	Status   string `json:"status"`
	Version  string `json:"version"`
	Uptime   string `json:"uptime"`
	Database string `json:"database,omitempty"`
}
