// Package pipeline sequences the complaint submission stages: geocode,
// classify, compose, persist, dispatch. Each submission is one independent
// request-scoped pass; the only shared state is the storage layer.
//
// The guiding policy is "always degrade, never block": a complaint record
// must be produced whenever the principal is authenticated and supplied
// valid coordinates and issue text, even if geocoding, classification, or
// mail delivery fail.
package pipeline

import (
	"context"
	"strings"

	"github.com/civiclens/routing-server/internal/apperrors"
	"github.com/civiclens/routing-server/internal/classify"
	"github.com/civiclens/routing-server/internal/compose"
	"github.com/civiclens/routing-server/internal/geo"
	"github.com/civiclens/routing-server/internal/mail"
	"github.com/civiclens/routing-server/internal/models"
	"github.com/civiclens/routing-server/internal/store"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Delivery statuses reported to the caller.
const (
	DeliverySent   = "sent"
	DeliveryFailed = "failed"
)

// Audit trail stages.
const (
	stageStored     = "stored"
	stageMailSent   = "mail_sent"
	stageMailFailed = "mail_failed"
)

// GeoResolver reverse-geocodes coordinates.
type GeoResolver interface {
	Resolve(ctx context.Context, lat, lon float64) (models.ResolvedAddress, error)
}

// Classifier routes a complaint to a department and describes issue photos.
type Classifier interface {
	Classify(ctx context.Context, address models.ResolvedAddress, issue string, principal models.Principal) (models.ClassificationResult, error)
	DescribeImage(ctx context.Context, base64Image, mimeType string) (string, error)
}

// Mailer dispatches a composed complaint email.
type Mailer interface {
	Send(ctx context.Context, to, subject, body string, cred mail.Credential) error
}

// Orchestrator wires the pipeline stages together.
type Orchestrator struct {
	resolver   GeoResolver
	classifier Classifier
	store      store.ComplaintStore
	mailer     Mailer
	logger     *zap.SugaredLogger
}

// NewOrchestrator creates the pipeline orchestrator.
func NewOrchestrator(resolver GeoResolver, classifier Classifier, st store.ComplaintStore, mailer Mailer, logger *zap.SugaredLogger) *Orchestrator {
	return &Orchestrator{resolver: resolver, classifier: classifier, store: st, mailer: mailer, logger: logger}
}

// ClassifyAndCompose turns coordinates plus issue text into a submittable
// draft. Geocoding failures degrade to the coordinate string; unusable or
// unreachable classification degrades to the fallback department. Only
// invalid input is returned as an error.
func (o *Orchestrator) ClassifyAndCompose(ctx context.Context, req models.ClassificationRequest, principal models.Principal) (*models.Draft, error) {
	if strings.TrimSpace(req.IssueDescription) == "" {
		return nil, apperrors.NewInvalidInput("issueDescription", "issue description is required")
	}

	address, err := o.resolver.Resolve(ctx, req.Lat, req.Lon)
	if err != nil {
		if apperrors.IsInvalidInput(err) {
			return nil, err
		}
		// Coordinates alone are enough to continue.
		o.logger.Warnw("Geocoding degraded to coordinate string", "error", err)
		address.Formatted = geo.FallbackAddress(req.Lat, req.Lon)
	}

	result, err := o.classifier.Classify(ctx, address, req.IssueDescription, principal)
	if err != nil {
		if apperrors.IsInvalidInput(err) {
			return nil, err
		}
		o.logger.Warnw("Classification unavailable, using fallback routing", "error", err)
		result = classify.Fallback()
	}

	draft := compose.Compose(result, address, req.IssueDescription, principal)
	return &draft, nil
}

// SubmitComplaint persists the complaint and then attempts delivery. The
// stored record is the source of truth: a dispatch failure is reported as a
// partial success, never rolled back.
func (o *Orchestrator) SubmitComplaint(ctx context.Context, draft models.Draft, principal models.Principal) (*models.SubmitResult, error) {
	if principal.ID == "" {
		return nil, apperrors.NewInvalidInput("principal", "authenticated principal is required")
	}
	if strings.TrimSpace(draft.Body) == "" {
		return nil, apperrors.NewInvalidInput("body", "complaint body is required")
	}
	if strings.TrimSpace(draft.DeptMail) == "" {
		return nil, apperrors.NewInvalidInput("deptMail", "department email is required")
	}
	if strings.TrimSpace(draft.Subject) == "" {
		draft.Subject = compose.DefaultSubject
	}
	if strings.TrimSpace(draft.DeptName) == "" {
		draft.DeptName = classify.FallbackDepartment
	}

	complaint, err := o.store.Create(ctx, models.ComplaintInput{
		OwnerID:     principal.ID,
		DeptName:    draft.DeptName,
		DeptMail:    draft.DeptMail,
		Subject:     draft.Subject,
		Description: draft.Body,
		Location:    draft.Location,
		Coordinates: draft.Coordinates,
	})
	if err != nil {
		return nil, err
	}
	o.recordEvent(ctx, complaint, stageStored, draft.Confidence)

	result := &models.SubmitResult{
		ComplaintNo:    complaint.ComplaintNo,
		Department:     complaint.DeptName,
		DeliveryStatus: DeliverySent,
	}

	cred := mail.Credential{
		AccessToken:  principal.AccessToken,
		RefreshToken: principal.RefreshToken,
		ExpiresAt:    principal.TokenExpiry,
	}
	if err := o.mailer.Send(ctx, draft.DeptMail, draft.Subject, draft.Body, cred); err != nil {
		o.logger.Warnw("Complaint recorded but email not sent",
			"complaint_no", complaint.ComplaintNo,
			"dept_mail", draft.DeptMail,
			"error", err,
		)
		o.recordEvent(ctx, complaint, stageMailFailed, err.Error())
		result.DeliveryStatus = DeliveryFailed
		return result, nil
	}

	o.recordEvent(ctx, complaint, stageMailSent, draft.DeptMail)
	o.logger.Infow("Complaint submitted",
		"complaint_no", complaint.ComplaintNo,
		"department", complaint.DeptName,
	)
	return result, nil
}

// ListComplaints returns the principal's complaints newest-first.
func (o *Orchestrator) ListComplaints(ctx context.Context, principal models.Principal) ([]models.Complaint, error) {
	if principal.ID == "" {
		return nil, apperrors.NewInvalidInput("principal", "authenticated principal is required")
	}
	return o.store.ListForOwner(ctx, principal.ID)
}

// GetComplaint returns one complaint, scoped to the requesting principal.
func (o *Orchestrator) GetComplaint(ctx context.Context, id uuid.UUID, principal models.Principal) (*models.Complaint, error) {
	if principal.ID == "" {
		return nil, apperrors.NewInvalidInput("principal", "authenticated principal is required")
	}
	return o.store.GetByID(ctx, id, principal.ID)
}

// DescribeIssue runs the optional vision stage on an uploaded photo.
func (o *Orchestrator) DescribeIssue(ctx context.Context, base64Image, mimeType string) (string, error) {
	return o.classifier.DescribeImage(ctx, base64Image, mimeType)
}

func (o *Orchestrator) recordEvent(ctx context.Context, complaint *models.Complaint, stage, detail string) {
	err := o.store.RecordEvent(ctx, models.SubmissionEvent{
		ComplaintNo: complaint.ComplaintNo,
		OwnerID:     complaint.OwnerID,
		Stage:       stage,
		Detail:      detail,
	})
	if err != nil {
		o.logger.Debugw("Audit event not recorded", "stage", stage, "error", err)
	}
}
