// Package store persists complaint records and the per-submission audit
// trail. Two implementations exist: Postgres for production and an
// in-memory store for development and tests. Both enforce the same
// invariants: complaint numbers are unique, reads are ownership-scoped,
// and listings are newest-first.
package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/civiclens/routing-server/internal/models"
	"github.com/google/uuid"
)

// ComplaintStore is the storage contract consumed by the pipeline.
type ComplaintStore interface {
	// Create persists a new complaint, assigning its complaint number and
	// creation time. A number collision is retried once with a fresh
	// number before failing with apperrors.ErrStorageConflict.
	Create(ctx context.Context, input models.ComplaintInput) (*models.Complaint, error)

	// ListForOwner returns the owner's complaints newest-first. Read-only.
	ListForOwner(ctx context.Context, ownerID string) ([]models.Complaint, error)

	// GetByID returns one complaint. A record owned by a different
	// principal yields apperrors.ErrNotFound, never the record.
	GetByID(ctx context.Context, id uuid.UUID, ownerID string) (*models.Complaint, error)

	// RecordEvent appends to the submission audit trail. Best-effort:
	// callers ignore the error.
	RecordEvent(ctx context.Context, event models.SubmissionEvent) error
}

// NewComplaintNo generates a display/idempotency key: "CMP" + unix millis +
// a short entropy suffix. Uniqueness is enforced by the storage layer, not
// by this scheme; the entropy only makes collisions negligible under
// concurrent creation.
func NewComplaintNo() string {
	entropy := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:6])
	return fmt.Sprintf("CMP%d%s", time.Now().UnixMilli(), entropy)
}
