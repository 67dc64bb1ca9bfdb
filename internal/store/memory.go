package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/civiclens/routing-server/internal/apperrors"
	"github.com/civiclens/routing-server/internal/models"
	"github.com/google/uuid"
)

// MemoryStore is an in-memory ComplaintStore used in development (no
// DATABASE_URL) and in tests. It enforces the same invariants as the
// Postgres store, including complaint-number uniqueness.
type MemoryStore struct {
	mu         sync.Mutex
	complaints []models.Complaint
	numbers    map[string]struct{}
	events     []models.SubmissionEvent
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{numbers: make(map[string]struct{})}
}

// Create persists a new complaint with a unique complaint number.
func (s *MemoryStore) Create(ctx context.Context, input models.ComplaintInput) (*models.Complaint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	complaint := models.Complaint{
		ID:          uuid.New(),
		OwnerID:     input.OwnerID,
		DeptName:    input.DeptName,
		DeptMail:    input.DeptMail,
		Subject:     input.Subject,
		Description: input.Description,
		Location:    input.Location,
		Coordinates: input.Coordinates,
		Status:      models.StatusPending,
		CreatedAt:   time.Now(),
	}

	for attempt := 0; attempt < 2; attempt++ {
		no := NewComplaintNo()
		if _, taken := s.numbers[no]; taken {
			continue
		}
		complaint.ComplaintNo = no
		s.numbers[no] = struct{}{}
		s.complaints = append(s.complaints, complaint)
		return &complaint, nil
	}
	return nil, apperrors.ErrStorageConflict
}

// ListForOwner returns the owner's complaints newest-first.
func (s *MemoryStore) ListForOwner(ctx context.Context, ownerID string) ([]models.Complaint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []models.Complaint
	for _, c := range s.complaints {
		if c.OwnerID == ownerID {
			out = append(out, c)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

// GetByID returns one complaint, scoped to its owner.
func (s *MemoryStore) GetByID(ctx context.Context, id uuid.UUID, ownerID string) (*models.Complaint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, c := range s.complaints {
		if c.ID == id && c.OwnerID == ownerID {
			found := c
			return &found, nil
		}
	}
	return nil, apperrors.ErrNotFound
}

// RecordEvent appends to the submission audit trail.
func (s *MemoryStore) RecordEvent(ctx context.Context, event models.SubmissionEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	event.ID = uuid.New()
	event.CreatedAt = time.Now()
	s.events = append(s.events, event)
	return nil
}

// Events returns a copy of the recorded audit trail (test helper).
func (s *MemoryStore) Events() []models.SubmissionEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.SubmissionEvent(nil), s.events...)
}
