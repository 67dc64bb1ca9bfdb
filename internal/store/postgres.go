package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/civiclens/routing-server/internal/apperrors"
	"github.com/civiclens/routing-server/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// uniqueViolation is the Postgres error code raised by the complaint_no
// unique index.
const uniqueViolation = "23505"

// querier is the subset of pgxpool.Pool the store uses.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStore is the production ComplaintStore backed by pgxpool.
type PostgresStore struct {
	db     querier
	logger *zap.SugaredLogger
}

// NewPostgresStore creates a Postgres-backed complaint store.
func NewPostgresStore(db *pgxpool.Pool, logger *zap.SugaredLogger) *PostgresStore {
	return &PostgresStore{db: db, logger: logger}
}

// Create persists a new complaint. The unique index on complaint_no is the
// enforced invariant; on collision the number is regenerated once.
func (s *PostgresStore) Create(ctx context.Context, input models.ComplaintInput) (*models.Complaint, error) {
	complaint := &models.Complaint{
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

	query := `
		INSERT INTO complaints (id, complaint_no, owner_id, dept_name, dept_mail, subject, description, location, lat, lon, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`

	for attempt := 0; attempt < 2; attempt++ {
		complaint.ComplaintNo = NewComplaintNo()

		_, err := s.db.Exec(ctx, query,
			complaint.ID, complaint.ComplaintNo, complaint.OwnerID,
			complaint.DeptName, complaint.DeptMail,
			complaint.Subject, complaint.Description, complaint.Location,
			complaint.Coordinates.Lat, complaint.Coordinates.Lon,
			complaint.Status, complaint.CreatedAt,
		)
		if err == nil {
			return complaint, nil
		}

		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			s.logger.Warnw("Complaint number collision, regenerating", "complaint_no", complaint.ComplaintNo)
			continue
		}
		return nil, fmt.Errorf("%w: insert complaint: %v", apperrors.ErrStorageUnavailable, err)
	}

	return nil, apperrors.ErrStorageConflict
}

// ListForOwner returns the owner's complaints newest-first.
func (s *PostgresStore) ListForOwner(ctx context.Context, ownerID string) ([]models.Complaint, error) {
	query := `
		SELECT id, complaint_no, owner_id, dept_name, dept_mail, subject, description, location, lat, lon, status, created_at
		FROM complaints
		WHERE owner_id = $1
		ORDER BY created_at DESC
	`

	rows, err := s.db.Query(ctx, query, ownerID)
	if err != nil {
		return nil, fmt.Errorf("%w: list complaints: %v", apperrors.ErrStorageUnavailable, err)
	}
	defer rows.Close()

	var complaints []models.Complaint
	for rows.Next() {
		c, err := scanComplaint(rows)
		if err != nil {
			return nil, fmt.Errorf("scan complaint: %w", err)
		}
		complaints = append(complaints, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: list complaints: %v", apperrors.ErrStorageUnavailable, err)
	}
	return complaints, nil
}

// GetByID returns one complaint, refusing records owned by another
// principal. The ownership filter is part of the query on purpose.
func (s *PostgresStore) GetByID(ctx context.Context, id uuid.UUID, ownerID string) (*models.Complaint, error) {
	query := `
		SELECT id, complaint_no, owner_id, dept_name, dept_mail, subject, description, location, lat, lon, status, created_at
		FROM complaints
		WHERE id = $1 AND owner_id = $2
	`

	row := s.db.QueryRow(ctx, query, id, ownerID)
	c, err := scanComplaint(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("%w: get complaint: %v", apperrors.ErrStorageUnavailable, err)
	}
	return &c, nil
}

// RecordEvent appends to the submission audit trail.
func (s *PostgresStore) RecordEvent(ctx context.Context, event models.SubmissionEvent) error {
	query := `
		INSERT INTO submission_events (id, complaint_no, owner_id, stage, detail, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err := s.db.Exec(ctx, query,
		uuid.New(), event.ComplaintNo, event.OwnerID, event.Stage, event.Detail, time.Now(),
	)
	if err != nil {
		return fmt.Errorf("insert submission event: %w", err)
	}
	return nil
}

func scanComplaint(row pgx.Row) (models.Complaint, error) {
	var c models.Complaint
	err := row.Scan(&c.ID, &c.ComplaintNo, &c.OwnerID, &c.DeptName, &c.DeptMail,
		&c.Subject, &c.Description, &c.Location,
		&c.Coordinates.Lat, &c.Coordinates.Lon,
		&c.Status, &c.CreatedAt)
	return c, err
}
