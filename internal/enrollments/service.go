package enrollments

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/skillroads/skillroads-backend/pkg/db"
	"github.com/skillroads/skillroads-backend/pkg/db/models"
	pkgerrors "github.com/skillroads/skillroads-backend/pkg/errors"
)

// Service tracks which roadmaps a user has opened. Enrollment is viewing
// history only and never stands in for a paid entitlement.
type Service interface {
	EnsureEnrolled(ctx context.Context, userID, itemID uuid.UUID, now time.Time) (*models.Enrollment, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]models.Enrollment, error)
}

type service struct {
	repo *Repository
}

// NewService constructs an enrollments service instance.
func NewService(repo *Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("enrollments repository required")
	}
	return &service{repo: repo}, nil
}

// EnsureEnrolled records the first view of an item. Subsequent calls return
// the existing row, keeping FirstViewedAt at the original timestamp. A
// concurrent first view loses the insert race on the unique constraint and
// falls back to reading the winner's row.
func (s *service) EnsureEnrolled(ctx context.Context, userID, itemID uuid.UUID, now time.Time) (*models.Enrollment, error) {
	existing, err := s.repo.Find(ctx, userID, itemID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load enrollment")
	}
	if existing != nil {
		return existing, nil
	}

	enrollment := &models.Enrollment{
		ID:            uuid.New(),
		UserID:        userID,
		ItemID:        itemID,
		FirstViewedAt: now,
	}
	if err := s.repo.Create(ctx, enrollment); err != nil {
		if db.IsUniqueViolation(err, "uq_enrollments_user_item") {
			winner, findErr := s.repo.Find(ctx, userID, itemID)
			if findErr != nil {
				return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, findErr, "load enrollment after race")
			}
			return winner, nil
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create enrollment")
	}
	return enrollment, nil
}

// ListByUser returns the user's viewing history, newest first.
func (s *service) ListByUser(ctx context.Context, userID uuid.UUID) ([]models.Enrollment, error) {
	enrollments, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list enrollments")
	}
	return enrollments, nil
}
