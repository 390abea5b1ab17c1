package store

import (
	"context"

	"github.com/google/uuid"

	"petclinic/backend/internal/domain"
)

// VisitRepository is the persistence boundary for visits. Create must be
// atomic: the (visit_date, working_hour_id) uniqueness check and the write
// happen as one operation, so two racing creates for the same slot yield
// exactly one success and one ErrConflict.
type VisitRepository interface {
	Create(ctx context.Context, visit domain.Visit) (domain.Visit, error)
	ListByPet(ctx context.Context, petID int64) ([]domain.Visit, error)
	Delete(ctx context.Context, visitID uuid.UUID) error

	WorkingHours(ctx context.Context) ([]domain.WorkingHour, error)
}
