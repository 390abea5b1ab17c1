package postgres

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/uptrace/bun"

	"petclinic/backend/internal/domain"
	"petclinic/backend/internal/store"
)

// uniqueViolation is the pg error code raised when the visits_slot_key
// constraint rejects a second booking for the same (visit_date, working_hour_id).
const uniqueViolation = "23505"

type VisitRepo struct {
	db *bun.DB
}

func NewVisitRepo(db *bun.DB) *VisitRepo {
	return &VisitRepo{db: db}
}

func (r *VisitRepo) Create(ctx context.Context, visit domain.Visit) (domain.Visit, error) {
	m := domain.Visit{
		ID:            visit.ID,
		PetID:         visit.PetID,
		Date:          visit.Date,
		WorkingHourID: visit.WorkingHourID,
		Description:   visit.Description,
		CreatedAt:     visit.CreatedAt,
	}

	_, err := r.db.NewInsert().Model(&m).Exec(ctx)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation && pgErr.ConstraintName == "visits_slot_key" {
			return domain.Visit{}, store.ErrConflict
		}
		return domain.Visit{}, err
	}

	return m, nil
}

// ListByPet returns the pet's visit history, most recent date first. Within a
// date, later insertions sort first so the oldest booking ends up last.
func (r *VisitRepo) ListByPet(ctx context.Context, petID int64) ([]domain.Visit, error) {
	var rows []domain.Visit
	err := r.db.NewSelect().
		Model(&rows).
		Where("pet_id = ?", petID).
		OrderExpr("visit_date DESC").
		OrderExpr("created_at DESC").
		OrderExpr("id DESC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *VisitRepo) Delete(ctx context.Context, visitID uuid.UUID) error {
	res, err := r.db.NewDelete().
		Model((*domain.Visit)(nil)).
		Where("id = ?", visitID).
		Exec(ctx)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (r *VisitRepo) WorkingHours(ctx context.Context) ([]domain.WorkingHour, error) {
	var rows []domain.WorkingHour
	err := r.db.NewSelect().
		Model(&rows).
		OrderExpr("id ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return rows, nil
}
