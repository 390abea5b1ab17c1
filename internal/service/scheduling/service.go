package scheduling

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"petclinic/backend/internal/domain"
	"petclinic/backend/internal/store"
)

// Status is the terminal state of one scheduling attempt.
type Status int

const (
	StatusBooked Status = iota
	StatusRejected
	StatusSlotTaken
)

func (s Status) String() string {
	switch s {
	case StatusBooked:
		return "booked"
	case StatusRejected:
		return "rejected"
	case StatusSlotTaken:
		return "slot_taken"
	default:
		return "unknown"
	}
}

type Service struct {
	repo    store.VisitRepository
	catalog *domain.Catalog
}

func NewService(repo store.VisitRepository, catalog *domain.Catalog) *Service {
	return &Service{repo: repo, catalog: catalog}
}

type ScheduleInput struct {
	PetID         int64
	Date          time.Time
	WorkingHourID int64
	Description   string

	// Now anchors the time-dependent rules. Zero means the wall clock.
	Now time.Time
}

// ScheduleResult carries exactly one of: a persisted visit (StatusBooked) or
// the violations that stopped the attempt (StatusRejected, StatusSlotTaken).
type ScheduleResult struct {
	Status     Status
	Visit      domain.Visit
	Violations []domain.Violation
}

// Schedule runs an attempt through validate -> persist. Violations stop the
// attempt before any storage access; a storage uniqueness conflict comes back
// as StatusSlotTaken with a single time-field violation. Errors are reserved
// for unresolvable input (unknown working hour) and storage faults.
func (s *Service) Schedule(ctx context.Context, in ScheduleInput) (ScheduleResult, error) {
	slot, err := s.catalog.ByID(in.WorkingHourID)
	if err != nil {
		return ScheduleResult{}, err
	}

	now := in.Now
	if now.IsZero() {
		now = time.Now()
	}

	violations, err := domain.ValidateCandidate(domain.Candidate{
		PetID: in.PetID,
		Date:  in.Date,
		Slot:  slot,
	}, now)
	if err != nil {
		return ScheduleResult{}, err
	}
	if len(violations) > 0 {
		return ScheduleResult{Status: StatusRejected, Violations: violations}, nil
	}

	visit, err := s.repo.Create(ctx, domain.Visit{
		PetID:         in.PetID,
		Date:          in.Date,
		WorkingHourID: slot.ID,
		Description:   in.Description,
	})
	if err != nil {
		if errors.Is(err, store.ErrConflict) {
			return ScheduleResult{
				Status: StatusSlotTaken,
				Violations: []domain.Violation{
					{Field: domain.FieldTime, Message: domain.MsgSlotConflict},
				},
			}, nil
		}
		return ScheduleResult{}, err
	}

	return ScheduleResult{Status: StatusBooked, Visit: visit}, nil
}

// Cancel removes a visit. There is no validation step: any existing visit may
// be cancelled regardless of date. Unknown ids surface store.ErrNotFound.
func (s *Service) Cancel(ctx context.Context, visitID uuid.UUID) error {
	return s.repo.Delete(ctx, visitID)
}

func (s *Service) VisitsForPet(ctx context.Context, petID int64) ([]domain.Visit, error) {
	return s.repo.ListByPet(ctx, petID)
}

// WorkingHours returns the catalog in ascending time-of-day order.
func (s *Service) WorkingHours() []domain.WorkingHour {
	return s.catalog.List()
}

// ResolveWorkingHour resolves user-supplied slot text ("9:00 am", "09:00 AM")
// to a catalog entry.
func (s *Service) ResolveWorkingHour(text string) (domain.WorkingHour, error) {
	return s.catalog.ByName(text)
}
