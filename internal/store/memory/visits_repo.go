package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"petclinic/backend/internal/domain"
	"petclinic/backend/internal/store"
)

type slotKey struct {
	date          string
	workingHourID int64
}

// VisitRepo is an in-memory store.VisitRepository for dev mode and tests.
// The slot index mutates under the same lock as the visit map, which makes
// the uniqueness check and the write a single atomic step, matching the
// constraint the postgres schema enforces.
type VisitRepo struct {
	mu     sync.RWMutex
	byID   map[uuid.UUID]domain.Visit
	bySlot map[slotKey]uuid.UUID

	hours []domain.WorkingHour
}

func NewVisitRepo(hours []domain.WorkingHour) *VisitRepo {
	return &VisitRepo{
		byID:   make(map[uuid.UUID]domain.Visit),
		bySlot: make(map[slotKey]uuid.UUID),
		hours:  hours,
	}
}

func (r *VisitRepo) Create(ctx context.Context, visit domain.Visit) (domain.Visit, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := slotKey{date: dayKey(visit.Date), workingHourID: visit.WorkingHourID}
	if _, taken := r.bySlot[key]; taken {
		return domain.Visit{}, store.ErrConflict
	}

	if visit.ID == uuid.Nil {
		id, err := uuid.NewV7()
		if err != nil {
			return domain.Visit{}, err
		}
		visit.ID = id
	}
	if visit.CreatedAt.IsZero() {
		visit.CreatedAt = time.Now().UTC()
	}

	r.byID[visit.ID] = visit
	r.bySlot[key] = visit.ID
	return visit, nil
}

func (r *VisitRepo) ListByPet(ctx context.Context, petID int64) ([]domain.Visit, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]domain.Visit, 0)
	for _, v := range r.byID {
		if v.PetID == petID {
			out = append(out, v)
		}
	}

	// Most recent date first; within a date the oldest booking sorts last.
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.After(out[j].Date)
		}
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID.String() > out[j].ID.String()
	})

	return out, nil
}

func (r *VisitRepo) Delete(ctx context.Context, visitID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	v, ok := r.byID[visitID]
	if !ok {
		return store.ErrNotFound
	}
	delete(r.byID, visitID)
	delete(r.bySlot, slotKey{date: dayKey(v.Date), workingHourID: v.WorkingHourID})
	return nil
}

func (r *VisitRepo) WorkingHours(ctx context.Context) ([]domain.WorkingHour, error) {
	out := make([]domain.WorkingHour, len(r.hours))
	copy(out, r.hours)
	return out, nil
}

func dayKey(t time.Time) string {
	return t.Format("2006-01-02")
}
