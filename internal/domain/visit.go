package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

type Visit struct {
	bun.BaseModel `bun:"table:visits"`

	ID            uuid.UUID `bun:"id,pk,type:uuid"`
	PetID         int64     `bun:"pet_id,notnull"`
	Date          time.Time `bun:"visit_date,notnull,type:date"`
	WorkingHourID int64     `bun:"working_hour_id,notnull"`
	Description   string    `bun:"description"`
	CreatedAt     time.Time `bun:"created_at,notnull"`
}

func (v *Visit) BeforeAppendModel(ctx context.Context, query bun.Query) error {
	if _, ok := query.(*bun.InsertQuery); ok {
		if v.ID == uuid.Nil {
			id, err := uuid.NewV7()
			if err != nil {
				return err
			}
			v.ID = id
		}
		if v.CreatedAt.IsZero() {
			v.CreatedAt = time.Now().UTC()
		}
	}
	return nil
}
