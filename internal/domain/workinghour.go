package domain

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/uptrace/bun"
)

var (
	ErrWorkingHourNotFound = errors.New("working hour not found")
	ErrBadClockTime        = errors.New("invalid clock time")
)

// WorkingHour is a bookable time-of-day slot. The catalog is reference data:
// rows are created at setup and never mutated, so the struct carries no
// timestamps.
type WorkingHour struct {
	bun.BaseModel `bun:"table:working_hours" json:"-"`

	ID   int64  `bun:"id,pk" json:"id"`
	Name string `bun:"name,notnull" json:"name"`
}

// ParseClockTime decodes a 12-hour clock display name ("9:00 AM", "09:00 am")
// into the offset from midnight. The meridiem is matched case-insensitively.
func ParseClockTime(text string) (time.Duration, error) {
	s := strings.ToUpper(strings.TrimSpace(text))
	t, err := time.Parse("3:04 PM", s)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrBadClockTime, text)
	}
	return time.Duration(t.Hour())*time.Hour + time.Duration(t.Minute())*time.Minute, nil
}

// Catalog is the fixed set of working hours, ordered by time-of-day.
// Immutable after construction; safe for concurrent reads.
type Catalog struct {
	ordered []WorkingHour
	byID    map[int64]WorkingHour
	byClock map[time.Duration]WorkingHour
}

func NewCatalog(hours []WorkingHour) (*Catalog, error) {
	c := &Catalog{
		ordered: make([]WorkingHour, 0, len(hours)),
		byID:    make(map[int64]WorkingHour, len(hours)),
		byClock: make(map[time.Duration]WorkingHour, len(hours)),
	}
	for _, wh := range hours {
		clock, err := ParseClockTime(wh.Name)
		if err != nil {
			return nil, err
		}
		if _, dup := c.byID[wh.ID]; dup {
			return nil, fmt.Errorf("duplicate working hour id %d", wh.ID)
		}
		if _, dup := c.byClock[clock]; dup {
			return nil, fmt.Errorf("duplicate working hour %q", wh.Name)
		}
		c.ordered = append(c.ordered, wh)
		c.byID[wh.ID] = wh
		c.byClock[clock] = wh
	}
	sort.Slice(c.ordered, func(i, j int) bool {
		// names are known parseable here
		a, _ := ParseClockTime(c.ordered[i].Name)
		b, _ := ParseClockTime(c.ordered[j].Name)
		return a < b
	})
	return c, nil
}

// List returns the catalog in ascending time-of-day order.
func (c *Catalog) List() []WorkingHour {
	out := make([]WorkingHour, len(c.ordered))
	copy(out, c.ordered)
	return out
}

func (c *Catalog) ByID(id int64) (WorkingHour, error) {
	wh, ok := c.byID[id]
	if !ok {
		return WorkingHour{}, ErrWorkingHourNotFound
	}
	return wh, nil
}

// ByName resolves user-supplied slot text. Both "9:00 am" and "09:00 AM"
// resolve to the same entry because lookup goes through the decoded
// time-of-day, not the raw string.
func (c *Catalog) ByName(text string) (WorkingHour, error) {
	clock, err := ParseClockTime(text)
	if err != nil {
		return WorkingHour{}, err
	}
	wh, ok := c.byClock[clock]
	if !ok {
		return WorkingHour{}, ErrWorkingHourNotFound
	}
	return wh, nil
}

// DefaultWorkingHours is the clinic's bookable grid, hourly 9:00 AM through
// 5:00 PM. The postgres migration seeds the same rows.
func DefaultWorkingHours() []WorkingHour {
	return []WorkingHour{
		{ID: 1, Name: "9:00 AM"},
		{ID: 2, Name: "10:00 AM"},
		{ID: 3, Name: "11:00 AM"},
		{ID: 4, Name: "12:00 PM"},
		{ID: 5, Name: "1:00 PM"},
		{ID: 6, Name: "2:00 PM"},
		{ID: 7, Name: "3:00 PM"},
		{ID: 8, Name: "4:00 PM"},
		{ID: 9, Name: "5:00 PM"},
	}
}
