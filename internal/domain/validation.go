package domain

import "time"

const (
	FieldDate = "date"
	FieldTime = "time"
)

const (
	MsgScheduledInPast    = "Appointment can not be scheduled in the past"
	MsgScheduledOnWeekend = "Appointment can not be scheduled on weekend"
	MsgSlotConflict       = "Appointment conflict. Looks like this time has been booked by some other pet. Please select different date and time."
)

// Violation is a single field-scoped reason a candidate visit cannot be
// scheduled as submitted.
type Violation struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Candidate is a proposed visit that has not been persisted yet. Slot must
// already be resolved against the catalog.
type Candidate struct {
	PetID int64
	Date  time.Time
	Slot  WorkingHour
}

// ValidateCandidate checks a candidate against the calendar rules. All rules
// are evaluated; none short-circuits another, so a single attempt can come
// back with several violations. now is explicit so boundary cases are
// reproducible under test.
//
// A slot name that does not decode as a clock time is reported as an error,
// never as an empty violation set.
func ValidateCandidate(c Candidate, now time.Time) ([]Violation, error) {
	slotClock, err := ParseClockTime(c.Slot.Name)
	if err != nil {
		return nil, err
	}

	var out []Violation

	day := dateOnly(c.Date)
	today := dateOnly(now)

	if day.Before(today) {
		out = append(out, Violation{Field: FieldDate, Message: MsgScheduledInPast})
	}

	if wd := c.Date.Weekday(); wd == time.Saturday || wd == time.Sunday {
		out = append(out, Violation{Field: FieldDate, Message: MsgScheduledOnWeekend})
	}

	// Same-day cutoff: a slot today must start at least an hour from now.
	// Future dates are never checked against the clock. When now+1h rolls
	// past midnight the cutoff exceeds every slot, which is what we want:
	// nothing today is bookable anymore.
	if day.Equal(today) {
		y, m, d := now.Date()
		midnight := time.Date(y, m, d, 0, 0, 0, 0, now.Location())
		cutoff := now.Add(time.Hour).Sub(midnight)
		if slotClock < cutoff {
			out = append(out, Violation{Field: FieldTime, Message: MsgScheduledInPast})
		}
	}

	return out, nil
}

// dateOnly normalizes to the calendar date, dropping clock and zone, so a
// UTC-parsed form date and a local clock read compare by day.
func dateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
