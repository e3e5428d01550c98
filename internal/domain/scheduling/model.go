package scheduling

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/medbook/medbook/internal/platform/apperr"
)

// Status is the lifecycle state of an appointment.
//
//	PLANNED -> CANCELLED (owner cancels)
//	PLANNED -> FINISHED  (sweeper, once the slot has ended)
//	CANCELLED -> PLANNED (same user rebooks the same doctor slot)
//
// Admins may overwrite the status of any appointment with ChangeStatus.
type Status string

const (
	StatusPlanned   Status = "PLANNED"
	StatusFinished  Status = "FINISHED"
	StatusCancelled Status = "CANCELLED"
)

func (s Status) Valid() bool {
	switch s {
	case StatusPlanned, StatusFinished, StatusCancelled:
		return true
	}
	return false
}

const (
	SlotDuration = 20 * time.Minute
	SlotsPerDay  = 24
)

// ValidSlot reports whether idx addresses one of the day's slots.
func ValidSlot(idx int) bool {
	return idx >= 0 && idx < SlotsPerDay
}

const dateLayout = "2006-01-02"

// Date is a calendar date without a time of day. It is stored as midnight UTC
// and rendered as YYYY-MM-DD.
type Date struct {
	time.Time
}

func NewDate(year int, month time.Month, day int) Date {
	return Date{time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// DateOf returns the calendar date of t in t's own location.
func DateOf(t time.Time) Date {
	return NewDate(t.Year(), t.Month(), t.Day())
}

func ParseDate(s string) (Date, error) {
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return Date{}, fmt.Errorf("invalid date %q: expected YYYY-MM-DD", s)
	}
	return Date{t}, nil
}

func (d Date) String() string {
	return d.Format(dateLayout)
}

func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *Date) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// SlotStart returns the wall-clock start of slot idx on date in loc. Slot 0
// starts at local midnight.
func SlotStart(date Date, idx int, loc *time.Location) time.Time {
	midnight := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, loc)
	return midnight.Add(time.Duration(idx) * SlotDuration)
}

func SlotEnd(date Date, idx int, loc *time.Location) time.Time {
	return SlotStart(date, idx, loc).Add(SlotDuration)
}

type Appointment struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"user_id"`
	DoctorID  int64     `json:"doctor_id"`
	Date      Date      `json:"date"`
	SlotIndex int       `json:"slot_index"`
	Status    Status    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type CreateInput struct {
	DoctorID  int64 `json:"doctor_id"`
	Date      Date  `json:"date"`
	SlotIndex *int  `json:"slot_index"`
}

func (in CreateInput) Validate() error {
	if in.DoctorID <= 0 {
		return apperr.BadRequest("doctor_id is required")
	}
	if in.Date.IsZero() {
		return apperr.BadRequest("date is required")
	}
	if in.SlotIndex == nil {
		return apperr.BadRequest("slot_index is required")
	}
	if !ValidSlot(*in.SlotIndex) {
		return apperr.ErrInvalidSlot
	}
	return nil
}

type StatusInput struct {
	Status Status `json:"status"`
}

// Filter narrows List. Set fields are combined with AND.
type Filter struct {
	ID        *int64
	UserID    *int64
	DoctorID  *int64
	Date      *Date
	SlotIndex *int
	Status    *Status
}

func (f Filter) Validate() error {
	if f.Status != nil && !f.Status.Valid() {
		return apperr.ErrInvalidStatus
	}
	if f.SlotIndex != nil && !ValidSlot(*f.SlotIndex) {
		return apperr.ErrInvalidSlot
	}
	return nil
}

// SlotAvailability describes one slot of a doctor's day.
type SlotAvailability struct {
	SlotIndex int       `json:"slot_index"`
	Start     time.Time `json:"start"`
	End       time.Time `json:"end"`
	Available bool      `json:"available"`
}
