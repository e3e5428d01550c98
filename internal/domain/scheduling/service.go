package scheduling

import (
	"context"
	"time"

	"github.com/medbook/medbook/internal/platform/apperr"
)

// DoctorDirectory is the slice of the doctor registry the booking flow needs.
type DoctorDirectory interface {
	Exists(ctx context.Context, id int64) (bool, error)
	IsSlotAvailable(ctx context.Context, doctorID int64, date time.Time, slotIndex int) (bool, error)
}

type Service struct {
	appointments Repository
	doctors      DoctorDirectory
	loc          *time.Location
}

// NewService creates the appointment service. Slot times are interpreted in
// loc; nil means UTC.
func NewService(appointments Repository, doctors DoctorDirectory, loc *time.Location) *Service {
	if loc == nil {
		loc = time.UTC
	}
	return &Service{appointments: appointments, doctors: doctors, loc: loc}
}

// Location returns the time zone slots are scheduled in.
func (s *Service) Location() *time.Location { return s.loc }

// Create books a slot for userID. The checks run in a fixed order so the
// caller sees the most specific conflict: the user's own clash first, then a
// missing doctor, then a taken doctor slot. A slot the same user cancelled
// earlier with the same doctor is reclaimed instead of inserting a new row.
func (s *Service) Create(ctx context.Context, userID int64, in CreateInput) (*Appointment, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	slot := *in.SlotIndex
	planned := StatusPlanned

	clash, err := s.appointments.List(ctx, Filter{
		UserID:    &userID,
		Date:      &in.Date,
		SlotIndex: &slot,
		Status:    &planned,
	})
	if err != nil {
		return nil, err
	}
	if len(clash) > 0 {
		return nil, apperr.ErrAppointmentAlreadyExists
	}

	ok, err := s.doctors.Exists(ctx, in.DoctorID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apperr.ErrDoctorNotFound
	}

	free, err := s.doctors.IsSlotAvailable(ctx, in.DoctorID, in.Date.Time, slot)
	if err != nil {
		return nil, err
	}
	if !free {
		return nil, apperr.ErrDoctorSlotBusy
	}

	cancelled := StatusCancelled
	previous, err := s.appointments.List(ctx, Filter{
		UserID:    &userID,
		DoctorID:  &in.DoctorID,
		Date:      &in.Date,
		SlotIndex: &slot,
		Status:    &cancelled,
	})
	if err != nil {
		return nil, err
	}
	if len(previous) > 0 {
		return s.appointments.UpdateStatus(ctx, previous[0].ID, StatusPlanned)
	}

	a := &Appointment{
		UserID:    userID,
		DoctorID:  in.DoctorID,
		Date:      in.Date,
		SlotIndex: slot,
		Status:    StatusPlanned,
	}
	if err := s.appointments.Create(ctx, a); err != nil {
		return nil, err
	}
	return a, nil
}

// Cancel cancels one of userID's own planned appointments.
func (s *Service) Cancel(ctx context.Context, userID, appointmentID int64) (*Appointment, error) {
	a, err := s.appointments.GetByID(ctx, appointmentID)
	if err != nil {
		return nil, err
	}
	if a.UserID != userID {
		return nil, apperr.ErrForbidden.WithMessage("You are not allowed to cancel this appointment")
	}
	if a.Status != StatusPlanned {
		return nil, apperr.ErrAppointmentCannotBeCancelled
	}
	return s.appointments.UpdateStatus(ctx, appointmentID, StatusCancelled)
}

// ChangeStatus overwrites the status of any appointment. Only a no-op
// transition is rejected.
func (s *Service) ChangeStatus(ctx context.Context, appointmentID int64, status Status) (*Appointment, error) {
	if !status.Valid() {
		return nil, apperr.ErrInvalidStatus
	}
	a, err := s.appointments.GetByID(ctx, appointmentID)
	if err != nil {
		return nil, err
	}
	if a.Status == status {
		return nil, apperr.ErrInvalidStatusTransition
	}
	return s.appointments.UpdateStatus(ctx, appointmentID, status)
}

func (s *Service) List(ctx context.Context, f Filter) ([]*Appointment, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}
	items, err := s.appointments.List(ctx, f)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []*Appointment{}
	}
	return items, nil
}

// FinishExpired marks every planned appointment whose slot has ended by now
// as finished and returns how many were updated. Minutes are counted as time
// elapsed since local midnight, the same clock SlotEnd uses, so DST days
// agree with the published schedule.
func (s *Service) FinishExpired(ctx context.Context, now time.Time) (int64, error) {
	today := DateOf(now.In(s.loc))
	minutes := int(now.Sub(SlotStart(today, 0, s.loc)) / time.Minute)
	return s.appointments.FinishExpired(ctx, today, minutes)
}

// DaySchedule lists every slot of the doctor's day with its availability.
func (s *Service) DaySchedule(ctx context.Context, doctorID int64, date Date) ([]SlotAvailability, error) {
	ok, err := s.doctors.Exists(ctx, doctorID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apperr.ErrDoctorNotFound
	}

	busy, err := s.appointments.PlannedSlots(ctx, doctorID, date)
	if err != nil {
		return nil, err
	}
	taken := make(map[int]bool, len(busy))
	for _, idx := range busy {
		taken[idx] = true
	}

	out := make([]SlotAvailability, SlotsPerDay)
	for i := range out {
		out[i] = SlotAvailability{
			SlotIndex: i,
			Start:     SlotStart(date, i, s.loc),
			End:       SlotEnd(date, i, s.loc),
			Available: !taken[i],
		}
	}
	return out, nil
}
