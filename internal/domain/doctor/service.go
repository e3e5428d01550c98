package doctor

import (
	"context"
	"errors"
	"time"

	"github.com/medbook/medbook/internal/platform/apperr"
)

type Service struct {
	doctors Repository
}

func NewService(doctors Repository) *Service {
	return &Service{doctors: doctors}
}

// Create registers a doctor. A doctor with the same full name and
// specialization already present yields ErrDoctorAlreadyExists.
func (s *Service) Create(ctx context.Context, in CreateInput) (*Doctor, error) {
	in.normalize()
	if err := in.Validate(); err != nil {
		return nil, err
	}

	existing, err := s.doctors.List(ctx, Filter{
		FirstName:      &in.FirstName,
		Surname:        &in.Surname,
		MiddleName:     &in.MiddleName,
		Specialization: &in.Specialization,
	})
	if err != nil {
		return nil, err
	}
	if len(existing) > 0 {
		return nil, apperr.ErrDoctorAlreadyExists
	}

	d := &Doctor{
		FirstName:      in.FirstName,
		Surname:        in.Surname,
		MiddleName:     in.MiddleName,
		Specialization: in.Specialization,
		Description:    in.Description,
	}
	if err := s.doctors.Create(ctx, d); err != nil {
		return nil, err
	}
	return d, nil
}

func (s *Service) Update(ctx context.Context, id int64, in UpdateInput) (*Doctor, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	d, err := s.doctors.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if in.Specialization != nil {
		d.Specialization = *in.Specialization
	}
	if in.Description != nil {
		d.Description = *in.Description
	}
	if err := s.doctors.Update(ctx, d); err != nil {
		return nil, err
	}
	return d, nil
}

func (s *Service) Delete(ctx context.Context, id int64) error {
	if _, err := s.doctors.GetByID(ctx, id); err != nil {
		return err
	}
	return s.doctors.Delete(ctx, id)
}

func (s *Service) Get(ctx context.Context, id int64) (*Doctor, error) {
	return s.doctors.GetByID(ctx, id)
}

// Exists reports whether a doctor with id is registered.
func (s *Service) Exists(ctx context.Context, id int64) (bool, error) {
	_, err := s.doctors.GetByID(ctx, id)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, apperr.ErrDoctorNotFound):
		return false, nil
	default:
		return false, err
	}
}

func (s *Service) List(ctx context.Context, f Filter) ([]*Doctor, error) {
	if f.Specialization != nil && !f.Specialization.Valid() {
		return nil, apperr.BadRequest("invalid specialization: %q", *f.Specialization)
	}
	items, err := s.doctors.List(ctx, f)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []*Doctor{}
	}
	return items, nil
}

// IsSlotAvailable reports whether the doctor has no planned appointment in
// the slot.
func (s *Service) IsSlotAvailable(ctx context.Context, doctorID int64, date time.Time, slotIndex int) (bool, error) {
	return s.doctors.IsSlotAvailable(ctx, doctorID, date, slotIndex)
}
