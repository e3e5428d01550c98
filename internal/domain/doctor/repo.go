package doctor

import (
	"context"
	"time"
)

// Repository persists doctors. Implementations return apperr.ErrDoctorNotFound
// for missing rows, apperr.ErrDoctorAlreadyExists when the name and
// specialization collide and apperr.ErrDoctorHasAppointments when a delete is
// blocked by appointments.
type Repository interface {
	Create(ctx context.Context, d *Doctor) error
	GetByID(ctx context.Context, id int64) (*Doctor, error)
	Update(ctx context.Context, d *Doctor) error
	Delete(ctx context.Context, id int64) error
	List(ctx context.Context, f Filter) ([]*Doctor, error)
	IsSlotAvailable(ctx context.Context, doctorID int64, date time.Time, slotIndex int) (bool, error)
}
