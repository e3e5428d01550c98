package scheduling

import "context"

type Repository interface {
	Create(ctx context.Context, a *Appointment) error
	GetByID(ctx context.Context, id int64) (*Appointment, error)
	UpdateStatus(ctx context.Context, id int64, status Status) (*Appointment, error)
	// List returns the matching appointments ordered by date, slot and id.
	List(ctx context.Context, f Filter) ([]*Appointment, error)
	// PlannedSlots returns the slot indexes the doctor has PLANNED on date.
	PlannedSlots(ctx context.Context, doctorID int64, date Date) ([]int, error)
	// FinishExpired moves PLANNED appointments whose slot ended at or before
	// minutes past midnight of today (or on an earlier day) to FINISHED. A row
	// whose tuple is already FINISHED is merged into that row. The count
	// covers both.
	FinishExpired(ctx context.Context, today Date, minutes int) (int64, error)
}
