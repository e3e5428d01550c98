package scheduling

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/medbook/medbook/internal/platform/apperr"
	"github.com/medbook/medbook/internal/platform/db"
)

const (
	constraintUserSlot          = "uq_user_slot_planned"
	constraintDoctorSlot        = "uq_doctor_slot_planned"
	constraintDoctorSlotHistory = "uq_doctor_slot"
	constraintDoctorRef         = "fk_appointments_doctor"
)

type repoPG struct{ pool db.Queryable }

func NewRepoPG(pool *pgxpool.Pool) Repository { return &repoPG{pool: pool} }

func (r *repoPG) conn(ctx context.Context) db.Queryable {
	return db.Conn(ctx, r.pool)
}

const appointmentCols = `id, user_id, doctor_id, date, slot_index, status, created_at, updated_at`

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var (
		a    Appointment
		date time.Time
	)
	err := row.Scan(&a.ID, &a.UserID, &a.DoctorID, &date, &a.SlotIndex, &a.Status, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, apperr.ErrAppointmentNotFound
		}
		return nil, err
	}
	a.Date = DateOf(date)
	return &a, nil
}

// translate maps constraint violations raised by concurrent bookings onto the
// conflicts the service reports for its own pre-checks.
func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case db.IsUniqueViolation(err, constraintUserSlot):
		return apperr.ErrAppointmentAlreadyExists.Wrap(err)
	case db.IsUniqueViolation(err, constraintDoctorSlot, constraintDoctorSlotHistory):
		return apperr.ErrDoctorSlotBusy.Wrap(err)
	case db.IsForeignKeyViolation(err, constraintDoctorRef):
		return apperr.ErrDoctorNotFound.Wrap(err)
	}
	return err
}

func (r *repoPG) Create(ctx context.Context, a *Appointment) error {
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO appointments (user_id, doctor_id, date, slot_index, status)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at, updated_at`,
		a.UserID, a.DoctorID, a.Date.Time, a.SlotIndex, a.Status,
	).Scan(&a.ID, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert appointment: %w", translate(err))
	}
	return nil
}

func (r *repoPG) GetByID(ctx context.Context, id int64) (*Appointment, error) {
	return scanAppointment(r.conn(ctx).QueryRow(ctx,
		`SELECT `+appointmentCols+` FROM appointments WHERE id = $1`, id))
}

func (r *repoPG) UpdateStatus(ctx context.Context, id int64, status Status) (*Appointment, error) {
	a, err := scanAppointment(r.conn(ctx).QueryRow(ctx, `
		UPDATE appointments SET status = $2, updated_at = NOW()
		WHERE id = $1
		RETURNING `+appointmentCols, id, status))
	if err != nil {
		return nil, fmt.Errorf("update appointment %d: %w", id, translate(err))
	}
	return a, nil
}

func (r *repoPG) List(ctx context.Context, f Filter) ([]*Appointment, error) {
	var w db.Filter
	if f.ID != nil {
		w.Eq("id", *f.ID)
	}
	if f.UserID != nil {
		w.Eq("user_id", *f.UserID)
	}
	if f.DoctorID != nil {
		w.Eq("doctor_id", *f.DoctorID)
	}
	if f.Date != nil {
		w.Eq("date", f.Date.Time)
	}
	if f.SlotIndex != nil {
		w.Eq("slot_index", *f.SlotIndex)
	}
	if f.Status != nil {
		w.Eq("status", *f.Status)
	}

	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+appointmentCols+` FROM appointments`+w.Where()+` ORDER BY date, slot_index, id`, w.Args()...)
	if err != nil {
		return nil, fmt.Errorf("list appointments: %w", err)
	}
	defer rows.Close()

	var items []*Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, a)
	}
	return items, rows.Err()
}

func (r *repoPG) PlannedSlots(ctx context.Context, doctorID int64, date Date) ([]int, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT slot_index FROM appointments
		WHERE doctor_id = $1 AND date = $2 AND status = 'PLANNED'
		ORDER BY slot_index`, doctorID, date.Time)
	if err != nil {
		return nil, fmt.Errorf("planned slots: %w", err)
	}
	return pgx.CollectRows(rows, pgx.RowTo[int])
}

// FinishExpired finishes every planned appointment whose slot ended. A planned
// row whose exact tuple already has a FINISHED row (a slot rebooked after it
// was finished) cannot become a second FINISHED row under uq_doctor_slot, so it
// is merged into the existing one instead.
func (r *repoPG) FinishExpired(ctx context.Context, today Date, minutes int) (int64, error) {
	args := []any{today.Time, int(SlotDuration / time.Minute), minutes}
	const expired = `a.status = 'PLANNED'
		  AND (a.date < $1 OR (a.date = $1 AND (a.slot_index + 1) * $2 <= $3))`
	const finishedTwin = `SELECT 1 FROM appointments f
		WHERE f.doctor_id = a.doctor_id AND f.date = a.date AND f.slot_index = a.slot_index
		  AND f.user_id = a.user_id AND f.status = 'FINISHED'`

	merged, err := r.conn(ctx).Exec(ctx, `
		DELETE FROM appointments a
		WHERE `+expired+` AND EXISTS (`+finishedTwin+`)`, args...)
	if err != nil {
		return 0, fmt.Errorf("merge finished appointments: %w", err)
	}

	updated, err := r.conn(ctx).Exec(ctx, `
		UPDATE appointments a SET status = 'FINISHED', updated_at = NOW()
		WHERE `+expired, args...)
	if err != nil {
		return 0, fmt.Errorf("finish expired appointments: %w", err)
	}
	return merged.RowsAffected() + updated.RowsAffected(), nil
}
