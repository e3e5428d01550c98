package doctor

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
	constraintFullName       = "uq_doctor_fullname_specialization"
	constraintAppointmentRef = "fk_appointments_doctor"
)

type repoPG struct{ pool db.Queryable }

func NewRepoPG(pool *pgxpool.Pool) Repository { return &repoPG{pool: pool} }

func (r *repoPG) conn(ctx context.Context) db.Queryable {
	return db.Conn(ctx, r.pool)
}

const doctorCols = `id, first_name, surname, middle_name, specialization, description, created_at, updated_at`

func scanDoctor(row pgx.Row) (*Doctor, error) {
	var d Doctor
	err := row.Scan(&d.ID, &d.FirstName, &d.Surname, &d.MiddleName,
		&d.Specialization, &d.Description, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, apperr.ErrDoctorNotFound
		}
		return nil, err
	}
	return &d, nil
}

func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case db.IsUniqueViolation(err, constraintFullName):
		return apperr.ErrDoctorAlreadyExists.Wrap(err)
	case db.IsForeignKeyViolation(err, constraintAppointmentRef):
		return apperr.ErrDoctorHasAppointments.Wrap(err)
	}
	return err
}

func (r *repoPG) Create(ctx context.Context, d *Doctor) error {
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO doctors (first_name, surname, middle_name, specialization, description)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at, updated_at`,
		d.FirstName, d.Surname, d.MiddleName, d.Specialization, d.Description,
	).Scan(&d.ID, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert doctor: %w", translate(err))
	}
	return nil
}

func (r *repoPG) GetByID(ctx context.Context, id int64) (*Doctor, error) {
	return scanDoctor(r.conn(ctx).QueryRow(ctx, `SELECT `+doctorCols+` FROM doctors WHERE id = $1`, id))
}

func (r *repoPG) Update(ctx context.Context, d *Doctor) error {
	err := r.conn(ctx).QueryRow(ctx, `
		UPDATE doctors SET specialization = $2, description = $3, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at`,
		d.ID, d.Specialization, d.Description,
	).Scan(&d.UpdatedAt)
	if err != nil {
		if db.IsNotFound(err) {
			return apperr.ErrDoctorNotFound
		}
		return fmt.Errorf("update doctor %d: %w", d.ID, translate(err))
	}
	return nil
}

func (r *repoPG) Delete(ctx context.Context, id int64) error {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM doctors WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete doctor %d: %w", id, translate(err))
	}
	if tag.RowsAffected() == 0 {
		return apperr.ErrDoctorNotFound
	}
	return nil
}

func (r *repoPG) List(ctx context.Context, f Filter) ([]*Doctor, error) {
	var w db.Filter
	if f.FirstName != nil {
		w.Eq("first_name", *f.FirstName)
	}
	if f.Surname != nil {
		w.Eq("surname", *f.Surname)
	}
	if f.MiddleName != nil {
		w.Eq("middle_name", *f.MiddleName)
	}
	if f.Specialization != nil {
		w.Eq("specialization", *f.Specialization)
	}

	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+doctorCols+` FROM doctors`+w.Where()+` ORDER BY surname, first_name, id`, w.Args()...)
	if err != nil {
		return nil, fmt.Errorf("list doctors: %w", err)
	}
	defer rows.Close()

	var items []*Doctor
	for rows.Next() {
		d, err := scanDoctor(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, d)
	}
	return items, rows.Err()
}

func (r *repoPG) IsSlotAvailable(ctx context.Context, doctorID int64, date time.Time, slotIndex int) (bool, error) {
	var busy bool
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM appointments
			WHERE doctor_id = $1 AND date = $2 AND slot_index = $3 AND status = 'PLANNED'
		)`, doctorID, date, slotIndex).Scan(&busy)
	if err != nil {
		return false, fmt.Errorf("check doctor slot: %w", err)
	}
	return !busy, nil
}
