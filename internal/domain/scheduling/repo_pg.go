package scheduling

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/luskaa234/integrarneurpp-sub000/internal/platform/db"
)

type appointmentRepoPG struct{ pool *pgxpool.Pool }

func NewAppointmentRepoPG(pool *pgxpool.Pool) Repository { return &appointmentRepoPG{pool: pool} }

func (r *appointmentRepoPG) conn(ctx context.Context) db.Queryable {
	return db.Conn(ctx, r.pool)
}

const apptCols = `id, patient_id, clinician_id, date, time, status, category, price, notes, created_at, updated_at`

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment
	err := row.Scan(&a.ID, &a.PatientID, &a.ClinicianID, &a.Date, &a.Time, &a.Status,
		&a.Category, &a.Price, &a.Notes, &a.CreatedAt, &a.UpdatedAt)
	if db.IsNotFound(err) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func collect(rows pgx.Rows) ([]*Appointment, error) {
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

func (r *appointmentRepoPG) Create(ctx context.Context, a *Appointment) error {
	a.ID = uuid.New()
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO appointment (id, patient_id, clinician_id, date, time, status, category, price, notes)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		RETURNING created_at, updated_at`,
		a.ID, a.PatientID, a.ClinicianID, a.Date, a.Time, a.Status, a.Category, a.Price, a.Notes,
	).Scan(&a.CreatedAt, &a.UpdatedAt)
	if db.IsUniqueViolation(err) {
		return ErrSlotTaken
	}
	return err
}

func (r *appointmentRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return scanAppointment(r.conn(ctx).QueryRow(ctx, `SELECT `+apptCols+` FROM appointment WHERE id = $1`, id))
}

func (r *appointmentRepoPG) Update(ctx context.Context, a *Appointment) error {
	err := r.conn(ctx).QueryRow(ctx, `
		UPDATE appointment SET patient_id=$2, clinician_id=$3, date=$4, time=$5, status=$6,
			category=$7, price=$8, notes=$9, updated_at=NOW()
		WHERE id = $1
		RETURNING created_at, updated_at`,
		a.ID, a.PatientID, a.ClinicianID, a.Date, a.Time, a.Status, a.Category, a.Price, a.Notes,
	).Scan(&a.CreatedAt, &a.UpdatedAt)
	switch {
	case db.IsNotFound(err):
		return ErrNotFound
	case db.IsUniqueViolation(err):
		return ErrSlotTaken
	}
	return err
}

func (r *appointmentRepoPG) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM appointment WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *appointmentRepoPG) ListDay(ctx context.Context, clinicianID uuid.UUID, date string) ([]*Appointment, error) {
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+apptCols+` FROM appointment WHERE clinician_id = $1 AND date = $2 ORDER BY time`,
		clinicianID, date)
	if err != nil {
		return nil, err
	}
	return collect(rows)
}

func (r *appointmentRepoPG) List(ctx context.Context, f ListFilter, limit, offset int) ([]*Appointment, int, error) {
	where := ` WHERE 1=1`
	var args []interface{}
	idx := 1
	add := func(cond string, v interface{}) {
		where += fmt.Sprintf(` AND `+cond, idx)
		args = append(args, v)
		idx++
	}
	if f.PatientID != nil {
		add(`patient_id = $%d`, *f.PatientID)
	}
	if f.ClinicianID != nil {
		add(`clinician_id = $%d`, *f.ClinicianID)
	}
	if f.Date != "" {
		add(`date = $%d`, f.Date)
	}
	if f.From != "" {
		add(`date >= $%d`, f.From)
	}
	if f.To != "" {
		add(`date <= $%d`, f.To)
	}
	if f.Status != "" {
		add(`status = $%d`, f.Status)
	}

	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM appointment`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}
	query := `SELECT ` + apptCols + ` FROM appointment` + where + ` ORDER BY date, time, id`
	if limit > 0 {
		query += fmt.Sprintf(` LIMIT $%d OFFSET $%d`, idx, idx+1)
		args = append(args, limit, offset)
	}
	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	items, err := collect(rows)
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}
