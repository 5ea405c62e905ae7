package financial

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/luskaa234/integrarneurpp-sub000/internal/platform/db"
)

type recordRepoPG struct{ pool *pgxpool.Pool }

func NewRecordRepoPG(pool *pgxpool.Pool) Repository { return &recordRepoPG{pool: pool} }

func (r *recordRepoPG) conn(ctx context.Context) db.Queryable {
	return db.Conn(ctx, r.pool)
}

const recordCols = `id, kind, amount, description, category, date, status, appointment_id, created_at, updated_at`

func scanRecord(row pgx.Row) (*Record, error) {
	var rec Record
	err := row.Scan(&rec.ID, &rec.Kind, &rec.Amount, &rec.Description, &rec.Category,
		&rec.Date, &rec.Status, &rec.AppointmentID, &rec.CreatedAt, &rec.UpdatedAt)
	if db.IsNotFound(err) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func collect(rows pgx.Rows) ([]*Record, error) {
	defer rows.Close()
	var items []*Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, rec)
	}
	return items, rows.Err()
}

func (r *recordRepoPG) Create(ctx context.Context, rec *Record) error {
	rec.ID = uuid.New()
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO financial_record (id, kind, amount, description, category, date, status, appointment_id)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		RETURNING created_at, updated_at`,
		rec.ID, rec.Kind, rec.Amount, rec.Description, rec.Category, rec.Date, rec.Status, rec.AppointmentID,
	).Scan(&rec.CreatedAt, &rec.UpdatedAt)
}

func (r *recordRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Record, error) {
	return scanRecord(r.conn(ctx).QueryRow(ctx, `SELECT `+recordCols+` FROM financial_record WHERE id = $1`, id))
}

func (r *recordRepoPG) Update(ctx context.Context, rec *Record) error {
	err := r.conn(ctx).QueryRow(ctx, `
		UPDATE financial_record SET kind=$2, amount=$3, description=$4, category=$5, date=$6,
			status=$7, appointment_id=$8, updated_at=NOW()
		WHERE id = $1
		RETURNING created_at, updated_at`,
		rec.ID, rec.Kind, rec.Amount, rec.Description, rec.Category, rec.Date, rec.Status, rec.AppointmentID,
	).Scan(&rec.CreatedAt, &rec.UpdatedAt)
	if db.IsNotFound(err) {
		return ErrNotFound
	}
	return err
}

func (r *recordRepoPG) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM financial_record WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *recordRepoPG) DeleteByAppointment(ctx context.Context, appointmentID uuid.UUID) ([]*Record, error) {
	rows, err := r.conn(ctx).Query(ctx,
		`DELETE FROM financial_record WHERE appointment_id = $1 RETURNING `+recordCols, appointmentID)
	if err != nil {
		return nil, err
	}
	return collect(rows)
}

func (r *recordRepoPG) List(ctx context.Context, f ListFilter, limit, offset int) ([]*Record, int, error) {
	where := ` WHERE 1=1`
	var args []interface{}
	idx := 1
	add := func(cond string, v interface{}) {
		where += fmt.Sprintf(` AND `+cond, idx)
		args = append(args, v)
		idx++
	}
	if f.Kind != "" {
		add(`kind = $%d`, f.Kind)
	}
	if f.Status != "" {
		add(`status = $%d`, f.Status)
	}
	if f.AppointmentID != nil {
		add(`appointment_id = $%d`, *f.AppointmentID)
	}
	if f.From != "" {
		add(`date >= $%d`, f.From)
	}
	if f.To != "" {
		add(`date <= $%d`, f.To)
	}

	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM financial_record`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}
	query := `SELECT ` + recordCols + ` FROM financial_record` + where + ` ORDER BY date DESC, created_at DESC`
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
