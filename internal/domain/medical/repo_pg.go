package medical

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

const recordCols = `id, patient_id, clinician_id, date, diagnosis, treatment, notes, created_at, updated_at`

func scanRecord(row pgx.Row) (*Record, error) {
	var rec Record
	err := row.Scan(&rec.ID, &rec.PatientID, &rec.ClinicianID, &rec.Date, &rec.Diagnosis,
		&rec.Treatment, &rec.Notes, &rec.CreatedAt, &rec.UpdatedAt)
	if db.IsNotFound(err) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func (r *recordRepoPG) Create(ctx context.Context, rec *Record) error {
	rec.ID = uuid.New()
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO medical_record (id, patient_id, clinician_id, date, diagnosis, treatment, notes)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		RETURNING created_at, updated_at`,
		rec.ID, rec.PatientID, rec.ClinicianID, rec.Date, rec.Diagnosis, rec.Treatment, rec.Notes,
	).Scan(&rec.CreatedAt, &rec.UpdatedAt)
}

func (r *recordRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Record, error) {
	return scanRecord(r.conn(ctx).QueryRow(ctx, `SELECT `+recordCols+` FROM medical_record WHERE id = $1`, id))
}

func (r *recordRepoPG) Update(ctx context.Context, rec *Record) error {
	err := r.conn(ctx).QueryRow(ctx, `
		UPDATE medical_record SET patient_id=$2, clinician_id=$3, date=$4, diagnosis=$5,
			treatment=$6, notes=$7, updated_at=NOW()
		WHERE id = $1
		RETURNING created_at, updated_at`,
		rec.ID, rec.PatientID, rec.ClinicianID, rec.Date, rec.Diagnosis, rec.Treatment, rec.Notes,
	).Scan(&rec.CreatedAt, &rec.UpdatedAt)
	if db.IsNotFound(err) {
		return ErrNotFound
	}
	return err
}

func (r *recordRepoPG) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM medical_record WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *recordRepoPG) List(ctx context.Context, f ListFilter, limit, offset int) ([]*Record, int, error) {
	where := ` WHERE 1=1`
	var args []interface{}
	idx := 1
	if f.PatientID != nil {
		where += fmt.Sprintf(` AND patient_id = $%d`, idx)
		args = append(args, *f.PatientID)
		idx++
	}
	if f.ClinicianID != nil {
		where += fmt.Sprintf(` AND clinician_id = $%d`, idx)
		args = append(args, *f.ClinicianID)
		idx++
	}

	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM medical_record`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}
	query := `SELECT ` + recordCols + ` FROM medical_record` + where + ` ORDER BY date DESC, created_at DESC`
	if limit > 0 {
		query += fmt.Sprintf(` LIMIT $%d OFFSET $%d`, idx, idx+1)
		args = append(args, limit, offset)
	}
	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var items []*Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, rec)
	}
	return items, total, rows.Err()
}
