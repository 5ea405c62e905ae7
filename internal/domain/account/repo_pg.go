package account

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/luskaa234/integrarneurpp-sub000/internal/platform/db"
)

type accountRepoPG struct{ pool *pgxpool.Pool }

func NewAccountRepoPG(pool *pgxpool.Pool) Repository { return &accountRepoPG{pool: pool} }

func (r *accountRepoPG) conn(ctx context.Context) db.Queryable {
	return db.Conn(ctx, r.pool)
}

const accountCols = `id, name, email, phone, role, is_active, license_number,
	specialty, tax_id, address, birth_date, created_at, updated_at`

func scanAccount(row pgx.Row, extra ...interface{}) (*Account, error) {
	var a Account
	dest := []interface{}{&a.ID, &a.Name, &a.Email, &a.Phone, &a.Role, &a.IsActive, &a.LicenseNumber,
		&a.Specialty, &a.TaxID, &a.Address, &a.BirthDate, &a.CreatedAt, &a.UpdatedAt}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		if db.IsNotFound(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &a, nil
}

func (r *accountRepoPG) Create(ctx context.Context, a *Account, passwordHash string) error {
	a.ID = uuid.New()
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO account (id, name, email, phone, password_hash, role, is_active,
			license_number, specialty, tax_id, address, birth_date)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
		RETURNING created_at, updated_at`,
		a.ID, a.Name, a.Email, a.Phone, passwordHash, a.Role, a.IsActive,
		a.LicenseNumber, a.Specialty, a.TaxID, a.Address, a.BirthDate).Scan(&a.CreatedAt, &a.UpdatedAt)
	if db.IsUniqueViolation(err) {
		return ErrEmailTaken
	}
	return err
}

func (r *accountRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Account, error) {
	return scanAccount(r.conn(ctx).QueryRow(ctx, `SELECT `+accountCols+` FROM account WHERE id = $1`, id))
}

func (r *accountRepoPG) GetByEmail(ctx context.Context, email string) (*Account, string, error) {
	var hash string
	a, err := scanAccount(r.conn(ctx).QueryRow(ctx,
		`SELECT `+accountCols+`, password_hash FROM account WHERE LOWER(email) = LOWER($1)`, email), &hash)
	if err != nil {
		return nil, "", err
	}
	return a, hash, nil
}

func (r *accountRepoPG) GetPasswordHash(ctx context.Context, id uuid.UUID) (string, error) {
	var hash string
	err := r.conn(ctx).QueryRow(ctx, `SELECT password_hash FROM account WHERE id = $1`, id).Scan(&hash)
	if db.IsNotFound(err) {
		return "", ErrNotFound
	}
	return hash, err
}

func (r *accountRepoPG) Update(ctx context.Context, a *Account) error {
	err := r.conn(ctx).QueryRow(ctx, `
		UPDATE account SET name=$2, email=$3, phone=$4, role=$5, is_active=$6,
			license_number=$7, specialty=$8, tax_id=$9, address=$10, birth_date=$11,
			updated_at=NOW()
		WHERE id = $1
		RETURNING created_at, updated_at`,
		a.ID, a.Name, a.Email, a.Phone, a.Role, a.IsActive,
		a.LicenseNumber, a.Specialty, a.TaxID, a.Address, a.BirthDate).Scan(&a.CreatedAt, &a.UpdatedAt)
	switch {
	case db.IsNotFound(err):
		return ErrNotFound
	case db.IsUniqueViolation(err):
		return ErrEmailTaken
	}
	return err
}

func (r *accountRepoPG) SetPassword(ctx context.Context, id uuid.UUID, passwordHash string) error {
	tag, err := r.conn(ctx).Exec(ctx,
		`UPDATE account SET password_hash = $2, updated_at = NOW() WHERE id = $1`, id, passwordHash)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *accountRepoPG) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM account WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *accountRepoPG) List(ctx context.Context, f ListFilter, limit, offset int) ([]*Account, int, error) {
	where := ` WHERE 1=1`
	var args []interface{}
	idx := 1
	if f.Role != "" {
		where += fmt.Sprintf(` AND role = $%d`, idx)
		args = append(args, f.Role)
		idx++
	}
	if f.Active != nil {
		where += fmt.Sprintf(` AND is_active = $%d`, idx)
		args = append(args, *f.Active)
		idx++
	}

	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM account`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + accountCols + ` FROM account` + where + ` ORDER BY name, id`
	if limit > 0 {
		query += fmt.Sprintf(` LIMIT $%d OFFSET $%d`, idx, idx+1)
		args = append(args, limit, offset)
	}
	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, a)
	}
	return items, total, rows.Err()
}
