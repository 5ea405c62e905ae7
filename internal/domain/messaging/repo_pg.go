package messaging

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/luskaa234/integrarneurpp-sub000/internal/platform/db"
)

// -- Templates --

type templateRepoPG struct{ pool *pgxpool.Pool }

func NewTemplateRepoPG(pool *pgxpool.Pool) TemplateRepository { return &templateRepoPG{pool: pool} }

func (r *templateRepoPG) conn(ctx context.Context) db.Queryable {
	return db.Conn(ctx, r.pool)
}

const templateCols = `id, name, body, category, created_at, updated_at`

func scanTemplate(row pgx.Row) (*Template, error) {
	var t Template
	err := row.Scan(&t.ID, &t.Name, &t.Body, &t.Category, &t.CreatedAt, &t.UpdatedAt)
	if db.IsNotFound(err) {
		return nil, ErrTemplateNotFound
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *templateRepoPG) Create(ctx context.Context, t *Template) error {
	t.ID = uuid.New()
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO message_template (id, name, body, category)
		VALUES ($1,$2,$3,$4)
		RETURNING created_at, updated_at`,
		t.ID, t.Name, t.Body, t.Category,
	).Scan(&t.CreatedAt, &t.UpdatedAt)
}

func (r *templateRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Template, error) {
	return scanTemplate(r.conn(ctx).QueryRow(ctx, `SELECT `+templateCols+` FROM message_template WHERE id = $1`, id))
}

func (r *templateRepoPG) Update(ctx context.Context, t *Template) error {
	err := r.conn(ctx).QueryRow(ctx, `
		UPDATE message_template SET name=$2, body=$3, category=$4, updated_at=NOW()
		WHERE id = $1
		RETURNING created_at, updated_at`,
		t.ID, t.Name, t.Body, t.Category,
	).Scan(&t.CreatedAt, &t.UpdatedAt)
	if db.IsNotFound(err) {
		return ErrTemplateNotFound
	}
	return err
}

func (r *templateRepoPG) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM message_template WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrTemplateNotFound
	}
	return nil
}

func (r *templateRepoPG) List(ctx context.Context) ([]*Template, error) {
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+templateCols+` FROM message_template ORDER BY name, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*Template
	for rows.Next() {
		t, err := scanTemplate(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, t)
	}
	return items, rows.Err()
}

// -- Service catalog --

type catalogRepoPG struct{ pool *pgxpool.Pool }

func NewCatalogRepoPG(pool *pgxpool.Pool) CatalogRepository { return &catalogRepoPG{pool: pool} }

func (r *catalogRepoPG) conn(ctx context.Context) db.Queryable {
	return db.Conn(ctx, r.pool)
}

const catalogCols = `id, name, category, price, duration_minutes, active, created_at, updated_at`

func scanCatalogItem(row pgx.Row) (*CatalogItem, error) {
	var it CatalogItem
	err := row.Scan(&it.ID, &it.Name, &it.Category, &it.Price, &it.DurationMinutes, &it.Active,
		&it.CreatedAt, &it.UpdatedAt)
	if db.IsNotFound(err) {
		return nil, ErrServiceNotFound
	}
	if err != nil {
		return nil, err
	}
	return &it, nil
}

func (r *catalogRepoPG) Create(ctx context.Context, it *CatalogItem) error {
	it.ID = uuid.New()
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO service_catalog (id, name, category, price, duration_minutes, active)
		VALUES ($1,$2,$3,$4,$5,$6)
		RETURNING created_at, updated_at`,
		it.ID, it.Name, it.Category, it.Price, it.DurationMinutes, it.Active,
	).Scan(&it.CreatedAt, &it.UpdatedAt)
}

func (r *catalogRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*CatalogItem, error) {
	return scanCatalogItem(r.conn(ctx).QueryRow(ctx, `SELECT `+catalogCols+` FROM service_catalog WHERE id = $1`, id))
}

func (r *catalogRepoPG) Update(ctx context.Context, it *CatalogItem) error {
	err := r.conn(ctx).QueryRow(ctx, `
		UPDATE service_catalog SET name=$2, category=$3, price=$4, duration_minutes=$5, active=$6,
			updated_at=NOW()
		WHERE id = $1
		RETURNING created_at, updated_at`,
		it.ID, it.Name, it.Category, it.Price, it.DurationMinutes, it.Active,
	).Scan(&it.CreatedAt, &it.UpdatedAt)
	if db.IsNotFound(err) {
		return ErrServiceNotFound
	}
	return err
}

func (r *catalogRepoPG) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM service_catalog WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrServiceNotFound
	}
	return nil
}

func (r *catalogRepoPG) List(ctx context.Context, activeOnly bool) ([]*CatalogItem, error) {
	query := `SELECT ` + catalogCols + ` FROM service_catalog`
	if activeOnly {
		query += ` WHERE active`
	}
	rows, err := r.conn(ctx).Query(ctx, query+` ORDER BY name, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*CatalogItem
	for rows.Next() {
		it, err := scanCatalogItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

// -- Message log --

type logRepoPG struct{ pool *pgxpool.Pool }

func NewLogRepoPG(pool *pgxpool.Pool) LogRepository { return &logRepoPG{pool: pool} }

func (r *logRepoPG) conn(ctx context.Context) db.Queryable {
	return db.Conn(ctx, r.pool)
}

const logCols = `id, recipient_id, phone, body, link, status, template_id, error, sent_at`

func (r *logRepoPG) Create(ctx context.Context, e *LogEntry) error {
	e.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO message_log (id, recipient_id, phone, body, link, status, template_id, error, sent_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		e.ID, e.RecipientID, e.Phone, e.Body, e.Link, e.Status, e.TemplateID, e.Error, e.SentAt)
	return err
}

func (r *logRepoPG) List(ctx context.Context, f LogFilter, limit, offset int) ([]*LogEntry, int, error) {
	where := ` WHERE 1=1`
	var args []interface{}
	idx := 1
	if f.RecipientID != nil {
		where += fmt.Sprintf(` AND recipient_id = $%d`, idx)
		args = append(args, *f.RecipientID)
		idx++
	}
	if f.Status != "" {
		where += fmt.Sprintf(` AND status = $%d`, idx)
		args = append(args, f.Status)
		idx++
	}

	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM message_log`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}
	query := `SELECT ` + logCols + ` FROM message_log` + where + ` ORDER BY sent_at DESC`
	if limit > 0 {
		query += fmt.Sprintf(` LIMIT $%d OFFSET $%d`, idx, idx+1)
		args = append(args, limit, offset)
	}
	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var items []*LogEntry
	for rows.Next() {
		var e LogEntry
		if err := rows.Scan(&e.ID, &e.RecipientID, &e.Phone, &e.Body, &e.Link, &e.Status,
			&e.TemplateID, &e.Error, &e.SentAt); err != nil {
			return nil, 0, err
		}
		items = append(items, &e)
	}
	return items, total, rows.Err()
}
