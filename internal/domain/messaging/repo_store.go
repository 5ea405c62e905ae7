package messaging

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/luskaa234/integrarneurpp-sub000/internal/platform/store"
)

const (
	templateTable = "message_template"
	catalogTable  = "service_catalog"
	logTable      = "message_log"
)

func byID(id uuid.UUID) store.Filter { return store.Filter{"id": id.String()} }

func deleteOne(n int, err error, notFound error) error {
	if err != nil {
		return err
	}
	if n == 0 {
		return notFound
	}
	return nil
}

// -- Templates --

type templateRepoStore struct {
	rows *store.Table[Template]
	now  func() time.Time
}

func NewTemplateRepoStore(client store.Client) TemplateRepository {
	return &templateRepoStore{rows: store.NewTable[Template](client, templateTable), now: time.Now}
}

func (r *templateRepoStore) Create(ctx context.Context, t *Template) error {
	t.ID = uuid.New()
	t.CreatedAt = r.now().UTC()
	t.UpdatedAt = t.CreatedAt
	return r.rows.Insert(ctx, t)
}

func (r *templateRepoStore) GetByID(ctx context.Context, id uuid.UUID) (*Template, error) {
	t, err := r.rows.Get(ctx, byID(id))
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrTemplateNotFound
	}
	return t, err
}

func (r *templateRepoStore) Update(ctx context.Context, t *Template) error {
	t.UpdatedAt = r.now().UTC()
	err := r.rows.Update(ctx, byID(t.ID), t)
	if errors.Is(err, store.ErrNotFound) {
		return ErrTemplateNotFound
	}
	return err
}

func (r *templateRepoStore) Delete(ctx context.Context, id uuid.UUID) error {
	n, err := r.rows.Delete(ctx, byID(id))
	return deleteOne(n, err, ErrTemplateNotFound)
}

func (r *templateRepoStore) List(ctx context.Context) ([]*Template, error) {
	items, _, err := r.rows.Find(ctx, store.Query{Order: "name"})
	return items, err
}

// -- Service catalog --

type catalogRepoStore struct {
	rows *store.Table[CatalogItem]
	now  func() time.Time
}

func NewCatalogRepoStore(client store.Client) CatalogRepository {
	return &catalogRepoStore{rows: store.NewTable[CatalogItem](client, catalogTable), now: time.Now}
}

func (r *catalogRepoStore) Create(ctx context.Context, it *CatalogItem) error {
	it.ID = uuid.New()
	it.CreatedAt = r.now().UTC()
	it.UpdatedAt = it.CreatedAt
	return r.rows.Insert(ctx, it)
}

func (r *catalogRepoStore) GetByID(ctx context.Context, id uuid.UUID) (*CatalogItem, error) {
	it, err := r.rows.Get(ctx, byID(id))
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrServiceNotFound
	}
	return it, err
}

func (r *catalogRepoStore) Update(ctx context.Context, it *CatalogItem) error {
	it.UpdatedAt = r.now().UTC()
	err := r.rows.Update(ctx, byID(it.ID), it)
	if errors.Is(err, store.ErrNotFound) {
		return ErrServiceNotFound
	}
	return err
}

func (r *catalogRepoStore) Delete(ctx context.Context, id uuid.UUID) error {
	n, err := r.rows.Delete(ctx, byID(id))
	return deleteOne(n, err, ErrServiceNotFound)
}

func (r *catalogRepoStore) List(ctx context.Context, activeOnly bool) ([]*CatalogItem, error) {
	q := store.Query{Order: "name"}
	if activeOnly {
		q.Eq = store.Filter{"active": true}
	}
	items, _, err := r.rows.Find(ctx, q)
	return items, err
}

// -- Message log --

type logRepoStore struct {
	rows *store.Table[LogEntry]
}

func NewLogRepoStore(client store.Client) LogRepository {
	return &logRepoStore{rows: store.NewTable[LogEntry](client, logTable)}
}

func (r *logRepoStore) Create(ctx context.Context, e *LogEntry) error {
	e.ID = uuid.New()
	return r.rows.Insert(ctx, e)
}

func (r *logRepoStore) List(ctx context.Context, f LogFilter, limit, offset int) ([]*LogEntry, int, error) {
	eq := store.Filter{}
	if f.RecipientID != nil {
		eq["recipient_id"] = f.RecipientID.String()
	}
	if f.Status != "" {
		eq["status"] = f.Status
	}
	return r.rows.Find(ctx, store.Query{Eq: eq, Order: "sent_at", Desc: true, Limit: limit, Offset: offset})
}
