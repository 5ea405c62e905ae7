package financial

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/luskaa234/integrarneurpp-sub000/internal/platform/store"
)

const storeTable = "financial_record"

type recordRepoStore struct {
	rows *store.Table[Record]
	now  func() time.Time
}

func NewRecordRepoStore(client store.Client) Repository {
	return &recordRepoStore{rows: store.NewTable[Record](client, storeTable), now: time.Now}
}

func (r *recordRepoStore) Create(ctx context.Context, rec *Record) error {
	rec.ID = uuid.New()
	rec.CreatedAt = r.now().UTC()
	rec.UpdatedAt = rec.CreatedAt
	return r.rows.Insert(ctx, rec)
}

func (r *recordRepoStore) GetByID(ctx context.Context, id uuid.UUID) (*Record, error) {
	rec, err := r.rows.Get(ctx, store.Filter{"id": id.String()})
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrNotFound
	}
	return rec, err
}

func (r *recordRepoStore) Update(ctx context.Context, rec *Record) error {
	rec.UpdatedAt = r.now().UTC()
	err := r.rows.Update(ctx, store.Filter{"id": rec.ID.String()}, rec)
	if errors.Is(err, store.ErrNotFound) {
		return ErrNotFound
	}
	return err
}

func (r *recordRepoStore) Delete(ctx context.Context, id uuid.UUID) error {
	n, err := r.rows.Delete(ctx, store.Filter{"id": id.String()})
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *recordRepoStore) DeleteByAppointment(ctx context.Context, appointmentID uuid.UUID) ([]*Record, error) {
	eq := store.Filter{"appointment_id": appointmentID.String()}
	linked, _, err := r.rows.Find(ctx, store.Query{Eq: eq})
	if err != nil {
		return nil, err
	}
	if len(linked) == 0 {
		return nil, nil
	}
	if _, err := r.rows.Delete(ctx, eq); err != nil {
		return nil, err
	}
	return linked, nil
}

// List pushes the equality filters to the store and applies the date range
// and paging here, since the store only filters on equality.
func (r *recordRepoStore) List(ctx context.Context, f ListFilter, limit, offset int) ([]*Record, int, error) {
	eq := store.Filter{}
	if f.Kind != "" {
		eq["kind"] = f.Kind
	}
	if f.Status != "" {
		eq["status"] = f.Status
	}
	if f.AppointmentID != nil {
		eq["appointment_id"] = f.AppointmentID.String()
	}
	all, _, err := r.rows.Find(ctx, store.Query{Eq: eq, Order: "date", Desc: true})
	if err != nil {
		return nil, 0, err
	}
	var matched []*Record
	for _, rec := range all {
		if f.match(rec) {
			matched = append(matched, rec)
		}
	}
	total := len(matched)
	if offset > total {
		offset = total
	}
	matched = matched[offset:]
	if limit > 0 && limit < len(matched) {
		matched = matched[:limit]
	}
	return matched, total, nil
}
