package medical

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/luskaa234/integrarneurpp-sub000/internal/platform/store"
)

const storeTable = "medical_record"

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

func (r *recordRepoStore) List(ctx context.Context, f ListFilter, limit, offset int) ([]*Record, int, error) {
	eq := store.Filter{}
	if f.PatientID != nil {
		eq["patient_id"] = f.PatientID.String()
	}
	if f.ClinicianID != nil {
		eq["clinician_id"] = f.ClinicianID.String()
	}
	return r.rows.Find(ctx, store.Query{Eq: eq, Order: "date", Desc: true, Limit: limit, Offset: offset})
}
