package scheduling

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/luskaa234/integrarneurpp-sub000/internal/platform/store"
)

const storeTable = "appointment"

// SlotIndex mirrors the database's partial unique index for in-memory
// stores.
var SlotIndex = store.UniqueIndex{
	Table:    storeTable,
	Columns:  []string{"clinician_id", "date", "time"},
	ExceptEq: store.Filter{"status": StatusCanceled},
}

type appointmentRepoStore struct {
	rows *store.Table[Appointment]
	now  func() time.Time
}

func NewAppointmentRepoStore(client store.Client) Repository {
	return &appointmentRepoStore{rows: store.NewTable[Appointment](client, storeTable), now: time.Now}
}

func mapStoreErr(err error) error {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return ErrNotFound
	case errors.Is(err, store.ErrConflict):
		return ErrSlotTaken
	}
	return err
}

func (r *appointmentRepoStore) Create(ctx context.Context, a *Appointment) error {
	a.ID = uuid.New()
	a.CreatedAt = r.now().UTC()
	a.UpdatedAt = a.CreatedAt
	return mapStoreErr(r.rows.Insert(ctx, a))
}

func (r *appointmentRepoStore) GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	a, err := r.rows.Get(ctx, store.Filter{"id": id.String()})
	if err != nil {
		return nil, mapStoreErr(err)
	}
	return a, nil
}

func (r *appointmentRepoStore) Update(ctx context.Context, a *Appointment) error {
	a.UpdatedAt = r.now().UTC()
	return mapStoreErr(r.rows.Update(ctx, store.Filter{"id": a.ID.String()}, a))
}

func (r *appointmentRepoStore) Delete(ctx context.Context, id uuid.UUID) error {
	n, err := r.rows.Delete(ctx, store.Filter{"id": id.String()})
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *appointmentRepoStore) ListDay(ctx context.Context, clinicianID uuid.UUID, date string) ([]*Appointment, error) {
	items, _, err := r.rows.Find(ctx, store.Query{
		Eq:    store.Filter{"clinician_id": clinicianID.String(), "date": date},
		Order: "time",
	})
	return items, err
}

// List pushes equality filters to the store; ranges, ordering by date and
// time, and paging happen here.
func (r *appointmentRepoStore) List(ctx context.Context, f ListFilter, limit, offset int) ([]*Appointment, int, error) {
	eq := store.Filter{}
	if f.PatientID != nil {
		eq["patient_id"] = f.PatientID.String()
	}
	if f.ClinicianID != nil {
		eq["clinician_id"] = f.ClinicianID.String()
	}
	if f.Date != "" {
		eq["date"] = f.Date
	}
	if f.Status != "" {
		eq["status"] = f.Status
	}
	all, _, err := r.rows.Find(ctx, store.Query{Eq: eq})
	if err != nil {
		return nil, 0, err
	}
	var matched []*Appointment
	for _, a := range all {
		if f.match(a) {
			matched = append(matched, a)
		}
	}
	sort.SliceStable(matched, func(i, j int) bool {
		if matched[i].Date != matched[j].Date {
			return matched[i].Date < matched[j].Date
		}
		return matched[i].Time < matched[j].Time
	})
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
