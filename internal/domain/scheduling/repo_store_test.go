package scheduling

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/luskaa234/integrarneurpp-sub000/internal/platform/store"
)

func newStoreRepo() Repository {
	return NewAppointmentRepoStore(store.NewMemoryClient(SlotIndex))
}

func TestStoreRepo_SlotIndexRejectsDoubleBooking(t *testing.T) {
	repo := newStoreRepo()
	ctx := context.Background()
	doctor := uuid.New()

	first := &Appointment{PatientID: uuid.New(), ClinicianID: doctor, Date: "2024-12-20", Time: "09:00", Status: StatusScheduled, Price: decimal.NewFromInt(100)}
	if err := repo.Create(ctx, first); err != nil {
		t.Fatalf("create: %v", err)
	}
	dup := &Appointment{PatientID: uuid.New(), ClinicianID: doctor, Date: "2024-12-20", Time: "09:00", Status: StatusConfirmed}
	if err := repo.Create(ctx, dup); !errors.Is(err, ErrSlotTaken) {
		t.Fatalf("expected ErrSlotTaken, got %v", err)
	}

	first.Status = StatusCanceled
	if err := repo.Update(ctx, first); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if err := repo.Create(ctx, dup); err != nil {
		t.Errorf("canceled rows must not hold the slot: %v", err)
	}
}

func TestStoreRepo_UpdateKeepsCreatedAt(t *testing.T) {
	repo := newStoreRepo()
	ctx := context.Background()
	a := &Appointment{PatientID: uuid.New(), ClinicianID: uuid.New(), Date: "2024-12-20", Time: "09:00", Status: StatusScheduled}
	if err := repo.Create(ctx, a); err != nil {
		t.Fatalf("create: %v", err)
	}

	edit := &Appointment{ID: a.ID, PatientID: a.PatientID, ClinicianID: a.ClinicianID, Date: "2024-12-20", Time: "10:00", Status: StatusConfirmed}
	if err := repo.Update(ctx, edit); err != nil {
		t.Fatalf("update: %v", err)
	}
	got, err := repo.GetByID(ctx, a.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Time != "10:00" || !got.CreatedAt.Equal(a.CreatedAt) {
		t.Errorf("expected created_at %v kept, got %+v", a.CreatedAt, got)
	}
	if !edit.CreatedAt.Equal(a.CreatedAt) {
		t.Errorf("update should echo the stored created_at, got %v", edit.CreatedAt)
	}
}

func TestStoreRepo_ListDayAndList(t *testing.T) {
	repo := newStoreRepo()
	ctx := context.Background()
	doctor, patient := uuid.New(), uuid.New()
	for _, s := range []struct{ date, time string }{
		{"2024-12-21", "08:00"},
		{"2024-12-20", "11:00"},
		{"2024-12-20", "09:00"},
	} {
		if err := repo.Create(ctx, &Appointment{PatientID: patient, ClinicianID: doctor, Date: s.date, Time: s.time, Status: StatusScheduled}); err != nil {
			t.Fatalf("create: %v", err)
		}
	}
	repo.Create(ctx, &Appointment{PatientID: uuid.New(), ClinicianID: uuid.New(), Date: "2024-12-20", Time: "09:00", Status: StatusScheduled})

	day, err := repo.ListDay(ctx, doctor, "2024-12-20")
	if err != nil || len(day) != 2 {
		t.Fatalf("expected 2 on the day, got %d (%v)", len(day), err)
	}

	items, total, err := repo.List(ctx, ListFilter{PatientID: &patient}, 2, 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if total != 3 || len(items) != 2 {
		t.Fatalf("expected page of 2 out of 3, got %d/%d", len(items), total)
	}
	if items[0].Time != "09:00" || items[1].Time != "11:00" {
		t.Errorf("expected date then time ordering, got %s %s", items[0].Time, items[1].Time)
	}

	items, _, _ = repo.List(ctx, ListFilter{From: "2024-12-21"}, 0, 0)
	if len(items) != 1 {
		t.Errorf("expected 1 from the 21st, got %d", len(items))
	}
}

func TestStoreRepo_NotFound(t *testing.T) {
	repo := newStoreRepo()
	ctx := context.Background()
	if _, err := repo.GetByID(ctx, uuid.New()); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if err := repo.Delete(ctx, uuid.New()); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestStoreRepo_WithService(t *testing.T) {
	repo := newStoreRepo()
	ledger := newMockLedger()
	doctor := uuid.New()
	svc := NewService(repo, nil, ledger, mockNames{}, nil)
	ctx := context.Background()

	a := &Appointment{PatientID: uuid.New(), ClinicianID: doctor, Date: "2024-12-20", Time: "09:00"}
	if err := svc.Create(ctx, a); err != nil {
		t.Fatalf("create: %v", err)
	}
	b := &Appointment{PatientID: uuid.New(), ClinicianID: doctor, Date: "2024-12-20", Time: "9h00"}
	if err := svc.Create(ctx, b); !errors.Is(err, ErrSlotTaken) {
		t.Errorf("expected ErrSlotTaken, got %v", err)
	}
	if len(ledger.records) != 1 {
		t.Errorf("expected one ledger record, got %d", len(ledger.records))
	}
}
