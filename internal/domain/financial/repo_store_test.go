package financial

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"github.com/luskaa234/integrarneurpp-sub000/internal/platform/store"
)

func TestRecordRepoStore_ListRangeAndPaging(t *testing.T) {
	repo := NewRecordRepoStore(store.NewMemoryClient())
	ctx := context.Background()
	for _, d := range []string{"2024-11-30", "2024-12-01", "2024-12-15", "2024-12-31", "2025-01-01"} {
		if err := repo.Create(ctx, &Record{Kind: KindRevenue, Amount: dec("10"), Description: d, Date: d, Status: StatusPending}); err != nil {
			t.Fatalf("create: %v", err)
		}
	}

	items, total, err := repo.List(ctx, ListFilter{From: "2024-12-01", To: "2024-12-31"}, 2, 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if total != 3 || len(items) != 2 {
		t.Fatalf("expected 3 total / 2 returned, got %d / %d", total, len(items))
	}
	if items[0].Date != "2024-12-31" || items[1].Date != "2024-12-15" {
		t.Errorf("expected newest first, got %s %s", items[0].Date, items[1].Date)
	}
	if !items[0].Amount.Equal(dec("10")) {
		t.Errorf("amount did not round-trip: %s", items[0].Amount)
	}

	items, _, _ = repo.List(ctx, ListFilter{From: "2024-12-01", To: "2024-12-31"}, 2, 2)
	if len(items) != 1 || items[0].Date != "2024-12-01" {
		t.Errorf("unexpected second page %+v", items)
	}
}

func TestRecordRepoStore_DeleteByAppointment(t *testing.T) {
	repo := NewRecordRepoStore(store.NewMemoryClient())
	ctx := context.Background()
	apptID := uuid.New()
	repo.Create(ctx, &Record{Kind: KindRevenue, Amount: dec("300"), Description: "x", Date: "2024-12-20", Status: StatusPending, AppointmentID: &apptID})
	repo.Create(ctx, &Record{Kind: KindExpense, Amount: dec("5"), Description: "y", Date: "2024-12-20", Status: StatusPending})

	removed, err := repo.DeleteByAppointment(ctx, apptID)
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if len(removed) != 1 || removed[0].AppointmentID == nil || *removed[0].AppointmentID != apptID {
		t.Errorf("unexpected removed set %+v", removed)
	}
	_, total, _ := repo.List(ctx, ListFilter{}, 0, 0)
	if total != 1 {
		t.Errorf("expected 1 record left, got %d", total)
	}

	removed, err = repo.DeleteByAppointment(ctx, uuid.New())
	if err != nil || len(removed) != 0 {
		t.Errorf("expected nothing removed, got %d (%v)", len(removed), err)
	}
}

func TestRecordRepoStore_UpdateKeepsCreatedAt(t *testing.T) {
	repo := NewRecordRepoStore(store.NewMemoryClient())
	ctx := context.Background()
	r := &Record{Kind: KindExpense, Amount: dec("80"), Description: "rent", Date: "2024-12-01", Status: StatusPending}
	if err := repo.Create(ctx, r); err != nil {
		t.Fatalf("create: %v", err)
	}

	edit := &Record{ID: r.ID, Kind: KindExpense, Amount: dec("90"), Description: "rent", Date: "2024-12-01", Status: StatusPaid}
	if err := repo.Update(ctx, edit); err != nil {
		t.Fatalf("update: %v", err)
	}
	got, err := repo.GetByID(ctx, r.ID)
	if err != nil {
		t.Fatal(err)
	}
	if !got.Amount.Equal(dec("90")) || !got.CreatedAt.Equal(r.CreatedAt) {
		t.Errorf("expected created_at %v kept, got %+v", r.CreatedAt, got)
	}
}
