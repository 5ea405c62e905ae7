package events

import (
	"context"
	"testing"
	"time"
)

type recorder struct{ got []Event }

func (r *recorder) Publish(_ context.Context, ev Event) { r.got = append(r.got, ev) }

func TestEmit_WithoutHoldPublishesImmediately(t *testing.T) {
	rec := &recorder{}
	Emit(context.Background(), rec, Event{Table: TableAppointments, ID: "a"})
	if len(rec.got) != 1 {
		t.Fatalf("expected 1 event, got %d", len(rec.got))
	}
}

func TestHold_CommitPublishesInOrder(t *testing.T) {
	rec := &recorder{}
	ctx, pending := Hold(context.Background())
	Emit(ctx, rec, Event{Table: TableAppointments, ID: "a", UpdatedAt: time.Now()})
	Emit(ctx, rec, Event{Table: TableFinancialRecords, ID: "f"})
	if len(rec.got) != 0 || pending.Len() != 2 {
		t.Fatalf("expected events held, published=%d pending=%d", len(rec.got), pending.Len())
	}
	pending.Release(ctx, true)
	if len(rec.got) != 2 || rec.got[0].ID != "a" || rec.got[1].ID != "f" {
		t.Errorf("unexpected publish order %+v", rec.got)
	}
}

func TestHold_RollbackDrops(t *testing.T) {
	rec := &recorder{}
	ctx, pending := Hold(context.Background())
	Emit(ctx, rec, Event{ID: "a"})
	pending.Release(ctx, false)
	if len(rec.got) != 0 {
		t.Errorf("expected nothing published, got %d", len(rec.got))
	}
	// After release the hold no longer buffers.
	Emit(ctx, rec, Event{ID: "b"})
	if len(rec.got) != 1 {
		t.Errorf("expected late emit to publish, got %d", len(rec.got))
	}
}

func TestHold_NestedDefersToOuter(t *testing.T) {
	rec := &recorder{}
	ctx, outer := Hold(context.Background())
	innerCtx, inner := Hold(ctx)
	Emit(innerCtx, rec, Event{ID: "a"})

	inner.Release(innerCtx, true)
	if len(rec.got) != 0 {
		t.Fatal("inner release must not publish")
	}
	if inner.Len() != 1 || outer.Len() != 1 {
		t.Errorf("expected the event queued on the outer hold")
	}
	outer.Release(ctx, true)
	if len(rec.got) != 1 {
		t.Errorf("expected outer release to publish, got %d", len(rec.got))
	}
}
