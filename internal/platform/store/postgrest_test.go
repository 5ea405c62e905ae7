package store

import (
	"errors"
	"testing"
)

func TestMapError(t *testing.T) {
	if mapError(nil) != nil {
		t.Fatal("nil should stay nil")
	}
	err := mapError(errors.New(`(23505) duplicate key value violates unique constraint "appointment_active_slot_key"`))
	if !errors.Is(err, ErrConflict) {
		t.Errorf("expected ErrConflict, got %v", err)
	}
	other := errors.New("(42P01) relation does not exist")
	if mapError(other) != other {
		t.Error("unrelated errors should pass through")
	}
}

func TestFilterKeysSorted(t *testing.T) {
	keys := Filter{"b": 1, "a": 2, "c": nil}.keys()
	if len(keys) != 3 || keys[0] != "a" || keys[1] != "b" || keys[2] != "c" {
		t.Errorf("unexpected order: %v", keys)
	}
}
