package scheduling

import (
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"
)

func appt(clinician uuid.UUID, date, slotTime, status string) *Appointment {
	return &Appointment{ID: uuid.New(), PatientID: uuid.New(), ClinicianID: clinician, Date: date, Time: slotTime, Status: status}
}

func TestFindConflict_ExactTripleBlocks(t *testing.T) {
	doc := uuid.New()
	a := appt(doc, "2024-12-20", "09:00", StatusScheduled)
	got := FindConflict([]*Appointment{a}, doc, "2024-12-20", "09:00", uuid.Nil)
	if got != a {
		t.Fatalf("expected conflict with %v, got %v", a.ID, got)
	}
}

func TestFindConflict_EveryActiveStatusBlocks(t *testing.T) {
	doc := uuid.New()
	for _, status := range []string{StatusScheduled, StatusConfirmed, StatusCompleted} {
		a := appt(doc, "2024-12-20", "09:00", status)
		if FindConflict([]*Appointment{a}, doc, "2024-12-20", "09:00", uuid.Nil) == nil {
			t.Errorf("status %s should hold the slot", status)
		}
	}
}

func TestFindConflict_ExcludeSelf(t *testing.T) {
	doc := uuid.New()
	a := appt(doc, "2024-12-20", "09:00", StatusScheduled)
	if got := FindConflict([]*Appointment{a}, doc, "2024-12-20", "09:00", a.ID); got != nil {
		t.Errorf("appointment should not conflict with itself, got %v", got.ID)
	}
	if got := FindConflict([]*Appointment{a}, doc, "2024-12-20", "09:00", uuid.New()); got != a {
		t.Error("excluding a different id must still report the conflict")
	}
}

func TestFindConflict_CanceledFreesSlot(t *testing.T) {
	doc := uuid.New()
	a := appt(doc, "2024-12-20", "09:00", StatusScheduled)
	appts := []*Appointment{a}
	a.Status = StatusCanceled
	if got := FindConflict(appts, doc, "2024-12-20", "09:00", uuid.Nil); got != nil {
		t.Error("canceled appointment should free its slot")
	}
}

func TestFindConflict_DifferentSlotOrClinician(t *testing.T) {
	doc := uuid.New()
	a := appt(doc, "2024-12-20", "09:00", StatusScheduled)
	cases := []struct {
		name           string
		clinician      uuid.UUID
		date, slotTime string
	}{
		{"other clinician", uuid.New(), "2024-12-20", "09:00"},
		{"other date", doc, "2024-12-21", "09:00"},
		{"other time", doc, "2024-12-20", "09:30"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := FindConflict([]*Appointment{a}, tc.clinician, tc.date, tc.slotTime, uuid.Nil); got != nil {
				t.Errorf("unexpected conflict %v", got.ID)
			}
		})
	}
}

func TestFindConflict_EditOntoOccupiedSlot(t *testing.T) {
	doc := uuid.New()
	a := appt(doc, "2024-12-20", "09:00", StatusScheduled)
	b := appt(doc, "2024-12-20", "10:00", StatusConfirmed)
	// Moving A to 10:00 must still see B even though A is excluded.
	if got := FindConflict([]*Appointment{a, b}, doc, "2024-12-20", "10:00", a.ID); got != b {
		t.Errorf("expected conflict with B, got %v", got)
	}
}

func TestFindConflict_SkipsCanceledToFindActive(t *testing.T) {
	doc := uuid.New()
	canceled := appt(doc, "2024-12-20", "09:00", StatusCanceled)
	active := appt(doc, "2024-12-20", "09:00", StatusScheduled)
	if got := FindConflict([]*Appointment{canceled, active}, doc, "2024-12-20", "09:00", uuid.Nil); got != active {
		t.Errorf("expected the active appointment, got %v", got)
	}
}

func TestSlotConflictError(t *testing.T) {
	existing := appt(uuid.New(), "2024-12-20", "09:00", StatusScheduled)
	err := &SlotConflictError{Date: "2024-12-20", Time: "09:00", Existing: existing, PatientName: "P1", ClinicianName: "Dr. D"}
	if !errors.Is(err, ErrSlotTaken) {
		t.Error("SlotConflictError should match ErrSlotTaken")
	}
	msg := err.Error()
	for _, want := range []string{"P1", "Dr. D", "2024-12-20", "09:00"} {
		if !strings.Contains(msg, want) {
			t.Errorf("message %q should mention %q", msg, want)
		}
	}

	bare := &SlotConflictError{Date: "2024-12-20", Time: "09:00"}
	if !strings.Contains(bare.Error(), "2024-12-20 at 09:00") {
		t.Errorf("unexpected message %q", bare.Error())
	}
}

func TestNormalizeDate(t *testing.T) {
	tests := []struct {
		in, want string
		wantErr  bool
	}{
		{"2024-12-20", "2024-12-20", false},
		{" 2024-12-20 ", "2024-12-20", false},
		{"2024-1-5", "2024-01-05", false},
		{"20/12/2024", "2024-12-20", false},
		{"5/1/2024", "2024-01-05", false},
		{"2024-02-30", "", true},
		{"tomorrow", "", true},
		{"", "", true},
	}
	for _, tt := range tests {
		got, err := NormalizeDate(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("NormalizeDate(%q) err = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("NormalizeDate(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestNormalizeTime(t *testing.T) {
	tests := []struct {
		in, want string
		wantErr  bool
	}{
		{"09:00", "09:00", false},
		{"9:00", "09:00", false},
		{"09:00:00", "09:00", false},
		{"14h30", "14:30", false},
		{"9h", "09:00", false},
		{"25:00", "", true},
		{"nine", "", true},
		{"", "", true},
	}
	for _, tt := range tests {
		got, err := NormalizeTime(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("NormalizeTime(%q) err = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("NormalizeTime(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
