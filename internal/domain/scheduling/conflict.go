package scheduling

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ErrSlotTaken matches every slot conflict, including ones only the
// database caught.
var ErrSlotTaken = errors.New("slot already taken")

// FindConflict returns the first active appointment in appts that occupies
// clinicianID's slot at date and slotTime, skipping excludeID. Both must
// already be normalized; comparison is exact.
func FindConflict(appts []*Appointment, clinicianID uuid.UUID, date, slotTime string, excludeID uuid.UUID) *Appointment {
	for _, a := range appts {
		if a.ClinicianID != clinicianID || a.Date != date || a.Time != slotTime {
			continue
		}
		if !a.Active() || (excludeID != uuid.Nil && a.ID == excludeID) {
			continue
		}
		return a
	}
	return nil
}

// SlotConflictError names who already holds a slot. Existing is nil when the
// conflict was reported by the store and the holder could not be loaded.
type SlotConflictError struct {
	Date          string
	Time          string
	Existing      *Appointment
	PatientName   string
	ClinicianName string
}

func (e *SlotConflictError) Error() string {
	if e.Existing == nil {
		return fmt.Sprintf("slot already taken: the clinician is booked on %s at %s", e.Date, e.Time)
	}
	return fmt.Sprintf("slot already taken: %s is booked with %s on %s at %s",
		e.ClinicianName, e.PatientName, e.Date, e.Time)
}

func (e *SlotConflictError) Is(target error) bool { return target == ErrSlotTaken }

var dateLayouts = []string{"2006-01-02", "2006-1-2", "02/01/2006", "2/1/2006"}

// NormalizeDate accepts ISO or day-first dates and returns YYYY-MM-DD.
func NormalizeDate(s string) (string, error) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format("2006-01-02"), nil
		}
	}
	return "", fmt.Errorf("invalid date %q: expected YYYY-MM-DD", s)
}

var timeLayouts = []string{"15:04", "15:04:05", "15h04", "15h"}

// NormalizeTime returns HH:MM. Seconds are dropped.
func NormalizeTime(s string) (string, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format("15:04"), nil
		}
	}
	return "", fmt.Errorf("invalid time %q: expected HH:MM", s)
}
