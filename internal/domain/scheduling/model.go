package scheduling

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var ErrNotFound = errors.New("appointment not found")

const (
	StatusScheduled = "scheduled"
	StatusConfirmed = "confirmed"
	StatusCompleted = "completed"
	StatusCanceled  = "canceled"
)

var validStatuses = map[string]bool{
	StatusScheduled: true, StatusConfirmed: true, StatusCompleted: true, StatusCanceled: true,
}

// Appointment maps to the appointment table. Date is YYYY-MM-DD and Time is
// HH:MM once the service has normalized them.
type Appointment struct {
	ID          uuid.UUID       `db:"id" json:"id"`
	PatientID   uuid.UUID       `db:"patient_id" json:"patient_id"`
	ClinicianID uuid.UUID       `db:"clinician_id" json:"clinician_id"`
	Date        string          `db:"date" json:"date"`
	Time        string          `db:"time" json:"time"`
	Status      string          `db:"status" json:"status"`
	Category    *string         `db:"category" json:"category,omitempty"`
	Price       decimal.Decimal `db:"price" json:"price"`
	Notes       *string         `db:"notes" json:"notes,omitempty"`
	CreatedAt   time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time       `db:"updated_at" json:"updated_at"`
}

func (a Appointment) RowID() string { return a.ID.String() }

func (a Appointment) RowUpdatedAt() time.Time { return a.UpdatedAt }

// Active reports whether the appointment holds its slot.
func (a *Appointment) Active() bool { return a.Status != StatusCanceled }

// ListFilter narrows List. Zero values match everything; From and To are
// inclusive dates.
type ListFilter struct {
	PatientID   *uuid.UUID
	ClinicianID *uuid.UUID
	Date        string
	From        string
	To          string
	Status      string
}

func (f ListFilter) match(a *Appointment) bool {
	if f.PatientID != nil && a.PatientID != *f.PatientID {
		return false
	}
	if f.ClinicianID != nil && a.ClinicianID != *f.ClinicianID {
		return false
	}
	if f.Date != "" && a.Date != f.Date {
		return false
	}
	if f.From != "" && a.Date < f.From {
		return false
	}
	if f.To != "" && a.Date > f.To {
		return false
	}
	if f.Status != "" && a.Status != f.Status {
		return false
	}
	return true
}

func strVal(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
