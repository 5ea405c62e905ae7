package medical

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

var ErrNotFound = errors.New("medical record not found")

// Record maps to the medical_record table. It stands on its own; nothing
// ties it to an appointment.
type Record struct {
	ID          uuid.UUID `db:"id" json:"id"`
	PatientID   uuid.UUID `db:"patient_id" json:"patient_id"`
	ClinicianID uuid.UUID `db:"clinician_id" json:"clinician_id"`
	Date        string    `db:"date" json:"date"`
	Diagnosis   string    `db:"diagnosis" json:"diagnosis"`
	Treatment   string    `db:"treatment" json:"treatment"`
	Notes       *string   `db:"notes" json:"notes,omitempty"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

func (r Record) RowID() string { return r.ID.String() }

func (r Record) RowUpdatedAt() time.Time { return r.UpdatedAt }

type ListFilter struct {
	PatientID   *uuid.UUID
	ClinicianID *uuid.UUID
}
