package scheduling

import (
	"context"

	"github.com/google/uuid"
)

// Repository stores appointments. Create and Update return ErrSlotTaken
// when the store's own slot constraint rejects the write.
type Repository interface {
	Create(ctx context.Context, a *Appointment) error
	GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error)
	Update(ctx context.Context, a *Appointment) error
	Delete(ctx context.Context, id uuid.UUID) error
	// ListDay returns every appointment of a clinician on date, canceled
	// ones included.
	ListDay(ctx context.Context, clinicianID uuid.UUID, date string) ([]*Appointment, error)
	// List returns every match when limit <= 0, ordered by date and time.
	List(ctx context.Context, f ListFilter, limit, offset int) ([]*Appointment, int, error)
}
