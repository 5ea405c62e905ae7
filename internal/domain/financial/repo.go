package financial

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, r *Record) error
	GetByID(ctx context.Context, id uuid.UUID) (*Record, error)
	Update(ctx context.Context, r *Record) error
	Delete(ctx context.Context, id uuid.UUID) error
	// DeleteByAppointment removes every record linked to appointmentID and
	// returns them.
	DeleteByAppointment(ctx context.Context, appointmentID uuid.UUID) ([]*Record, error)
	// List returns every match when limit <= 0, newest date first.
	List(ctx context.Context, f ListFilter, limit, offset int) ([]*Record, int, error)
}
