package medical

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, r *Record) error
	GetByID(ctx context.Context, id uuid.UUID) (*Record, error)
	Update(ctx context.Context, r *Record) error
	Delete(ctx context.Context, id uuid.UUID) error
	// List orders newest first and returns every match when limit <= 0.
	List(ctx context.Context, f ListFilter, limit, offset int) ([]*Record, int, error)
}
