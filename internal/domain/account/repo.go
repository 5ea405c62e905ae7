package account

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, a *Account, passwordHash string) error
	GetByID(ctx context.Context, id uuid.UUID) (*Account, error)
	// GetByEmail matches case-insensitively and also returns the password hash.
	GetByEmail(ctx context.Context, email string) (*Account, string, error)
	GetPasswordHash(ctx context.Context, id uuid.UUID) (string, error)
	Update(ctx context.Context, a *Account) error
	SetPassword(ctx context.Context, id uuid.UUID, passwordHash string) error
	Delete(ctx context.Context, id uuid.UUID) error
	// List returns every match when limit <= 0.
	List(ctx context.Context, f ListFilter, limit, offset int) ([]*Account, int, error)
}
