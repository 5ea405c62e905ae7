package messaging

import (
	"context"

	"github.com/google/uuid"
)

type TemplateRepository interface {
	Create(ctx context.Context, t *Template) error
	GetByID(ctx context.Context, id uuid.UUID) (*Template, error)
	Update(ctx context.Context, t *Template) error
	Delete(ctx context.Context, id uuid.UUID) error
	// List orders by name.
	List(ctx context.Context) ([]*Template, error)
}

type CatalogRepository interface {
	Create(ctx context.Context, item *CatalogItem) error
	GetByID(ctx context.Context, id uuid.UUID) (*CatalogItem, error)
	Update(ctx context.Context, item *CatalogItem) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, activeOnly bool) ([]*CatalogItem, error)
}

// LogRepository is append-only.
type LogRepository interface {
	Create(ctx context.Context, e *LogEntry) error
	// List orders newest first and returns every match when limit <= 0.
	List(ctx context.Context, f LogFilter, limit, offset int) ([]*LogEntry, int, error)
}
