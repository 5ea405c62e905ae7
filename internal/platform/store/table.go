package store

import (
	"context"
	"fmt"
)

// Table is a typed view over one table of a Client.
type Table[T any] struct {
	client Client
	name   string
}

func NewTable[T any](client Client, name string) *Table[T] {
	return &Table[T]{client: client, name: name}
}

func (t *Table[T]) Name() string { return t.name }

func (t *Table[T]) Find(ctx context.Context, q Query) ([]*T, int, error) {
	var rows []*T
	total, err := t.client.Select(ctx, t.name, q, &rows)
	if err != nil {
		return nil, 0, fmt.Errorf("select %s: %w", t.name, err)
	}
	return rows, total, nil
}

// Get returns the single row matching eq or ErrNotFound.
func (t *Table[T]) Get(ctx context.Context, eq Filter) (*T, error) {
	rows, _, err := t.Find(ctx, Query{Eq: eq, Limit: 1})
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, ErrNotFound
	}
	return rows[0], nil
}

// Insert writes row and overwrites it with the stored representation.
func (t *Table[T]) Insert(ctx context.Context, row *T) error {
	var out []*T
	if err := t.client.Insert(ctx, t.name, row, &out); err != nil {
		return fmt.Errorf("insert %s: %w", t.name, err)
	}
	if len(out) > 0 {
		*row = *out[0]
	}
	return nil
}

// ownedColumns are set once on insert and never sent in an update patch.
var ownedColumns = []string{"created_at"}

// Update replaces the row matching eq and overwrites row with the stored
// representation. It returns ErrNotFound when nothing matched.
func (t *Table[T]) Update(ctx context.Context, eq Filter, row *T) error {
	patch, err := normalize(row)
	if err != nil {
		return fmt.Errorf("update %s: %w", t.name, err)
	}
	for _, col := range ownedColumns {
		delete(patch, col)
	}
	var out []*T
	if err := t.client.Update(ctx, t.name, eq, patch, &out); err != nil {
		return fmt.Errorf("update %s: %w", t.name, err)
	}
	if len(out) == 0 {
		return ErrNotFound
	}
	*row = *out[0]
	return nil
}

func (t *Table[T]) Delete(ctx context.Context, eq Filter) (int, error) {
	n, err := t.client.Delete(ctx, t.name, eq)
	if err != nil {
		return 0, fmt.Errorf("delete %s: %w", t.name, err)
	}
	return n, nil
}
