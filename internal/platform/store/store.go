// Package store is the generic row-level client for a hosted data store. It
// exposes select/insert/update/delete with equality filters against named
// tables and knows nothing about the rows it moves.
package store

import (
	"context"
	"errors"
	"sort"
)

var (
	// ErrNotFound is returned by single-row helpers when no row matches.
	ErrNotFound = errors.New("store: row not found")
	// ErrConflict is returned when a write violates a unique constraint.
	ErrConflict = errors.New("store: unique constraint violated")
)

// Filter is a set of column = value conditions joined by AND. A nil value
// matches NULL.
type Filter map[string]interface{}

// Query selects rows matching Eq. Limit <= 0 means no limit.
type Query struct {
	Eq     Filter
	Order  string
	Desc   bool
	Limit  int
	Offset int
}

// Client moves JSON-shaped rows in and out of named tables. dest arguments
// are pointers to slices; rows are decoded into them by JSON field name.
type Client interface {
	// Select returns the number of rows matching q.Eq, ignoring paging.
	Select(ctx context.Context, table string, q Query, dest interface{}) (int, error)
	Insert(ctx context.Context, table string, row interface{}, dest interface{}) error
	Update(ctx context.Context, table string, eq Filter, patch interface{}, dest interface{}) error
	// Delete returns the number of rows removed.
	Delete(ctx context.Context, table string, eq Filter) (int, error)
	Ping(ctx context.Context) error
}

func (f Filter) keys() []string {
	keys := make([]string, 0, len(f))
	for k := range f {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
