package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/supabase-community/postgrest-go"
	supa "github.com/supabase-community/supabase-go"
)

// PostgREST is a Client backed by a Supabase project (or any PostgREST
// endpoint fronted by the Supabase gateway).
type PostgREST struct {
	client    *supa.Client
	pingTable string
}

// NewPostgREST connects with a service key. pingTable is a table the key can
// read; it backs Ping.
func NewPostgREST(url, key, pingTable string) (*PostgREST, error) {
	client, err := supa.NewClient(url, key, nil)
	if err != nil {
		return nil, fmt.Errorf("create supabase client: %w", err)
	}
	return &PostgREST{client: client, pingTable: pingTable}, nil
}

func applyEq(fb *postgrest.FilterBuilder, eq Filter) *postgrest.FilterBuilder {
	for _, col := range eq.keys() {
		v := eq[col]
		if v == nil {
			fb = fb.Is(col, "null")
			continue
		}
		fb = fb.Eq(col, fmt.Sprint(v))
	}
	return fb
}

func (p *PostgREST) Select(ctx context.Context, table string, q Query, dest interface{}) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	fb := applyEq(p.client.From(table).Select("*", "exact", false), q.Eq)
	if q.Order != "" {
		fb = fb.Order(q.Order, &postgrest.OrderOpts{Ascending: !q.Desc})
	}
	if q.Limit > 0 {
		fb = fb.Range(q.Offset, q.Offset+q.Limit-1, "")
	}
	count, err := fb.ExecuteTo(dest)
	if err != nil {
		return 0, mapError(err)
	}
	return int(count), nil
}

func (p *PostgREST) Insert(ctx context.Context, table string, row interface{}, dest interface{}) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := p.client.From(table).Insert(row, false, "", "representation", "").ExecuteTo(dest)
	return mapError(err)
}

func (p *PostgREST) Update(ctx context.Context, table string, eq Filter, patch interface{}, dest interface{}) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(eq) == 0 {
		return fmt.Errorf("update %s: refusing to update without a filter", table)
	}
	_, err := applyEq(p.client.From(table).Update(patch, "representation", ""), eq).ExecuteTo(dest)
	return mapError(err)
}

func (p *PostgREST) Delete(ctx context.Context, table string, eq Filter) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if len(eq) == 0 {
		return 0, fmt.Errorf("delete %s: refusing to delete without a filter", table)
	}
	body, _, err := applyEq(p.client.From(table).Delete("representation", ""), eq).Execute()
	if err != nil {
		return 0, mapError(err)
	}
	var removed []json.RawMessage
	if len(body) > 0 {
		if err := json.Unmarshal(body, &removed); err != nil {
			return 0, fmt.Errorf("decode delete response: %w", err)
		}
	}
	return len(removed), nil
}

func (p *PostgREST) Ping(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, _, err := p.client.From(p.pingTable).Select("id", "", false).Limit(1, "").Execute()
	return mapError(err)
}

// mapError turns PostgREST's "(code) message" errors into store sentinels.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	msg := err.Error()
	if strings.Contains(msg, "23505") || strings.Contains(msg, "duplicate key") {
		return fmt.Errorf("%w: %s", ErrConflict, msg)
	}
	return err
}
