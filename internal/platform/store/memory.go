package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
)

type row = map[string]interface{}

// UniqueIndex rejects a write that would leave two rows in Table sharing the
// same Columns. Rows matching ExceptEq take no part, which models a partial
// index; ExceptEq values are compared as strings.
type UniqueIndex struct {
	Table    string
	Columns  []string
	ExceptEq Filter
}

// MemoryClient is an in-process Client. Rows are held as decoded JSON, so
// values go through the same encoding a remote store would apply.
type MemoryClient struct {
	mu      sync.RWMutex
	tables  map[string][]row
	indexes []UniqueIndex
}

func NewMemoryClient(indexes ...UniqueIndex) *MemoryClient {
	return &MemoryClient{tables: make(map[string][]row), indexes: indexes}
}

func normalize(v interface{}) (row, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode row: %w", err)
	}
	var r row
	if err := json.Unmarshal(b, &r); err != nil {
		return nil, fmt.Errorf("decode row: %w", err)
	}
	return r, nil
}

func decodeInto(rows []row, dest interface{}) error {
	if dest == nil {
		return nil
	}
	if rows == nil {
		rows = []row{}
	}
	b, err := json.Marshal(rows)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, dest)
}

func valueString(v interface{}) string {
	if v == nil {
		return "\x00null"
	}
	return fmt.Sprint(v)
}

func (f Filter) matches(r row) bool {
	for col, want := range f {
		if valueString(r[col]) != valueString(want) {
			return false
		}
	}
	return true
}

func copyRow(r row) row {
	out := make(row, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

func (m *MemoryClient) Select(ctx context.Context, table string, q Query, dest interface{}) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	m.mu.RLock()
	var matched []row
	for _, r := range m.tables[table] {
		if q.Eq.matches(r) {
			matched = append(matched, copyRow(r))
		}
	}
	m.mu.RUnlock()

	if q.Order != "" {
		sort.SliceStable(matched, func(i, j int) bool {
			a, b := valueString(matched[i][q.Order]), valueString(matched[j][q.Order])
			if q.Desc {
				return a > b
			}
			return a < b
		})
	}
	total := len(matched)
	if q.Offset > 0 {
		if q.Offset >= len(matched) {
			matched = nil
		} else {
			matched = matched[q.Offset:]
		}
	}
	if q.Limit > 0 && len(matched) > q.Limit {
		matched = matched[:q.Limit]
	}
	return total, decodeInto(matched, dest)
}

func (m *MemoryClient) Insert(ctx context.Context, table string, value interface{}, dest interface{}) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r, err := normalize(value)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkUnique(table, r, -1); err != nil {
		return err
	}
	m.tables[table] = append(m.tables[table], r)
	return decodeInto([]row{copyRow(r)}, dest)
}

func (m *MemoryClient) Update(ctx context.Context, table string, eq Filter, patch interface{}, dest interface{}) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p, err := normalize(patch)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	rows := m.tables[table]
	var updated []row
	next := make([]row, len(rows))
	copy(next, rows)
	for i, r := range rows {
		if !eq.matches(r) {
			continue
		}
		merged := copyRow(r)
		for k, v := range p {
			merged[k] = v
		}
		next[i] = merged
		updated = append(updated, copyRow(merged))
	}
	for i := range next {
		if err := checkUniqueIn(m.indexes, table, next, next[i], i); err != nil {
			return err
		}
	}
	m.tables[table] = next
	return decodeInto(updated, dest)
}

func (m *MemoryClient) Delete(ctx context.Context, table string, eq Filter) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	rows := m.tables[table]
	kept := rows[:0:0]
	for _, r := range rows {
		if !eq.matches(r) {
			kept = append(kept, r)
		}
	}
	m.tables[table] = kept
	return len(rows) - len(kept), nil
}

func (m *MemoryClient) Ping(ctx context.Context) error {
	return ctx.Err()
}

func (m *MemoryClient) checkUnique(table string, r row, self int) error {
	return checkUniqueIn(m.indexes, table, m.tables[table], r, self)
}

func checkUniqueIn(indexes []UniqueIndex, table string, rows []row, r row, self int) error {
	for _, idx := range indexes {
		if idx.Table != table || (len(idx.ExceptEq) > 0 && idx.ExceptEq.matches(r)) {
			continue
		}
		for i, other := range rows {
			if i == self || (len(idx.ExceptEq) > 0 && idx.ExceptEq.matches(other)) {
				continue
			}
			same := true
			for _, col := range idx.Columns {
				if valueString(other[col]) != valueString(r[col]) {
					same = false
					break
				}
			}
			if same {
				return fmt.Errorf("%w: %s %v", ErrConflict, table, idx.Columns)
			}
		}
	}
	return nil
}
