// Package cache keeps an in-memory mirror of the clinic tables. Collections
// are loaded wholesale by Refresh and patched row by row from change events,
// so dashboards can be computed without a store round trip.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/luskaa234/integrarneurpp-sub000/internal/platform/events"
)

// Row is implemented by every mirrored row type.
type Row interface {
	RowID() string
	RowUpdatedAt() time.Time
}

// Loader returns every row of one table.
type Loader[T Row] func(ctx context.Context) ([]T, error)

// tombstoneTTL bounds how long a deleted id keeps rejecting stale upserts.
const tombstoneTTL = 10 * time.Minute

type tombstone struct {
	updatedAt time.Time
	at        time.Time
}

// Collection mirrors one table.
type Collection[T Row] struct {
	mu    sync.RWMutex
	table string
	rows  map[string]T
	load  Loader[T]
	now   func() time.Time

	// seq counts applied events; touched holds the seq of the last event
	// per id so Refresh can tell rows that changed while it was loading.
	seq        uint64
	touched    map[string]uint64
	tombstones map[string]tombstone
}

func NewCollection[T Row](table string, load Loader[T]) *Collection[T] {
	return &Collection[T]{
		table:      table,
		rows:       make(map[string]T),
		load:       load,
		now:        time.Now,
		touched:    make(map[string]uint64),
		tombstones: make(map[string]tombstone),
	}
}

func (c *Collection[T]) Table() string { return c.table }

// Refresh reloads the collection. Rows patched by Apply after the load
// started win over the loaded copy when they are newer, and rows deleted
// meanwhile stay deleted.
func (c *Collection[T]) Refresh(ctx context.Context) error {
	c.mu.RLock()
	start := c.seq
	c.mu.RUnlock()

	rows, err := c.load(ctx)
	if err != nil {
		return fmt.Errorf("refresh %s: %w", c.table, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	fresh := make(map[string]T, len(rows))
	for _, r := range rows {
		id := r.RowID()
		if c.touched[id] > start {
			if cur, ok := c.rows[id]; ok && !r.RowUpdatedAt().After(cur.RowUpdatedAt()) {
				fresh[id] = cur
				continue
			}
		}
		if c.buried(id, r.RowUpdatedAt()) {
			continue
		}
		fresh[id] = r
	}
	for id, seq := range c.touched {
		if seq <= start {
			delete(c.touched, id)
			continue
		}
		if cur, ok := c.rows[id]; ok {
			if _, loaded := fresh[id]; !loaded {
				fresh[id] = cur
			}
		}
	}
	c.rows = fresh
	c.prune()
	return nil
}

// buried reports whether id was deleted at or after updatedAt. Callers hold
// the lock.
func (c *Collection[T]) buried(id string, updatedAt time.Time) bool {
	tomb, ok := c.tombstones[id]
	return ok && !updatedAt.After(tomb.updatedAt)
}

func (c *Collection[T]) prune() {
	cutoff := c.now().Add(-tombstoneTTL)
	for id, tomb := range c.tombstones {
		if tomb.at.Before(cutoff) {
			delete(c.tombstones, id)
		}
	}
}

// Apply patches one row. An upsert older than the cached row, or not newer
// than the row's deletion, is ignored, so an out-of-order event cannot
// overwrite newer state.
func (c *Collection[T]) Apply(ev events.Event) error {
	if ev.Action == events.Deleted {
		c.mu.Lock()
		defer c.mu.Unlock()
		deletedAt := ev.UpdatedAt
		if cur, ok := c.rows[ev.ID]; ok && cur.RowUpdatedAt().After(deletedAt) {
			deletedAt = cur.RowUpdatedAt()
		}
		if deletedAt.IsZero() {
			deletedAt = c.now()
		}
		delete(c.rows, ev.ID)
		c.tombstones[ev.ID] = tombstone{updatedAt: deletedAt, at: c.now()}
		c.seq++
		c.touched[ev.ID] = c.seq
		return nil
	}
	if len(ev.Row) == 0 {
		return fmt.Errorf("%s event %s for %s has no row", ev.Action, ev.ID, c.table)
	}
	var row T
	if err := json.Unmarshal(ev.Row, &row); err != nil {
		return fmt.Errorf("decode %s row: %w", c.table, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	id := row.RowID()
	if cur, ok := c.rows[id]; ok && cur.RowUpdatedAt().After(row.RowUpdatedAt()) {
		return nil
	}
	if c.buried(id, row.RowUpdatedAt()) {
		return nil
	}
	delete(c.tombstones, id)
	c.rows[id] = row
	c.seq++
	c.touched[id] = c.seq
	return nil
}

// Get returns a copy of one row.
func (c *Collection[T]) Get(id string) (T, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	r, ok := c.rows[id]
	return r, ok
}

// All returns a copy of every row ordered by id.
func (c *Collection[T]) All() []T {
	c.mu.RLock()
	out := make([]T, 0, len(c.rows))
	for _, r := range c.rows {
		out = append(out, r)
	}
	c.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].RowID() < out[j].RowID() })
	return out
}

// Filter returns the rows for which keep is true, ordered by id.
func (c *Collection[T]) Filter(keep func(T) bool) []T {
	all := c.All()
	out := all[:0]
	for _, r := range all {
		if keep(r) {
			out = append(out, r)
		}
	}
	return out
}

func (c *Collection[T]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.rows)
}

// Syncer is a mirrored table; *Collection implements it.
type Syncer interface {
	Table() string
	Refresh(ctx context.Context) error
	Apply(ev events.Event) error
}

// Mirror groups the collections of one clinic and routes events to them.
type Mirror struct {
	clinic      string
	collections map[string]Syncer
	logger      zerolog.Logger

	mu          sync.RWMutex
	refreshedAt time.Time
}

// NewMirror builds a mirror for clinic. Events stamped with another clinic
// are ignored; unstamped events are applied.
func NewMirror(clinic string, logger zerolog.Logger, collections ...Syncer) *Mirror {
	m := &Mirror{clinic: clinic, collections: make(map[string]Syncer, len(collections)), logger: logger}
	for _, c := range collections {
		m.collections[c.Table()] = c
	}
	return m
}

func (m *Mirror) Clinic() string { return m.clinic }

// Refresh reloads every collection. It stops at the first failure.
func (m *Mirror) Refresh(ctx context.Context) error {
	tables := make([]string, 0, len(m.collections))
	for t := range m.collections {
		tables = append(tables, t)
	}
	sort.Strings(tables)
	for _, t := range tables {
		if err := m.collections[t].Refresh(ctx); err != nil {
			return err
		}
	}
	m.mu.Lock()
	m.refreshedAt = time.Now()
	m.mu.Unlock()
	return nil
}

// RefreshedAt is the time of the last successful Refresh.
func (m *Mirror) RefreshedAt() time.Time {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.refreshedAt
}

// OnEvent applies ev to the matching collection.
func (m *Mirror) OnEvent(_ context.Context, ev events.Event) {
	if ev.Clinic != "" && m.clinic != "" && ev.Clinic != m.clinic {
		return
	}
	c, ok := m.collections[ev.Table]
	if !ok {
		return
	}
	if err := c.Apply(ev); err != nil {
		m.logger.Warn().Err(err).Str("table", ev.Table).Str("id", ev.ID).Msg("cache: apply event")
	}
}

// Run refreshes every interval until ctx is done, healing any event the
// mirror missed.
func (m *Mirror) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := m.Refresh(ctx); err != nil {
				m.logger.Error().Err(err).Msg("cache: periodic refresh")
			}
		}
	}
}
