// Package events carries row-level change notifications from the services
// that mutate data to the listeners that mirror it (the cache and the
// websocket hub).
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Action is the kind of change.
type Action string

const (
	Created Action = "created"
	Updated Action = "updated"
	Deleted Action = "deleted"
)

// Tables that publish events.
const (
	TableAccounts         = "accounts"
	TableAppointments     = "appointments"
	TableFinancialRecords = "financial_records"
	TableMedicalRecords   = "medical_records"
	TableMessages         = "messages"
)

// Event describes one changed row. Row is the row's JSON form after the
// change; for deletes it is the last known row, when the publisher had one.
type Event struct {
	Table     string          `json:"table"`
	Action    Action          `json:"action"`
	ID        string          `json:"id"`
	Clinic    string          `json:"clinic,omitempty"`
	Row       json.RawMessage `json:"row,omitempty"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// New builds an event, encoding row as JSON.
func New(table string, action Action, id string, row interface{}, updatedAt time.Time) (Event, error) {
	ev := Event{Table: table, Action: action, ID: id, UpdatedAt: updatedAt}
	if row != nil {
		data, err := json.Marshal(row)
		if err != nil {
			return ev, fmt.Errorf("encode %s event: %w", table, err)
		}
		ev.Row = data
	}
	return ev, nil
}

// Publisher is what services depend on.
type Publisher interface {
	Publish(ctx context.Context, ev Event)
}

// Listener reacts to published events.
type Listener interface {
	OnEvent(ctx context.Context, ev Event)
}

// ListenerFunc adapts a function to Listener.
type ListenerFunc func(ctx context.Context, ev Event)

func (f ListenerFunc) OnEvent(ctx context.Context, ev Event) { f(ctx, ev) }

// Bus fans events out to listeners synchronously, in subscription order.
// A panicking listener is logged and skipped.
type Bus struct {
	mu        sync.RWMutex
	listeners []Listener
	logger    zerolog.Logger
}

func NewBus(logger zerolog.Logger) *Bus {
	return &Bus{logger: logger}
}

func (b *Bus) Subscribe(l Listener) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.listeners = append(b.listeners, l)
}

func (b *Bus) Publish(ctx context.Context, ev Event) {
	b.mu.RLock()
	listeners := make([]Listener, len(b.listeners))
	copy(listeners, b.listeners)
	b.mu.RUnlock()

	for _, l := range listeners {
		b.deliver(ctx, l, ev)
	}
}

func (b *Bus) deliver(ctx context.Context, l Listener, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error().
				Str("table", ev.Table).
				Str("id", ev.ID).
				Str("panic", fmt.Sprint(r)).
				Msg("event listener panicked")
		}
	}()
	l.OnEvent(ctx, ev)
}

// Nop discards events.
type Nop struct{}

func (Nop) Publish(context.Context, Event) {}
