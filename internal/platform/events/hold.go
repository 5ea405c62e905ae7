package events

import (
	"context"
	"sync"
)

type holdKey struct{}

type held struct {
	pub Publisher
	ev  Event
}

// Pending collects events emitted while a unit of work is in flight.
type Pending struct {
	mu     sync.Mutex
	events []held
	done   bool
	outer  *Pending
}

// Hold returns a ctx under which Emit queues events instead of publishing
// them. A nested hold queues into the outermost one and its Release is a
// no-op; the outermost Release decides.
func Hold(ctx context.Context) (context.Context, *Pending) {
	if p, ok := ctx.Value(holdKey{}).(*Pending); ok {
		return ctx, &Pending{outer: p}
	}
	p := &Pending{}
	return context.WithValue(ctx, holdKey{}, p), p
}

// Release publishes the queued events when commit is true and drops them
// otherwise. Only the first call has any effect.
func (p *Pending) Release(ctx context.Context, commit bool) {
	if p.outer != nil {
		return
	}
	p.mu.Lock()
	queued := p.events
	p.events = nil
	already := p.done
	p.done = true
	p.mu.Unlock()

	if already || !commit {
		return
	}
	for _, h := range queued {
		h.pub.Publish(ctx, h.ev)
	}
}

// Len returns the number of queued events.
func (p *Pending) Len() int {
	if p.outer != nil {
		return p.outer.Len()
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.events)
}

// Emit publishes ev on pub, or queues it when ctx carries an unreleased hold.
func Emit(ctx context.Context, pub Publisher, ev Event) {
	if p, ok := ctx.Value(holdKey{}).(*Pending); ok {
		p.mu.Lock()
		if !p.done {
			p.events = append(p.events, held{pub: pub, ev: ev})
			p.mu.Unlock()
			return
		}
		p.mu.Unlock()
	}
	pub.Publish(ctx, ev)
}
