package events

import (
	"context"
	"sync"

	"meetnmart/pkg/logger"
)

// Handler consumes a channel event routed by correlation id.
type Handler func(ctx context.Context, e Event)

// dedupeWindow bounds how many event ids the dispatcher remembers. Redelivery
// happens close to the original send, so a sliding window is enough and the
// id set cannot grow for the process lifetime.
const dedupeWindow = 4096

// Dispatcher fans channel events out to manager subscriptions keyed by
// correlation id (call session id or transaction id), plus name subscriptions
// for events that create state no correlation is registered for yet.
//
// Every event is appended to the notification store, matched or not; unmatched
// events stay visible to the UI but drive no state machine. The channel is
// at-least-once, so events are deduped by id before handlers run.
type Dispatcher struct {
	mu        sync.Mutex
	store     *Store
	subs      map[string][]Handler
	names     map[string][]Handler
	seen      map[string]struct{}
	seenOrder []string
	seenLimit int
}

func NewDispatcher(store *Store) *Dispatcher {
	return &Dispatcher{
		store:     store,
		subs:      make(map[string][]Handler),
		names:     make(map[string][]Handler),
		seen:      make(map[string]struct{}),
		seenLimit: dedupeWindow,
	}
}

// Subscribe registers a handler for events carrying the given correlation id.
func (d *Dispatcher) Subscribe(correlationID string, h Handler) {
	if correlationID == "" || h == nil {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.subs[correlationID] = append(d.subs[correlationID], h)
}

// SubscribeEvent registers a handler for every event with the given name,
// regardless of correlation id. Inbound call invites arrive this way: the
// callee's node has no session to key a subscription on until the invite
// itself creates one.
func (d *Dispatcher) SubscribeEvent(name string, h Handler) {
	if name == "" || h == nil {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.names[name] = append(d.names[name], h)
}

// Unsubscribe drops all handlers for a correlation id. Called when a session
// or transaction reaches a terminal state.
func (d *Dispatcher) Unsubscribe(correlationID string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.subs, correlationID)
}

// Dispatch records the event and invokes matching handlers.
// Duplicate deliveries (same event id) are appended nowhere and handled by no one.
func (d *Dispatcher) Dispatch(ctx context.Context, e Event) {
	d.mu.Lock()
	if e.ID != "" {
		if _, dup := d.seen[e.ID]; dup {
			d.mu.Unlock()
			logger.From(ctx).Debug("duplicate event dropped", "event_id", e.ID, "name", e.Name)
			return
		}
		d.seen[e.ID] = struct{}{}
		d.seenOrder = append(d.seenOrder, e.ID)
		if len(d.seenOrder) > d.seenLimit {
			delete(d.seen, d.seenOrder[0])
			d.seenOrder = d.seenOrder[1:]
		}
	}
	handlers := make([]Handler, 0, len(d.subs[e.CorrelationID])+len(d.names[e.Name]))
	handlers = append(handlers, d.subs[e.CorrelationID]...)
	handlers = append(handlers, d.names[e.Name]...)
	d.mu.Unlock()

	if d.store != nil {
		d.store.Append(e)
	}

	for _, h := range handlers {
		h(ctx, e)
	}
}
