// Package events provides an in-process push source.
//
// The development server publishes mutation events on a [Bus]; list controllers in the same
// process subscribe to it directly, and the websocket hub forwards it to remote clients.
package events

import (
	"encoding/json"
	"slices"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/notedesk/internal/listsync"
	"github.com/desertthunder/notedesk/internal/shared"
	"github.com/google/uuid"
)

// Wildcard subscribes a handler to every event.
const Wildcard = "*"

// Bus fans published events out to registered handlers.
//
// Handlers run synchronously in the publisher's goroutine, outside the bus lock.
type Bus struct {
	mu       sync.RWMutex
	handlers map[string]map[listsync.BindingID]listsync.Handler
	logger   *log.Logger
}

// NewBus creates an empty bus. A nil logger discards output.
func NewBus(logger *log.Logger) *Bus {
	if logger == nil {
		logger = shared.DiscardLogger()
	}
	return &Bus{handlers: make(map[string]map[listsync.BindingID]listsync.Handler), logger: logger}
}

// On registers h for event and returns its binding id.
func (b *Bus) On(event string, h listsync.Handler) listsync.BindingID {
	id := listsync.BindingID(uuid.NewString())

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.handlers[event] == nil {
		b.handlers[event] = make(map[listsync.BindingID]listsync.Handler)
	}
	b.handlers[event][id] = h
	return id
}

// Off removes a binding. Unknown ids are ignored.
func (b *Bus) Off(event string, id listsync.BindingID) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.handlers[event], id)
	if len(b.handlers[event]) == 0 {
		delete(b.handlers, event)
	}
}

// Publish delivers ev to the handlers of ev.Name and to wildcard handlers.
func (b *Bus) Publish(ev listsync.Event) int {
	b.mu.RLock()
	hs := make([]listsync.Handler, 0, len(b.handlers[ev.Name])+len(b.handlers[Wildcard]))
	for _, h := range b.handlers[ev.Name] {
		hs = append(hs, h)
	}
	if ev.Name != Wildcard {
		for _, h := range b.handlers[Wildcard] {
			hs = append(hs, h)
		}
	}
	b.mu.RUnlock()

	b.logger.Debug("publish", "event", ev.Name, "handlers", len(hs))
	for _, h := range hs {
		h(ev)
	}
	return len(hs)
}

// Emit publishes name with data encoded as JSON.
func (b *Bus) Emit(name string, data any) error {
	ev := listsync.Event{Name: name}
	if data != nil {
		raw, err := json.Marshal(data)
		if err != nil {
			return err
		}
		ev.Data = raw
	}
	b.Publish(ev)
	return nil
}

// Len returns the number of bindings for event.
func (b *Bus) Len(event string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.handlers[event])
}

// Names returns the event names with at least one binding, excluding [Wildcard].
func (b *Bus) Names() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]string, 0, len(b.handlers))
	for name := range b.handlers {
		if name != Wildcard {
			out = append(out, name)
		}
	}
	slices.Sort(out)
	return out
}
