package listsync

import (
	"encoding/json"
	"reflect"
	"slices"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/notedesk/internal/shared"
)

// DefaultCoalesceWindow is how long the multiplexer waits to merge a burst of events.
const DefaultCoalesceWindow = 50 * time.Millisecond

const minCoalesceWindow = time.Millisecond

// BindingID identifies one handler registered with a [PushSource].
type BindingID string

// Event is a named push notification.
type Event struct {
	Name string          `json:"event"`
	Data json.RawMessage `json:"data,omitempty"`
}

// Handler receives push events.
type Handler func(Event)

// PushSource delivers named events to registered handlers.
//
// Implementations must invoke handlers without holding their own locks.
type PushSource interface {
	On(event string, h Handler) BindingID
	Off(event string, id BindingID)
}

type binding struct {
	id        BindingID
	listeners map[uint64]*subscription
}

type subscription struct {
	mu      sync.Mutex
	onAny   func()
	window  time.Duration
	timer   *time.Timer
	pending []string
	closed  bool
	logger  *log.Logger
}

func (s *subscription) signal(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.pending = append(s.pending, name)
	if s.timer == nil {
		s.timer = time.AfterFunc(s.window, s.flush)
	}
}

// flush runs onAny under the lock so that close cannot return while a delivery is in progress.
func (s *subscription) flush() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.timer = nil
	if s.closed || len(s.pending) == 0 {
		return
	}
	s.logger.Debug("invalidate", "events", len(s.pending), "names", slices.Compact(slices.Sorted(slices.Values(s.pending))))
	s.pending = s.pending[:0]
	s.onAny()
}

func (s *subscription) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.pending = nil
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

// MultiplexerOption configures a [Multiplexer].
type MultiplexerOption func(*Multiplexer)

// WithCoalesceWindow sets the window used to merge bursts of events.
func WithCoalesceWindow(d time.Duration) MultiplexerOption {
	return func(m *Multiplexer) { m.window = d }
}

// WithMultiplexerLogger sets the multiplexer's logger.
func WithMultiplexerLogger(l *log.Logger) MultiplexerOption {
	return func(m *Multiplexer) { m.logger = l }
}

// Multiplexer maps a set of push events onto one coalesced callback per subscriber.
//
// Each event name holds at most one binding with the push source no matter how many
// subscriptions reference it.
type Multiplexer struct {
	source PushSource
	window time.Duration
	logger *log.Logger

	mu       sync.Mutex
	bindings map[string]*binding
	nextID   uint64
}

// NewMultiplexer creates a multiplexer over source. A nil source yields a multiplexer whose
// subscriptions never fire.
func NewMultiplexer(source PushSource, opts ...MultiplexerOption) *Multiplexer {
	m := &Multiplexer{
		source:   source,
		window:   DefaultCoalesceWindow,
		logger:   shared.DiscardLogger(),
		bindings: make(map[string]*binding),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.window < minCoalesceWindow {
		m.window = minCoalesceWindow
	}
	return m
}

func (m *Multiplexer) available() bool {
	if m == nil || m.source == nil {
		return false
	}
	v := reflect.ValueOf(m.source)
	switch v.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Func, reflect.Interface, reflect.Slice, reflect.Chan:
		return !v.IsNil()
	}
	return true
}

// Subscribe binds every name to onAny and returns the function that removes them.
//
// The returned function is idempotent. Once it returns, onAny is never invoked again.
func (m *Multiplexer) Subscribe(names []string, onAny func()) func() {
	if !m.available() || onAny == nil || len(names) == 0 {
		return func() {}
	}

	names = slices.Compact(slices.Sorted(slices.Values(names)))
	sub := &subscription{onAny: onAny, window: m.window, logger: m.logger}

	m.mu.Lock()
	m.nextID++
	id := m.nextID
	for _, name := range names {
		b, ok := m.bindings[name]
		if !ok {
			b = &binding{listeners: make(map[uint64]*subscription)}
			b.id = m.source.On(name, m.dispatcher(name))
			m.bindings[name] = b
			m.logger.Debug("bound", "event", name, "binding", b.id)
		}
		b.listeners[id] = sub
	}
	m.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			m.mu.Lock()
			for _, name := range names {
				b, ok := m.bindings[name]
				if !ok {
					continue
				}
				delete(b.listeners, id)
				if len(b.listeners) == 0 {
					m.source.Off(name, b.id)
					delete(m.bindings, name)
					m.logger.Debug("unbound", "event", name, "binding", b.id)
				}
			}
			m.mu.Unlock()
			sub.close()
		})
	}
}

func (m *Multiplexer) dispatcher(name string) Handler {
	return func(Event) {
		m.mu.Lock()
		b, ok := m.bindings[name]
		var subs []*subscription
		if ok {
			subs = make([]*subscription, 0, len(b.listeners))
			for _, s := range b.listeners {
				subs = append(subs, s)
			}
		}
		m.mu.Unlock()

		for _, s := range subs {
			s.signal(name)
		}
	}
}

// Bindings returns the event names currently bound with the push source.
func (m *Multiplexer) Bindings() []string {
	if m == nil {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.bindings))
	for name := range m.bindings {
		out = append(out, name)
	}
	slices.Sort(out)
	return out
}
