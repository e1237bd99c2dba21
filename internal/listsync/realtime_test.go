package listsync

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestMultiplexer(t *testing.T) {
	const window = 20 * time.Millisecond

	t.Run("Nil Source", func(t *testing.T) {
		var typed *fakeSource
		for name, m := range map[string]*Multiplexer{
			"nil interface": NewMultiplexer(nil),
			"typed nil":     NewMultiplexer(typed),
			"nil pointer":   nil,
		} {
			t.Run(name, func(t *testing.T) {
				unsubscribe := m.Subscribe([]string{"note_created"}, func() { t.Error("unexpected call") })
				unsubscribe()
				unsubscribe()
			})
		}
	})

	t.Run("Shares One Binding Per Name", func(t *testing.T) {
		src := newFakeSource()
		m := NewMultiplexer(src, WithCoalesceWindow(window))

		first := m.Subscribe([]string{"note_created", "note_updated", "note_created"}, func() {})
		second := m.Subscribe([]string{"note_created"}, func() {})

		if n := src.Count("note_created"); n != 1 {
			t.Errorf("expected 1 binding for note_created, got %d", n)
		}
		if diff := cmp.Diff([]string{"note_created", "note_updated"}, m.Bindings()); diff != "" {
			t.Errorf("bindings mismatch (-want +got):\n%s", diff)
		}

		first()
		if n := src.Count("note_created"); n != 1 {
			t.Errorf("expected binding to survive while still referenced, got %d", n)
		}
		if n := src.Count("note_updated"); n != 0 {
			t.Errorf("expected note_updated to be unbound, got %d", n)
		}

		second()
		if n := src.Total(); n != 0 {
			t.Errorf("expected no bindings, got %d", n)
		}
	})

	t.Run("Coalesces Burst", func(t *testing.T) {
		src := newFakeSource()
		m := NewMultiplexer(src, WithCoalesceWindow(window))

		var calls atomic.Int32
		unsubscribe := m.Subscribe([]string{"note_created", "note_updated"}, func() { calls.Add(1) })
		defer unsubscribe()

		src.Emit("note_created")
		src.Emit("note_updated")
		src.Emit("note_updated")

		waitFor(t, "invalidate", func() bool { return calls.Load() > 0 })
		time.Sleep(3 * window)
		if n := calls.Load(); n != 1 {
			t.Errorf("expected 1 coalesced call, got %d", n)
		}
	})

	t.Run("Separate Bursts", func(t *testing.T) {
		src := newFakeSource()
		m := NewMultiplexer(src, WithCoalesceWindow(window))

		var calls atomic.Int32
		unsubscribe := m.Subscribe([]string{"tag_created"}, func() { calls.Add(1) })
		defer unsubscribe()

		src.Emit("tag_created")
		waitFor(t, "first invalidate", func() bool { return calls.Load() == 1 })
		src.Emit("tag_created")
		waitFor(t, "second invalidate", func() bool { return calls.Load() == 2 })
	})

	t.Run("Unsubscribe Stops Delivery", func(t *testing.T) {
		src := newFakeSource()
		m := NewMultiplexer(src, WithCoalesceWindow(window))

		var calls atomic.Int32
		unsubscribe := m.Subscribe([]string{"note_deleted"}, func() { calls.Add(1) })

		src.Emit("note_deleted")
		unsubscribe()
		unsubscribe()
		src.Emit("note_deleted")

		time.Sleep(3 * window)
		if n := calls.Load(); n != 0 {
			t.Errorf("expected no calls after unsubscribe, got %d", n)
		}
		if n := src.Total(); n != 0 {
			t.Errorf("expected no bindings, got %d", n)
		}
	})

	t.Run("Independent Subscribers", func(t *testing.T) {
		src := newFakeSource()
		m := NewMultiplexer(src, WithCoalesceWindow(window))

		var a, b atomic.Int32
		ua := m.Subscribe([]string{"note_moved"}, func() { a.Add(1) })
		ub := m.Subscribe([]string{"note_moved"}, func() { b.Add(1) })
		defer ub()

		ua()
		src.Emit("note_moved")

		waitFor(t, "remaining subscriber", func() bool { return b.Load() == 1 })
		if a.Load() != 0 {
			t.Error("unsubscribed listener must not be called")
		}
	})
}
