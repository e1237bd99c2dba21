package listsync

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"
)

type item struct {
	ID     string
	Title  string
	Pinned bool
}

func itemKey(i item) string { return i.ID }

func items(ids ...string) []item {
	out := make([]item, 0, len(ids))
	for _, id := range ids {
		out = append(out, item{ID: id, Title: "title " + id})
	}
	return out
}

type result struct {
	page Page[item]
	err  error
}

// call is one pending fetch; the test decides when and how it resolves.
type call struct {
	req  Request
	resp chan result
}

func (c *call) respond(p Page[item], err error) {
	c.resp <- result{page: p, err: err}
}

type fakeFetcher struct {
	mu    sync.Mutex
	calls []Request
	auto  func(Request) (Page[item], error)
	queue chan *call
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{queue: make(chan *call, 64)}
}

func newAutoFetcher(fn func(Request) (Page[item], error)) *fakeFetcher {
	f := newFakeFetcher()
	f.auto = fn
	return f
}

func (f *fakeFetcher) Fetch(ctx context.Context, req Request) (Page[item], error) {
	f.mu.Lock()
	f.calls = append(f.calls, req)
	auto := f.auto
	f.mu.Unlock()

	if auto != nil {
		return auto(req)
	}

	c := &call{req: req, resp: make(chan result, 1)}
	f.queue <- c
	select {
	case r := <-c.resp:
		return r.page, r.err
	case <-ctx.Done():
		return Page[item]{}, ctx.Err()
	}
}

func (f *fakeFetcher) Calls() []Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Request(nil), f.calls...)
}

func (f *fakeFetcher) next(t *testing.T) *call {
	t.Helper()
	select {
	case c := <-f.queue:
		return c
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for a fetch")
		return nil
	}
}

func (f *fakeFetcher) expectIdle(t *testing.T, d time.Duration) {
	t.Helper()
	select {
	case c := <-f.queue:
		t.Fatalf("unexpected fetch: %+v", c.req)
	case <-time.After(d):
	}
}

type fakeSource struct {
	mu       sync.Mutex
	seq      int
	handlers map[string]map[BindingID]Handler
}

func newFakeSource() *fakeSource {
	return &fakeSource{handlers: make(map[string]map[BindingID]Handler)}
}

func (s *fakeSource) On(event string, h Handler) BindingID {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	id := BindingID(fmt.Sprintf("binding-%d", s.seq))
	if s.handlers[event] == nil {
		s.handlers[event] = make(map[BindingID]Handler)
	}
	s.handlers[event][id] = h
	return id
}

func (s *fakeSource) Off(event string, id BindingID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.handlers[event], id)
	if len(s.handlers[event]) == 0 {
		delete(s.handlers, event)
	}
}

func (s *fakeSource) Emit(name string) {
	s.mu.Lock()
	hs := make([]Handler, 0, len(s.handlers[name]))
	for _, h := range s.handlers[name] {
		hs = append(hs, h)
	}
	s.mu.Unlock()

	for _, h := range hs {
		h(Event{Name: name})
	}
}

func (s *fakeSource) Count(name string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.handlers[name])
}

func (s *fakeSource) Total() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, hs := range s.handlers {
		n += len(hs)
	}
	return n
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

var testFields = []FieldSpec{
	{Name: "search", Kind: KindText},
	{Name: "category", Kind: KindText},
	{Name: "status", Kind: KindEnum, Default: "active", Options: []string{"active", "archived", "all"}},
	{Name: "from", Kind: KindDate},
}

var testEvents = []string{"note_created", "note_updated", "note_deleted"}

func newTestController(t *testing.T, f Fetcher[item], source PushSource) *Controller[item] {
	t.Helper()
	c, err := NewController(Config[item]{
		Resource: "notes",
		Fields:   testFields,
		Events:   testEvents,
		PageSize: 10,
		Key:      itemKey,
		Fetcher:  f,
		Realtime: NewMultiplexer(source, WithCoalesceWindow(20*time.Millisecond)),
	})
	if err != nil {
		t.Fatalf("NewController: %v", err)
	}
	t.Cleanup(c.Unmount)
	return c
}

// recorder keeps every snapshot delivered to a watcher.
type recorder struct {
	mu    sync.Mutex
	snaps []Snapshot[item]
}

func (r *recorder) watch(s Snapshot[item]) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.snaps = append(r.snaps, s)
}

func (r *recorder) all() []Snapshot[item] {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Snapshot[item](nil), r.snaps...)
}
