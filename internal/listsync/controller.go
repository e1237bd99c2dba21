package listsync

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/notedesk/internal/shared"
)

// State is the lifecycle state of a list screen.
type State int

const (
	StateIdle State = iota
	StateLoading
	StateReady
	StateEmpty
	StateErrored
	StateTerminated
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateLoading:
		return "loading"
	case StateReady:
		return "ready"
	case StateEmpty:
		return "empty"
	case StateErrored:
		return "errored"
	case StateTerminated:
		return "terminated"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Config describes one list screen.
type Config[T any] struct {
	Resource string
	Fields   []FieldSpec
	Events   []string
	PageSize int
	Query    url.Values // initial filter state
	Key      func(T) string
	Fetcher  Fetcher[T]
	Realtime *Multiplexer
	Logger   *log.Logger
}

// Controller keeps one filtered, paginated list in sync with the server.
//
// Filter changes, page changes, refreshes and invalidations all fetch with the filters current at
// the moment the fetch starts. Push events arrive through the [Multiplexer] and are coalesced into
// a single invalidation. Controllers are safe for concurrent use.
type Controller[T any] struct {
	resource string
	events   []string
	key      func(T) string
	filters  *FilterStore
	exec     *Executor[T]
	realtime *Multiplexer
	logger   *log.Logger

	mu          sync.Mutex
	ctx         context.Context
	cancel      context.CancelFunc
	mounted     bool
	terminated  bool
	unsubscribe func()
	pending     bool // invalidation scheduled but not yet started
	busy        int
	idle        chan struct{}

	wmu         sync.Mutex
	watchers    map[int]func(Snapshot[T])
	nextWatcher int
}

// NewController creates an idle controller. Nothing is fetched until [Controller.Mount].
func NewController[T any](cfg Config[T]) (*Controller[T], error) {
	if cfg.Fetcher == nil {
		return nil, fmt.Errorf("%w: fetcher for %s", shared.ErrMissingArgument, cfg.Resource)
	}
	if cfg.Key == nil {
		return nil, fmt.Errorf("%w: key function for %s", shared.ErrMissingArgument, cfg.Resource)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = shared.DiscardLogger()
	}

	filters := NewFilterStore(cfg.Fields, cfg.PageSize)
	if cfg.Query != nil {
		if err := filters.Load(cfg.Query); err != nil {
			return nil, err
		}
	}

	c := &Controller[T]{
		resource: cfg.Resource,
		events:   cfg.Events,
		key:      cfg.Key,
		filters:  filters,
		realtime: cfg.Realtime,
		logger:   logger,
		watchers: make(map[int]func(Snapshot[T])),
	}
	c.exec = NewExecutor(cfg.Fetcher,
		WithAccept(c.accept),
		WithNotify(c.broadcast),
		WithExecutorLogger[T](logger),
	)
	return c, nil
}

// Resource returns the resource name this controller lists.
func (c *Controller[T]) Resource() string {
	return c.resource
}

// Mount binds the screen's push events and issues the initial fetch.
//
// Mounting an already mounted controller is a no-op. A controller cannot be mounted again after
// [Controller.Unmount].
func (c *Controller[T]) Mount(ctx context.Context) error {
	c.mu.Lock()
	if c.terminated {
		c.mu.Unlock()
		return fmt.Errorf("%w: %s controller was unmounted", shared.ErrNotMounted, c.resource)
	}
	if c.mounted {
		c.mu.Unlock()
		return nil
	}
	c.ctx, c.cancel = context.WithCancel(ctx)
	c.mounted = true
	c.mu.Unlock()

	unsubscribe := c.realtime.Subscribe(c.events, c.Invalidate)

	c.mu.Lock()
	if c.terminated {
		c.mu.Unlock()
		unsubscribe()
		return nil
	}
	c.unsubscribe = unsubscribe
	c.mu.Unlock()

	c.logger.Debug("mounted", "resource", c.resource, "events", c.events)
	c.fetch(false)
	return nil
}

// Unmount removes every push binding, discards in-flight results and terminates the controller.
func (c *Controller[T]) Unmount() {
	c.mu.Lock()
	if c.terminated {
		c.mu.Unlock()
		return
	}
	c.terminated = true
	c.mounted = false
	c.pending = false
	unsubscribe, cancel := c.unsubscribe, c.cancel
	c.unsubscribe = nil
	c.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
	c.exec.Close()
	if cancel != nil {
		cancel()
	}
	c.logger.Debug("unmounted", "resource", c.resource)
}

// Snapshot returns the current list snapshot.
func (c *Controller[T]) Snapshot() Snapshot[T] {
	return c.exec.Snapshot()
}

// Filters returns the current filter state.
func (c *Controller[T]) Filters() FilterState {
	return c.filters.State()
}

// Fields returns the screen's filter fields.
func (c *Controller[T]) Fields() []FieldSpec {
	return c.filters.Fields()
}

// SetFilter changes one filter field, resets the page to 1 and fetches if anything changed.
func (c *Controller[T]) SetFilter(name, value string) error {
	return c.mutate(func() (bool, error) { return c.filters.Set(name, value) })
}

// SetPage selects a page and fetches if it differs from the current one.
func (c *Controller[T]) SetPage(n int) error {
	return c.mutate(func() (bool, error) { return c.filters.SetPage(n) })
}

// ClearFilters restores every filter default and page 1, fetching once if anything changed.
func (c *Controller[T]) ClearFilters() {
	_ = c.mutate(func() (bool, error) { return c.filters.Clear(), nil })
}

func (c *Controller[T]) mutate(fn func() (bool, error)) error {
	c.mu.Lock()
	changed, err := fn()
	if err != nil || !changed || !c.mounted {
		c.mu.Unlock()
		return err
	}
	ctx, t, req := c.startLocked()
	c.mu.Unlock()

	c.launch(ctx, t, req)
	return nil
}

// Refresh fetches the current filters unconditionally.
func (c *Controller[T]) Refresh() {
	c.fetch(false)
}

// Invalidate schedules a fetch with the current filters.
//
// Calls made before the scheduled fetch starts are merged into it.
func (c *Controller[T]) Invalidate() {
	c.mu.Lock()
	if !c.mounted || c.pending {
		c.mu.Unlock()
		return
	}
	c.pending = true
	c.acquireLocked()
	c.mu.Unlock()

	go func() {
		defer c.release()
		c.fetch(true)
	}()
}

// fetch starts a fetch if the controller is mounted. With onlyPending set, it starts one only if an
// invalidation is still outstanding.
func (c *Controller[T]) fetch(onlyPending bool) {
	c.mu.Lock()
	if !c.mounted || (onlyPending && !c.pending) {
		c.mu.Unlock()
		return
	}
	ctx, t, req := c.startLocked()
	c.mu.Unlock()

	c.launch(ctx, t, req)
}

// startLocked captures filters and version together so a newer version always carries newer filters.
func (c *Controller[T]) startLocked() (context.Context, Ticket, Request) {
	c.pending = false
	c.acquireLocked()
	req := NewRequest(c.resource, c.filters.State())
	return c.ctx, c.exec.Start(), req
}

func (c *Controller[T]) launch(ctx context.Context, t Ticket, req Request) {
	c.exec.Emit()
	c.logger.Debug("fetch", "resource", c.resource, "version", t.Version, "page", req.Page, "filters", req.Filters)
	go func() {
		defer c.release()
		c.run(ctx, t, req)
	}()
}

func (c *Controller[T]) run(ctx context.Context, t Ticket, req Request) {
	// failures are logged by the executor
	if page, err := c.exec.Run(ctx, t, req); errors.Is(err, errRejected) {
		c.clamp(req, page)
	}
}

func (c *Controller[T]) accept(req Request, page Page[T]) bool {
	return req.Page <= 1 || page.TotalPages >= req.Page
}

// clamp moves to the last existing page after the result set shrank below the requested page.
func (c *Controller[T]) clamp(req Request, page Page[T]) {
	target := max(page.TotalPages, 1)

	c.mu.Lock()
	if !c.mounted || c.filters.State().Page != req.Page {
		c.mu.Unlock()
		return
	}
	if _, err := c.filters.SetPage(target); err != nil {
		c.mu.Unlock()
		return
	}
	ctx, t, next := c.startLocked()
	c.mu.Unlock()

	c.logger.Info("page out of range, clamping", "resource", c.resource, "page", req.Page, "total_pages", page.TotalPages, "target", target)
	c.launch(ctx, t, next)
}

// Patch applies fn to the item with the given key in the current snapshot.
//
// The returned restore func reverts the patch unless a fetch started or applied in the meantime; ok is false
// when no such item is present.
func (c *Controller[T]) Patch(id string, fn func(T) T) (restore func(), ok bool) {
	prev, gen, ok := c.exec.Patch(c.key, id, fn)
	if !ok {
		return func() {}, false
	}
	return func() { c.exec.Restore(c.key, prev, gen) }, true
}

// Watch registers fn to receive every snapshot change and returns a function that removes it.
//
// fn runs outside the controller lock but must not block.
func (c *Controller[T]) Watch(fn func(Snapshot[T])) func() {
	c.wmu.Lock()
	id := c.nextWatcher
	c.nextWatcher++
	c.watchers[id] = fn
	c.wmu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			c.wmu.Lock()
			delete(c.watchers, id)
			c.wmu.Unlock()
		})
	}
}

func (c *Controller[T]) broadcast(snap Snapshot[T]) {
	c.wmu.Lock()
	fns := make([]func(Snapshot[T]), 0, len(c.watchers))
	for _, fn := range c.watchers {
		fns = append(fns, fn)
	}
	c.wmu.Unlock()

	for _, fn := range fns {
		fn(snap)
	}
}

// Wait blocks until no fetch is in flight or scheduled, or ctx is done.
func (c *Controller[T]) Wait(ctx context.Context) error {
	c.mu.Lock()
	if c.busy == 0 {
		c.mu.Unlock()
		return nil
	}
	idle := c.idle
	c.mu.Unlock()

	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Controller[T]) acquireLocked() {
	if c.busy == 0 {
		c.idle = make(chan struct{})
	}
	c.busy++
}

func (c *Controller[T]) release() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.busy--
	if c.busy == 0 {
		close(c.idle)
	}
}
