package listsync

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"slices"
	"strconv"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/notedesk/internal/shared"
)

// errRejected is returned by [Executor.Run] when the accept hook vetoed a current result.
var errRejected = errors.New("result rejected")

// Request is one paginated list query.
type Request struct {
	Resource string
	Filters  map[string]string
	Page     int
	PageSize int
}

// NewRequest builds the request for the given filter state.
func NewRequest(resource string, state FilterState) Request {
	return Request{Resource: resource, Filters: state.Active(), Page: state.Page, PageSize: state.PageSize}
}

// Query encodes the request as URL query parameters.
func (r Request) Query() url.Values {
	q := url.Values{}
	for k, v := range r.Filters {
		if v != "" {
			q.Set(k, v)
		}
	}
	q.Set(PageField, strconv.Itoa(max(r.Page, 1)))
	if r.PageSize > 0 {
		q.Set(PageSizeField, strconv.Itoa(r.PageSize))
	}
	return q
}

// Page is one page of results as reported by the server.
type Page[T any] struct {
	Items      []T
	TotalPages int
	TotalItems int
}

// Fetcher retrieves one page of a resource.
type Fetcher[T any] interface {
	Fetch(ctx context.Context, req Request) (Page[T], error)
}

// FetcherFunc adapts a function to [Fetcher].
type FetcherFunc[T any] func(ctx context.Context, req Request) (Page[T], error)

func (f FetcherFunc[T]) Fetch(ctx context.Context, req Request) (Page[T], error) {
	return f(ctx, req)
}

// Snapshot is the externally observable state of a list screen.
type Snapshot[T any] struct {
	Items        []T
	Loading      bool
	Err          error
	FetchVersion uint64
	State        State
	Page         int
	PageSize     int
	TotalPages   int
	TotalItems   int
}

// Empty reports whether the last applied result had no items.
func (s Snapshot[T]) Empty() bool {
	return len(s.Items) == 0
}

func (s Snapshot[T]) clone() Snapshot[T] {
	s.Items = slices.Clone(s.Items)
	return s
}

// Ticket identifies one fetch started by [Executor.Start].
type Ticket struct {
	Version uint64
}

// Generation identifies the snapshot contents a patch was made against.
//
// Version counts fetches started and Applied counts results written into Items.
type Generation struct {
	Version uint64
	Applied uint64
}

// ExecutorOption configures an [Executor].
type ExecutorOption[T any] func(*Executor[T])

// WithAccept installs a hook that may veto applying a current result.
//
// A vetoed result leaves the snapshot loading and makes [Executor.Run] return an error.
func WithAccept[T any](fn func(Request, Page[T]) bool) ExecutorOption[T] {
	return func(e *Executor[T]) { e.accept = fn }
}

// WithNotify installs a callback invoked after every observable snapshot change.
func WithNotify[T any](fn func(Snapshot[T])) ExecutorOption[T] {
	return func(e *Executor[T]) { e.notify = fn }
}

// WithExecutorLogger sets the logger used for discarded and failed fetches.
func WithExecutorLogger[T any](l *log.Logger) ExecutorOption[T] {
	return func(e *Executor[T]) { e.logger = l }
}

// Executor runs list queries and owns the resulting [Snapshot].
//
// Every fetch gets a version when it starts; a result is applied only if its version is still the
// newest when it resolves, so out-of-order responses never overwrite newer data.
type Executor[T any] struct {
	fetcher Fetcher[T]
	accept  func(Request, Page[T]) bool
	notify  func(Snapshot[T])
	logger  *log.Logger

	mu      sync.Mutex
	snap    Snapshot[T]
	applied uint64
	closed  bool

	emitMu sync.Mutex
}

// NewExecutor creates an idle executor.
func NewExecutor[T any](fetcher Fetcher[T], opts ...ExecutorOption[T]) *Executor[T] {
	e := &Executor[T]{fetcher: fetcher, logger: shared.DiscardLogger()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Start begins a fetch: it bumps the version and marks the snapshot loading.
//
// Start does not notify; call [Executor.Emit] once any surrounding lock is released.
func (e *Executor[T]) Start() Ticket {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.snap.FetchVersion++
	if !e.closed {
		e.snap.Loading = true
		e.snap.State = StateLoading
	}
	return Ticket{Version: e.snap.FetchVersion}
}

// Run performs the fetch for t and applies the result if t is still current.
//
// Superseded results are discarded and reported as [shared.ErrStaleResponse].
func (e *Executor[T]) Run(ctx context.Context, t Ticket, req Request) (Page[T], error) {
	page, err := e.fetcher.Fetch(ctx, req)

	e.mu.Lock()
	if e.closed || t.Version != e.snap.FetchVersion {
		current := e.snap.FetchVersion
		e.mu.Unlock()
		e.logger.Debug("discarding stale response", "version", t.Version, "current", current, "error", err)
		return page, fmt.Errorf("%w: version %d superseded by %d", shared.ErrStaleResponse, t.Version, current)
	}

	if err != nil {
		e.snap.Err = err
		e.snap.Loading = false
		e.snap.State = StateErrored
		e.mu.Unlock()
		e.logger.Warn("fetch failed", "resource", req.Resource, "version", t.Version, "error", err)
		e.Emit()
		return page, err
	}

	if e.accept != nil && !e.accept(req, page) {
		e.mu.Unlock()
		return page, errRejected
	}

	e.applied++
	e.snap.Items = slices.Clone(page.Items)
	e.snap.TotalPages = page.TotalPages
	e.snap.TotalItems = page.TotalItems
	e.snap.Page = req.Page
	e.snap.PageSize = req.PageSize
	e.snap.Err = nil
	e.snap.Loading = false
	e.snap.State = StateReady
	if len(page.Items) == 0 {
		e.snap.State = StateEmpty
	}
	e.mu.Unlock()

	e.logger.Debug("applied", "resource", req.Resource, "version", t.Version, "items", len(page.Items), "filters", req.Filters)
	e.Emit()
	return page, nil
}

// Execute starts and runs a fetch in the caller's goroutine.
func (e *Executor[T]) Execute(ctx context.Context, req Request) (Page[T], error) {
	t := e.Start()
	e.Emit()
	return e.Run(ctx, t, req)
}

// Snapshot returns a copy of the current snapshot.
func (e *Executor[T]) Snapshot() Snapshot[T] {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snap.clone()
}

// Emit delivers the current snapshot to the notify callback.
//
// Deliveries are serialized and always read the latest snapshot, so the last delivery observed
// reflects the newest state.
func (e *Executor[T]) Emit() {
	if e.notify == nil {
		return
	}
	e.emitMu.Lock()
	defer e.emitMu.Unlock()
	e.notify(e.Snapshot())
}

// Patch replaces the item matching id with fn(item).
//
// It returns the previous item and the generation it was patched at, for [Executor.Restore].
func (e *Executor[T]) Patch(key func(T) string, id string, fn func(T) T) (prev T, gen Generation, ok bool) {
	e.mu.Lock()
	idx := slices.IndexFunc(e.snap.Items, func(item T) bool { return key(item) == id })
	if e.closed || idx < 0 {
		e.mu.Unlock()
		return prev, gen, false
	}
	prev = e.snap.Items[idx]
	items := slices.Clone(e.snap.Items)
	items[idx] = fn(prev)
	e.snap.Items = items
	gen = Generation{Version: e.snap.FetchVersion, Applied: e.applied}
	e.mu.Unlock()

	e.Emit()
	return prev, gen, true
}

// Restore puts prev back if no fetch has started or applied since gen.
//
// A fetch already in flight at patch time may still apply afterwards; its result is authoritative
// and is never overwritten by prev.
func (e *Executor[T]) Restore(key func(T) string, prev T, gen Generation) bool {
	e.mu.Lock()
	if e.closed || e.snap.FetchVersion != gen.Version || e.applied != gen.Applied {
		e.mu.Unlock()
		return false
	}
	idx := slices.IndexFunc(e.snap.Items, func(item T) bool { return key(item) == key(prev) })
	if idx < 0 {
		e.mu.Unlock()
		return false
	}
	items := slices.Clone(e.snap.Items)
	items[idx] = prev
	e.snap.Items = items
	e.mu.Unlock()

	e.Emit()
	return true
}

// Close terminates the executor; results resolving afterwards are discarded.
func (e *Executor[T]) Close() {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.closed = true
	e.snap.Loading = false
	e.snap.State = StateTerminated
	e.mu.Unlock()

	e.Emit()
}
