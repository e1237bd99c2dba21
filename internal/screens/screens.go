// Package screens defines the admin list screens: notes, tags, folders, shared notes and chat
// settings.
//
// Every screen is a [Definition] over its resource DTO: filter fields, the push events that
// invalidate it, the actions it offers with their capability tokens, and a row renderer. A
// definition opens an [Instance], a type-erased controller and dispatcher pair used by the CLI,
// the TUI and the bulk task engine.
package screens

import (
	"context"
	"fmt"
	"net/url"
	"slices"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/notedesk/internal/listsync"
	"github.com/desertthunder/notedesk/internal/models"
	"github.com/desertthunder/notedesk/internal/services"
	"github.com/desertthunder/notedesk/internal/shared"
)

// Deps are the collaborators a screen needs to open.
type Deps struct {
	API      *services.AdminAPI
	Mutator  listsync.Mutator // defaults to API
	Realtime *listsync.Multiplexer
	Gate     listsync.Gate
	PageSize int
	Logger   *log.Logger
}

// Screen is a list screen that can be opened without knowing its item type.
type Screen interface {
	Resource() models.Resource
	Title() string
	Fields() []listsync.FieldSpec
	Actions() []listsync.Action
	Open(deps Deps, query url.Values) (Instance, error)
}

// Definition describes the screen for one resource DTO.
type Definition[T models.Keyed] struct {
	resource models.Resource
	title    string
	fields   []listsync.FieldSpec
	events   []string
	actions  []listsync.ActionSpec[T]
	columns  []string
	row      func(T) []string
}

func (d Definition[T]) Resource() models.Resource { return d.resource }
func (d Definition[T]) Title() string             { return d.title }

// Events returns the push events that invalidate the screen.
func (d Definition[T]) Events() []string { return slices.Clone(d.events) }

// Fields returns the screen's filter fields.
func (d Definition[T]) Fields() []listsync.FieldSpec { return slices.Clone(d.fields) }

// Actions returns every action the screen declares, regardless of capability.
func (d Definition[T]) Actions() []listsync.Action {
	out := make([]listsync.Action, 0, len(d.actions))
	for _, a := range d.actions {
		out = append(out, a.Action)
	}
	return out
}

// Capabilities returns the capability token of every action.
func (d Definition[T]) Capabilities() []string {
	out := make([]string, 0, len(d.actions))
	for _, a := range d.actions {
		out = append(out, a.Capability)
	}
	return out
}

// Open creates the controller and dispatcher for the screen.
func (d Definition[T]) Open(deps Deps, query url.Values) (Instance, error) {
	inst, err := d.open(deps, query)
	if err != nil {
		return nil, err
	}
	return inst, nil
}

func (d Definition[T]) open(deps Deps, query url.Values) (*instance[T], error) {
	if deps.API == nil {
		return nil, fmt.Errorf("%w: admin API client", shared.ErrMissingArgument)
	}
	logger := deps.Logger
	if logger == nil {
		logger = shared.DiscardLogger()
	}
	logger = shared.WithLogger(logger, "resource", string(d.resource))

	ctrl, err := listsync.NewController(listsync.Config[T]{
		Resource: string(d.resource),
		Fields:   d.fields,
		Events:   d.events,
		PageSize: deps.PageSize,
		Query:    query,
		Key:      func(item T) string { return item.Key() },
		Fetcher:  services.NewResourceFetcher[T](deps.API, d.resource),
		Realtime: deps.Realtime,
		Logger:   logger,
	})
	if err != nil {
		return nil, err
	}

	var mutator listsync.Mutator = deps.API
	if deps.Mutator != nil {
		mutator = deps.Mutator
	}
	disp := listsync.NewDispatcher(string(d.resource), deps.Gate, mutator, listsync.Target[T](ctrl), d.actions, logger)
	return &instance[T]{def: d, ctrl: ctrl, disp: disp}, nil
}

// View is a type-erased rendering of a list snapshot.
type View struct {
	Resource     models.Resource
	Columns      []string
	Rows         [][]string
	IDs          []string
	Items        []any
	State        listsync.State
	Loading      bool
	Err          error
	FetchVersion uint64
	Page         int
	PageSize     int
	TotalPages   int
	TotalItems   int
	Filters      listsync.FilterState
}

// Instance is an open list screen.
type Instance interface {
	Resource() models.Resource
	Title() string
	Mount(ctx context.Context) error
	Unmount()
	Wait(ctx context.Context) error
	View() View
	Watch(fn func(View)) func()
	Fields() []listsync.FieldSpec
	SetFilter(name, value string) error
	SetPage(n int) error
	ClearFilters()
	Refresh()
	Invalidate()
	Actions() []listsync.Action
	Perform(ctx context.Context, action listsync.Action, id string, p listsync.Payload) error
}

type instance[T models.Keyed] struct {
	def  Definition[T]
	ctrl *listsync.Controller[T]
	disp *listsync.Dispatcher[T]
}

func (i *instance[T]) Resource() models.Resource           { return i.def.resource }
func (i *instance[T]) Title() string                       { return i.def.title }
func (i *instance[T]) Mount(ctx context.Context) error     { return i.ctrl.Mount(ctx) }
func (i *instance[T]) Unmount()                            { i.ctrl.Unmount() }
func (i *instance[T]) Wait(ctx context.Context) error      { return i.ctrl.Wait(ctx) }
func (i *instance[T]) Fields() []listsync.FieldSpec        { return i.ctrl.Fields() }
func (i *instance[T]) SetFilter(name, value string) error  { return i.ctrl.SetFilter(name, value) }
func (i *instance[T]) SetPage(n int) error                 { return i.ctrl.SetPage(n) }
func (i *instance[T]) ClearFilters()                       { i.ctrl.ClearFilters() }
func (i *instance[T]) Refresh()                            { i.ctrl.Refresh() }
func (i *instance[T]) Invalidate()                         { i.ctrl.Invalidate() }
func (i *instance[T]) Controller() *listsync.Controller[T] { return i.ctrl }
func (i *instance[T]) Dispatcher() *listsync.Dispatcher[T] { return i.disp }
func (i *instance[T]) View() View                          { return i.view(i.ctrl.Snapshot()) }

// Actions returns the actions the session may perform.
func (i *instance[T]) Actions() []listsync.Action {
	var out []listsync.Action
	for _, h := range i.disp.Handles() {
		out = append(out, h.Action)
	}
	return out
}

func (i *instance[T]) Perform(ctx context.Context, action listsync.Action, id string, p listsync.Payload) error {
	return i.disp.Perform(ctx, action, id, p)
}

func (i *instance[T]) Watch(fn func(View)) func() {
	return i.ctrl.Watch(func(s listsync.Snapshot[T]) { fn(i.view(s)) })
}

func (i *instance[T]) view(s listsync.Snapshot[T]) View {
	v := View{
		Resource:     i.def.resource,
		Columns:      i.def.columns,
		State:        s.State,
		Loading:      s.Loading,
		Err:          s.Err,
		FetchVersion: s.FetchVersion,
		Page:         s.Page,
		PageSize:     s.PageSize,
		TotalPages:   s.TotalPages,
		TotalItems:   s.TotalItems,
		Filters:      i.ctrl.Filters(),
		Rows:         make([][]string, 0, len(s.Items)),
		IDs:          make([]string, 0, len(s.Items)),
		Items:        make([]any, 0, len(s.Items)),
	}
	for _, item := range s.Items {
		v.Rows = append(v.Rows, i.def.row(item))
		v.IDs = append(v.IDs, item.Key())
		v.Items = append(v.Items, item)
	}
	return v
}

var registry = map[models.Resource]Screen{
	models.ResourceNotes:        Notes,
	models.ResourceTags:         Tags,
	models.ResourceFolders:      Folders,
	models.ResourceSharedNotes:  SharedNotes,
	models.ResourceChatSettings: ChatSettings,
}

// Lookup returns the screen for a resource name such as "notes" or "shared_notes".
func Lookup(name string) (Screen, error) {
	r, err := models.ParseResource(name)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrInvalidArgument, err)
	}
	return registry[r], nil
}

// All returns every screen in menu order.
func All() []Screen {
	out := make([]Screen, 0, len(models.Resources))
	for _, r := range models.Resources {
		out = append(out, registry[r])
	}
	return out
}

// Events returns the union of all screens' event names.
func Events() []string {
	var out []string
	for _, s := range All() {
		if e, ok := s.(interface{ Events() []string }); ok {
			out = append(out, e.Events()...)
		}
	}
	slices.Sort(out)
	return slices.Compact(out)
}

func truncate(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	if r := []rune(s); len(r) > n {
		return string(r[:n-1]) + "…"
	}
	return s
}
