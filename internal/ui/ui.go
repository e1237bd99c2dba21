package ui

import (
	"context"
	"errors"
	"fmt"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/notedesk/internal/formatter"
	"github.com/desertthunder/notedesk/internal/listsync"
	"github.com/desertthunder/notedesk/internal/screens"
)

// ViewState represents the current view in the TUI.
type ViewState int

const (
	ListView ViewState = iota
	SearchView
	ConfirmView
)

// Model represents the TUI application state.
type Model struct {
	ctx     context.Context
	inst    screens.Instance
	view    ViewState
	current screens.View
	views   chan screens.View
	unwatch func()
	list    list.Model
	search  textinput.Model
	pending rowItem
	status  string
	failed  bool
	err     error
	width   int
	height  int
	help    help.Model
	keys    keyMap
}

// NewModel creates a TUI model for inst. The model mounts inst in Init; call [Model.Close] when done.
func NewModel(ctx context.Context, inst screens.Instance) *Model {
	l := list.New(nil, list.NewDefaultDelegate(), 0, 0)
	l.Title = inst.Title()
	l.SetFilteringEnabled(false)
	l.SetShowHelp(false)
	l.DisableQuitKeybindings()

	search := textinput.New()
	search.Prompt = "/ "
	search.Placeholder = "search"

	return &Model{
		ctx:    ctx,
		inst:   inst,
		view:   ListView,
		views:  make(chan screens.View, 1),
		list:   l,
		search: search,
		help:   help.New(),
		keys:   newKeyMap(),
	}
}

// Run mounts inst and runs the TUI until the user quits or ctx is cancelled.
func Run(ctx context.Context, inst screens.Instance, opts ...tea.ProgramOption) error {
	m := NewModel(ctx, inst)
	defer m.Close()

	opts = append([]tea.ProgramOption{tea.WithAltScreen(), tea.WithContext(ctx)}, opts...)
	if _, err := tea.NewProgram(m, opts...).Run(); err != nil {
		if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
			return nil
		}
		return err
	}
	return m.err
}

// Close stops watching and unmounts the instance.
func (m *Model) Close() {
	if m.unwatch != nil {
		m.unwatch()
		m.unwatch = nil
	}
	m.inst.Unmount()
}

// Init starts watching the instance and mounts it.
func (m *Model) Init() tea.Cmd {
	m.unwatch = m.inst.Watch(m.publish)
	return tea.Batch(m.mount(), m.waitForView())
}

// publish replaces any unread view with v without blocking the caller.
func (m *Model) publish(v screens.View) {
	for {
		select {
		case m.views <- v:
			return
		default:
		}
		select {
		case <-m.views:
		default:
		}
	}
}

// Update handles incoming messages and updates the model state.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.list.SetSize(msg.Width-2, max(msg.Height-6, 1))
		return m, nil

	case Msg:
		return m.handleMsg(msg)

	case tea.KeyMsg:
		switch m.view {
		case SearchView:
			return m.handleSearchKeys(msg)
		case ConfirmView:
			return m.handleConfirmKeys(msg)
		default:
			return m.handleListKeys(msg)
		}
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

func (m *Model) handleMsg(msg Msg) (tea.Model, tea.Cmd) {
	switch msg.kind {
	case MsgMounted:
		if err, _ := msg.data.(error); err != nil {
			m.err = err
		}
		return m, nil

	case MsgViewUpdated:
		m.apply(msg.data.(screens.View))
		return m, m.waitForView()

	case MsgActionDone:
		r := msg.data.(actionResult)
		if r.err != nil {
			m.setStatus(fmt.Sprintf("%s failed: %v", r.action, r.err), true)
		} else {
			m.setStatus(fmt.Sprintf("%s %s: done", r.action, r.id), false)
		}
		return m, nil

	case MsgCommandFailed:
		m.setStatus(fmt.Sprint(msg.data), true)
		return m, nil
	}
	return m, nil
}

func (m *Model) apply(v screens.View) {
	m.current = v
	idx := m.list.Index()
	m.list.SetItems(rowItems(v))
	if n := len(v.Rows); n > 0 && idx >= n {
		m.list.Select(n - 1)
	}
	m.list.Title = fmt.Sprintf("%s  %s", m.inst.Title(), formatter.Summary(v))
}

func (m *Model) setStatus(s string, failed bool) {
	m.status = s
	m.failed = failed
}

func (m *Model) handleListKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit

	case key.Matches(msg, m.keys.search):
		m.view = SearchView
		m.search.SetValue(m.current.Filters.Get("search"))
		m.search.CursorEnd()
		return m, m.search.Focus()

	case key.Matches(msg, m.keys.next):
		if m.current.Page >= m.current.TotalPages {
			m.setStatus("already on the last page", false)
			return m, nil
		}
		return m, m.check(m.inst.SetPage(m.current.Page + 1))

	case key.Matches(msg, m.keys.prev):
		if m.current.Page <= 1 {
			m.setStatus("already on the first page", false)
			return m, nil
		}
		return m, m.check(m.inst.SetPage(m.current.Page - 1))

	case key.Matches(msg, m.keys.clear):
		m.inst.ClearFilters()
		m.setStatus("filters cleared", false)
		return m, nil

	case key.Matches(msg, m.keys.refresh):
		m.inst.Refresh()
		m.setStatus("", false)
		return m, nil

	case key.Matches(msg, m.keys.pin):
		if it, ok := m.selected(); ok {
			if it.pinned() {
				return m, m.perform(listsync.ActionUnpin, it.id)
			}
			return m, m.perform(listsync.ActionPin, it.id)
		}
		return m, nil

	case key.Matches(msg, m.keys.archive):
		if it, ok := m.selected(); ok {
			if it.archived() {
				return m, m.perform(listsync.ActionUnarchive, it.id)
			}
			return m, m.perform(listsync.ActionArchive, it.id)
		}
		return m, nil

	case key.Matches(msg, m.keys.remove):
		if it, ok := m.selected(); ok {
			m.pending = it
			m.view = ConfirmView
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

func (m *Model) handleSearchKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.enter):
		m.view = ListView
		m.search.Blur()
		return m, m.check(m.inst.SetFilter("search", m.search.Value()))
	case key.Matches(msg, m.keys.back):
		m.view = ListView
		m.search.Blur()
		return m, nil
	}

	var cmd tea.Cmd
	m.search, cmd = m.search.Update(msg)
	return m, cmd
}

func (m *Model) handleConfirmKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.yes):
		m.view = ListView
		return m, m.perform(listsync.ActionDelete, m.pending.id)
	case key.Matches(msg, m.keys.no), key.Matches(msg, m.keys.quit):
		m.view = ListView
		return m, nil
	}
	return m, nil
}

func (m *Model) selected() (rowItem, bool) {
	it, ok := m.list.SelectedItem().(rowItem)
	return it, ok && it.id != ""
}

func (m *Model) check(err error) tea.Cmd {
	if err == nil {
		m.setStatus("", false)
		return nil
	}
	return func() tea.Msg { return commandFailedMsg(err) }
}

func (m *Model) mount() tea.Cmd {
	return func() tea.Msg {
		return mountedMsg(m.inst.Mount(m.ctx))
	}
}

func (m *Model) perform(action listsync.Action, id string) tea.Cmd {
	m.setStatus(fmt.Sprintf("%s %s...", action, id), false)
	return func() tea.Msg {
		return actionDoneMsg(action, id, m.inst.Perform(m.ctx, action, id, nil))
	}
}

func (m *Model) waitForView() tea.Cmd {
	return func() tea.Msg {
		select {
		case v := <-m.views:
			return viewUpdatedMsg(v)
		case <-m.ctx.Done():
			return nil
		}
	}
}

// View renders the UI based on the current view state.
func (m *Model) View() string {
	if m.err != nil {
		return styles.err.Render(fmt.Sprintf("Error: %v\n\nPress q to quit", m.err))
	}

	out := m.list.View()
	if filters := formatter.FilterLine(m.current.Filters); filters != "" {
		out += "\n" + styles.filter.Render("filters: "+filters)
	}
	if m.current.Err != nil {
		out += "\n" + styles.err.Render(fmt.Sprintf("fetch failed: %v (r to retry)", m.current.Err))
	}

	switch m.view {
	case SearchView:
		out += "\n" + m.search.View()
		out += "\n" + m.help.ShortHelpView([]key.Binding{m.keys.enter, m.keys.back})
	case ConfirmView:
		out += "\n" + styles.warn.Render(fmt.Sprintf("Delete %q?", m.pending.Title()))
		out += "\n" + m.help.ShortHelpView([]key.Binding{m.keys.yes, m.keys.no})
	default:
		if m.status != "" {
			style := styles.ok
			if m.failed {
				style = styles.err
			}
			out += "\n" + style.Render(m.status)
		}
		out += "\n" + m.help.ShortHelpView(m.keys.ShortHelp())
	}
	return out
}
