package ui

import "github.com/charmbracelet/bubbles/key"

// keyMap defines the [key.Binding] mapping for the TUI.
type keyMap struct {
	up      key.Binding
	down    key.Binding
	search  key.Binding
	next    key.Binding
	prev    key.Binding
	clear   key.Binding
	refresh key.Binding
	pin     key.Binding
	archive key.Binding
	remove  key.Binding
	enter   key.Binding
	back    key.Binding
	yes     key.Binding
	no      key.Binding
	quit    key.Binding
}

func newKeyMap() keyMap {
	return keyMap{
		up:      key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "up")),
		down:    key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "down")),
		search:  key.NewBinding(key.WithKeys("/"), key.WithHelp("/", "search")),
		next:    key.NewBinding(key.WithKeys("n"), key.WithHelp("n", "next page")),
		prev:    key.NewBinding(key.WithKeys("p"), key.WithHelp("p", "prev page")),
		clear:   key.NewBinding(key.WithKeys("c"), key.WithHelp("c", "clear filters")),
		refresh: key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "refresh")),
		pin:     key.NewBinding(key.WithKeys("P"), key.WithHelp("P", "pin")),
		archive: key.NewBinding(key.WithKeys("A"), key.WithHelp("A", "archive")),
		remove:  key.NewBinding(key.WithKeys("d"), key.WithHelp("d", "delete")),
		enter:   key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "apply")),
		back:    key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "cancel")),
		yes:     key.NewBinding(key.WithKeys("y"), key.WithHelp("y", "yes")),
		no:      key.NewBinding(key.WithKeys("n", "esc"), key.WithHelp("n", "no")),
		quit:    key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.search, k.next, k.prev, k.refresh, k.quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.up, k.down, k.search},
		{k.next, k.prev, k.clear, k.refresh},
		{k.pin, k.archive, k.remove, k.quit},
	}
}
