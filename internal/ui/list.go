package ui

import (
	"strings"

	"github.com/charmbracelet/bubbles/list"
	"github.com/desertthunder/notedesk/internal/models"
	"github.com/desertthunder/notedesk/internal/screens"
)

var _ list.Item = rowItem{}

// rowItem wraps one rendered row of a [screens.View] to implement [list.Item].
type rowItem struct {
	id    string
	cells []string
	item  any
}

func (i rowItem) FilterValue() string { return strings.Join(i.cells, " ") }

func (i rowItem) Title() string {
	if len(i.cells) == 0 {
		return i.id
	}
	return i.cells[0]
}

func (i rowItem) Description() string {
	var parts []string
	for _, c := range i.cells[min(1, len(i.cells)):] {
		if c != "" {
			parts = append(parts, c)
		}
	}
	return strings.Join(parts, " • ")
}

// pinned reports whether the underlying record is pinned; only notes can be.
func (i rowItem) pinned() bool {
	n, ok := i.item.(models.Note)
	return ok && n.IsPinned
}

func (i rowItem) archived() bool {
	n, ok := i.item.(models.Note)
	return ok && n.IsArchived
}

func rowItems(v screens.View) []list.Item {
	items := make([]list.Item, len(v.Rows))
	for i, row := range v.Rows {
		it := rowItem{cells: row}
		if i < len(v.IDs) {
			it.id = v.IDs[i]
		}
		if i < len(v.Items) {
			it.item = v.Items[i]
		}
		items[i] = it
	}
	return items
}
