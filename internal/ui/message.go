package ui

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/notedesk/internal/listsync"
	"github.com/desertthunder/notedesk/internal/screens"
)

// MsgKind enumerates all message types in the application.
type MsgKind int

// Msg represents all possible messages in the TUI (Elm-style message union).
type Msg struct {
	kind MsgKind
	data any
}

var (
	_ tea.Msg = Msg{}
)

const (
	MsgMounted MsgKind = iota
	MsgViewUpdated
	MsgActionDone
	MsgCommandFailed
)

// mountedMsg is the constructor for [MsgMounted]
func mountedMsg(err error) Msg {
	return Msg{kind: MsgMounted, data: err}
}

// viewUpdatedMsg is the constructor for [MsgViewUpdated]
func viewUpdatedMsg(v screens.View) Msg {
	return Msg{kind: MsgViewUpdated, data: v}
}

type actionResult struct {
	action listsync.Action
	id     string
	err    error
}

// actionDoneMsg is the constructor for [MsgActionDone]
func actionDoneMsg(action listsync.Action, id string, err error) Msg {
	return Msg{kind: MsgActionDone, data: actionResult{action, id, err}}
}

// commandFailedMsg is the constructor for [MsgCommandFailed], used for filter and page changes.
func commandFailedMsg(err error) Msg {
	return Msg{kind: MsgCommandFailed, data: err}
}
