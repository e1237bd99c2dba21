// Package ui implements an interactive terminal list screen using bubbletea's Elm architecture.
//
// The [Model] wraps one [screens.Instance]: it mounts the screen, renders each view the instance
// publishes, and maps keys onto filter, pagination and entity actions:
//   - / : edit the search filter (enter applies, esc cancels)
//   - n / p : next and previous page
//   - c : clear filters, r : refresh
//   - P : pin or unpin, A : archive or unarchive, d : delete after a y/n confirmation
//
// The (view) [Model] implements bubbletea/Elm's standard Init/Update/View pattern, receiving messages via the Msg union type.
// Views flow from the instance's watcher through a one-slot channel that always holds the newest view,
// so a slow terminal never blocks the list controller.
//
// Actions run as commands; their errors appear on the status line and never quit the program.
package ui
