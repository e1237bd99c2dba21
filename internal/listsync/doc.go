// Package listsync keeps filtered, paginated admin lists in sync with a remote API.
//
// A list screen is driven by a [Controller], which composes:
//
//   - a [FilterStore] holding the search, filter, sort and page selection,
//   - an [Executor] that turns that state into a [Request] and applies only the newest result,
//   - a [Multiplexer] that binds the screen's push events and collapses bursts into one invalidation.
//
// Changing any filter other than the page resets the page to 1. Each fetch is stamped with a
// version when it starts; responses that resolve after a newer fetch started are discarded, so
// the visible list always matches the latest filters. When a result reports fewer pages than the
// requested page, the controller moves to the last existing page and fetches once more without
// showing the empty page.
//
// Mutations go through a [Dispatcher], which checks the session's [Gate] before any request,
// optionally patches the visible item, and invalidates the list once on success.
package listsync
