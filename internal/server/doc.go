// Package server provides the development admin backend: HTTP routing, middleware, the record API
// and the websocket event stream.
//
// # Router Infrastructure
//
// The [Router] interface defines HTTP routing with middleware support.
//
// [Middleware] wraps handlers in reverse order (last added executes first), following the standard Go pattern.
//
// The [BasicRouter] implementation uses [http.ServeMux] method and wildcard patterns.
//
// # Admin API
//
// [APIHandler] serves the list, create, edit, delete and action endpoints for every resource over a
// [repositories.RecordRepository]. Each successful mutation is appended to the event log and published
// on an [events.Bus].
//
// # Event Stream
//
// [Hub] upgrades GET /api/events to a websocket and forwards every bus event to the client as a
// {"event": ..., "data": ...} text frame. Slow clients drop frames rather than stall publishers.
//
// # Authentication
//
// With a session secret configured, [Authenticate] requires a signed bearer token and the API checks
// the token's capabilities before each mutation. Without one, the server is open, which suits local
// development.
//
// # Handler Interface
//
// Custom handlers implement the [Handler] interface, which wraps the stdlib handler interface and adds routes,
// allowing handlers to register multiple routes to encapsulate route definitions within the implementation.
package server
