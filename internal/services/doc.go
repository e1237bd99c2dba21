// Package services talks to the notes admin API.
//
// # Admin API
//
// [AdminAPI] wraps the REST endpoints. Lists are read with GET /api/{resource} and the query
// parameters of a [listsync.Request]; mutations map onto POST, PATCH and DELETE per action.
// Bearer authentication is provided by an [oauth2] static token source (see [NewHTTPClient]).
//
// [ResourceFetcher] decodes list pages into a resource DTO and implements [listsync.Fetcher];
// [AdminAPI.Mutate] implements [listsync.Mutator].
//
// # Push
//
// [PushClient] reads {"event", "data"} frames from the websocket at /api/events and republishes
// them on an in-process bus, implementing [listsync.PushSource].
//
// # Session
//
// [Session] carries the capability tokens used by the dispatcher's gate. Tokens are JWTs with a
// "capabilities" claim, verified with HMAC when a secret is configured.
//
// # Error Handling
//
// Errors use the sentinels from the shared package:
//   - [shared.ErrNetwork] : transport failure, the request may not have reached the server
//   - [shared.ErrServer] : non-2xx response, as a [*shared.StatusError] carrying status and message
//   - [shared.ErrInvalidSession] : malformed, expired or forged session token
package services
