// Package tasks runs one entity action across many records with real-time progress reporting.
//
// # Bulk Actions
//
// [BulkEngine.Run] performs an action (pin, archive, delete, move, ...) once per record id through
// a [Performer], normally a screen's action dispatcher, so every call is gated, validated and
// keeps the list in sync exactly like a single action.
//
// Failures for individual records are collected in [BulkResult.Failed] and the run continues.
// Errors that would fail for every record stop the run early: a denied capability, an unknown
// action or an invalid payload. Cancelling the context also stops it; the remaining ids are
// reported as skipped.
//
// # Progress Reporting
//
// # All operations use non-blocking channels for progress updates
//
// The [ProgressUpdate] struct contains phase, step counters, messages, and optional data for advanced UI rendering.
// Updates use select with default to prevent blocking.
package tasks
