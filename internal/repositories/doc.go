// Package repositories implements SQLite persistence for the development admin backend.
//
// Every admin resource is stored in one records table: filterable attributes are promoted to
// columns and the rest of the document is kept as JSON.
//
// Key Implementations:
//   - [RecordRepository] : CRUD, soft deletes and filtered, paginated listing of records
//   - [EventLog] : audit trail of the push events the backend emitted
//
// Sequence numbers provide stable, human-readable ordering independent of UUIDs and creation
// timestamps. The [NextSequence] function atomically increments per-table sequence counters in
// dedicated sequence tables.
package repositories
