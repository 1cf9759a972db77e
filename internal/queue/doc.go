// Package queue persists download work items in SQLite and exposes helpers
// for driving their lifecycle.
//
// The Store manages database connections, schema initialization, batch
// grouping, statistics queries, and pruning. WorkItems capture per-item
// download progress, retry bookkeeping, and final file placement so the
// pipeline and CLI coordinate without additional state. Writes go through
// committed transactions on a WAL database, so every observed state was
// durably persisted before the mutation returned.
//
// Items are grouped into batches: enqueueing while no open batch exists
// starts a new one, and Statistics is the single place batch completion is
// detected and recorded.
//
// Treat this package as the single source of truth for queue semantics; when
// you add new states or fields, update schema.sql and bump schemaVersion.
package queue
