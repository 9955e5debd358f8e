// Package ledger persists document lifecycle state and per-run audit rows in
// SQLite.
//
// The Store manages database connections, schema initialization, the status
// transitions of document_status_table rows, and the append-only
// script_process_record audit trail. Documents move discover -> pending ->
// processing -> completed or failed; deleted is a status rather than a row
// removal, so the full history of every path ever observed survives.
//
// Rows are partitioned by status between the pipeline stages: discovery owns
// discover and deleted transitions, submission moves discover onward, and the
// poller resolves pending and processing. A record in processing is never
// touched by discovery, which is the only concurrency guard the stages need.
//
// Treat this package as the single source of truth for lifecycle semantics;
// when you add statuses or columns, update schema.sql and bump schemaVersion.
package ledger
