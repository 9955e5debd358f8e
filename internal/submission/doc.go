// Package submission uploads discovered documents to the knowledge base.
//
// Each pass drains one batch of discover rows: the file is hashed, optionally
// mirrored into object storage, and posted to the ingestion endpoint. On
// success the ledger row carries the returned knowledge id and moves to the
// parse status reported by the remote (processing when it reports none). Any
// per-document error marks that row failed with the concrete reason and the
// batch continues; failed rows wait for an operator retry rather than being
// resubmitted automatically.
package submission
