// Package ingest wraps the knowledge ingestion HTTP API used by the pipeline.
//
// The client covers the three calls the pipeline needs: multipart file
// uploads into a knowledge base, parse-status lookups, and idempotent
// deletes. Errors are tagged with sentinel markers so callers can tell a
// transient outage (retry on the next run) from a definitive remote verdict
// (finalize the record).
package ingest
