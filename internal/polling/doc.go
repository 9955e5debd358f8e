// Package polling settles in-flight documents against the knowledge base.
//
// Each pass asks the ingestion service how parsing went for every pending or
// processing row. Completed and failed parses are finalized with a finish
// timestamp, vanished knowledge entries are failed so an operator notices,
// and transient outages leave rows untouched for the next pass. Requests are
// paced so large batches do not hammer the remote service.
package polling
