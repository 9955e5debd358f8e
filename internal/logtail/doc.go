// Package logtail reads the shared daemon log with bounded memory so the
// CLI can show recent activity without talking to the daemon.
//
// Read grabs the trailing lines for a one-shot view; Wait polls for newer
// lines from a byte offset and backs `docbridge logs --follow`. Rotated or
// truncated files restart from the beginning rather than silently skipping
// content.
package logtail
