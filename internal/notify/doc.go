// Package notify pushes operational alerts to an ntfy topic.
//
// Alerts are best effort: failures to deliver are logged by callers and never
// interfere with pipeline state. With no topic configured the service is a
// no-op, so callers need no conditional wiring.
package notify
