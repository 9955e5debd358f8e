// Package discovery walks the configured document roots and reconciles what
// it finds with the ledger.
//
// Each pass builds a snapshot of eligible files on disk, registers new paths,
// resets changed documents so they are submitted again, and retires documents
// whose files vanished. Documents currently being parsed by the knowledge
// base are left alone until the poller settles them. A removed file is only
// marked deleted after its remote knowledge entry has been confirmed gone, so
// a flaky delete keeps the record alive for the next pass.
package discovery
