// Package main hosts the docbridge CLI entrypoint and command graph.
//
// The Cobra-based command tree covers the scheduled daemon, one-shot stage
// runs, ledger inspection, run history, configuration scaffolding, and
// notification checks. It centralizes configuration resolution, ledger
// access, and logger setup so subcommands can focus on user experience
// instead of wiring.
//
// Keep this package lean: add new functionality by extending the internal
// packages first, then surface it through dedicated commands or flags here.
package main
