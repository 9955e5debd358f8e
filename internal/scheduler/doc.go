// Package scheduler drives the pipeline stages on independent timers.
//
// Each registered stage gets its own goroutine that runs the stage once at
// startup and then on every interval tick. A stage never overlaps itself
// because the next tick is not serviced until the previous pass returns.
// A lock file keeps a second daemon from running against the same ledger,
// and failed passes are pushed to the configured alert topic.
package scheduler
