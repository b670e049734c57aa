// Package daemon schedules transfer passes at fixed daily times and
// guarantees only one scheduler runs per ledger via a file lock. The Pass
// type is the shared orchestration unit: the CLI runs one directly, the
// daemon runs one per schedule slot.
package daemon
