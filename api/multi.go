// File: api/multi.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// The multi-transfer subsystem boundary consumed by the engine.

package api

// Multi drives many concurrent transfers without blocking. It is
// pumped by exactly two trigger kinds: readiness on a descriptor and
// deadline expiry. Every pump returns the new active count together
// with the watcher/timer mutations the step decided on.
//
// Implementations are single-goroutine: all methods are called from
// the reactor loop and none may block on I/O.
type Multi interface {
	// Perform advances transfers interested in fd given the observed
	// readiness. It must not block; readiness is pre-established by
	// the reactor.
	Perform(fd int, readable, writable bool) (PumpResult, error)

	// PerformTimeout advances transfers after the shared deadline
	// clock fired (or on an immediate-kick request).
	PerformTimeout() (PumpResult, error)

	// NextCompleted pops the next finished transfer, FIFO. The second
	// return is false when none remain; repeated calls with an empty
	// queue are no-ops.
	NextCompleted() (Completion, bool)

	// FailSocket reports that the engine could not honor a
	// SocketRequest for fd. The subsystem treats this as an immediate
	// failure of the owning transfer.
	FailSocket(fd int, err error)
}
