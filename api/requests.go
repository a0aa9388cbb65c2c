// File: api/requests.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Mutation requests emitted by the subsystem toward the engine.
//
// The subsystem never calls back into engine state mid-pump. Instead
// every Perform variant returns the watcher and timer mutations it
// wants, and the engine applies them immediately after the call on the
// same goroutine. This keeps the control inversion of the classic
// socket-action callback visible in the type system.

package api

import "time"

// SocketAction tells the engine what to do with a descriptor's watcher.
type SocketAction int

const (
	// ActionWatch creates the watcher if needed and replaces its
	// interest set with the request's Interest. An Interest of zero
	// silences the watcher without releasing it.
	ActionWatch SocketAction = iota

	// ActionRemove stops notifications and releases the watcher.
	ActionRemove
)

func (a SocketAction) String() string {
	switch a {
	case ActionWatch:
		return "watch"
	case ActionRemove:
		return "remove"
	default:
		return "unknown"
	}
}

// SocketRequest asks the engine to mutate one descriptor's watcher.
type SocketRequest struct {
	FD       int
	Action   SocketAction
	Interest Interest
}

// TimerRequest asks the engine to (re)arm the shared deadline clock.
//
// Timeout < 0 disarms the clock. Timeout == 0 demands an immediate
// synchronous pump before control returns to the reactor. Timeout > 0
// replaces any pending deadline; deadlines never stack.
type TimerRequest struct {
	Timeout time.Duration
}

// PumpResult is the complete outcome of one subsystem step.
type PumpResult struct {
	// Active is the authoritative number of transfers still in
	// flight. The engine must take loop liveness from this value and
	// from nowhere else.
	Active int

	// Sockets lists watcher mutations in the order the subsystem
	// decided them.
	Sockets []SocketRequest

	// Timer, when non-nil, carries the single clock mutation for this
	// step.
	Timer *TimerRequest
}
