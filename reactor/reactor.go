// File: reactor/reactor.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Platform-neutral reactor interface for descriptor readiness polling.

package reactor

import (
	"time"

	"github.com/momentics/spdtest/api"
)

// Event describes one readiness notification returned by Wait.
type Event struct {
	FD       int
	Readable bool
	Writable bool

	// Broken is set on EPOLLERR/EPOLLHUP style conditions. The caller
	// decides what to do with the descriptor; the reactor never
	// removes it on its own.
	Broken bool
}

// Reactor is a level-triggered readiness multiplexer. All methods must
// be called from a single goroutine.
type Reactor interface {
	// Add registers fd with the given interest set. An interest of
	// zero registers the descriptor silently.
	Add(fd int, interest api.Interest) error

	// Modify replaces the interest set of a registered descriptor.
	// The replacement is total, never additive.
	Modify(fd int, interest api.Interest) error

	// Remove unregisters fd.
	Remove(fd int) error

	// Wait blocks until readiness events are available or timeout
	// elapses, filling events and returning the count. A negative
	// timeout blocks indefinitely. An interrupted wait returns (0, nil).
	Wait(events []Event, timeout time.Duration) (int, error)

	// Close releases the underlying OS resources.
	Close() error
}
