// File: engine/engine.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// The transfer engine: pump, drain, watcher lifecycle, and the loop.

package engine

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/momentics/spdtest/api"
	"github.com/momentics/spdtest/reactor"
)

const (
	// keepAliveWait caps the reactor wait when the subsystem has no
	// pending deadline, so a stalled run is re-examined eventually.
	keepAliveWait = 10 * time.Second

	// maxEvents bounds one reactor wait batch.
	maxEvents = 64
)

// Engine drives one multi-transfer subsystem off one reactor. It is
// constructed once per process and shared by every run.
type Engine struct {
	reactor  reactor.Reactor
	multi    api.Multi
	log      *slog.Logger
	watchers map[int]*watcher
	clock    deadlineClock
	active   int
	sink     func(api.Completion)
	events   []reactor.Event
}

// New wires an engine onto a reactor and a subsystem.
func New(r reactor.Reactor, m api.Multi, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		reactor:  r,
		multi:    m,
		log:      logger,
		watchers: make(map[int]*watcher),
		events:   make([]reactor.Event, maxEvents),
	}
}

// OnCompletion installs the sink invoked for every drained transfer.
func (e *Engine) OnCompletion(fn func(api.Completion)) {
	e.sink = fn
}

// Active returns the transfer count reported by the last pump.
func (e *Engine) Active() int { return e.active }

// Watching returns the number of live watchers, for introspection.
func (e *Engine) Watching() int { return len(e.watchers) }

// Apply installs a pump result: the authoritative active count, the
// watcher mutations, and the clock mutation. Requests are honored in
// order; a zero timer request pumps inline before Apply returns.
func (e *Engine) Apply(res api.PumpResult) {
	e.active = res.Active
	for _, req := range res.Sockets {
		e.applySocket(req)
	}
	if res.Timer != nil {
		e.applyTimer(*res.Timer)
	}
}

func (e *Engine) applySocket(req api.SocketRequest) {
	switch req.Action {
	case api.ActionRemove:
		w, ok := e.watchers[req.FD]
		if !ok {
			return
		}
		// The subsystem closes sockets before the removal request is
		// processed, so the descriptor may already be gone from the
		// reactor. That is fine; the table entry still must go.
		if err := e.reactor.Remove(w.fd); err != nil {
			e.log.Debug("watcher remove after close", "fd", w.fd, "err", err)
		}
		delete(e.watchers, req.FD)

	case api.ActionWatch:
		w, ok := e.watchers[req.FD]
		if !ok {
			if err := e.reactor.Add(req.FD, req.Interest); err != nil {
				e.log.Warn("watcher allocation failed", "fd", req.FD, "err", err)
				e.multi.FailSocket(req.FD, err)
				return
			}
			e.watchers[req.FD] = &watcher{fd: req.FD, interest: req.Interest}
			return
		}
		// Replace the subscription wholesale, interest zero included.
		if err := e.reactor.Modify(w.fd, req.Interest); err != nil {
			e.log.Warn("watcher update failed", "fd", req.FD, "err", err)
			if rerr := e.reactor.Remove(w.fd); rerr != nil {
				e.log.Debug("watcher remove after failed update", "fd", w.fd, "err", rerr)
			}
			delete(e.watchers, req.FD)
			e.multi.FailSocket(req.FD, err)
			return
		}
		w.interest = req.Interest
	}
}

func (e *Engine) applyTimer(req api.TimerRequest) {
	switch {
	case req.Timeout < 0:
		e.clock.disarm()
	case req.Timeout == 0:
		// Immediate demand: pump synchronously before returning to
		// the reactor, then drain what it finished.
		e.clock.disarm()
		e.PumpTimeout()
		e.DrainCompleted()
	default:
		e.clock.arm(req.Timeout, time.Now())
	}
}

// PumpTimeout advances the subsystem after a deadline expiry.
func (e *Engine) PumpTimeout() {
	res, err := e.multi.PerformTimeout()
	if err != nil {
		e.log.Error("timeout pump failed", "err", err)
		return
	}
	e.Apply(res)
}

// PumpSocket advances the subsystem after readiness on fd.
func (e *Engine) PumpSocket(fd int, readable, writable bool) {
	res, err := e.multi.Perform(fd, readable, writable)
	if err != nil {
		e.log.Error("socket pump failed", "fd", fd, "err", err)
		return
	}
	e.Apply(res)
}

// DrainCompleted pops finished transfers until none remain, routing
// each to the completion sink. Draining an empty queue is a no-op, so
// calling it after every pump is always safe.
func (e *Engine) DrainCompleted() {
	for {
		c, ok := e.multi.NextCompleted()
		if !ok {
			return
		}
		if e.sink != nil {
			e.sink(c)
			continue
		}
		e.log.Info("transfer completed", "id", c.ID, "code", c.Code.String(), "err", c.Err)
	}
}

// Run spins the reactor loop until the subsystem reports zero active
// transfers. Liveness comes solely from that count.
func (e *Engine) Run() error {
	for e.active > 0 {
		timeout := keepAliveWait
		if e.clock.armed() {
			timeout = e.clock.remaining(time.Now())
		}

		n, err := e.reactor.Wait(e.events, timeout)
		if err != nil {
			return fmt.Errorf("reactor wait: %w", err)
		}

		for i := 0; i < n; i++ {
			ev := e.events[i]
			readable, writable := ev.Readable, ev.Writable
			if ev.Broken {
				// Error conditions are reported through the pump so
				// the subsystem observes them via I/O; the watcher
				// stays until the subsystem asks for removal.
				e.log.Debug("descriptor error condition", "fd", ev.FD)
				readable, writable = true, true
			}
			if _, watched := e.watchers[ev.FD]; !watched {
				continue
			}
			e.PumpSocket(ev.FD, readable, writable)
			e.DrainCompleted()
		}

		if e.clock.due(time.Now()) {
			e.clock.disarm()
			e.PumpTimeout()
			e.DrainCompleted()
		}
	}
	return nil
}
