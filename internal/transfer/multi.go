// File: internal/transfer/multi.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// The multi context: registration, pumping, and completion draining.

package transfer

import (
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/eapache/queue"

	"github.com/momentics/spdtest/api"
	"github.com/momentics/spdtest/protocol"
)

const (
	// recvChunk sizes the shared scratch buffer for socket reads.
	recvChunk = 32 << 10

	// sendChunk sizes the per-transfer body staging buffer, and thus
	// the slice length handed to ReadFunc callbacks.
	sendChunk = 16 << 10

	// kickDelay is the timer the subsystem requests when it holds
	// transfers that have not been started yet.
	kickDelay = time.Millisecond
)

// Multi tracks every registered Transfer and advances them on pumps.
// All methods must be called from the reactor loop goroutine.
type Multi struct {
	transfers map[api.TransferID]*Transfer
	byFD      map[int]*Transfer
	told      map[int]api.Interest // interest last requested from the engine
	completed *queue.Queue
	nextID    api.TransferID
	closed    bool
	recvBuf   []byte

	// injection points for tests
	now     func() time.Time
	resolve func(host string) ([]net.IP, error)
}

// NewMulti constructs an empty multi context.
func NewMulti() *Multi {
	return &Multi{
		transfers: make(map[api.TransferID]*Transfer),
		byFD:      make(map[int]*Transfer),
		told:      make(map[int]api.Interest),
		completed: queue.New(),
		recvBuf:   make([]byte, recvChunk),
		now:       time.Now,
		resolve:   defaultResolve,
	}
}

func defaultResolve(host string) ([]net.IP, error) {
	if ip := net.ParseIP(host); ip != nil {
		return []net.IP{ip}, nil
	}
	return net.LookupIP(host)
}

// Active returns the number of transfers not yet in a terminal state.
func (m *Multi) Active() int {
	n := 0
	for _, t := range m.transfers {
		if t.state != stateDone {
			n++
		}
	}
	return n
}

// Add registers a transfer. The returned result carries the kick
// timer that gets the new transfer started on the next deadline pump.
func (m *Multi) Add(t *Transfer) (api.PumpResult, error) {
	var res api.PumpResult
	if m.closed {
		return res, api.ErrMultiClosed
	}
	if t.multi != nil || t.state != stateIdle {
		return res, api.ErrAlreadyRegistered
	}
	m.nextID++
	t.id = m.nextID
	t.multi = m
	m.transfers[t.id] = t
	m.finishPump(&res)
	return res, nil
}

// Remove unregisters a transfer, dropping every reference the multi
// holds to it. The transfer itself is not closed; final cleanup is
// the owner's job, and must happen only after Remove.
func (m *Multi) Remove(t *Transfer) (api.PumpResult, error) {
	var res api.PumpResult
	if m.transfers[t.id] != t {
		return res, api.ErrNotRegistered
	}
	delete(m.transfers, t.id)
	if t.fd >= 0 {
		res.Sockets = append(res.Sockets, api.SocketRequest{FD: t.fd, Action: api.ActionRemove})
		delete(m.byFD, t.fd)
		delete(m.told, t.fd)
	}
	t.multi = nil
	m.finishPump(&res)
	return res, nil
}

// Perform advances the transfer watching fd after a readiness event.
func (m *Multi) Perform(fd int, readable, writable bool) (api.PumpResult, error) {
	var res api.PumpResult
	if m.closed {
		return res, api.ErrMultiClosed
	}
	// Stale events for descriptors already dropped are ignored. The
	// readiness flags are advisory: stepping is level-triggered and
	// simply re-blocks on EAGAIN in whichever direction is not ready.
	if t, ok := m.byFD[fd]; ok {
		m.step(t, &res)
		m.syncInterest(t, &res)
	}
	m.finishPump(&res)
	return res, nil
}

// PerformTimeout advances every transfer after the deadline clock
// fired: expired transfers fail, unstarted ones start, the rest get a
// chance to progress.
func (m *Multi) PerformTimeout() (api.PumpResult, error) {
	var res api.PumpResult
	if m.closed {
		return res, api.ErrMultiClosed
	}
	now := m.now()
	for _, t := range m.transfers {
		if t.state == stateDone {
			continue
		}
		if !t.deadline.IsZero() && !now.Before(t.deadline) {
			m.finish(t, api.CodeTimeout, fmt.Errorf("deadline exceeded after %s", t.timeout), &res)
			continue
		}
		m.step(t, &res)
		m.syncInterest(t, &res)
	}
	m.finishPump(&res)
	return res, nil
}

// NextCompleted pops the next finished transfer, FIFO.
func (m *Multi) NextCompleted() (api.Completion, bool) {
	if m.completed.Length() == 0 {
		return api.Completion{}, false
	}
	c := m.completed.Remove().(api.Completion)
	return c, true
}

// FailSocket marks the transfer owning fd as failed because the
// engine could not honor a watcher request for it.
func (m *Multi) FailSocket(fd int, err error) {
	t, ok := m.byFD[fd]
	if !ok {
		return
	}
	var res api.PumpResult
	m.finish(t, api.CodeInternal, fmt.Errorf("socket watch failed: %w", err), &res)
}

// Close tears down the multi context, releasing sockets of any
// transfers still in flight. Registered transfers are left to their
// owners.
func (m *Multi) Close() error {
	if m.closed {
		return nil
	}
	m.closed = true
	for _, t := range m.transfers {
		if t.fd >= 0 {
			_ = sockClose(t.fd)
			t.fd = -1
		}
		t.multi = nil
	}
	m.transfers = map[api.TransferID]*Transfer{}
	m.byFD = map[int]*Transfer{}
	m.told = map[int]api.Interest{}
	return nil
}

// step drives one transfer as far as it can go without blocking.
func (m *Multi) step(t *Transfer, res *api.PumpResult) {
	for t.state != stateDone {
		switch t.state {
		case stateIdle:
			if !m.start(t, res) {
				return
			}

		case stateConnect:
			done, err := sockConnect(t.fd, t.ip, t.port)
			if err != nil {
				m.finish(t, api.CodeConnect, err, res)
				return
			}
			if !done {
				return
			}
			t.out = m.buildHead(t)
			t.state = stateSend

		case stateSend:
			if !m.stepSend(t, res) {
				return
			}

		case stateRecvHead:
			if !m.stepRecvHead(t, res) {
				return
			}

		case stateRecvBody:
			if !m.stepRecvBody(t, res) {
				return
			}
		}
	}
}

// start resolves the target and launches a non-blocking connect.
// It returns false when the transfer cannot progress further in this
// step (including failure).
func (m *Multi) start(t *Transfer, res *api.PumpResult) bool {
	if t.deadline.IsZero() {
		// One overall deadline covers every redirect hop.
		t.deadline = m.now().Add(t.timeout)
	}

	host := t.url.Hostname()
	ips, err := m.resolve(host)
	if err != nil || len(ips) == 0 {
		m.finish(t, api.CodeResolve, fmt.Errorf("resolve %q: %w", host, err), res)
		return false
	}
	t.ip = pickAddr(ips)

	t.port = 80
	if p := t.url.Port(); p != "" {
		n, err := strconv.Atoi(p)
		if err != nil || n < 1 || n > 65535 {
			m.finish(t, api.CodeConnect, fmt.Errorf("invalid port %q", p), res)
			return false
		}
		t.port = n
	}

	fd, err := sockOpen(t.ip)
	if err != nil {
		m.finish(t, api.CodeConnect, err, res)
		return false
	}
	t.fd = fd
	m.byFD[fd] = t

	done, err := sockConnect(fd, t.ip, t.port)
	if err != nil {
		m.finish(t, api.CodeConnect, err, res)
		return false
	}
	if done {
		t.out = m.buildHead(t)
		t.state = stateSend
	} else {
		t.state = stateConnect
	}
	return true
}

// pickAddr prefers IPv4, matching the tool's plain-http target set.
func pickAddr(ips []net.IP) net.IP {
	for _, ip := range ips {
		if ip.To4() != nil {
			return ip
		}
	}
	return ips[0]
}

func (m *Multi) buildHead(t *Transfer) []byte {
	method := "GET"
	length := int64(-1)
	if t.upload {
		method = "PUT"
		length = t.uploadSize
	}
	return protocol.BuildRequest(method, t.url, t.userAgent, length)
}

// stepSend flushes the request head and streams the upload body.
// Returns true when the transfer moved on to receiving.
func (m *Multi) stepSend(t *Transfer, res *api.PumpResult) bool {
	for len(t.out) > 0 {
		n, again, err := sockWrite(t.fd, t.out)
		if err != nil {
			m.finish(t, api.CodeProtocol, fmt.Errorf("send request head: %w", err), res)
			return false
		}
		if again {
			return false
		}
		t.out = t.out[n:]
	}

	if t.upload && !t.bodyDone {
		if t.body == nil {
			t.body = make([]byte, sendChunk)
		}
		for {
			if len(t.bodyPending) == 0 {
				n := t.readFn(t.body)
				if n < 0 || n > len(t.body) {
					m.finish(t, api.CodeInternal, fmt.Errorf("read callback returned %d", n), res)
					return false
				}
				if n == 0 {
					t.bodyDone = true
					break
				}
				t.bodyPending = t.body[:n]
			}
			n, again, err := sockWrite(t.fd, t.bodyPending)
			if err != nil {
				m.finish(t, api.CodeProtocol, fmt.Errorf("send request body: %w", err), res)
				return false
			}
			if again {
				return false
			}
			t.bytesSent += int64(n)
			t.bodyPending = t.bodyPending[n:]
		}
	}

	t.state = stateRecvHead
	return true
}

// stepRecvHead accumulates and parses the response head. Returns true
// when the transfer state advanced and stepping should continue.
func (m *Multi) stepRecvHead(t *Transfer, res *api.PumpResult) bool {
	n, again, err := sockRead(t.fd, m.recvBuf)
	if err != nil {
		m.finish(t, api.CodeProtocol, fmt.Errorf("recv response head: %w", err), res)
		return false
	}
	if again {
		return false
	}
	if n == 0 {
		m.finish(t, api.CodeProtocol, fmt.Errorf("connection closed before response head"), res)
		return false
	}

	resp, rest, err := t.head.Feed(m.recvBuf[:n])
	if err != nil {
		m.finish(t, api.CodeProtocol, err, res)
		return false
	}
	if resp == nil {
		return true // head incomplete, read again
	}
	t.resp = resp

	if resp.IsRedirect() && t.followRedirects && !t.upload {
		return m.redirect(t, res)
	}

	t.framing = resp.BodyFraming()
	switch t.framing {
	case protocol.FramingNone:
		m.finish(t, api.CodeOK, nil, res)
		return false
	case protocol.FramingLength:
		t.bodyRemaining = resp.ContentLength()
		if t.bodyRemaining == 0 {
			m.finish(t, api.CodeOK, nil, res)
			return false
		}
	}

	t.state = stateRecvBody
	if len(rest) > 0 {
		return m.consumeBody(t, rest, res)
	}
	return true
}

// redirect tears down the current connection and re-targets the
// transfer at the Location header. Returns true to continue stepping
// (the idle state restarts the connect inline).
func (m *Multi) redirect(t *Transfer, res *api.PumpResult) bool {
	if t.redirects >= t.maxRedirects {
		m.finish(t, api.CodeProtocol, fmt.Errorf("more than %d redirects", t.maxRedirects), res)
		return false
	}
	target, err := t.resp.RedirectTarget(t.url)
	if err != nil {
		m.finish(t, api.CodeProtocol, err, res)
		return false
	}
	if target.Scheme != "http" {
		m.finish(t, api.CodeProtocol, fmt.Errorf("redirect to unsupported scheme %q", target.Scheme), res)
		return false
	}
	t.redirects++
	m.dropSocket(t, res)
	t.url = target
	t.resetWire()
	t.state = stateIdle
	return true
}

// stepRecvBody pulls body bytes until EAGAIN, completion, or error.
func (m *Multi) stepRecvBody(t *Transfer, res *api.PumpResult) bool {
	n, again, err := sockRead(t.fd, m.recvBuf)
	if err != nil {
		m.finish(t, api.CodeProtocol, fmt.Errorf("recv response body: %w", err), res)
		return false
	}
	if again {
		return false
	}
	if n == 0 {
		if t.framing == protocol.FramingUntilClose {
			m.finish(t, api.CodeOK, nil, res)
		} else {
			m.finish(t, api.CodeProtocol, fmt.Errorf("connection closed mid-body"), res)
		}
		return false
	}
	return m.consumeBody(t, m.recvBuf[:n], res)
}

// consumeBody routes body bytes through the framing decoder and the
// data callback. Returns true while the body is still incomplete.
func (m *Multi) consumeBody(t *Transfer, data []byte, res *api.PumpResult) bool {
	aborted := false
	deliver := func(p []byte) {
		if aborted || len(p) == 0 {
			return
		}
		t.bytesReceived += int64(len(p))
		if t.writeFn != nil {
			if consumed := t.writeFn(p); consumed != len(p) {
				aborted = true
			}
		}
	}

	complete := false
	switch t.framing {
	case protocol.FramingLength:
		n := int64(len(data))
		if n > t.bodyRemaining {
			// Connection: close responses may pad past the declared
			// length; everything beyond it is ignored.
			n = t.bodyRemaining
		}
		deliver(data[:n])
		t.bodyRemaining -= n
		complete = t.bodyRemaining == 0

	case protocol.FramingChunked:
		done, err := t.chunked.Feed(data, deliver)
		if err != nil {
			m.finish(t, api.CodeProtocol, err, res)
			return false
		}
		complete = done

	case protocol.FramingUntilClose:
		deliver(data)
	}

	if aborted {
		m.finish(t, api.CodeInternal, fmt.Errorf("write callback aborted transfer"), res)
		return false
	}
	if complete {
		m.finish(t, api.CodeOK, nil, res)
		return false
	}
	return true
}

// finish moves a transfer to its terminal state exactly once, tears
// down its socket, and queues the completion record.
func (m *Multi) finish(t *Transfer, code api.ErrorCode, err error, res *api.PumpResult) {
	if t.state == stateDone {
		return
	}
	t.state = stateDone
	t.code = code
	t.err = err
	m.dropSocket(t, res)
	m.completed.Add(api.Completion{ID: t.id, Code: code, Err: err})
}

// dropSocket closes the transfer's descriptor and asks the engine to
// release its watcher. The close happens subsystem-side because the
// socket belongs to the transfer; the engine must tolerate the
// watcher-removal request arriving for an already-closed descriptor.
func (m *Multi) dropSocket(t *Transfer, res *api.PumpResult) {
	if t.fd < 0 {
		return
	}
	res.Sockets = append(res.Sockets, api.SocketRequest{FD: t.fd, Action: api.ActionRemove})
	delete(m.byFD, t.fd)
	delete(m.told, t.fd)
	_ = sockClose(t.fd)
	t.fd = -1
}

// syncInterest emits a watch request when the transfer's needed
// interest differs from what the engine was last told. Requests
// replace the previous subscription wholesale.
func (m *Multi) syncInterest(t *Transfer, res *api.PumpResult) {
	if t.state == stateDone || t.fd < 0 {
		return
	}
	want := t.wantInterest()
	if last, known := m.told[t.fd]; known && last == want {
		return
	}
	res.Sockets = append(res.Sockets, api.SocketRequest{FD: t.fd, Action: api.ActionWatch, Interest: want})
	m.told[t.fd] = want
}

// finishPump fills in the active count and the timer request. The
// subsystem is the sole authority on when it must be re-invoked
// absent socket activity.
func (m *Multi) finishPump(res *api.PumpResult) {
	active := 0
	anyIdle := false
	var earliest time.Time
	for _, t := range m.transfers {
		if t.state == stateDone {
			continue
		}
		active++
		if t.state == stateIdle {
			anyIdle = true
		}
		if !t.deadline.IsZero() && (earliest.IsZero() || t.deadline.Before(earliest)) {
			earliest = t.deadline
		}
	}
	res.Active = active

	switch {
	case active == 0:
		res.Timer = &api.TimerRequest{Timeout: -1}
	case anyIdle:
		res.Timer = &api.TimerRequest{Timeout: kickDelay}
	case !earliest.IsZero():
		d := earliest.Sub(m.now())
		if d < kickDelay {
			d = kickDelay
		}
		res.Timer = &api.TimerRequest{Timeout: d}
	}
}
