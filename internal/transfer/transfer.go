// File: internal/transfer/transfer.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// One logical HTTP transfer and its non-blocking wire state.

package transfer

import (
	"fmt"
	"net"
	"net/url"
	"time"

	"github.com/momentics/spdtest/api"
	"github.com/momentics/spdtest/protocol"
)

type state int

const (
	stateIdle state = iota // registered, not yet started
	stateConnect           // non-blocking connect in flight
	stateSend              // writing request head and body
	stateRecvHead          // reading response head
	stateRecvBody          // reading response body
	stateDone              // terminal
)

func (s state) String() string {
	switch s {
	case stateIdle:
		return "idle"
	case stateConnect:
		return "connect"
	case stateSend:
		return "send"
	case stateRecvHead:
		return "recv-head"
	case stateRecvBody:
		return "recv-body"
	case stateDone:
		return "done"
	default:
		return "unknown"
	}
}

// defaultTimeout applies when no WithTimeout option is given.
const defaultTimeout = 60 * time.Second

// Transfer is one registered download or upload. It is inert until a
// Multi pumps it and owns its socket for its whole lifetime.
type Transfer struct {
	id  api.TransferID
	url *url.URL

	timeout         time.Duration
	followRedirects bool
	maxRedirects    int
	userAgent       string
	upload          bool
	uploadSize      int64
	readFn          api.ReadFunc
	writeFn         api.WriteFunc

	state    state
	fd       int
	ip       net.IP
	port     int
	deadline time.Time
	multi    *Multi

	// wire state, reset on redirect
	out           []byte // unsent request head bytes
	body          []byte // per-transfer body staging buffer
	bodyPending   []byte // staged but unsent body bytes
	bodyDone      bool
	head          protocol.HeadParser
	resp          *protocol.Response
	framing       protocol.Framing
	bodyRemaining int64
	chunked       protocol.ChunkedDecoder
	redirects     int

	bytesSent     int64 // request body bytes written to the socket
	bytesReceived int64 // response body bytes handed to writeFn

	code api.ErrorCode
	err  error
}

// New validates configuration and builds an unregistered Transfer.
// Only plain http URLs are accepted; TLS belongs to a different tool.
func New(rawURL string, options ...Option) (*Transfer, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse url: %w", err)
	}
	if u.Scheme != "http" {
		return nil, fmt.Errorf("scheme %q not supported: %w", u.Scheme, api.ErrInvalidArgument)
	}
	if u.Hostname() == "" {
		return nil, fmt.Errorf("url without host: %w", api.ErrInvalidArgument)
	}

	t := &Transfer{
		url:     u,
		timeout: defaultTimeout,
		fd:      -1,
	}
	for _, opt := range options {
		if err := opt(t); err != nil {
			return nil, fmt.Errorf("transfer option: %w", err)
		}
	}
	if !t.upload && t.writeFn == nil {
		return nil, fmt.Errorf("download without write callback: %w", api.ErrInvalidArgument)
	}
	return t, nil
}

// ID returns the identifier assigned at registration, zero before.
func (t *Transfer) ID() api.TransferID { return t.id }

// URL returns the transfer's current target.
func (t *Transfer) URL() *url.URL { return t.url }

// BytesSent returns request body bytes written to the socket so far.
func (t *Transfer) BytesSent() int64 { return t.bytesSent }

// BytesReceived returns response body bytes delivered so far.
func (t *Transfer) BytesReceived() int64 { return t.bytesReceived }

// Outcome returns the terminal code and error; CodeOK with a nil
// error before completion.
func (t *Transfer) Outcome() (api.ErrorCode, error) { return t.code, t.err }

// Done reports whether the transfer reached a terminal state.
func (t *Transfer) Done() bool { return t.state == stateDone }

// Close releases the transfer's socket if still open. It must be
// called only after the transfer is no longer registered with a
// Multi; calling it twice is safe.
func (t *Transfer) Close() error {
	if t.fd >= 0 {
		fd := t.fd
		t.fd = -1
		return sockClose(fd)
	}
	return nil
}

// resetWire clears per-attempt wire state ahead of a redirect hop.
func (t *Transfer) resetWire() {
	t.out = nil
	t.bodyPending = nil
	t.bodyDone = false
	t.head = protocol.HeadParser{}
	t.resp = nil
	t.framing = protocol.FramingNone
	t.bodyRemaining = 0
	t.chunked = protocol.ChunkedDecoder{}
}

// wantInterest reports the readiness the transfer currently needs.
func (t *Transfer) wantInterest() api.Interest {
	switch t.state {
	case stateConnect, stateSend:
		return api.InterestWrite
	case stateRecvHead, stateRecvBody:
		return api.InterestRead
	default:
		return 0
	}
}
