// File: speedtest/payload.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Shared upload payload and per-transfer send cursors.

package speedtest

import (
	"fmt"

	"github.com/momentics/spdtest/api"
)

// DefaultPayloadSize is the upload payload size when none is given.
const DefaultPayloadSize int64 = 10 << 20

// maxPayloadSize guards against absurd allocations; the payload is
// held fully in memory for the whole run.
const maxPayloadSize int64 = 1 << 30

// Payload is one immutable byte buffer shared by every upload request
// in a run. It is never written after construction, so concurrent
// requests read it without coordination. The buffer must outlive
// every Source derived from it.
type Payload struct {
	data []byte
}

// NewPayload allocates a patterned buffer of the given size.
// Allocation failure is reported as an error, distinct from success
// with a short buffer.
func NewPayload(size int64) (*Payload, error) {
	if size <= 0 || size > maxPayloadSize {
		return nil, fmt.Errorf("payload size %d out of range: %w", size, api.ErrInvalidArgument)
	}
	data := make([]byte, size)
	for i := range data {
		data[i] = byte(i % 251) // non-trivial pattern; content is never inspected
	}
	return &Payload{data: data}, nil
}

// Size returns the payload length in bytes.
func (p *Payload) Size() int64 { return int64(len(p.data)) }

// NewSource returns a fresh send cursor over the payload.
func (p *Payload) NewSource() *Source {
	return &Source{buf: p.data}
}

// Source is one transfer's private cursor into the shared payload.
// The cursor only moves forward and never passes the buffer end.
type Source struct {
	buf []byte
	off int64
}

// Fill copies up to len(p) unsent payload bytes into p and advances
// the cursor. It returns 0 once the payload is exhausted, which
// signals end-of-data to the subsystem.
func (s *Source) Fill(p []byte) int {
	remaining := int64(len(s.buf)) - s.off
	if remaining <= 0 {
		return 0
	}
	n := int64(len(p))
	if n > remaining {
		n = remaining
	}
	copy(p, s.buf[s.off:s.off+n])
	s.off += n
	return int(n)
}

// Sent returns the cursor position: bytes handed to the subsystem.
func (s *Source) Sent() int64 { return s.off }

// Exhausted reports whether the cursor reached the payload end.
func (s *Source) Exhausted() bool { return s.off == int64(len(s.buf)) }
