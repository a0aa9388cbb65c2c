// File: api/interest.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Readiness interest masks shared by the reactor and the subsystem.

package api

// Interest is a bitmask of readiness conditions a socket is watched for.
// The zero value means "registered but silent": the descriptor stays
// known to the reactor without producing notifications.
type Interest uint8

const (
	InterestRead Interest = 1 << iota
	InterestWrite
)

// Readable reports whether the mask includes read readiness.
func (i Interest) Readable() bool { return i&InterestRead != 0 }

// Writable reports whether the mask includes write readiness.
func (i Interest) Writable() bool { return i&InterestWrite != 0 }

func (i Interest) String() string {
	switch {
	case i.Readable() && i.Writable():
		return "in+out"
	case i.Readable():
		return "in"
	case i.Writable():
		return "out"
	default:
		return "none"
	}
}
