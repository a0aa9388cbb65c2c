// File: api/errors.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Error taxonomy shared across the spdtest library.

package api

import "fmt"

// Common errors used across the library.
var (
	ErrInvalidArgument     = fmt.Errorf("invalid argument")
	ErrAlreadyRegistered   = fmt.Errorf("transfer already registered")
	ErrNotRegistered       = fmt.Errorf("transfer not registered")
	ErrMultiClosed         = fmt.Errorf("multi context is closed")
	ErrNoConnections       = fmt.Errorf("no connections initiated")
	ErrUnsupportedPlatform = fmt.Errorf("platform not supported")
)

// ErrorCode classifies how a transfer or run step failed.
type ErrorCode int

const (
	CodeOK ErrorCode = iota
	CodeAllocation
	CodeConfiguration
	CodeRegistration
	CodeResolve
	CodeConnect
	CodeTimeout
	CodeProtocol
	CodeCanceled
	CodeInternal
)

func (c ErrorCode) String() string {
	switch c {
	case CodeOK:
		return "ok"
	case CodeAllocation:
		return "allocation failure"
	case CodeConfiguration:
		return "configuration rejected"
	case CodeRegistration:
		return "registration refused"
	case CodeResolve:
		return "name resolution failed"
	case CodeConnect:
		return "connection failed"
	case CodeTimeout:
		return "transfer timed out"
	case CodeProtocol:
		return "protocol error"
	case CodeCanceled:
		return "transfer canceled"
	case CodeInternal:
		return "internal error"
	default:
		return "unknown"
	}
}

// OK reports whether the code denotes success.
func (c ErrorCode) OK() bool { return c == CodeOK }
