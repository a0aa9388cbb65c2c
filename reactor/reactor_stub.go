//go:build !linux

// File: reactor/reactor_stub.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Stub factory for platforms without a reactor implementation.

package reactor

import "github.com/momentics/spdtest/api"

// New fails on platforms without an epoll-style multiplexer.
func New() (Reactor, error) {
	return nil, api.ErrUnsupportedPlatform
}
