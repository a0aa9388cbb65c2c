//go:build !linux

// File: internal/transfer/socket_stub.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Socket operation stubs for unsupported platforms.

package transfer

import (
	"net"

	"github.com/momentics/spdtest/api"
)

func sockOpen(ip net.IP) (int, error) { return -1, api.ErrUnsupportedPlatform }

func sockConnect(fd int, ip net.IP, port int) (bool, error) {
	return false, api.ErrUnsupportedPlatform
}

func sockRead(fd int, p []byte) (int, bool, error)  { return 0, false, api.ErrUnsupportedPlatform }
func sockWrite(fd int, p []byte) (int, bool, error) { return 0, false, api.ErrUnsupportedPlatform }
func sockClose(fd int) error                        { return api.ErrUnsupportedPlatform }
