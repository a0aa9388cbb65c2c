// File: api/callbacks.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Per-transfer data callbacks. Both run synchronously on the loop
// goroutine and must return without blocking.

package api

// WriteFunc receives a slice of response body bytes as they arrive.
// It must return the number of bytes it consumed; returning anything
// less than len(p) aborts the transfer.
type WriteFunc func(p []byte) int

// ReadFunc fills p with upload body bytes and returns the count
// written. Returning 0 signals end of data.
type ReadFunc func(p []byte) int
