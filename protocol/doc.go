// File: protocol/doc.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

// Package protocol implements the minimal HTTP/1.1 wire codec used by
// the transfer subsystem: request serialization, incremental response
// header parsing, body framing selection, and chunked decoding. It
// operates on byte slices handed over by non-blocking reads and never
// performs I/O itself.
package protocol
