// File: internal/transfer/doc.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

// Package transfer implements the multi-transfer subsystem: many
// concurrent HTTP transfers over non-blocking sockets, driven forward
// exclusively by "descriptor ready" and "deadline elapsed" pumps. It
// never blocks and never owns a thread; the engine's reactor loop is
// the only caller.
//
// The package mirrors the two-level handle model of classic multi
// libraries: a Transfer carries one logical download or upload, a
// Multi tracks every registered Transfer and reports watcher/timer
// needs after each pump.
package transfer
