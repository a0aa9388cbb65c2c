// File: engine/doc.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

// Package engine bridges the pull-based multi-transfer subsystem and
// the reactor: it owns the per-descriptor watcher table, the single
// shared deadline clock, the pump/drain cycle, and the loop that runs
// exactly as long as transfers remain active. Everything here is
// single-goroutine and cooperative; no method may be called
// concurrently with the loop.
package engine
