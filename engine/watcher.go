// File: engine/watcher.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Per-descriptor watcher records. The engine owns the table outright;
// the subsystem refers to watchers only by descriptor.

package engine

import "github.com/momentics/spdtest/api"

// watcher binds one descriptor to its current reactor subscription.
// A watcher is never reused across descriptors: once removed, a new
// registration for the same fd gets a fresh record.
type watcher struct {
	fd       int
	interest api.Interest
}
