// File: api/doc.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

// Package api defines the shared contracts between the transfer engine
// and the multi-transfer subsystem: interest masks, socket and timer
// mutation requests, completion records, data callbacks, and the error
// taxonomy used across the spdtest library.
package api
