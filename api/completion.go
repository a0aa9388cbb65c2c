// File: api/completion.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Terminal transfer outcomes drained from the subsystem.

package api

import "fmt"

// TransferID identifies one logical transfer within a multi context.
// IDs are never reused within a process.
type TransferID uint64

// Completion records the terminal outcome of one transfer.
type Completion struct {
	ID   TransferID
	Code ErrorCode
	Err  error // nil when Code is CodeOK
}

func (c Completion) String() string {
	if c.Code.OK() {
		return fmt.Sprintf("transfer %d: ok", c.ID)
	}
	return fmt.Sprintf("transfer %d: %s: %v", c.ID, c.Code, c.Err)
}
