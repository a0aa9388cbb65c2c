// File: engine/clock.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// The shared deadline clock: one pending deadline, re-arming replaces.

package engine

import "time"

// deadlineClock holds at most one pending deadline. The zero value is
// unarmed.
type deadlineClock struct {
	at time.Time
}

func (c *deadlineClock) arm(d time.Duration, now time.Time) {
	c.at = now.Add(d)
}

func (c *deadlineClock) disarm() {
	c.at = time.Time{}
}

func (c *deadlineClock) armed() bool {
	return !c.at.IsZero()
}

// due reports whether the pending deadline has elapsed.
func (c *deadlineClock) due(now time.Time) bool {
	return c.armed() && !now.Before(c.at)
}

// remaining returns the time left until the pending deadline, clamped
// at zero. Call only when armed.
func (c *deadlineClock) remaining(now time.Time) time.Duration {
	d := c.at.Sub(now)
	if d < 0 {
		return 0
	}
	return d
}
