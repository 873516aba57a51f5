package meshsim

import (
	"sync/atomic"
	"time"
)

// Clock is a hand-driven lorabridge.Clock.
type Clock struct {
	now atomic.Uint32
}

func (c *Clock) Millis() uint32 {
	return c.now.Load()
}

// Advance moves the clock forward by d.
func (c *Clock) Advance(d time.Duration) {
	c.now.Add(uint32(d.Milliseconds()))
}

// Set moves the clock to ms.
func (c *Clock) Set(ms uint32) {
	c.now.Store(ms)
}
