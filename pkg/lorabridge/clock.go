package lorabridge

import "time"

// Clock is a monotonic millisecond counter that wraps around like an MCU tick.
type Clock interface {
	Millis() uint32
}

// UptimeClock counts milliseconds since it was created.
type UptimeClock struct {
	start time.Time
}

// NewUptimeClock starts a clock at zero.
func NewUptimeClock() *UptimeClock {
	return &UptimeClock{start: time.Now()}
}

func (c *UptimeClock) Millis() uint32 {
	return uint32(time.Since(c.start).Milliseconds())
}

// ElapsedMs returns now-since with wrap-around arithmetic.
func ElapsedMs(now, since uint32) uint32 {
	return now - since
}
