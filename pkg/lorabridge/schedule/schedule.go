// Package schedule tracks periodic duties against a wrapping millisecond clock
// so that a single loop can interleave them without sleeping.
package schedule

import (
	"context"
	"time"

	"github.com/exepirit/lorabridge/pkg/lorabridge"
)

// Duty is a periodic piece of work.
type Duty struct {
	Name     string
	Interval time.Duration
	Run      func(ctx context.Context)

	last uint32
}

// Due reports whether more than Interval has elapsed since the duty last fired.
func (d *Duty) Due(now uint32) bool {
	return lorabridge.ElapsedMs(now, d.last) > uint32(d.Interval.Milliseconds())
}

// Scheduler fires due duties in registration order.
type Scheduler struct {
	Clock lorabridge.Clock

	duties []*Duty
}

// Add registers a duty. Its first run is one interval after start.
func (s *Scheduler) Add(d *Duty) {
	d.last = s.Clock.Millis()
	s.duties = append(s.duties, d)
}

// Stagger brings the first run of d forward by lead, spreading duties that share
// an interval across it. lead must be shorter than the interval.
func (s *Scheduler) Stagger(d *Duty, lead time.Duration) {
	d.last -= uint32(lead.Milliseconds())
}

// RunDue runs every duty that is due and returns how many ran. The last-fired
// stamp is taken after the duty returned, like the field firmware did.
func (s *Scheduler) RunDue(ctx context.Context) int {
	fired := 0
	for _, d := range s.duties {
		if ctx.Err() != nil {
			break
		}
		if !d.Due(s.Clock.Millis()) {
			continue
		}
		d.Run(ctx)
		d.last = s.Clock.Millis()
		fired++
	}
	return fired
}
