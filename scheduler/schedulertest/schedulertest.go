// Package schedulertest drives a scheduler from a fake clock.
package schedulertest

import (
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/gr-butler/airnode/scheduler"
)

// Advance moves fc forward by d, stopping at every due time on the way so
// each task sees the clock at exactly the tick it was planned for.
func Advance(s *scheduler.Scheduler, fc clockwork.FakeClock, d time.Duration) {
	target := fc.Now().Add(d)
	for {
		s.RunDue()
		next, ok := s.Next()
		if !ok || next.After(target) {
			break
		}
		if step := next.Sub(fc.Now()); step > 0 {
			fc.Advance(step)
		}
	}
	if rest := target.Sub(fc.Now()); rest > 0 {
		fc.Advance(rest)
	}
	s.RunDue()
}
