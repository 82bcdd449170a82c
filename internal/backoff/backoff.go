// Package backoff computes the sleep between empty read-queue polls.
package backoff

import (
	"math"
	"strconv"
	"time"

	"folio/internal/config"
)

// Scheduler tracks the current poll delay. It is not safe for concurrent use;
// each worker loop owns one.
type Scheduler struct {
	base     float64
	modifier float64
	max      float64
	current  float64
}

// New builds a Scheduler. A modifier below 1 is treated as 1 and a max below
// the base is raised to the base.
func New(waitSeconds, modifier, maxSeconds float64) *Scheduler {
	if waitSeconds <= 0 {
		waitSeconds = 1
	}
	if modifier < 1 {
		modifier = 1
	}
	if maxSeconds < waitSeconds {
		maxSeconds = waitSeconds
	}
	return &Scheduler{base: waitSeconds, modifier: modifier, max: maxSeconds, current: waitSeconds}
}

// FromConfig builds a Scheduler from the [backoff] section.
func FromConfig(cfg config.Backoff) *Scheduler {
	return New(cfg.WaitSeconds, cfg.WaitModifier, cfg.WaitMaxSeconds)
}

// Next returns the delay for this empty poll and advances the schedule.
func (s *Scheduler) Next() time.Duration {
	delay := s.current
	s.current = math.Min(s.current*s.modifier, s.max)
	return seconds(delay)
}

// Peek returns the delay Next would return without advancing.
func (s *Scheduler) Peek() time.Duration {
	return seconds(s.current)
}

// Reset restores the base delay after a successful claim.
func (s *Scheduler) Reset() {
	s.current = s.base
}

func seconds(v float64) time.Duration {
	return time.Duration(v * float64(time.Second))
}

// FormatSeconds renders a delay the way status messages show it ("15s", "2.5s").
func FormatSeconds(d time.Duration) string {
	return strconv.FormatFloat(d.Seconds(), 'f', -1, 64) + "s"
}
