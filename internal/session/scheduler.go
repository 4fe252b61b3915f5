package session

import (
	"time"

	"github.com/cwrk-planet/live-quiz/internal/clock"
)

// purpose keys a timer; arming a purpose replaces its previous timer.
type purpose string

const (
	purposeDeadline purpose = "deadline"
	purposeGrace    purpose = "grace"
	presencePrefix          = "presence:"
)

func presenceOf(participantID string) purpose {
	return purpose(presencePrefix + participantID)
}

// scheduler owns the live timers of one session. It is only touched from the
// session goroutine; expiry is reported through post, never applied directly.
type scheduler struct {
	clk    clock.Clock
	post   func(Command)
	timers map[purpose]clock.Timer
}

func newScheduler(clk clock.Clock, post func(Command)) *scheduler {
	return &scheduler{clk: clk, post: post, timers: make(map[purpose]clock.Timer)}
}

func (s *scheduler) arm(p purpose, gen uint64, d time.Duration) {
	s.cancel(p)
	if d < 0 {
		d = 0
	}
	s.timers[p] = s.clk.AfterFunc(d, func() {
		s.post(timerFired{purpose: p, gen: gen})
	})
}

func (s *scheduler) cancel(p purpose) {
	if t, ok := s.timers[p]; ok {
		t.Stop()
		delete(s.timers, p)
	}
}

func (s *scheduler) cancelAll() {
	for p, t := range s.timers {
		t.Stop()
		delete(s.timers, p)
	}
}

func (s *scheduler) pending() int {
	return len(s.timers)
}
