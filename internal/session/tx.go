package session

import (
	"time"

	"github.com/cwrk-planet/live-quiz/internal/broadcast"
	"github.com/cwrk-planet/live-quiz/internal/domain"
)

// tx collects the side effects of one command against a working copy of the
// session state. Nothing leaves the transaction until commit runs its effects
// in the order they were recorded.
type tx struct {
	s     *Session
	st    *state
	now   time.Time
	from  domain.State
	ops   []func()
	reply any
}

func (t *tx) effect(f func()) {
	t.ops = append(t.ops, f)
}

func (t *tx) publish(to broadcast.Audience, typ domain.EventType, payload any) {
	ev := domain.Event{Type: typ, Payload: payload}
	t.effect(func() { t.s.group.Publish(to, ev) })
}

// arm records a new generation for p and schedules its timer on commit.
func (t *tx) arm(p purpose, d time.Duration) {
	t.st.nextGen++
	gen := t.st.nextGen
	t.st.timers[p] = gen
	t.effect(func() { t.s.sched.arm(p, gen, d) })
}

func (t *tx) cancel(p purpose) {
	if _, ok := t.st.timers[p]; !ok {
		return
	}
	delete(t.st.timers, p)
	t.effect(func() { t.s.sched.cancel(p) })
}

func (t *tx) cancelAll() {
	clear(t.st.timers)
	t.effect(func() { t.s.sched.cancelAll() })
}

// attach binds c to participantID; a connection it replaces is closed.
func (t *tx) attach(participantID string, c broadcast.Conn) {
	t.effect(func() {
		if prev := t.s.group.Attach(participantID, c); prev != nil {
			prev.Close(broadcast.CloseSuperseded, "superseded by a newer connection")
		}
	})
}

func (t *tx) detach(participantID string, c broadcast.Conn) {
	t.effect(func() { t.s.group.Detach(participantID, c) })
}

func (t *tx) evict(participantID string, code int, reason string) {
	t.effect(func() { t.s.group.Evict(participantID, code, reason) })
}

func (t *tx) holdHost(on bool) {
	t.effect(func() { t.s.group.Hold(on) })
}

func (t *tx) commit() {
	t.s.st = t.st
	for _, op := range t.ops {
		op()
	}
}
