package session

import (
	"time"

	"github.com/cwrk-planet/live-quiz/internal/broadcast"
	"github.com/cwrk-planet/live-quiz/internal/domain"
)

func (s *Session) registerHost(t *tx, c RegisterHost) error {
	if c.Conn == nil {
		return domain.Invalid(domain.CodeInvalidMessage, "connection is required", nil)
	}
	host := t.st.participants[t.st.hostID]
	host.Connected = true
	host.LastHeartbeat = t.now
	t.st.conns[t.st.hostID] = c.Conn.ID()
	t.attach(t.st.hostID, c.Conn)

	if t.st.phase == domain.StatePaused {
		t.holdHost(false)
		s.resume(t)
	}

	snap := s.snapshot(t.st)
	t.publish(broadcast.Host(), domain.EventSessionState, snap)
	t.reply = snap
	return nil
}

func (s *Session) start(t *tx) error {
	if t.st.activePlayers() == 0 {
		return domain.Invalid(domain.CodeNoParticipants, "at least one participant must join before starting", nil)
	}
	t.st.startedAt = t.now
	s.openQuestion(t, 0)
	return nil
}

func (s *Session) openQuestion(t *tx, idx int) {
	q := s.questions[idx]
	t.st.phase = domain.StateQuestionLive
	t.st.questionIndex = idx
	t.st.openedAt = t.now
	t.st.deadline = t.now.Add(q.Duration())
	t.st.frozen = 0
	t.arm(purposeDeadline, q.Duration())
	t.publish(broadcast.All(), domain.EventQuestionStarted, s.questionCard(t.st))
}

func (s *Session) deadlineElapsed(t *tx) {
	if t.st.phase != domain.StateQuestionLive {
		return
	}
	t.st.phase = domain.StateRevealingAnswer
	s.finalize(t, t.st.questionIndex)
}

func (s *Session) advance(t *tx) error {
	if t.st.phase == domain.StateQuestionLive {
		if t.now.Before(t.st.deadline) {
			return domain.Invalid(domain.CodeWrongState, "the current question is still open", map[string]any{
				"command":  string(KindAdvanceQuestion),
				"state":    string(t.st.phase),
				"deadline": t.st.deadline,
			})
		}
		t.cancel(purposeDeadline)
	}
	s.finalize(t, t.st.questionIndex)

	next := t.st.questionIndex + 1
	if next < len(s.questions) {
		s.openQuestion(t, next)
		return nil
	}
	s.complete(t)
	return nil
}

func (s *Session) reveal(t *tx) error {
	idx := t.st.questionIndex
	t.st.revealed[idx] = true
	reveal := s.answerReveal(t.st, idx)
	t.publish(broadcast.All(), domain.EventAnswerReveal, reveal)
	t.reply = reveal
	return nil
}

// complete ends the session normally. Any pending scoring is abandoned so no
// leaderboard follows the completion notice.
func (s *Session) complete(t *tx) {
	t.cancelAll()
	t.st.phase = domain.StateCompleted
	t.st.endedAt = t.now
	summary := s.summary(t.st)
	t.publish(broadcast.All(), domain.EventSessionCompleted, domain.SessionCompleted{Summary: summary})
	s.finish(t, summary)
}

func (s *Session) terminate(t *tx, reason string) {
	t.cancelAll()
	t.st.phase = domain.StateTerminated
	t.st.reason = reason
	t.st.endedAt = t.now
	t.publish(broadcast.All(), domain.EventSessionTerminated, domain.SessionTerminated{Reason: reason})
	s.finish(t, s.summary(t.st))
}

// pause freezes the session after the host connection is lost. A live
// question keeps its remaining time for the resume.
func (s *Session) pause(t *tx) {
	if !t.st.phase.Active() {
		return
	}
	t.st.pausedFrom = t.st.phase
	t.st.pausedAt = t.now
	if t.st.phase == domain.StateQuestionLive {
		t.st.remaining = max(t.st.deadline.Sub(t.now), 0)
		t.cancel(purposeDeadline)
	}
	t.st.phase = domain.StatePaused
	t.st.resumeBy = t.now.Add(s.cfg.HostGracePeriod)
	t.arm(purposeGrace, s.cfg.HostGracePeriod)
	t.holdHost(true)
	t.publish(broadcast.All(), domain.EventSessionPaused, domain.SessionPaused{ResumeDeadline: t.st.resumeBy})
}

func (s *Session) resume(t *tx) {
	t.cancel(purposeGrace)
	prev := t.st.pausedFrom
	t.st.phase = prev

	resumed := domain.SessionResumed{State: prev, QuestionIndex: t.st.questionIndex}
	if prev == domain.StateQuestionLive {
		t.st.frozen += t.now.Sub(t.st.pausedAt)
		t.st.deadline = t.now.Add(t.st.remaining)
		t.arm(purposeDeadline, t.st.remaining)
		deadline := t.st.deadline
		resumed.Deadline = &deadline
	}
	t.st.pausedFrom = ""
	t.st.remaining = 0
	t.st.pausedAt = time.Time{}
	t.st.resumeBy = time.Time{}
	t.publish(broadcast.All(), domain.EventSessionResumed, resumed)
}

func (s *Session) graceExpired(t *tx) {
	if t.st.phase != domain.StatePaused {
		return
	}
	s.log.Warn("host did not reconnect within grace period")
	s.terminate(t, domain.ReasonHostLost)
}
