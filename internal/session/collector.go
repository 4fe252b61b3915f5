package session

import (
	"github.com/cwrk-planet/live-quiz/internal/broadcast"
	"github.com/cwrk-planet/live-quiz/internal/domain"
)

// submit records the first answer of a player to the live question. The
// submitter only gets a receipt; correctness stays hidden until the reveal.
func (s *Session) submit(t *tx, c SubmitAnswer) error {
	if c.Role != domain.RolePlayer {
		return domain.Invalid(domain.CodeRoleMismatch, "only players can submit answers", nil)
	}
	if !t.now.Before(t.st.deadline) {
		return domain.Invalid(domain.CodeDeadlinePassed, "the answer window has closed", map[string]any{
			"deadline": t.st.deadline,
		})
	}
	idx := t.st.questionIndex
	q := s.questions[idx]
	if c.QuestionID != q.ID {
		return domain.Invalid(domain.CodeQuestionMismatch, "question is not live", map[string]any{
			"questionId":     c.QuestionID,
			"liveQuestionId": q.ID,
		})
	}
	p, ok := t.st.participants[c.ParticipantID]
	if !ok {
		return domain.Invalid(domain.CodeParticipantNotFound, "participant has not joined", nil)
	}
	if p.Status != domain.StatusActive {
		return domain.Invalid(domain.CodeParticipantInactive, "participant is not active", map[string]any{
			"status": string(p.Status),
		})
	}
	subs := t.st.submissions[idx]
	if _, dup := subs[p.ID]; dup {
		return domain.Invalid(domain.CodeDuplicateSubmission, "an answer was already recorded for this question", map[string]any{
			"questionId": q.ID,
		})
	}
	if c.OptionID != "" && !q.HasOption(c.OptionID) {
		return domain.Invalid(domain.CodeUnknownOption, "option does not belong to the question", map[string]any{
			"optionId": c.OptionID,
		})
	}

	if subs == nil {
		subs = make(map[string]domain.AnswerSubmission)
		t.st.submissions[idx] = subs
	}
	subs[p.ID] = domain.AnswerSubmission{
		ParticipantID: p.ID,
		QuestionID:    q.ID,
		OptionID:      c.OptionID,
		SubmittedAt:   t.now,
		Latency:       t.now.Sub(t.st.openedAt) - t.st.frozen,
		Correct:       c.OptionID != "" && c.OptionID == q.CorrectOptionID,
	}

	receipt := domain.AnswerRecorded{QuestionID: q.ID, AcknowledgedAt: t.now}
	t.publish(broadcast.To(p.ID), domain.EventAnswerRecorded, receipt)
	t.reply = receipt
	return nil
}

// finalize runs the scoring pass of question idx once. Every active player
// and every player holding a submission is counted as having been asked.
func (s *Session) finalize(t *tx, idx int) {
	if idx < 0 || t.st.scored[idx] {
		return
	}
	t.st.scored[idx] = true

	q := s.questions[idx]
	subs := t.st.submissions[idx]
	for _, id := range t.st.order {
		p := t.st.participants[id]
		if p.Role != domain.RolePlayer {
			continue
		}
		sub, answered := subs[id]
		if !answered && p.Status != domain.StatusActive {
			continue
		}
		p.TotalAnswers++
		if !answered || !sub.Correct {
			continue
		}
		p.CorrectAnswers++
		if pts := s.policy.Award(q, sub); pts > 0 {
			p.Score += pts
		}
	}

	t.publish(broadcast.All(), domain.EventLeaderboardUpdated, domain.LeaderboardUpdated{
		Standings:     t.st.standings(),
		QuestionIndex: idx,
	})
}
