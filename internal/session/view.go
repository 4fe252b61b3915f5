package session

import (
	"time"

	"github.com/cwrk-planet/live-quiz/internal/domain"
)

// questionCard is the player-safe view of the current question. A question
// frozen by a pause has no deadline, only the time it will resume with.
func (s *Session) questionCard(st *state) domain.QuestionStarted {
	q := s.questions[st.questionIndex]
	card := domain.QuestionStarted{
		QuestionID:      q.ID,
		Prompt:          q.Prompt,
		OrderIndex:      st.questionIndex,
		Options:         append([]domain.Option(nil), q.Options...),
		Deadline:        st.deadline,
		DurationSeconds: q.DurationSeconds,
		TotalQuestions:  len(s.questions),
	}
	if st.phase == domain.StatePaused && st.pausedFrom == domain.StateQuestionLive {
		card.Deadline = time.Time{}
		card.RemainingMs = st.remaining.Milliseconds()
	}
	return card
}

func (s *Session) answerReveal(st *state, idx int) domain.AnswerReveal {
	q := s.questions[idx]
	counts, none := st.breakdown(q, idx)
	return domain.AnswerReveal{
		QuestionID:      q.ID,
		CorrectOptionID: q.CorrectOptionID,
		PerOptionCounts: counts,
		NoAnswerCount:   none,
	}
}

func (s *Session) snapshot(st *state) domain.Snapshot {
	_, hostConnected := st.conns[st.hostID]
	snap := domain.Snapshot{
		SessionID:     s.id,
		JoinCode:      s.joinCode,
		Title:         s.title,
		State:         st.phase,
		QuestionIndex: st.questionIndex,
		QuestionCount: len(s.questions),
		Participants:  st.players(),
		Standings:     st.standings(),
		HostConnected: hostConnected,
		CreatedAt:     st.createdAt,
	}
	if !st.startedAt.IsZero() {
		started := st.startedAt
		snap.StartedAt = &started
	}
	if !st.endedAt.IsZero() {
		ended := st.endedAt
		snap.EndedAt = &ended
	}
	if !st.resumeBy.IsZero() {
		resumeBy := st.resumeBy
		snap.ResumeBy = &resumeBy
	}
	if st.questionIndex >= 0 {
		card := s.questionCard(st)
		snap.Question = &card
		if st.revealed[st.questionIndex] {
			reveal := s.answerReveal(st, st.questionIndex)
			snap.Reveal = &reveal
		}
	}
	return snap
}

// summary builds the analytics payload from the questions played so far.
func (s *Session) summary(st *state) domain.SessionSummary {
	played := st.questionsPlayed()
	sum := domain.SessionSummary{
		SessionID:       s.id,
		JoinCode:        s.joinCode,
		Title:           s.title,
		State:           st.phase,
		Reason:          st.reason,
		CreatedAt:       st.createdAt,
		EndedAt:         st.endedAt,
		QuestionCount:   len(s.questions),
		QuestionsPlayed: played,
		Standings:       st.standings(),
		Questions:       make([]domain.QuestionStats, 0, played),
	}
	if !st.startedAt.IsZero() {
		started := st.startedAt
		sum.StartedAt = &started
	}
	for i := 0; i < played; i++ {
		q := s.questions[i]
		stats := domain.QuestionStats{
			QuestionID:      q.ID,
			OrderIndex:      i,
			PerOptionCounts: make(map[string]int, len(q.Options)),
		}
		for _, o := range q.Options {
			stats.PerOptionCounts[o.ID] = 0
		}
		for _, sub := range st.submissions[i] {
			if sub.OptionID == "" {
				continue
			}
			stats.Answered++
			stats.PerOptionCounts[sub.OptionID]++
			if sub.Correct {
				stats.Correct++
			}
		}
		sum.Questions = append(sum.Questions, stats)
	}
	return sum
}
