package session

import (
	"maps"
	"slices"
	"sort"
	"time"

	"github.com/samber/lo"

	"github.com/cwrk-planet/live-quiz/internal/domain"
)

// state is the mutable aggregate of one session. Commands run against a
// clone and the clone replaces the original only when the command succeeds.
type state struct {
	phase      domain.State
	pausedFrom domain.State
	reason     string

	questionIndex int
	openedAt      time.Time
	deadline      time.Time
	// frozen accumulates paused time within the current question.
	frozen    time.Duration
	remaining time.Duration
	pausedAt  time.Time
	resumeBy  time.Time

	hostID    string
	createdAt time.Time
	startedAt time.Time
	endedAt   time.Time

	participants map[string]*domain.Participant
	order        []string
	conns        map[string]string

	submissions map[int]map[string]domain.AnswerSubmission
	scored      map[int]bool
	revealed    map[int]bool

	timers  map[purpose]uint64
	nextGen uint64
}

func newState(hostID, hostName string, now time.Time) *state {
	st := &state{
		phase:         domain.StateLobby,
		questionIndex: -1,
		hostID:        hostID,
		createdAt:     now,
		participants:  make(map[string]*domain.Participant),
		conns:         make(map[string]string),
		submissions:   make(map[int]map[string]domain.AnswerSubmission),
		scored:        make(map[int]bool),
		revealed:      make(map[int]bool),
		timers:        make(map[purpose]uint64),
	}
	st.participants[hostID] = &domain.Participant{
		ID:          hostID,
		DisplayName: hostName,
		Role:        domain.RoleHost,
		Status:      domain.StatusActive,
		JoinedAt:    now,
	}
	st.order = append(st.order, hostID)
	return st
}

func (s *state) clone() *state {
	c := *s
	c.participants = make(map[string]*domain.Participant, len(s.participants))
	for id, p := range s.participants {
		cp := *p
		c.participants[id] = &cp
	}
	c.order = slices.Clone(s.order)
	c.conns = maps.Clone(s.conns)
	c.submissions = make(map[int]map[string]domain.AnswerSubmission, len(s.submissions))
	for i, subs := range s.submissions {
		c.submissions[i] = maps.Clone(subs)
	}
	c.scored = maps.Clone(s.scored)
	c.revealed = maps.Clone(s.revealed)
	c.timers = maps.Clone(s.timers)
	return &c
}

// players lists non-host participants in join order.
func (s *state) players() []domain.Participant {
	return lo.FilterMap(s.order, func(id string, _ int) (domain.Participant, bool) {
		p := s.participants[id]
		return *p, p.Role == domain.RolePlayer
	})
}

func (s *state) activePlayers() int {
	return lo.CountBy(s.players(), func(p domain.Participant) bool {
		return p.Status == domain.StatusActive
	})
}

// standings ranks every player that was not removed by descending score,
// earliest joiner first on ties. Equal scores share a rank.
func (s *state) standings() []domain.Standing {
	ranked := lo.Filter(s.players(), func(p domain.Participant, _ int) bool {
		return p.Status != domain.StatusRemoved
	})
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].Score != ranked[j].Score {
			return ranked[i].Score > ranked[j].Score
		}
		return ranked[i].JoinedAt.Before(ranked[j].JoinedAt)
	})

	out := make([]domain.Standing, len(ranked))
	for i, p := range ranked {
		rank := i + 1
		if i > 0 && p.Score == ranked[i-1].Score {
			rank = out[i-1].Rank
		}
		out[i] = domain.Standing{
			Rank:           rank,
			ParticipantID:  p.ID,
			DisplayName:    p.DisplayName,
			Status:         p.Status,
			Score:          p.Score,
			CorrectAnswers: p.CorrectAnswers,
			TotalAnswers:   p.TotalAnswers,
			Accuracy:       p.Accuracy(),
		}
	}
	return out
}

// breakdown counts the options chosen for question idx. Players that stayed
// active without answering count as no answer.
func (s *state) breakdown(q domain.Question, idx int) (map[string]int, int) {
	counts := make(map[string]int, len(q.Options))
	for _, o := range q.Options {
		counts[o.ID] = 0
	}
	none := 0
	subs := s.submissions[idx]
	for _, p := range s.players() {
		sub, ok := subs[p.ID]
		switch {
		case ok && sub.OptionID != "":
			counts[sub.OptionID]++
		case ok || p.Status == domain.StatusActive:
			none++
		}
	}
	return counts, none
}

func (s *state) questionsPlayed() int {
	if s.startedAt.IsZero() {
		return 0
	}
	return s.questionIndex + 1
}
