package scoring

import (
	"testing"
	"time"

	"github.com/cwrk-planet/live-quiz/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var opened = time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

func question() domain.Question {
	return domain.Question{ID: "q1", DurationSeconds: 20, CorrectOptionID: "a"}
}

func submission(correct bool, after time.Duration) domain.AnswerSubmission {
	return domain.AnswerSubmission{ParticipantID: "p1", QuestionID: "q1", OptionID: "a", Correct: correct, SubmittedAt: opened.Add(after), Latency: after}
}

func TestPolicies_IncorrectEarnsNothing(t *testing.T) {
	for _, p := range []Policy{Flat{Points: 100}, Latency{Max: 1000, Min: 500}} {
		assert.Zero(t, p.Award(question(), submission(false, time.Second)))
	}
}

func TestPolicies_NeverNegative(t *testing.T) {
	policies := []Policy{Flat{Points: -5}, Latency{Max: -10, Min: -20}, Latency{Max: 100, Min: 500}}
	for _, p := range policies {
		for _, after := range []time.Duration{-time.Second, 0, 5 * time.Second, time.Minute} {
			assert.GreaterOrEqual(t, p.Award(question(), submission(true, after)), 0)
		}
	}
}

func TestLatency_DecaysWithResponseTime(t *testing.T) {
	p := Latency{Max: 1000, Min: 500}
	q := question()

	fast := p.Award(q, submission(true, 0))
	mid := p.Award(q, submission(true, 10*time.Second))
	slow := p.Award(q, submission(true, 20*time.Second))

	assert.Equal(t, 1000, fast)
	assert.Equal(t, 750, mid)
	assert.Equal(t, 500, slow)
}

func TestLatency_Deterministic(t *testing.T) {
	p := Latency{Max: 1000, Min: 100}
	sub := submission(true, 7300*time.Millisecond)
	first := p.Award(question(), sub)
	for i := 0; i < 50; i++ {
		require.Equal(t, first, p.Award(question(), sub))
	}
}

func TestNew(t *testing.T) {
	p, err := New("flat", 10, 0)
	require.NoError(t, err)
	assert.Equal(t, Flat{Points: 10}, p)

	p, err = New("", 1000, 500)
	require.NoError(t, err)
	assert.Equal(t, Latency{Max: 1000, Min: 500}, p)

	_, err = New("exponential", 1, 1)
	require.Error(t, err)
}
