// Package scoring holds the point policies applied during a scoring pass.
package scoring

import (
	"fmt"

	"github.com/cwrk-planet/live-quiz/internal/domain"
)

// Policy awards points for one correct submission. Implementations must be
// deterministic for a given input and never return a negative value.
type Policy interface {
	Award(q domain.Question, sub domain.AnswerSubmission) int
}

const (
	PolicyFlat    = "flat"
	PolicyLatency = "latency"
)

// Flat awards the same number of points for every correct answer.
type Flat struct {
	Points int
}

func (f Flat) Award(_ domain.Question, sub domain.AnswerSubmission) int {
	if !sub.Correct || f.Points < 0 {
		return 0
	}
	return f.Points
}

// Latency decays linearly from Max for an instant answer to Min for an answer
// given at the deadline.
type Latency struct {
	Max int
	Min int
}

func (l Latency) Award(q domain.Question, sub domain.AnswerSubmission) int {
	if !sub.Correct {
		return 0
	}
	hi, lo := l.Max, l.Min
	if lo < 0 {
		lo = 0
	}
	if hi < lo {
		hi = lo
	}

	window := q.Duration()
	elapsed := sub.Latency
	if window <= 0 || elapsed <= 0 {
		return hi
	}
	if elapsed >= window {
		return lo
	}
	span := int64(hi - lo)
	return hi - int(span*int64(elapsed)/int64(window))
}

// New builds a policy by name.
func New(name string, maxPoints, minPoints int) (Policy, error) {
	switch name {
	case "", PolicyLatency:
		return Latency{Max: maxPoints, Min: minPoints}, nil
	case PolicyFlat:
		return Flat{Points: maxPoints}, nil
	default:
		return nil, fmt.Errorf("unknown scoring policy %q", name)
	}
}
