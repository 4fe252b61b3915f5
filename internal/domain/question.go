package domain

import (
	"fmt"
	"strings"
	"time"
)

type Option struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

type Question struct {
	ID              string   `json:"id"`
	OrderIndex      int      `json:"orderIndex"`
	Prompt          string   `json:"prompt"`
	Options         []Option `json:"options"`
	CorrectOptionID string   `json:"correctOptionId"`
	DurationSeconds int      `json:"durationSeconds"`
}

func (q Question) Duration() time.Duration {
	return time.Duration(q.DurationSeconds) * time.Second
}

func (q Question) HasOption(id string) bool {
	for _, o := range q.Options {
		if o.ID == id {
			return true
		}
	}
	return false
}

// ValidateQuestions checks content handed over by the content collaborator
// before a session is created from it.
func ValidateQuestions(qs []Question) error {
	if len(qs) == 0 {
		return Invalid(CodeInvalidContent, "at least one question is required", nil)
	}
	seen := make(map[string]struct{}, len(qs))
	for i, q := range qs {
		id := strings.TrimSpace(q.ID)
		if id == "" {
			return Invalid(CodeInvalidContent, fmt.Sprintf("question %d has no id", i), nil)
		}
		if _, dup := seen[id]; dup {
			return Invalid(CodeInvalidContent, "duplicate question id", map[string]any{"questionId": id})
		}
		seen[id] = struct{}{}
		if len(q.Options) < 2 {
			return Invalid(CodeInvalidContent, "question needs at least two options", map[string]any{"questionId": id})
		}
		if !q.HasOption(q.CorrectOptionID) {
			return Invalid(CodeInvalidContent, "correct option is not one of the options", map[string]any{"questionId": id})
		}
		if q.DurationSeconds <= 0 {
			return Invalid(CodeInvalidContent, "question duration must be positive", map[string]any{"questionId": id})
		}
	}
	return nil
}
