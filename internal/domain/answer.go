package domain

import "time"

// AnswerSubmission is the first accepted answer of a participant to a question.
// OptionID is empty when the participant explicitly submitted no answer.
// Latency is the open-question time elapsed before the submission, paused
// intervals excluded.
type AnswerSubmission struct {
	ParticipantID string        `json:"participantId"`
	QuestionID    string        `json:"questionId"`
	OptionID      string        `json:"optionId,omitempty"`
	SubmittedAt   time.Time     `json:"submittedAt"`
	Latency       time.Duration `json:"-"`
	Correct       bool          `json:"-"`
}
