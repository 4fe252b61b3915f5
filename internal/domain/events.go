package domain

import "time"

type EventType string

const (
	EventLobbyUpdated          EventType = "lobby_updated"
	EventQuestionStarted       EventType = "question_started"
	EventAnswerRecorded        EventType = "answer_recorded"
	EventLeaderboardUpdated    EventType = "leaderboard_updated"
	EventAnswerReveal          EventType = "answer_reveal"
	EventSessionPaused         EventType = "session_paused"
	EventSessionResumed        EventType = "session_resumed"
	EventSessionTerminated     EventType = "session_terminated"
	EventSessionCompleted      EventType = "session_completed"
	EventParticipantRemoved    EventType = "participant_removed"
	EventParticipantReinstated EventType = "participant_reinstated"
	EventSessionState          EventType = "session_state"
)

const (
	ReasonTimeout       = "timeout"
	ReasonRemovedByHost = "removed_by_host"
	ReasonHostLost      = "host_lost"
	ReasonClosed        = "closed_by_operator"
	ReasonShutdown      = "shutdown"
)

// Event is one core-to-caller notification produced by a session transition.
type Event struct {
	Type    EventType `json:"type"`
	Payload any       `json:"payload"`
}

type LobbyUpdated struct {
	Participants []Participant `json:"participants"`
}

type QuestionStarted struct {
	QuestionID      string    `json:"questionId"`
	Prompt          string    `json:"prompt"`
	OrderIndex      int       `json:"orderIndex"`
	Options         []Option  `json:"options"`
	Deadline        time.Time `json:"deadline,omitzero"`
	DurationSeconds int       `json:"duration"`
	TotalQuestions  int       `json:"totalQuestions"`
	// RemainingMs is set instead of Deadline while the session is paused.
	RemainingMs int64 `json:"remainingMs,omitempty"`
}

// AnswerRecorded is a receipt only; it never discloses correctness.
type AnswerRecorded struct {
	QuestionID     string    `json:"questionId"`
	AcknowledgedAt time.Time `json:"acknowledgedAt"`
}

type Standing struct {
	Rank           int               `json:"rank"`
	ParticipantID  string            `json:"participantId"`
	DisplayName    string            `json:"displayName"`
	Status         ParticipantStatus `json:"status"`
	Score          int               `json:"score"`
	CorrectAnswers int               `json:"correctAnswers"`
	TotalAnswers   int               `json:"totalAnswers"`
	Accuracy       float64           `json:"accuracy"`
}

type LeaderboardUpdated struct {
	Standings     []Standing `json:"standings"`
	QuestionIndex int        `json:"questionIndex"`
}

type AnswerReveal struct {
	QuestionID      string         `json:"questionId"`
	CorrectOptionID string         `json:"correctOption"`
	PerOptionCounts map[string]int `json:"perOptionCounts"`
	NoAnswerCount   int            `json:"noAnswerCount"`
}

type SessionPaused struct {
	ResumeDeadline time.Time `json:"resumeDeadline"`
}

type SessionResumed struct {
	State         State      `json:"state"`
	QuestionIndex int        `json:"questionIndex"`
	Deadline      *time.Time `json:"deadline,omitempty"`
}

type SessionTerminated struct {
	Reason string `json:"reason"`
}

type SessionCompleted struct {
	Summary SessionSummary `json:"summary"`
}

type ParticipantRemoved struct {
	ParticipantID string `json:"participantId"`
	DisplayName   string `json:"displayName"`
	Reason        string `json:"reason"`
}

type ParticipantReinstated struct {
	ParticipantID string `json:"participantId"`
	DisplayName   string `json:"displayName"`
}
