package domain

import "time"

type QuestionStats struct {
	QuestionID      string         `json:"questionId"`
	OrderIndex      int            `json:"orderIndex"`
	Answered        int            `json:"answered"`
	Correct         int            `json:"correct"`
	PerOptionCounts map[string]int `json:"perOptionCounts"`
}

// SessionSummary is the analytics payload emitted when a session ends.
type SessionSummary struct {
	SessionID       string          `json:"sessionId"`
	JoinCode        string          `json:"joinCode"`
	Title           string          `json:"title"`
	State           State           `json:"state"`
	Reason          string          `json:"reason,omitempty"`
	CreatedAt       time.Time       `json:"createdAt"`
	StartedAt       *time.Time      `json:"startedAt,omitempty"`
	EndedAt         time.Time       `json:"endedAt"`
	QuestionCount   int             `json:"questionCount"`
	QuestionsPlayed int             `json:"questionsPlayed"`
	Standings       []Standing      `json:"standings"`
	Questions       []QuestionStats `json:"questions"`
}

// Snapshot is the synchronous view of a session used on (re)connect.
type Snapshot struct {
	SessionID     string           `json:"sessionId"`
	JoinCode      string           `json:"joinCode"`
	Title         string           `json:"title"`
	State         State            `json:"state"`
	QuestionIndex int              `json:"questionIndex"`
	QuestionCount int              `json:"questionCount"`
	Question      *QuestionStarted `json:"question,omitempty"`
	Reveal        *AnswerReveal    `json:"reveal,omitempty"`
	Participants  []Participant    `json:"participants"`
	Standings     []Standing       `json:"standings"`
	HostConnected bool             `json:"hostConnected"`
	ResumeBy      *time.Time       `json:"resumeDeadline,omitempty"`
	CreatedAt     time.Time        `json:"createdAt"`
	StartedAt     *time.Time       `json:"startedAt,omitempty"`
	EndedAt       *time.Time       `json:"endedAt,omitempty"`
}
