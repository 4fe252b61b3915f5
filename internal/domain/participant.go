package domain

import "time"

type Role string

const (
	RoleHost   Role = "host"
	RolePlayer Role = "player"
)

func (r Role) Valid() bool {
	return r == RoleHost || r == RolePlayer
}

type ParticipantStatus string

const (
	StatusActive       ParticipantStatus = "active"
	StatusDisconnected ParticipantStatus = "disconnected"
	StatusRemoved      ParticipantStatus = "removed"
)

type Participant struct {
	ID             string            `json:"id"`
	DisplayName    string            `json:"displayName"`
	Role           Role              `json:"role"`
	Status         ParticipantStatus `json:"status"`
	Connected      bool              `json:"connected"`
	Score          int               `json:"score"`
	CorrectAnswers int               `json:"correctAnswers"`
	TotalAnswers   int               `json:"totalAnswers"`
	LastHeartbeat  time.Time         `json:"lastHeartbeat"`
	JoinedAt       time.Time         `json:"joinedAt"`
}

// Accuracy is the share of scored questions answered correctly, in percent.
func (p Participant) Accuracy() float64 {
	if p.TotalAnswers == 0 {
		return 0
	}
	return float64(p.CorrectAnswers) * 100 / float64(p.TotalAnswers)
}
