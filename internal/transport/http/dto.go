package http

import (
	"time"

	"github.com/cwrk-planet/live-quiz/internal/domain"
	"github.com/cwrk-planet/live-quiz/internal/registry"
)

type CreateSessionRequest struct {
	HostID    string            `json:"hostId"`
	HostName  string            `json:"hostName"`
	Title     string            `json:"title"`
	Questions []domain.Question `json:"questions"`
}

type CreateSessionResponse struct {
	ID        string       `json:"id"`
	JoinCode  string       `json:"joinCode"`
	State     domain.State `json:"state"`
	CreatedAt time.Time    `json:"createdAt"`
}

type CodeLookupResponse struct {
	ID    string       `json:"id"`
	Title string       `json:"title"`
	State domain.State `json:"state"`
}

type ListSessionsResponse struct {
	Items      []registry.Info `json:"items"`
	NextCursor string          `json:"nextCursor,omitempty"`
}
