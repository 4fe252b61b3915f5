package ws

import (
	"encoding/json"

	"github.com/cwrk-planet/live-quiz/internal/domain"
)

// Типы клиентских сообщений
const (
	TypeRegisterHost         = "register_host"
	TypeStartSession         = "start_session"
	TypeAdvanceQuestion      = "advance_question"
	TypeRevealAnswer         = "reveal_answer"
	TypeEndSession           = "end_session"
	TypeSubmitAnswer         = "submit_answer"
	TypeHeartbeat            = "heartbeat"
	TypeRemoveParticipant    = "remove_participant"
	TypeReinstateParticipant = "reinstate_participant"
	TypeGetState             = "get_state"
)

// Ответы на конкретный запрос (с ref); события сессии идут с типами domain.EventType
const (
	TypeAck   = "ack"
	TypeError = "error"
)

// Inbound — кадр от клиента.
type Inbound struct {
	Type    string          `json:"type"`
	Ref     string          `json:"ref,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type SubmitPayload struct {
	QuestionID string `json:"questionId"`
	OptionID   string `json:"optionId,omitempty"`
}

type TargetPayload struct {
	ParticipantID string `json:"participantId"`
}

type AckPayload struct {
	Command string `json:"command"`
	Result  any    `json:"result,omitempty"`
}

type ErrorPayload struct {
	Code    domain.Code    `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

func errorPayload(err error) ErrorPayload {
	e := domain.AsError(err)
	return ErrorPayload{Code: e.Code, Message: e.Message, Details: e.Details}
}

func decode(raw json.RawMessage, dst any) error {
	if len(raw) == 0 {
		return domain.Invalid(domain.CodeInvalidMessage, "payload is required", nil)
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return domain.Invalid(domain.CodeInvalidMessage, "malformed payload", nil)
	}
	return nil
}
