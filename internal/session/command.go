package session

import (
	"github.com/cwrk-planet/live-quiz/internal/broadcast"
	"github.com/cwrk-planet/live-quiz/internal/domain"
)

// Kind names one command variant.
type Kind string

const (
	KindJoin                 Kind = "join"
	KindRegisterHost         Kind = "register_host"
	KindStartSession         Kind = "start_session"
	KindAdvanceQuestion      Kind = "advance_question"
	KindRevealAnswer         Kind = "reveal_answer"
	KindEndSession           Kind = "end_session"
	KindSubmitAnswer         Kind = "submit_answer"
	KindHeartbeat            Kind = "heartbeat"
	KindRemoveParticipant    Kind = "remove_participant"
	KindReinstateParticipant Kind = "reinstate_participant"
	KindDisconnect           Kind = "disconnect"
	KindGetState             Kind = "get_state"

	kindTimerFired Kind = "timer_fired"
	kindTerminate  Kind = "terminate"
)

// Command is one entry of a session's serialized command stream.
type Command interface {
	Kind() Kind
	Origin() Caller
}

// Caller identifies who issued a command, as bound by the connection ticket.
type Caller struct {
	ParticipantID string
	Role          domain.Role
	DisplayName   string
}

func (c Caller) Origin() Caller { return c }

func (c Caller) isHost(hostID string) bool {
	return c.Role == domain.RoleHost && c.ParticipantID == hostID
}

type Join struct {
	Caller
	Conn broadcast.Conn
}

type RegisterHost struct {
	Caller
	Conn broadcast.Conn
}

type StartSession struct{ Caller }

type AdvanceQuestion struct{ Caller }

type RevealAnswer struct{ Caller }

type EndSession struct{ Caller }

type SubmitAnswer struct {
	Caller
	QuestionID string
	OptionID   string
}

type Heartbeat struct{ Caller }

type RemoveParticipant struct {
	Caller
	ParticipantID string
}

type ReinstateParticipant struct {
	Caller
	ParticipantID string
}

// Disconnect reports that Conn ended. It is ignored unless Conn is still the
// connection bound to the caller.
type Disconnect struct {
	Caller
	Conn broadcast.Conn
}

type GetState struct{ Caller }

// terminate ends a session from outside its participants: an operator close
// or a process shutdown.
type terminate struct {
	reason string
}

// timerFired is posted by the scheduler when an armed timer expires.
type timerFired struct {
	purpose purpose
	gen     uint64
}

func (Join) Kind() Kind                 { return KindJoin }
func (RegisterHost) Kind() Kind         { return KindRegisterHost }
func (StartSession) Kind() Kind         { return KindStartSession }
func (AdvanceQuestion) Kind() Kind      { return KindAdvanceQuestion }
func (RevealAnswer) Kind() Kind         { return KindRevealAnswer }
func (EndSession) Kind() Kind           { return KindEndSession }
func (SubmitAnswer) Kind() Kind         { return KindSubmitAnswer }
func (Heartbeat) Kind() Kind            { return KindHeartbeat }
func (RemoveParticipant) Kind() Kind    { return KindRemoveParticipant }
func (ReinstateParticipant) Kind() Kind { return KindReinstateParticipant }
func (Disconnect) Kind() Kind           { return KindDisconnect }
func (GetState) Kind() Kind             { return KindGetState }
func (timerFired) Kind() Kind           { return kindTimerFired }
func (timerFired) Origin() Caller       { return Caller{} }
func (terminate) Kind() Kind            { return kindTerminate }
func (terminate) Origin() Caller        { return Caller{} }
