package session

import (
	"slices"

	"github.com/cwrk-planet/live-quiz/internal/domain"
)

type rule struct {
	from     []domain.State
	hostOnly bool
	// terminal commands are also accepted once the session has ended.
	terminal bool
}

var nonTerminal = []domain.State{domain.StateLobby, domain.StateQuestionLive, domain.StateRevealingAnswer, domain.StatePaused}

// transitions declares, per command, the states it is valid from and whether
// only the session host may issue it.
var transitions = map[Kind]rule{
	KindRegisterHost:         {from: []domain.State{domain.StateLobby, domain.StatePaused}, hostOnly: true},
	KindStartSession:         {from: []domain.State{domain.StateLobby}, hostOnly: true},
	KindAdvanceQuestion:      {from: []domain.State{domain.StateQuestionLive, domain.StateRevealingAnswer}, hostOnly: true},
	KindRevealAnswer:         {from: []domain.State{domain.StateQuestionLive}, hostOnly: true},
	KindEndSession:           {from: nonTerminal, hostOnly: true},
	KindRemoveParticipant:    {from: nonTerminal, hostOnly: true},
	KindReinstateParticipant: {from: nonTerminal, hostOnly: true},
	KindSubmitAnswer:         {from: []domain.State{domain.StateQuestionLive}},
	KindHeartbeat:            {from: nonTerminal},
	KindJoin:                 {from: nonTerminal},
	KindDisconnect:           {terminal: true},
	KindGetState:             {terminal: true},
	kindTerminate:            {from: nonTerminal},
}

// Allowed reports whether a command of kind k from caller may run while the
// session is in state st. It never inspects anything but the table.
func Allowed(k Kind, st domain.State, caller Caller, hostID string) error {
	r, ok := transitions[k]
	if !ok {
		return domain.Invalid(domain.CodeInvalidMessage, "unknown command", map[string]any{"command": string(k)})
	}
	if r.terminal {
		return nil
	}
	if st.Terminal() {
		return domain.ErrSessionClosed
	}
	if r.hostOnly && !caller.isHost(hostID) {
		return domain.Invalid(domain.CodeNotHost, "only the host may "+string(k), nil)
	}
	if !slices.Contains(r.from, st) {
		return wrongState(k, st)
	}
	return nil
}

func wrongState(k Kind, st domain.State) error {
	return domain.Invalid(domain.CodeWrongState, string(k)+" is not allowed in state "+string(st), map[string]any{
		"command": string(k),
		"state":   string(st),
	})
}
