package domain

// State is the lifecycle position of a live session.
type State string

const (
	StateLobby           State = "lobby"
	StateQuestionLive    State = "question_live"
	StateRevealingAnswer State = "revealing_answer"
	StatePaused          State = "paused"
	StateCompleted       State = "completed"
	StateTerminated      State = "terminated"
)

// Terminal reports whether no further transition can leave s.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateTerminated
}

// Active reports whether s is a state driven by a connected host.
func (s State) Active() bool {
	switch s {
	case StateLobby, StateQuestionLive, StateRevealingAnswer:
		return true
	default:
		return false
	}
}
