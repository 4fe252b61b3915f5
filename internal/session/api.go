package session

import (
	"context"
	"errors"

	"github.com/cwrk-planet/live-quiz/internal/broadcast"
	"github.com/cwrk-planet/live-quiz/internal/domain"
)

// Typed entry points over Do.

func (s *Session) Join(ctx context.Context, caller Caller, conn broadcast.Conn) (domain.Snapshot, error) {
	v, err := s.Do(ctx, Join{Caller: caller, Conn: conn})
	if err != nil {
		return domain.Snapshot{}, err
	}
	return v.(domain.Snapshot), nil
}

func (s *Session) RegisterHost(ctx context.Context, caller Caller, conn broadcast.Conn) (domain.Snapshot, error) {
	v, err := s.Do(ctx, RegisterHost{Caller: caller, Conn: conn})
	if err != nil {
		return domain.Snapshot{}, err
	}
	return v.(domain.Snapshot), nil
}

func (s *Session) Start(ctx context.Context, caller Caller) error {
	_, err := s.Do(ctx, StartSession{Caller: caller})
	return err
}

func (s *Session) Advance(ctx context.Context, caller Caller) error {
	_, err := s.Do(ctx, AdvanceQuestion{Caller: caller})
	return err
}

func (s *Session) Reveal(ctx context.Context, caller Caller) (domain.AnswerReveal, error) {
	v, err := s.Do(ctx, RevealAnswer{Caller: caller})
	if err != nil {
		return domain.AnswerReveal{}, err
	}
	return v.(domain.AnswerReveal), nil
}

func (s *Session) End(ctx context.Context, caller Caller) error {
	_, err := s.Do(ctx, EndSession{Caller: caller})
	return err
}

func (s *Session) Submit(ctx context.Context, caller Caller, questionID, optionID string) (domain.AnswerRecorded, error) {
	v, err := s.Do(ctx, SubmitAnswer{Caller: caller, QuestionID: questionID, OptionID: optionID})
	if err != nil {
		return domain.AnswerRecorded{}, err
	}
	return v.(domain.AnswerRecorded), nil
}

func (s *Session) Heartbeat(ctx context.Context, caller Caller) error {
	_, err := s.Do(ctx, Heartbeat{Caller: caller})
	return err
}

func (s *Session) Remove(ctx context.Context, caller Caller, participantID string) error {
	_, err := s.Do(ctx, RemoveParticipant{Caller: caller, ParticipantID: participantID})
	return err
}

func (s *Session) Reinstate(ctx context.Context, caller Caller, participantID string) error {
	_, err := s.Do(ctx, ReinstateParticipant{Caller: caller, ParticipantID: participantID})
	return err
}

func (s *Session) Disconnect(ctx context.Context, caller Caller, conn broadcast.Conn) error {
	_, err := s.Do(ctx, Disconnect{Caller: caller, Conn: conn})
	return err
}

func (s *Session) Snapshot(ctx context.Context) (domain.Snapshot, error) {
	v, err := s.Do(ctx, GetState{})
	if err != nil {
		return domain.Snapshot{}, err
	}
	return v.(domain.Snapshot), nil
}

// Terminate ends a session that has not ended yet with the given reason.
// An already ended session is left as is.
func (s *Session) Terminate(ctx context.Context, reason string) error {
	_, err := s.Do(ctx, terminate{reason: reason})
	if errors.Is(err, domain.ErrSessionClosed) {
		return nil
	}
	return err
}
