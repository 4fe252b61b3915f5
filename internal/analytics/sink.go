// Package analytics hands finished-session summaries to durable collaborators.
package analytics

import (
	"context"
	"errors"
	"log/slog"

	"github.com/cwrk-planet/live-quiz/internal/domain"
)

// Sink receives the summary of a session that reached a terminal state.
type Sink interface {
	Publish(ctx context.Context, summary domain.SessionSummary) error
}

// Multi publishes to every sink and joins their errors.
type Multi []Sink

func (m Multi) Publish(ctx context.Context, summary domain.SessionSummary) error {
	var errs []error
	for _, s := range m {
		if err := s.Publish(ctx, summary); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// LogSink records summaries in the service log. It is the fallback when no
// storage backend is configured.
type LogSink struct {
	Logger *slog.Logger
}

func (l LogSink) Publish(_ context.Context, s domain.SessionSummary) error {
	log := l.Logger
	if log == nil {
		log = slog.Default()
	}
	log.Info("session summary",
		slog.String("session_id", s.SessionID),
		slog.String("state", string(s.State)),
		slog.String("reason", s.Reason),
		slog.Int("questions_played", s.QuestionsPlayed),
		slog.Int("participants", len(s.Standings)),
	)
	return nil
}
