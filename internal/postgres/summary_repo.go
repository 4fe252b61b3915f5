package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cwrk-planet/live-quiz/internal/domain"
)

// SummaryRepository сохраняет итоги завершённых сессий (analytics sink).
type SummaryRepository struct {
	db *pgxpool.Pool
}

func NewSummaryRepository(db *pgxpool.Pool) *SummaryRepository {
	return &SummaryRepository{db: db}
}

const (
	insertSummaryQuery = `
		INSERT INTO session_summaries
			(session_id, join_code, title, state, reason, created_at, started_at, ended_at,
			 question_count, questions_played, questions)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (session_id) DO NOTHING`

	insertResultQuery = `
		INSERT INTO session_results
			(session_id, participant_id, display_name, status, rank, score, correct_answers, total_answers)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (session_id, participant_id) DO NOTHING`

	selectSummaryQuery = `
		SELECT session_id, join_code, title, state, reason, created_at, started_at, ended_at,
		       question_count, questions_played, questions
		FROM session_summaries
		WHERE session_id = $1`

	selectResultsQuery = `
		SELECT participant_id, display_name, status, rank, score, correct_answers, total_answers
		FROM session_results
		WHERE session_id = $1
		ORDER BY rank, participant_id`
)

// Publish пишет итог и результаты участников одной транзакцией; повторная
// публикация того же session_id ничего не меняет.
func (r *SummaryRepository) Publish(ctx context.Context, s domain.SessionSummary) error {
	questions, err := json.Marshal(s.Questions)
	if err != nil {
		return fmt.Errorf("marshal questions: %w", err)
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	batch := &pgx.Batch{}
	batch.Queue(insertSummaryQuery,
		s.SessionID, s.JoinCode, s.Title, string(s.State), s.Reason,
		s.CreatedAt, s.StartedAt, s.EndedAt, s.QuestionCount, s.QuestionsPlayed, questions)
	for _, st := range s.Standings {
		batch.Queue(insertResultQuery,
			s.SessionID, st.ParticipantID, st.DisplayName, string(st.Status),
			st.Rank, st.Score, st.CorrectAnswers, st.TotalAnswers)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("insert summary: %w", err)
	}

	return tx.Commit(ctx)
}

func (r *SummaryRepository) Get(ctx context.Context, sessionID string) (*domain.SessionSummary, error) {
	var (
		s         domain.SessionSummary
		state     string
		questions []byte
	)
	err := r.db.QueryRow(ctx, selectSummaryQuery, sessionID).Scan(
		&s.SessionID, &s.JoinCode, &s.Title, &state, &s.Reason, &s.CreatedAt, &s.StartedAt, &s.EndedAt,
		&s.QuestionCount, &s.QuestionsPlayed, &questions)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrSessionNotFound
		}
		return nil, err
	}
	s.State = domain.State(state)
	if err := json.Unmarshal(questions, &s.Questions); err != nil {
		return nil, fmt.Errorf("decode questions: %w", err)
	}

	rows, err := r.db.Query(ctx, selectResultsQuery, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			st     domain.Standing
			status string
		)
		if err := rows.Scan(&st.ParticipantID, &st.DisplayName, &status, &st.Rank, &st.Score, &st.CorrectAnswers, &st.TotalAnswers); err != nil {
			return nil, err
		}
		st.Status = domain.ParticipantStatus(status)
		st.Accuracy = domain.Participant{CorrectAnswers: st.CorrectAnswers, TotalAnswers: st.TotalAnswers}.Accuracy()
		s.Standings = append(s.Standings, st)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return &s, nil
}
