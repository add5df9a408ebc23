package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/JT-427/LiveQuiz/internal/domain"
	"github.com/jackc/pgx/v4/pgxpool"
)

// AnswerLog appends accepted answers to the answers table. The table keeps
// one row per (activity, question, participant); a repeated append is a no-op.
type AnswerLog struct {
	pool *pgxpool.Pool
}

func NewAnswerLog(pool *pgxpool.Pool) *AnswerLog {
	return &AnswerLog{pool: pool}
}

func (l *AnswerLog) AppendAnswer(ctx context.Context, answer domain.Answer) error {
	payload, err := json.Marshal(answer.Payload)
	if err != nil {
		return fmt.Errorf("marshal answer payload: %w", err)
	}
	_, err = l.pool.Exec(ctx,
		`INSERT INTO answers (activity_id, question_id, participant_id, payload, submitted_at)
		 VALUES ($1, $2, $3, $4::jsonb, $5)
		 ON CONFLICT (activity_id, question_id, participant_id) DO NOTHING`,
		answer.ActivityID, answer.QuestionID, answer.ParticipantID, string(payload), answer.SubmittedAt)
	if err != nil {
		return fmt.Errorf("insert answer: %w", err)
	}
	return nil
}

// Answers returns the logged answers of one activity in submission order.
func (l *AnswerLog) Answers(ctx context.Context, activityID string) ([]domain.Answer, error) {
	rows, err := l.pool.Query(ctx,
		`SELECT activity_id, question_id, participant_id, payload, submitted_at
		 FROM answers WHERE activity_id=$1 ORDER BY submitted_at, id`, activityID)
	if err != nil {
		return nil, fmt.Errorf("list answers: %w", err)
	}
	defer rows.Close()

	var answers []domain.Answer
	for rows.Next() {
		var (
			a   domain.Answer
			raw []byte
		)
		if err := rows.Scan(&a.ActivityID, &a.QuestionID, &a.ParticipantID, &raw, &a.SubmittedAt); err != nil {
			return nil, fmt.Errorf("scan answer: %w", err)
		}
		if err := json.Unmarshal(raw, &a.Payload); err != nil {
			return nil, fmt.Errorf("unmarshal answer payload: %w", err)
		}
		a.Accepted = true
		answers = append(answers, a)
	}
	return answers, rows.Err()
}
