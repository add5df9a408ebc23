package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/JT-427/LiveQuiz/internal/domain"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
)

// QuestionBank stores questions as JSONB in Postgres.
type QuestionBank struct {
	pool *pgxpool.Pool
}

func NewQuestionBank(pool *pgxpool.Pool) *QuestionBank {
	return &QuestionBank{pool: pool}
}

func (b *QuestionBank) LoadQuestion(ctx context.Context, questionID string) (domain.Question, error) {
	var raw []byte
	err := b.pool.QueryRow(ctx, `SELECT data FROM questions WHERE id=$1`, questionID).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Question{}, domain.ErrQuestionNotFound
	}
	if err != nil {
		return domain.Question{}, fmt.Errorf("load question: %w", err)
	}
	var question domain.Question
	if err := json.Unmarshal(raw, &question); err != nil {
		return domain.Question{}, fmt.Errorf("unmarshal question: %w", err)
	}
	return question, nil
}

// LoadQuestions returns every question, oldest first.
func (b *QuestionBank) LoadQuestions(ctx context.Context) ([]domain.Question, error) {
	rows, err := b.pool.Query(ctx, `SELECT data FROM questions ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("list questions: %w", err)
	}
	defer rows.Close()

	questions := []domain.Question{}
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scan question: %w", err)
		}
		var question domain.Question
		if err := json.Unmarshal(raw, &question); err != nil {
			return nil, fmt.Errorf("unmarshal question: %w", err)
		}
		questions = append(questions, question)
	}
	return questions, rows.Err()
}

func (b *QuestionBank) SaveQuestion(ctx context.Context, question domain.Question) error {
	raw, err := json.Marshal(question)
	if err != nil {
		return fmt.Errorf("marshal question: %w", err)
	}
	_, err = b.pool.Exec(ctx,
		`INSERT INTO questions (id, data, created_at) VALUES ($1, $2::jsonb, $3)
		 ON CONFLICT (id) DO UPDATE SET data=EXCLUDED.data`,
		question.ID, string(raw), question.CreatedAt)
	if err != nil {
		return fmt.Errorf("save question: %w", err)
	}
	return nil
}

func (b *QuestionBank) RemoveQuestion(ctx context.Context, questionID string) error {
	tag, err := b.pool.Exec(ctx, `DELETE FROM questions WHERE id=$1`, questionID)
	if err != nil {
		return fmt.Errorf("remove question: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrQuestionNotFound
	}
	return nil
}
